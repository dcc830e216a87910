package game

import (
	"errors"
	"slices"
	"testing"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/random"
)

// mixedBank holds one FindTense, three Conjugate and one CDOrCI question,
// drawn in listed order under zeroSource.
func mixedBank(src bank.Source) *bank.Bank {
	q := func(cat bank.Category, prompt string) bank.Question {
		return bank.Question{Category: cat, Prompt: prompt, Answer: "x"}
	}
	return bank.New(map[bank.Category][]bank.Question{
		bank.CategoryFindTense: {q(bank.CategoryFindTense, "f1")},
		bank.CategoryConjugate: {
			q(bank.CategoryConjugate, "c1"),
			q(bank.CategoryConjugate, "c2"),
			q(bank.CategoryConjugate, "c3"),
		},
		bank.CategoryCDOrCI: {q(bank.CategoryCDOrCI, "d1")},
	}, src)
}

// drain draws until the policy gives up and returns the prompts in order.
func drain(t *testing.T, p CategoryPolicy, b *bank.Bank) []string {
	t.Helper()
	var out []string
	for range 10 {
		q, err := p.Next(b)
		if errors.Is(err, ErrNoQuestionsRemaining) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error after %v: %v", out, err)
		}
		out = append(out, q.Prompt)
	}
	t.Fatalf("policy never ran out, drew %v", out)
	return nil
}

func mustPolicy(t *testing.T, name string) CategoryPolicy {
	t.Helper()
	p, err := NewPolicy(name)
	if err != nil {
		t.Fatalf("policy %q: %v", name, err)
	}
	return p
}

func TestRoundRobinSkipsExhaustedCategories(t *testing.T) {
	p := mustPolicy(t, "")
	b := mixedBank(zeroSource{})

	got := drain(t, p, b)
	want := []string{"f1", "c1", "d1", "c2", "c3"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// starts over from the first category after a reset
	b.Reset()
	p.Reset()
	if q, err := p.Next(b); err != nil || q.Prompt != "f1" {
		t.Fatalf("expected f1 after reset, got %q, %v", q.Prompt, err)
	}
}

func TestBalancedDrawsFromTheFullestCategory(t *testing.T) {
	got := drain(t, mustPolicy(t, PolicyBalanced), mixedBank(zeroSource{}))
	// ties go to the earlier category
	want := []string{"c1", "c2", "f1", "c3", "d1"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRandomDrawsEveryQuestionOnce(t *testing.T) {
	for seed := range uint64(20) {
		got := drain(t, mustPolicy(t, PolicyRandom), mixedBank(random.NewSeeded(seed)))
		slices.Sort(got)
		want := []string{"c1", "c2", "c3", "d1", "f1"}
		if !slices.Equal(got, want) {
			t.Fatalf("seed %d: expected every question once, got %v", seed, got)
		}
	}

	got := drain(t, mustPolicy(t, PolicyRandom), mixedBank(zeroSource{}))
	want := []string{"f1", "c1", "c2", "c3", "d1"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEmptyBankHasNoQuestions(t *testing.T) {
	b := bank.New(nil, zeroSource{})
	for _, name := range Policies {
		if _, err := mustPolicy(t, name).Next(b); !errors.Is(err, ErrNoQuestionsRemaining) {
			t.Fatalf("%s: expected ErrNoQuestionsRemaining, got %v", name, err)
		}
	}
}

func TestUnknownPolicy(t *testing.T) {
	if _, err := NewPolicy("alphabetical"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}
