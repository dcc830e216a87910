package game

import (
	"errors"
	"fmt"

	"github.com/MysteryBlokHed/alheure/internal/bank"
)

// CategoryPolicy picks the category of the next question and draws it,
// falling back to another category when one is exhausted.
type CategoryPolicy interface {
	Next(b *bank.Bank) (bank.Question, error)
	Reset()
}

const (
	PolicyRoundRobin = "round-robin"
	PolicyBalanced   = "balanced"
	PolicyRandom     = "random"
)

// Policies lists the accepted policy names.
var Policies = []string{PolicyRoundRobin, PolicyBalanced, PolicyRandom}

// NewPolicy returns the named policy. The empty name selects round-robin.
func NewPolicy(name string) (CategoryPolicy, error) {
	switch name {
	case "", PolicyRoundRobin:
		return &roundRobin{}, nil
	case PolicyBalanced:
		return balanced{}, nil
	case PolicyRandom:
		return randomPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown category policy %q", name)
}

// roundRobin cycles through categories in presentation order, skipping
// exhausted ones.
type roundRobin struct {
	next int
}

func (p *roundRobin) Next(b *bank.Bank) (bank.Question, error) {
	cats := b.Categories()
	for i := range cats {
		ix := (p.next + i) % len(cats)
		q, err := b.Draw(cats[ix])
		if errors.Is(err, bank.ErrExhaustedCategory) {
			continue
		}
		if err != nil {
			return bank.Question{}, err
		}
		p.next = ix + 1
		return q, nil
	}
	return bank.Question{}, ErrNoQuestionsRemaining
}

func (p *roundRobin) Reset() {
	p.next = 0
}

// balanced draws from whichever category has the most questions left, so
// categories run dry at about the same time.
type balanced struct{}

func (balanced) Next(b *bank.Bank) (bank.Question, error) {
	var best bank.Category
	most := 0
	for _, cat := range b.Categories() {
		if n := b.Remaining(cat); n > most {
			best, most = cat, n
		}
	}
	if most == 0 {
		return bank.Question{}, ErrNoQuestionsRemaining
	}
	return b.Draw(best)
}

func (balanced) Reset() {}

// randomPolicy picks uniformly among categories that still have questions.
type randomPolicy struct{}

func (randomPolicy) Next(b *bank.Bank) (bank.Question, error) {
	var open []bank.Category
	for _, cat := range b.Categories() {
		if b.Remaining(cat) > 0 {
			open = append(open, cat)
		}
	}
	if len(open) == 0 {
		return bank.Question{}, ErrNoQuestionsRemaining
	}
	return b.Draw(open[b.Source().IntN(len(open))])
}

func (randomPolicy) Reset() {}
