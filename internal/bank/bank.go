// Package bank holds the categorized question pool and hands out questions
// without repeating one within a game.
package bank

import (
	"errors"
	"fmt"
)

var ErrExhaustedCategory = errors.New("exhausted category")

// Source is the randomness a Bank draws with. *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	IntN(n int) int
}

// Bank is an immutable question set plus the per-game record of which
// questions have already been drawn. It is not safe for concurrent use; the
// owning game session serializes access.
type Bank struct {
	questions map[Category][]Question
	drawn     map[Category][]bool
	left      map[Category]int
	src       Source
}

// New builds a bank over already-validated questions.
func New(questions map[Category][]Question, src Source) *Bank {
	b := &Bank{
		questions: make(map[Category][]Question, len(questions)),
		drawn:     make(map[Category][]bool, len(questions)),
		left:      make(map[Category]int, len(questions)),
		src:       src,
	}
	for cat, qs := range questions {
		b.questions[cat] = append([]Question(nil), qs...)
	}
	b.Reset()
	return b
}

// Load validates a content payload and builds a bank from it.
func Load(c Content, src Source) (*Bank, error) {
	qs, err := c.Questions()
	if err != nil {
		return nil, err
	}
	return New(qs, src), nil
}

// Default builds a bank over the built-in question set.
func Default(src Source) (*Bank, error) {
	c, err := DefaultContent()
	if err != nil {
		return nil, err
	}
	return Load(c, src)
}

// Draw returns a uniformly chosen undrawn question of the category and marks
// it drawn.
func (b *Bank) Draw(cat Category) (Question, error) {
	n := b.left[cat]
	if n == 0 {
		return Question{}, fmt.Errorf("%w: %s", ErrExhaustedCategory, cat)
	}
	pick := b.src.IntN(n)
	for i, used := range b.drawn[cat] {
		if used {
			continue
		}
		if pick == 0 {
			b.drawn[cat][i] = true
			b.left[cat]--
			return b.questions[cat][i], nil
		}
		pick--
	}
	// left and drawn disagree; only reachable if the bookkeeping is broken
	return Question{}, fmt.Errorf("%w: %s", ErrExhaustedCategory, cat)
}

// Reset marks every question undrawn.
func (b *Bank) Reset() {
	for cat, qs := range b.questions {
		b.drawn[cat] = make([]bool, len(qs))
		b.left[cat] = len(qs)
	}
}

// Remaining reports how many questions of the category can still be drawn.
func (b *Bank) Remaining(cat Category) int {
	return b.left[cat]
}

// Size reports how many questions the category holds in total.
func (b *Bank) Size(cat Category) int {
	return len(b.questions[cat])
}

// Categories returns the categories that hold at least one question, in
// presentation order.
func (b *Bank) Categories() []Category {
	out := make([]Category, 0, len(Categories))
	for _, cat := range Categories {
		if len(b.questions[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}

// Source exposes the bank's randomness so selection policies share it.
func (b *Bank) Source() Source {
	return b.src
}
