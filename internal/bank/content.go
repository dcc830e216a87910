package bank

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

//go:embed questions.json
var defaultContent []byte

var ErrInvalidQuestion = errors.New("invalid question")

// Entry is one authored prompt/answer pair.
type Entry struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// Content is the static question payload, keyed by category.
type Content map[Category][]Entry

// Parse decodes a JSON payload of the Content shape.
func Parse(data []byte) (Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return c, nil
}

// Questions validates the payload and flattens it into questions grouped by
// category, preserving authored order.
func (c Content) Questions() (map[Category][]Question, error) {
	out := make(map[Category][]Question, len(c))
	for cat, entries := range c {
		if !cat.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidQuestion, cat)
		}
		allowed := cat.Allowed()
		qs := make([]Question, 0, len(entries))
		for i, e := range entries {
			prompt := strings.TrimSpace(e.Prompt)
			answer := strings.TrimSpace(e.Answer)
			if prompt == "" || answer == "" {
				return nil, fmt.Errorf("%w: %s #%d has an empty prompt or answer", ErrInvalidQuestion, cat, i)
			}
			if allowed != nil && !slices.Contains(allowed, answer) {
				return nil, fmt.Errorf("%w: %s #%d answer %q not one of %v", ErrInvalidQuestion, cat, i, answer, allowed)
			}
			qs = append(qs, Question{Category: cat, Prompt: prompt, Answer: answer})
		}
		out[cat] = qs
	}
	return out, nil
}

// DefaultContent returns the built-in French grammar question set.
func DefaultContent() (Content, error) {
	return Parse(defaultContent)
}

// LoadFile reads a question payload from disk.
func LoadFile(path string) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}
