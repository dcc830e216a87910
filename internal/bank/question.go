package bank

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Category string

const (
	CategoryFindTense Category = "FindTense"
	CategoryConjugate Category = "Conjugate"
	CategoryCDOrCI    Category = "CDOrCI"
)

// Categories lists every category in presentation order.
var Categories = []Category{CategoryFindTense, CategoryConjugate, CategoryCDOrCI}

func (c Category) Valid() bool {
	switch c {
	case CategoryFindTense, CategoryConjugate, CategoryCDOrCI:
		return true
	}
	return false
}

// Tenses accepted as FindTense answers.
const (
	TensePasseCompose = "le passé composé"
	TenseImparfait    = "l'imparfait"
	TenseFuturSimple  = "le futur simple"
)

// Object kinds accepted as CDOrCI answers.
const (
	ObjectDirect   = "CD"
	ObjectIndirect = "CI"
)

// Allowed returns the closed answer set for a category, or nil when answers
// are free text.
func (c Category) Allowed() []string {
	switch c {
	case CategoryFindTense:
		return []string{TensePasseCompose, TenseImparfait, TenseFuturSimple}
	case CategoryCDOrCI:
		return []string{ObjectDirect, ObjectIndirect}
	}
	return nil
}

type Question struct {
	Category Category `json:"category"`
	Prompt   string   `json:"prompt"`
	Answer   string   `json:"answer"`
}

// Check reports whether answer matches the expected one, ignoring case,
// Unicode composition, whitespace runs and typographic apostrophes.
func (q Question) Check(answer string) bool {
	return Normalize(answer) == Normalize(q.Answer)
}

var apostrophe = strings.NewReplacer("’", "'", "‘", "'", "`", "'", "ʼ", "'")

// Normalize maps an answer to its comparison form.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = apostrophe.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}
