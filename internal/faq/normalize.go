package faq

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// Normalize folds full-width ASCII to half-width and lower-cases text.
// It runs before tokenization on both corpus questions and queries.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// A Caser keeps state, so one is created per call.
	return cases.Lower(language.Und).String(width.Fold.String(s))
}
