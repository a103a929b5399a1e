package faq

import "strings"

// Entry is one question/answer pair. Its position in the corpus is its
// identity.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TokenizedCorpus holds one token sequence per entry, aligned by position.
type TokenizedCorpus [][]string

// StopwordSet holds terms excluded from the vocabulary and from queries.
type StopwordSet map[string]struct{}

// NewStopwordSet returns the union of the given lists. Words are normalised
// the same way query text is; blank lines are ignored.
func NewStopwordSet(lists ...[]string) StopwordSet {
	set := make(StopwordSet)
	for _, list := range lists {
		for _, w := range list {
			w = strings.TrimSpace(Normalize(w))
			if w != "" {
				set[w] = struct{}{}
			}
		}
	}
	return set
}

// Contains reports whether term is a stop-word. A nil set contains nothing.
func (s StopwordSet) Contains(term string) bool {
	_, ok := s[term]
	return ok
}

// Len returns the number of distinct stop-words.
func (s StopwordSet) Len() int {
	return len(s)
}
