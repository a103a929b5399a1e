package faq

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ego/gse"
)

// Tokenizer splits normalised text into tokens. Implementations must be
// deterministic and safe for concurrent use. The same Tokenizer is used to
// build the index and to answer queries.
type Tokenizer interface {
	Tokenize(text string) []string
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(text string) []string

// Tokenize calls f(text).
func (f TokenizerFunc) Tokenize(text string) []string {
	return f(text)
}

// GseTokenizer segments Chinese with a jieba-compatible dictionary and HMM
// for unknown words. Latin words and digits come out as whole tokens.
type GseTokenizer struct {
	seg *gse.Segmenter
}

// NewGseTokenizer loads one of gse's embedded dictionaries ("zh", "zh_s",
// "zh_t"). Loading takes a few seconds.
func NewGseTokenizer(dict string) (*GseTokenizer, error) {
	if dict == "" {
		dict = "zh"
	}
	seg := new(gse.Segmenter)
	if err := seg.LoadDictEmbed(dict); err != nil {
		return nil, fmt.Errorf("load segmenter dictionary %q: %w", dict, err)
	}
	return &GseTokenizer{seg: seg}, nil
}

// Tokenize segments text in accurate mode with HMM enabled. Whitespace
// tokens are dropped.
func (t *GseTokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	parts := t.seg.Cut(text, true)
	tokens := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// BigramTokenizer needs no dictionary: every CJK character is emitted
// together with its bigram with the next CJK character, and runs of other
// letters or digits form single tokens. Used in tests and when the
// segmenter dictionary is unavailable.
type BigramTokenizer struct{}

// Tokenize implements Tokenizer.
func (BigramTokenizer) Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
			if i+1 < len(runes) && isCJK(runes[i+1]) {
				tokens = append(tokens, string(runes[i:i+2]))
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
