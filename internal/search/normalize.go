package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultStopWords are connector words with no discriminative value in
// Spanish personal and company names.
var DefaultStopWords = []string{"de", "del", "la", "las", "los", "y"}

// Normalized holds the canonical projections of one raw input.
type Normalized struct {
	Raw    string
	Text   string
	Tokens []string
	Digits string
	Code   string
}

// Normalizer folds raw input into Normalized projections. It is immutable
// after construction and safe for concurrent use.
type Normalizer struct {
	stopWords map[string]struct{}
}

// NewNormalizer creates a normalizer that drops the given stop-words from
// token lists. Stop-words are folded the same way as input text.
func NewNormalizer(stopWords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		if f := FoldText(w); f != "" {
			set[f] = struct{}{}
		}
	}
	return &Normalizer{stopWords: set}
}

// Normalize computes every projection of raw.
func (n *Normalizer) Normalize(raw string) Normalized {
	text := FoldText(raw)
	var tokens []string
	for _, tok := range strings.Fields(text) {
		if _, stop := n.stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return Normalized{
		Raw:    raw,
		Text:   text,
		Tokens: tokens,
		Digits: Digits(raw),
		Code:   StrictCode(raw),
	}
}

// IsStopWord reports whether a folded token is ignored by this normalizer.
func (n *Normalizer) IsStopWord(tok string) bool {
	_, ok := n.stopWords[tok]
	return ok
}

var punctuation = strings.NewReplacer(
	",", " ",
	".", " ",
	";", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
)

// FoldText applies the text projection: punctuation to spaces, whitespace
// collapsed, diacritics removed, lower-cased, and everything outside
// [a-z0-9 -] dropped.
func FoldText(raw string) string {
	s := collapse(punctuation.Replace(raw))

	// Transformers and casers carry state; build them per call.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}
	return collapse(b.String())
}

// Digits keeps only ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StrictCode upper-cases raw and removes all whitespace.
func StrictCode(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToUpper(raw))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
