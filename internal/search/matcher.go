package search

import (
	"regexp"
	"slices"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Record is anything the matcher can search.
type Record interface {
	// SearchName is the display name compared token by token.
	SearchName() string
	// SearchCode is the unique business code.
	SearchCode() string
	// SearchDigits are free-form phone numbers or IDs compared by digits.
	SearchDigits() []string
}

// Matcher implements the find(query) algorithm over in-memory records.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	normalizer *Normalizer

	// exact is the code pattern that short-circuits all other matching,
	// even when no record carries the code.
	exact *regexp.Regexp

	// probe is a code pattern tried first but abandoned when nothing
	// carries the code.
	probe *regexp.Regexp
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithExactCode sets the pattern that selects the exact-code fast path.
func WithExactCode(p *regexp.Regexp) MatcherOption {
	return func(m *Matcher) { m.exact = p }
}

// WithProbeCode sets a pattern whose matches are first looked up by code and
// fall through to name/digit matching when absent.
func WithProbeCode(p *regexp.Regexp) MatcherOption {
	return func(m *Matcher) { m.probe = p }
}

// NewMatcher creates a matcher using n for query and name normalization.
func NewMatcher(n *Normalizer, opts ...MatcherOption) *Matcher {
	m := &Matcher{normalizer: n}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Normalizer returns the normalizer used by the matcher.
func (m *Matcher) Normalizer() *Normalizer {
	return m.normalizer
}

// Match returns the records matching query, ordered by folded name then
// code. An empty or blank query matches nothing.
func Match[T Record](m *Matcher, query string, records []T) []T {
	if strings.TrimSpace(query) == "" {
		return []T{}
	}
	q := m.normalizer.Normalize(query)

	if m.exact != nil && m.exact.MatchString(q.Code) {
		return byCode(q.Code, records)
	}
	if m.probe != nil && m.probe.MatchString(q.Code) {
		if hits := byCode(q.Code, records); len(hits) > 0 {
			return hits
		}
	}

	var matched []T
	switch {
	case len(q.Tokens) > 0 || q.Digits != "":
		names := newTokenSet(q.Tokens)
		for _, r := range records {
			if names.allIn(FoldText(r.SearchName())) || digitsMatch(q.Digits, r) {
				matched = append(matched, r)
			}
		}
	default:
		raw := strings.ToLower(strings.TrimSpace(query))
		for _, r := range records {
			if rawMatch(raw, r) {
				matched = append(matched, r)
			}
		}
	}

	sortRecords(matched)
	if matched == nil {
		matched = []T{}
	}
	return matched
}

func byCode[T Record](code string, records []T) []T {
	for _, r := range records {
		if StrictCode(r.SearchCode()) == code {
			return []T{r}
		}
	}
	return []T{}
}

// tokenSet answers "do all tokens occur in this name" with one pass of an
// Aho-Corasick automaton over the name.
type tokenSet struct {
	matcher *ahocorasick.Matcher
	size    int
}

func newTokenSet(tokens []string) tokenSet {
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !slices.Contains(unique, t) {
			unique = append(unique, t)
		}
	}
	if len(unique) == 0 {
		return tokenSet{}
	}
	return tokenSet{
		matcher: ahocorasick.NewStringMatcher(unique),
		size:    len(unique),
	}
}

func (ts tokenSet) allIn(name string) bool {
	if ts.size == 0 || name == "" {
		return false
	}
	hits := ts.matcher.MatchThreadSafe([]byte(name))
	seen := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		seen[h] = struct{}{}
	}
	return len(seen) == ts.size
}

func digitsMatch(digits string, r Record) bool {
	if digits == "" {
		return false
	}
	for _, stored := range r.SearchDigits() {
		if d := Digits(stored); d != "" && strings.Contains(d, digits) {
			return true
		}
	}
	return false
}

func rawMatch(raw string, r Record) bool {
	if strings.Contains(strings.ToLower(r.SearchName()), raw) {
		return true
	}
	if strings.Contains(strings.ToLower(r.SearchCode()), raw) {
		return true
	}
	for _, stored := range r.SearchDigits() {
		if stored != "" && strings.Contains(strings.ToLower(stored), raw) {
			return true
		}
	}
	return false
}

func sortRecords[T Record](records []T) {
	slices.SortStableFunc(records, func(a, b T) int {
		if c := strings.Compare(FoldText(a.SearchName()), FoldText(b.SearchName())); c != 0 {
			return c
		}
		return strings.Compare(a.SearchCode(), b.SearchCode())
	})
}
