package directory

import (
	"log/slog"
	"time"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/search"
)

// Clock supplies wall time for record timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type options struct {
	clock   Clock
	logger  *slog.Logger
	matcher *search.Matcher
}

// Option configures a directory.
type Option func(*options)

// WithClock sets the clock used for timestamps.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMatcher sets the matcher used by candidate search.
func WithMatcher(m *search.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.matcher == nil {
		o.matcher = DefaultCandidateMatcher(search.DefaultStopWords)
	}
	return o
}

// DefaultCandidateMatcher builds the matcher used for candidate lookups:
// generated candidate codes take the exact-code path.
func DefaultCandidateMatcher(stopWords []string) *search.Matcher {
	return search.NewMatcher(
		search.NewNormalizer(stopWords),
		search.WithExactCode(domain.CandidateCodePattern),
	)
}
