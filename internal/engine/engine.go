package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/placement/internal/directory"
	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/search"
	"github.com/roach88/placement/internal/store"
)

// Service is the library contract other components drive the core through.
type Service interface {
	CreateRequest(ctx context.Context, clientID int64, attrs domain.RequestAttrs) (domain.Request, error)
	Transition(ctx context.Context, requestID int64, action Action, p Payload) (domain.Request, error)
	OpenReplacement(ctx context.Context, requestID, oldCandidateID int64, reason string, plannedStart *time.Time) (domain.Replacement, error)
	ResolveReplacement(ctx context.Context, replacementID, newCandidateID int64, startDate *time.Time, isNewOpportunity bool) (domain.Replacement, error)
	FindCandidate(ctx context.Context, query string) ([]domain.Candidate, error)
	FindRequest(ctx context.Context, query string) ([]domain.RequestListing, error)
	EligibleForPublication(ctx context.Context, asOf time.Time) ([]domain.Request, error)
	MarkPublished(ctx context.Context, requestID int64, at time.Time) (domain.Request, error)
}

var _ Service = (*Engine)(nil)

// Engine runs request lifecycle operations against the store.
//
// Thread-safety: Engine holds no mutable state of its own; concurrent calls
// are serialized by store transactions.
type Engine struct {
	store      *store.Store
	clock      Clock
	ids        IDGenerator
	logger     *slog.Logger
	location   *time.Location
	candidates *search.Matcher
	requests   *search.Matcher
	directory  *directory.CandidateDirectory
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the clock used for every timestamp the engine writes.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the generator for request event IDs.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithLocation sets the time zone whose calendar days bound publication.
//
// Default: UTC
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.location = loc }
}

// WithCandidateMatcher sets the matcher used by FindCandidate.
func WithCandidateMatcher(m *search.Matcher) EngineOption {
	return func(e *Engine) { e.candidates = m }
}

// WithRequestMatcher sets the matcher used by FindRequest.
func WithRequestMatcher(m *search.Matcher) EngineOption {
	return func(e *Engine) { e.requests = m }
}

// New creates an Engine backed by s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.candidates == nil {
		e.candidates = directory.DefaultCandidateMatcher(search.DefaultStopWords)
	}
	if e.requests == nil {
		e.requests = DefaultRequestMatcher(e.candidates.Normalizer())
	}
	e.directory = directory.NewCandidateDirectory(s,
		directory.WithClock(e.clock),
		directory.WithLogger(e.logger),
		directory.WithMatcher(e.candidates),
	)
	return e
}

// DefaultRequestMatcher builds the request matcher: request codes are tried
// first and fall back to name and phone matching when no request has them.
func DefaultRequestMatcher(n *search.Normalizer) *search.Matcher {
	return search.NewMatcher(n, search.WithProbeCode(domain.RequestCodePattern))
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

type actorKey struct{}

// WithActor returns a context that attributes engine writes to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

// ActorFrom returns the actor attached to ctx, or domain.SystemActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return domain.SystemActor
}

type expectedVersionKey struct{}

func withExpectedVersion(ctx context.Context, v int64) context.Context {
	if v == 0 {
		return ctx
	}
	return context.WithValue(ctx, expectedVersionKey{}, v)
}

func expectedVersion(ctx context.Context) int64 {
	v, _ := ctx.Value(expectedVersionKey{}).(int64)
	return v
}
