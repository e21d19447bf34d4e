// Package scheduler runs the daily publication job: it collects the requests
// eligible for publication, hands them to a Publisher and stamps each one
// published.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/placement/internal/domain"
)

// Parser accepts five-field cron expressions (minute hour dom month dow).
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Source is the part of the lifecycle engine the publication job drives.
type Source interface {
	EligibleForPublication(ctx context.Context, asOf time.Time) ([]domain.Request, error)
	MarkPublished(ctx context.Context, requestID int64, at time.Time) (domain.Request, error)
}

// Publisher advertises a batch of requests. A returned error leaves every
// request of the batch unmarked.
type Publisher interface {
	Publish(ctx context.Context, requests []domain.Request) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, requests []domain.Request) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, requests []domain.Request) error {
	return f(ctx, requests)
}

// LogPublisher logs one line per published request.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, requests []domain.Request) error {
	for _, r := range requests {
		p.Logger.Info("request published", "request_id", r.ID, "code", r.Code, "state", r.State, "position", r.Position)
	}
	return nil
}

// JSONPublisher writes each request as one JSON line.
type JSONPublisher struct {
	W io.Writer
}

// Publish implements Publisher.
func (p JSONPublisher) Publish(_ context.Context, requests []domain.Request) error {
	enc := json.NewEncoder(p.W)
	for _, r := range requests {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write request %s: %w", r.Code, err)
		}
	}
	return nil
}

// Clock provides the time a run considers "today".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Result summarizes one publication run.
type Result struct {
	RanAt     time.Time `json:"ran_at"`
	Eligible  int       `json:"eligible"`
	Published []string  `json:"published"`
	Skipped   []string  `json:"skipped,omitempty"`
}

// Option configures a DailyPublisher.
type Option func(*DailyPublisher)

// WithClock sets the clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(d *DailyPublisher) { d.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *DailyPublisher) { d.logger = l }
}

// WithLocation sets the time zone the cron schedule is evaluated in.
//
// Default: UTC
func WithLocation(loc *time.Location) Option {
	return func(d *DailyPublisher) { d.location = loc }
}

// DailyPublisher publishes eligible requests on a cron schedule.
type DailyPublisher struct {
	source    Source
	publisher Publisher
	schedule  string
	clock     Clock
	logger    *slog.Logger
	location  *time.Location

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a DailyPublisher. The schedule is validated here so a bad
// expression fails before Start.
func New(source Source, publisher Publisher, schedule string, opts ...Option) (*DailyPublisher, error) {
	if _, err := Parser.Parse(schedule); err != nil {
		return nil, domain.NewValidationError("publish_schedule", fmt.Sprintf("invalid cron expression %q: %v", schedule, err))
	}
	d := &DailyPublisher{
		source:    source,
		publisher: publisher,
		schedule:  schedule,
		clock:     systemClock{},
		logger:    slog.Default(),
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RunOnce publishes the requests eligible now. Requests whose state changed
// between selection and marking are skipped; other marking errors are
// joined into the returned error.
func (d *DailyPublisher) RunOnce(ctx context.Context) (Result, error) {
	now := d.clock.Now()
	res := Result{RanAt: now.UTC(), Published: []string{}}

	eligible, err := d.source.EligibleForPublication(ctx, now)
	if err != nil {
		return res, err
	}
	res.Eligible = len(eligible)
	if len(eligible) == 0 {
		d.logger.Info("nothing to publish")
		return res, nil
	}

	if err := d.publisher.Publish(ctx, eligible); err != nil {
		return res, fmt.Errorf("publish: %w", err)
	}

	var errs []error
	for _, r := range eligible {
		if _, err := d.source.MarkPublished(ctx, r.ID, now); err != nil {
			if domain.IsInvalidTransition(err) || domain.IsNotFound(err) {
				d.logger.Warn("request changed before it was marked published", "request_id", r.ID, "code", r.Code, "error", err)
				res.Skipped = append(res.Skipped, r.Code)
				continue
			}
			errs = append(errs, err)
			continue
		}
		res.Published = append(res.Published, r.Code)
	}

	d.logger.Info("publication run finished",
		"eligible", res.Eligible, "published", len(res.Published), "skipped", len(res.Skipped))
	return res, errors.Join(errs...)
}

// Start schedules RunOnce and returns immediately. The job stops when ctx
// is cancelled or Stop is called.
func (d *DailyPublisher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return errors.New("scheduler already started")
	}

	logger := cronLogger{d.logger}
	c := cron.New(
		cron.WithParser(Parser),
		cron.WithLocation(d.location),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(d.schedule, func() {
		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Error("publication run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule publication: %w", err)
	}
	c.Start()
	d.cron = c
	d.logger.Info("publication scheduler started", "schedule", d.schedule, "location", d.location.String())

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (d *DailyPublisher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	d.logger.Info("publication scheduler stopped")
}

// Next returns the next scheduled run after t.
func (d *DailyPublisher) Next(t time.Time) time.Time {
	sched, err := Parser.Parse(d.schedule)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t.In(d.location))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
