package engine

import (
	"context"
	"slices"
	"time"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/store"
)

// EligibleForPublication returns the requests that may be advertised on
// asOf's calendar day: active or replacement requests not yet published that
// day. Replacement requests come first, then active ones, each newest first.
func (e *Engine) EligibleForPublication(ctx context.Context, asOf time.Time) ([]domain.Request, error) {
	var candidates []domain.Request
	err := e.store.Read(ctx, "eligible for publication", func(tx *store.Tx) error {
		var err error
		candidates, err = tx.ListRequestsByState(ctx, domain.RequestReplacement, domain.RequestActive)
		return err
	})
	if err != nil {
		return nil, err
	}

	today := e.day(asOf)
	eligible := make([]domain.Request, 0, len(candidates))
	for _, r := range candidates {
		if r.LastPublishedAt == nil || e.day(*r.LastPublishedAt).Before(today) {
			eligible = append(eligible, r)
		}
	}

	// Store order is newest first; a stable sort keeps it within each state.
	slices.SortStableFunc(eligible, func(a, b domain.Request) int {
		return publicationRank(a.State) - publicationRank(b.State)
	})
	return eligible, nil
}

// MarkPublished stamps the request as published at at, or now when at is
// zero. Marking a request again on the same day succeeds and moves the
// timestamp forward.
func (e *Engine) MarkPublished(ctx context.Context, id int64, at time.Time) (domain.Request, error) {
	return e.apply(ctx, id, ActionMarkPublished, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		if at.IsZero() {
			at = now
		}
		at = at.UTC()
		r.LastPublishedAt = &at
		return e.day(at).Format(time.DateOnly), nil
	})
}

// day truncates t to midnight of its calendar day in the engine's location.
func (e *Engine) day(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.location)
}

func publicationRank(s domain.RequestState) int {
	if s == domain.RequestReplacement {
		return 0
	}
	return 1
}
