package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/store"
)

// Labels used in the placement history.
const (
	InitialPlacementLabel = "initial placement"
	replacementLabel      = "replacement #%d"
)

// OpenReplacement records that the candidate working a request failed and
// puts the request in state replacement. The reason is mandatory.
func (e *Engine) OpenReplacement(ctx context.Context, requestID, oldCandidateID int64, reason string, plannedStart *time.Time) (domain.Replacement, error) {
	reason = strings.TrimSpace(reason)
	if err := domain.Validate(domain.ReplacementAttrs{OldCandidateID: oldCandidateID, Reason: reason, PlannedStart: plannedStart}); err != nil {
		return domain.Replacement{}, err
	}
	if reason == "" {
		return domain.Replacement{}, domain.NewValidationError("reason", "a replacement reason is required")
	}

	var rp domain.Replacement
	_, err := e.apply(ctx, requestID, ActionOpenReplacement, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		old, err := tx.GetCandidate(ctx, oldCandidateID)
		if err != nil {
			return "", err
		}
		rp = domain.Replacement{
			RequestID:      r.ID,
			OldCandidateID: old.ID,
			Reason:         reason,
			FailedAt:       now,
			PlannedStart:   utcPtr(plannedStart),
			CreatedAt:      now,
		}
		if err := tx.InsertReplacement(ctx, &rp); err != nil {
			return "", err
		}
		r.LastModifiedAt = now
		return fmt.Sprintf("candidate=%s reason=%s", old.Code, reason), nil
	})
	if err != nil {
		return domain.Replacement{}, err
	}
	return rp, nil
}

// RecordFailure is OpenReplacement under the tracker's name.
func (e *Engine) RecordFailure(ctx context.Context, requestID, oldCandidateID int64, reason string, plannedStart *time.Time) (domain.Replacement, error) {
	return e.OpenReplacement(ctx, requestID, oldCandidateID, reason, plannedStart)
}

// ResolveReplacement assigns the candidate replacing the failed one. A
// replacement resolves once. When it was the request's last open
// replacement and the request is in state replacement, the request returns
// to active. Paid and cancelled requests reject the resolution.
func (e *Engine) ResolveReplacement(ctx context.Context, replacementID, newCandidateID int64, startDate *time.Time, isNewOpportunity bool) (domain.Replacement, error) {
	if newCandidateID <= 0 {
		return domain.Replacement{}, domain.NewValidationError("new_candidate_id", "new_candidate_id is required")
	}

	var (
		rp      domain.Replacement
		r       domain.Request
		from    domain.RequestState
		changed bool
	)
	err := e.store.InTx(ctx, string(ActionResolveReplacement), func(tx *store.Tx) error {
		var err error
		rp, err = tx.GetReplacement(ctx, replacementID)
		if err != nil {
			return err
		}
		if rp.Resolved() {
			return &domain.Error{
				Kind:    domain.KindInvalidTransition,
				Message: "replacement already resolved",
				Entity:  "replacement",
				ID:      fmt.Sprint(rp.ID),
			}
		}
		r, err = tx.GetRequest(ctx, rp.RequestID)
		if err != nil {
			return err
		}
		if r.State.Terminal() {
			return domain.NewTransitionError(r.Code, string(ActionResolveReplacement), r.State)
		}
		c, err := tx.GetCandidate(ctx, newCandidateID)
		if err != nil {
			return err
		}
		if !c.State.Selectable() {
			return domain.NewValidationError("new_candidate_id",
				fmt.Sprintf("candidate %s is %s and cannot be placed", c.Code, c.State))
		}

		now := e.now()
		rp.NewCandidateID = &c.ID
		rp.ReplacementStart = utcPtr(startDate)
		rp.IsNewOpportunity = isNewOpportunity
		rp.ResolvedAt = &now
		if err := tx.ResolveReplacement(ctx, rp); err != nil {
			return err
		}

		from = r.State
		open, err := openReplacements(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if r.State == domain.RequestReplacement && open == 0 {
			r.State = domain.RequestActive
			changed = true
		}
		r.LastModifiedAt = now
		if err := tx.UpdateRequest(ctx, &r); err != nil {
			return err
		}
		return e.recordEvent(ctx, tx, r, ActionResolveReplacement, from,
			fmt.Sprintf("replacement=%d candidate=%s", rp.ID, c.Code))
	})
	if err != nil {
		return domain.Replacement{}, err
	}

	e.logger.Info("replacement resolved",
		"replacement_id", rp.ID, "request_id", r.ID, "code", r.Code, "reactivated", changed, "actor", ActorFrom(ctx))
	return rp, nil
}

// Resolve is ResolveReplacement under the tracker's name.
func (e *Engine) Resolve(ctx context.Context, replacementID, newCandidateID int64, startDate *time.Time, isNewOpportunity bool) (domain.Replacement, error) {
	return e.ResolveReplacement(ctx, replacementID, newCandidateID, startDate, isNewOpportunity)
}

// GetReplacement returns the replacement with the given ID.
func (e *Engine) GetReplacement(ctx context.Context, id int64) (domain.Replacement, error) {
	var rp domain.Replacement
	err := e.store.Read(ctx, "get replacement", func(tx *store.Tx) error {
		var err error
		rp, err = tx.GetReplacement(ctx, id)
		return err
	})
	return rp, err
}

// Replacements returns a request's replacements in creation order.
func (e *Engine) Replacements(ctx context.Context, requestID int64) ([]domain.Replacement, error) {
	var list []domain.Replacement
	err := e.store.Read(ctx, "list replacements", func(tx *store.Tx) error {
		if _, err := tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		var err error
		list, err = tx.ListReplacements(ctx, requestID)
		return err
	})
	return list, err
}

// History reconstructs who worked a request: the initial placement followed
// by every resolved replacement, numbered by position among all of the
// request's replacements. It writes nothing.
func (e *Engine) History(ctx context.Context, requestID int64) ([]domain.HistoryEntry, error) {
	history := []domain.HistoryEntry{}
	err := e.store.Read(ctx, "request history", func(tx *store.Tx) error {
		r, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		replacements, err := tx.ListReplacements(ctx, requestID)
		if err != nil {
			return err
		}

		names := map[int64]string{}
		name := func(id int64) (string, error) {
			if n, ok := names[id]; ok {
				return n, nil
			}
			c, err := tx.GetCandidate(ctx, id)
			if err != nil {
				return "", err
			}
			names[id] = c.FullName
			return c.FullName, nil
		}

		// The first failed candidate was the initial placement; without
		// replacements it is the candidate assigned on payment. The entry is
		// dated at the last activity unless that follows the first failure.
		initial, date := int64(0), r.CreatedAt
		switch {
		case len(replacements) > 0:
			initial = replacements[0].OldCandidateID
		case r.CandidateID != nil:
			initial = *r.CandidateID
		}
		if a := r.LastActivityAt; a != nil && (len(replacements) == 0 || !a.After(replacements[0].FailedAt)) {
			date = *a
		}
		if initial != 0 {
			n, err := name(initial)
			if err != nil {
				return err
			}
			history = append(history, domain.HistoryEntry{
				Type:          domain.HistoryInitial,
				Label:         InitialPlacementLabel,
				CandidateID:   initial,
				CandidateName: n,
				Date:          date,
			})
		}

		for i, rp := range replacements {
			if !rp.Resolved() {
				continue
			}
			n, err := name(*rp.NewCandidateID)
			if err != nil {
				return err
			}
			date := rp.CreatedAt
			if rp.ResolvedAt != nil {
				date = *rp.ResolvedAt
			}
			history = append(history, domain.HistoryEntry{
				Type:          domain.HistoryReplacement,
				Label:         fmt.Sprintf(replacementLabel, i+1),
				CandidateID:   *rp.NewCandidateID,
				CandidateName: n,
				Date:          date,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func openReplacements(ctx context.Context, tx *store.Tx, requestID int64) (int, error) {
	list, err := tx.ListReplacements(ctx, requestID)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, rp := range list {
		if !rp.Resolved() {
			open++
		}
	}
	return open, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
