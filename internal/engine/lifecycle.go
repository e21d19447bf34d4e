package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/placement/internal/directory"
	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/search"
	"github.com/roach88/placement/internal/store"
)

// DirectCancelReason is recorded by the deprecated reason-less cancel.
const DirectCancelReason = "cancelled without reason (direct)"

// Payload carries the arguments of the action passed to Transition. Each
// action reads only the fields it needs.
type Payload struct {
	Plan         domain.Plan
	Deposit      domain.Cents
	CandidateID  int64
	Amount       string
	Reason       string
	PlannedStart *time.Time
	At           time.Time

	// ExpectedVersion, when non-zero, rejects the action if the request was
	// modified since the caller read it at this version.
	ExpectedVersion int64
}

// CreateRequest opens a new in_process request for a client. Its code is the
// client code followed by the base-26 letters of the client's request
// ordinal.
func (e *Engine) CreateRequest(ctx context.Context, clientID int64, attrs domain.RequestAttrs) (domain.Request, error) {
	attrs.Position = strings.TrimSpace(attrs.Position)
	attrs.Notes = strings.TrimSpace(attrs.Notes)
	if err := domain.Validate(attrs); err != nil {
		return domain.Request{}, err
	}
	modality, err := domain.ParseModality(attrs.Modality)
	if err != nil {
		return domain.Request{}, err
	}

	var r domain.Request
	err = e.store.InTx(ctx, "create request", func(tx *store.Tx) error {
		client, err := tx.GetClient(ctx, clientID)
		if err != nil {
			return err
		}
		n, err := tx.CountClientRequests(ctx, clientID)
		if err != nil {
			return err
		}
		code, err := domain.RequestCode(client.Code, n+1)
		if err != nil {
			return domain.NewValidationError("code", err.Error())
		}
		if _, err := tx.GetRequestByCode(ctx, code); err == nil {
			return domain.NewConflictError("request", code, "request code already exists", nil)
		} else if !domain.IsNotFound(err) {
			return err
		}

		now := e.now()
		r = domain.Request{
			ClientID:       clientID,
			Code:           code,
			Position:       attrs.Position,
			Modality:       modality,
			Notes:          attrs.Notes,
			State:          domain.RequestInProcess,
			CreatedAt:      now,
			LastModifiedAt: now,
		}
		if err := tx.InsertRequest(ctx, &r); err != nil {
			return err
		}
		if err := tx.TouchClientRequest(ctx, clientID, now); err != nil {
			return err
		}
		return e.recordEvent(ctx, tx, r, ActionCreate, "", "")
	})
	if err != nil {
		return domain.Request{}, err
	}

	e.logger.Info("request created", "request_id", r.ID, "code", r.Code, "client_id", clientID)
	return r, nil
}

// Activate moves an in_process request to active.
func (e *Engine) Activate(ctx context.Context, id int64) (domain.Request, error) {
	return e.apply(ctx, id, ActionActivate, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		r.LastModifiedAt = now
		return "", nil
	})
}

// ReactivateWithPlan assigns a plan and deposit and forces the request back
// to active from any non-terminal state.
func (e *Engine) ReactivateWithPlan(ctx context.Context, id int64, plan domain.Plan, deposit domain.Cents) (domain.Request, error) {
	if _, err := domain.ParsePlan(string(plan)); err != nil {
		return domain.Request{}, err
	}
	if deposit < 0 {
		return domain.Request{}, domain.NewValidationError("deposit", "deposit must not be negative")
	}
	return e.apply(ctx, id, ActionReactivateWithPlan, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		r.Plan = plan
		r.Deposit = deposit
		r.LastModifiedAt = now
		return fmt.Sprintf("plan=%s deposit=%s", plan, deposit), nil
	})
}

// RegisterPayment records the amount paid and the candidate placed, closing
// the request as paid. The candidate is moved to working.
func (e *Engine) RegisterPayment(ctx context.Context, id, candidateID int64, amount string) (domain.Request, error) {
	paid, err := domain.ParseAmount(amount)
	if err != nil {
		return domain.Request{}, err
	}
	if candidateID <= 0 {
		return domain.Request{}, domain.NewValidationError("candidate_id", "candidate_id is required")
	}
	return e.apply(ctx, id, ActionRegisterPayment, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		c, err := tx.GetCandidate(ctx, candidateID)
		if err != nil {
			return "", err
		}
		if !c.State.Selectable() {
			return "", domain.NewValidationError("candidate_id",
				fmt.Sprintf("candidate %s is %s and cannot be placed", c.Code, c.State))
		}
		if err := directory.ApplyCandidateState(ctx, tx, &c, domain.CandidateWorking, domain.SystemActor,
			"placed on request "+r.Code, now); err != nil {
			return "", err
		}
		r.CandidateID = &c.ID
		r.AmountPaid = &paid
		r.LastActivityAt = &now
		r.LastModifiedAt = now
		return fmt.Sprintf("candidate=%s amount=%s", c.Code, paid), nil
	})
}

// Cancel closes the request with a mandatory reason.
func (e *Engine) Cancel(ctx context.Context, id int64, reason string) (domain.Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Request{}, domain.NewValidationError("reason", "a cancellation reason is required")
	}
	return e.cancel(ctx, id, ActionCancel, reason)
}

// CancelDirect cancels an in_process request without asking for a reason.
//
// Deprecated: use Cancel with a reason.
func (e *Engine) CancelDirect(ctx context.Context, id int64) (domain.Request, error) {
	e.logger.Warn("deprecated reason-less cancel", "request_id", id, "action", ActionCancelDirect)
	return e.cancel(ctx, id, ActionCancelDirect, DirectCancelReason)
}

func (e *Engine) cancel(ctx context.Context, id int64, action Action, reason string) (domain.Request, error) {
	return e.apply(ctx, id, action, func(tx *store.Tx, r *domain.Request, now time.Time) (string, error) {
		r.CancelledAt = &now
		r.CancellationReason = reason
		r.LastModifiedAt = now
		return reason, nil
	})
}

// Transition dispatches a table action by name.
func (e *Engine) Transition(ctx context.Context, id int64, action Action, p Payload) (domain.Request, error) {
	ctx = withExpectedVersion(ctx, p.ExpectedVersion)
	switch action {
	case ActionActivate:
		return e.Activate(ctx, id)
	case ActionReactivateWithPlan:
		return e.ReactivateWithPlan(ctx, id, p.Plan, p.Deposit)
	case ActionRegisterPayment:
		return e.RegisterPayment(ctx, id, p.CandidateID, p.Amount)
	case ActionCancel:
		return e.Cancel(ctx, id, p.Reason)
	case ActionCancelDirect:
		return e.CancelDirect(ctx, id)
	case ActionOpenReplacement:
		if _, err := e.OpenReplacement(ctx, id, p.CandidateID, p.Reason, p.PlannedStart); err != nil {
			return domain.Request{}, err
		}
		return e.Get(ctx, id)
	case ActionMarkPublished:
		return e.MarkPublished(ctx, id, p.At)
	default:
		return domain.Request{}, domain.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
}

// Get returns the request with the given ID.
func (e *Engine) Get(ctx context.Context, id int64) (domain.Request, error) {
	var r domain.Request
	err := e.store.Read(ctx, "get request", func(tx *store.Tx) error {
		var err error
		r, err = tx.GetRequest(ctx, id)
		return err
	})
	return r, err
}

// GetByCode returns the request with the given business code.
func (e *Engine) GetByCode(ctx context.Context, code string) (domain.Request, error) {
	var r domain.Request
	err := e.store.Read(ctx, "get request", func(tx *store.Tx) error {
		var err error
		r, err = tx.GetRequestByCode(ctx, search.StrictCode(code))
		return err
	})
	return r, err
}

// Lookup finds a request by numeric ID or by business code.
func (e *Engine) Lookup(ctx context.Context, ref string) (domain.Request, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		return e.Get(ctx, id)
	}
	return e.GetByCode(ctx, ref)
}

// Events returns a request's audit log in write order.
func (e *Engine) Events(ctx context.Context, id int64) ([]domain.RequestEvent, error) {
	var events []domain.RequestEvent
	err := e.store.Read(ctx, "request events", func(tx *store.Tx) error {
		if _, err := tx.GetRequest(ctx, id); err != nil {
			return err
		}
		var err error
		events, err = tx.ListEvents(ctx, id)
		return err
	})
	return events, err
}

// ListRequests returns every request with its client fields, oldest first.
func (e *Engine) ListRequests(ctx context.Context) ([]domain.RequestListing, error) {
	var all []domain.RequestListing
	err := e.store.Read(ctx, "list requests", func(tx *store.Tx) error {
		var err error
		all, err = tx.ListRequestListings(ctx)
		return err
	})
	return all, err
}

// FindRequest returns the requests matching a free-text query over client
// name, position, request code and client phone.
func (e *Engine) FindRequest(ctx context.Context, query string) ([]domain.RequestListing, error) {
	all, err := e.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	found := search.Match(e.requests, query, all)
	e.logger.Debug("request search", "query", query, "results", len(found))
	return found, nil
}

// FindCandidate returns the candidates matching a free-text query, using
// the candidate directory's search.
func (e *Engine) FindCandidate(ctx context.Context, query string) ([]domain.Candidate, error) {
	return e.directory.Find(ctx, query)
}

// mutation changes r in place and returns the note recorded on the event.
type mutation func(tx *store.Tx, r *domain.Request, now time.Time) (string, error)

// apply runs one table action in a transaction: load, guard, mutate, write,
// record. Nothing is written unless every step succeeds.
func (e *Engine) apply(ctx context.Context, id int64, action Action, mutate mutation) (domain.Request, error) {
	var (
		r    domain.Request
		from domain.RequestState
	)
	err := e.store.InTx(ctx, string(action), func(tx *store.Tx) error {
		var err error
		r, err = tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if v := expectedVersion(ctx); v != 0 && v != r.Version {
			return &domain.Error{
				Kind:    domain.KindInvalidTransition,
				Message: "state changed concurrently",
				Entity:  "request",
				ID:      r.Code,
			}
		}

		from = r.State
		to, err := guard(r, action)
		e.logger.Debug("guard evaluated", "request_id", id, "action", action, "from", from, "allowed", err == nil)
		if err != nil {
			return err
		}

		note, err := mutate(tx, &r, e.now())
		if err != nil {
			return err
		}
		r.State = to
		if err := tx.UpdateRequest(ctx, &r); err != nil {
			return err
		}
		return e.recordEvent(ctx, tx, r, action, from, note)
	})
	if err != nil {
		return domain.Request{}, err
	}

	e.logger.Info("request transitioned",
		"request_id", r.ID, "code", r.Code, "action", action, "from", from, "to", r.State, "actor", ActorFrom(ctx))
	return r, nil
}

func (e *Engine) recordEvent(ctx context.Context, tx *store.Tx, r domain.Request, action Action, from domain.RequestState, note string) error {
	return tx.InsertEvent(ctx, domain.RequestEvent{
		ID:         e.ids.Generate(),
		RequestID:  r.ID,
		Action:     string(action),
		FromState:  from,
		ToState:    r.State,
		Actor:      ActorFrom(ctx),
		Note:       note,
		OccurredAt: e.now(),
	})
}
