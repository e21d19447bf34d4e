package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/placement/internal/domain"
)

const requestColumns = `r.id, r.client_id, r.code, r.position, r.modality, r.notes, r.state, r.candidate_id,
	r.plan, r.deposit, r.amount_paid, r.created_at, r.last_modified_at, r.last_activity_at,
	r.last_published_at, r.cancelled_at, r.cancellation_reason, r.version`

// CountClientRequests returns how many requests a client already has.
func (t *Tx) CountClientRequests(ctx context.Context, clientID int64) (int64, error) {
	var n int64
	if err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM requests WHERE client_id = ?`, clientID); err != nil {
		return 0, classify("count client requests", err)
	}
	return n, nil
}

// InsertRequest stores r and sets its ID. New requests start at version 1.
func (t *Tx) InsertRequest(ctx context.Context, r *domain.Request) error {
	if r.Version == 0 {
		r.Version = 1
	}
	res, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO requests (client_id, code, position, modality, notes, state, candidate_id, plan, deposit,
			amount_paid, created_at, last_modified_at, last_activity_at, last_published_at, cancelled_at,
			cancellation_reason, version)
		VALUES (:client_id, :code, :position, :modality, :notes, :state, :candidate_id, :plan, :deposit,
			:amount_paid, :created_at, :last_modified_at, :last_activity_at, :last_published_at, :cancelled_at,
			:cancellation_reason, :version)
	`, r)
	if err != nil {
		return conflict("insert request", "request", r.Code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("insert request", err)
	}
	r.ID = id
	return nil
}

// GetRequest returns the request with the given ID.
func (t *Tx) GetRequest(ctx context.Context, id int64) (domain.Request, error) {
	var r domain.Request
	err := t.tx.GetContext(ctx, &r, `SELECT `+requestColumns+` FROM requests r WHERE r.id = ?`, id)
	if err != nil {
		return domain.Request{}, notFound("get request", "request", id, err)
	}
	return r, nil
}

// GetRequestByCode returns the request with the given business code.
func (t *Tx) GetRequestByCode(ctx context.Context, code string) (domain.Request, error) {
	var r domain.Request
	err := t.tx.GetContext(ctx, &r, `SELECT `+requestColumns+` FROM requests r WHERE r.code = ?`, code)
	if err != nil {
		return domain.Request{}, notFound("get request", "request", code, err)
	}
	return r, nil
}

// UpdateRequest writes every mutable request field, provided the stored
// version still equals r.Version. On success r.Version is advanced.
func (t *Tx) UpdateRequest(ctx context.Context, r *domain.Request) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE requests
		SET position = ?, modality = ?, notes = ?, state = ?, candidate_id = ?, plan = ?, deposit = ?,
			amount_paid = ?, last_modified_at = ?, last_activity_at = ?, last_published_at = ?,
			cancelled_at = ?, cancellation_reason = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		r.Position, r.Modality, r.Notes, r.State, r.CandidateID, r.Plan, r.Deposit,
		r.AmountPaid, r.LastModifiedAt, r.LastActivityAt, r.LastPublishedAt,
		r.CancelledAt, r.CancellationReason,
		r.ID, r.Version,
	)
	if err != nil {
		return conflict("update request", "request", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("update request", err)
	}
	if n == 0 {
		return errStale(r.ID)
	}
	r.Version++
	return nil
}

// ListRequestsByState returns the requests in any of the given states, most
// recently created first.
func (t *Tx) ListRequestsByState(ctx context.Context, states ...domain.RequestState) ([]domain.Request, error) {
	requests := []domain.Request{}
	if len(states) == 0 {
		return requests, nil
	}
	query, args, err := sqlx.In(`
		SELECT `+requestColumns+`
		FROM requests r
		WHERE r.state IN (?)
		ORDER BY r.created_at DESC, r.id DESC
	`, states)
	if err != nil {
		return nil, classify("list requests", err)
	}
	if err := t.tx.SelectContext(ctx, &requests, t.tx.Rebind(query), args...); err != nil {
		return nil, classify("list requests", err)
	}
	return requests, nil
}

// ListRequestListings returns every request joined with its client's name
// and phone.
func (t *Tx) ListRequestListings(ctx context.Context) ([]domain.RequestListing, error) {
	listings := []domain.RequestListing{}
	err := t.tx.SelectContext(ctx, &listings, `
		SELECT `+requestColumns+`, c.name AS client_name, c.phone AS client_phone
		FROM requests r
		JOIN clients c ON c.id = r.client_id
		ORDER BY r.id
	`)
	if err != nil {
		return nil, classify("list request listings", err)
	}
	return listings, nil
}

// ListClientRequests returns a client's requests in creation order.
func (t *Tx) ListClientRequests(ctx context.Context, clientID int64) ([]domain.Request, error) {
	requests := []domain.Request{}
	err := t.tx.SelectContext(ctx, &requests, `
		SELECT `+requestColumns+` FROM requests r WHERE r.client_id = ? ORDER BY r.id
	`, clientID)
	if err != nil {
		return nil, classify("list client requests", err)
	}
	return requests, nil
}

// InsertEvent appends to a request's audit log.
func (t *Tx) InsertEvent(ctx context.Context, ev domain.RequestEvent) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO request_events (id, request_id, action, from_state, to_state, actor, note, occurred_at)
		VALUES (:id, :request_id, :action, :from_state, :to_state, :actor, :note, :occurred_at)
	`, ev)
	if err != nil {
		return conflict("insert event", "request", ev.RequestID, err)
	}
	return nil
}

// ListEvents returns a request's audit log in the order it was written.
func (t *Tx) ListEvents(ctx context.Context, requestID int64) ([]domain.RequestEvent, error) {
	events := []domain.RequestEvent{}
	err := t.tx.SelectContext(ctx, &events, `
		SELECT id, request_id, action, from_state, to_state, actor, note, occurred_at
		FROM request_events
		WHERE request_id = ?
		ORDER BY rowid
	`, requestID)
	if err != nil {
		return nil, classify("list events", err)
	}
	return events, nil
}
