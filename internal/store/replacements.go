package store

import (
	"context"

	"github.com/roach88/placement/internal/domain"
)

const replacementColumns = `id, request_id, old_candidate_id, new_candidate_id, reason, failed_at, planned_start,
	replacement_start, is_new_opportunity, created_at, resolved_at`

// InsertReplacement stores rp and sets its ID.
func (t *Tx) InsertReplacement(ctx context.Context, rp *domain.Replacement) error {
	res, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO replacements (request_id, old_candidate_id, new_candidate_id, reason, failed_at, planned_start,
			replacement_start, is_new_opportunity, created_at, resolved_at)
		VALUES (:request_id, :old_candidate_id, :new_candidate_id, :reason, :failed_at, :planned_start,
			:replacement_start, :is_new_opportunity, :created_at, :resolved_at)
	`, rp)
	if err != nil {
		return conflict("insert replacement", "request", rp.RequestID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("insert replacement", err)
	}
	rp.ID = id
	return nil
}

// GetReplacement returns the replacement with the given ID.
func (t *Tx) GetReplacement(ctx context.Context, id int64) (domain.Replacement, error) {
	var rp domain.Replacement
	err := t.tx.GetContext(ctx, &rp, `SELECT `+replacementColumns+` FROM replacements WHERE id = ?`, id)
	if err != nil {
		return domain.Replacement{}, notFound("get replacement", "replacement", id, err)
	}
	return rp, nil
}

// ResolveReplacement writes the resolution fields of rp. Only unresolved
// rows are updated.
func (t *Tx) ResolveReplacement(ctx context.Context, rp domain.Replacement) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE replacements
		SET new_candidate_id = :new_candidate_id, replacement_start = :replacement_start,
			is_new_opportunity = :is_new_opportunity, resolved_at = :resolved_at
		WHERE id = :id AND new_candidate_id IS NULL
	`, rp)
	if err != nil {
		return conflict("resolve replacement", "replacement", rp.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("resolve replacement", err)
	}
	if n == 0 {
		return &domain.Error{
			Kind:    domain.KindInvalidTransition,
			Message: "replacement already resolved",
			Entity:  "replacement",
			ID:      idString(rp.ID),
		}
	}
	return nil
}

// ListReplacements returns a request's replacements in creation order.
func (t *Tx) ListReplacements(ctx context.Context, requestID int64) ([]domain.Replacement, error) {
	replacements := []domain.Replacement{}
	err := t.tx.SelectContext(ctx, &replacements, `
		SELECT `+replacementColumns+` FROM replacements WHERE request_id = ? ORDER BY id
	`, requestID)
	if err != nil {
		return nil, classify("list replacements", err)
	}
	return replacements, nil
}
