package store

import (
	"context"
	"time"

	"github.com/roach88/placement/internal/domain"
)

const candidateColumns = `id, seq, code, national_id, full_name, phone, email, experience, availability, skills,
	has_references, sleeps_in, state, state_changed_at, state_changed_by, disqualify_note, created_at`

// NextCandidateSeq returns the sequence number the next candidate receives.
func (t *Tx) NextCandidateSeq(ctx context.Context) (int64, error) {
	var next int64
	if err := t.tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(seq), 0) + 1 FROM candidates`); err != nil {
		return 0, classify("next candidate seq", err)
	}
	return next, nil
}

// InsertCandidate stores c and sets its ID.
func (t *Tx) InsertCandidate(ctx context.Context, c *domain.Candidate) error {
	res, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO candidates (seq, code, national_id, full_name, phone, email, experience, availability, skills,
			has_references, sleeps_in, state, state_changed_at, state_changed_by, disqualify_note, created_at)
		VALUES (:seq, :code, :national_id, :full_name, :phone, :email, :experience, :availability, :skills,
			:has_references, :sleeps_in, :state, :state_changed_at, :state_changed_by, :disqualify_note, :created_at)
	`, c)
	if err != nil {
		return conflict("insert candidate", "candidate", c.NationalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("insert candidate", err)
	}
	c.ID = id
	return nil
}

// GetCandidate returns the candidate with the given ID.
func (t *Tx) GetCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	var c domain.Candidate
	err := t.tx.GetContext(ctx, &c, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	if err != nil {
		return domain.Candidate{}, notFound("get candidate", "candidate", id, err)
	}
	return c, nil
}

// GetCandidateByCode returns the candidate with the given code.
func (t *Tx) GetCandidateByCode(ctx context.Context, code string) (domain.Candidate, error) {
	var c domain.Candidate
	err := t.tx.GetContext(ctx, &c, `SELECT `+candidateColumns+` FROM candidates WHERE code = ?`, code)
	if err != nil {
		return domain.Candidate{}, notFound("get candidate", "candidate", code, err)
	}
	return c, nil
}

// UpdateCandidate overwrites the profile fields. State is changed only
// through SetCandidateState.
func (t *Tx) UpdateCandidate(ctx context.Context, c domain.Candidate) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE candidates
		SET national_id = :national_id, full_name = :full_name, phone = :phone, email = :email,
			experience = :experience, availability = :availability, skills = :skills,
			has_references = :has_references, sleeps_in = :sleeps_in
		WHERE id = :id
	`, c)
	if err != nil {
		return conflict("update candidate", "candidate", c.NationalID, err)
	}
	return requireRow(res, "update candidate", "candidate", c.ID)
}

// SetCandidateState records a state change on the candidate row. The
// disqualification note is cleared when leaving the disqualified state.
func (t *Tx) SetCandidateState(ctx context.Context, id int64, state domain.CandidateState, at time.Time, actor, note string) error {
	disqualifyNote := ""
	if state == domain.CandidateDisqualified {
		disqualifyNote = note
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE candidates
		SET state = ?, state_changed_at = ?, state_changed_by = ?, disqualify_note = ?
		WHERE id = ?
	`, state, at, actor, disqualifyNote, id)
	if err != nil {
		return classify("set candidate state", err)
	}
	return requireRow(res, "set candidate state", "candidate", id)
}

// DeleteCandidate removes a candidate. Candidates referenced by a request or
// replacement cannot be removed.
func (t *Tx) DeleteCandidate(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return conflict("delete candidate", "candidate", id, err)
	}
	return requireRow(res, "delete candidate", "candidate", id)
}

// ListCandidates returns every candidate in code order.
func (t *Tx) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	candidates := []domain.Candidate{}
	err := t.tx.SelectContext(ctx, &candidates, `SELECT `+candidateColumns+` FROM candidates ORDER BY seq`)
	if err != nil {
		return nil, classify("list candidates", err)
	}
	return candidates, nil
}

// InsertCandidateStateChange appends to the candidate state log.
func (t *Tx) InsertCandidateStateChange(ctx context.Context, ch *domain.CandidateStateChange) error {
	res, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO candidate_state_log (candidate_id, from_state, to_state, actor, note, changed_at)
		VALUES (:candidate_id, :from_state, :to_state, :actor, :note, :changed_at)
	`, ch)
	if err != nil {
		return conflict("insert candidate state change", "candidate", ch.CandidateID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("insert candidate state change", err)
	}
	ch.ID = id
	return nil
}

// ListCandidateStateLog returns a candidate's state changes oldest first.
func (t *Tx) ListCandidateStateLog(ctx context.Context, candidateID int64) ([]domain.CandidateStateChange, error) {
	changes := []domain.CandidateStateChange{}
	err := t.tx.SelectContext(ctx, &changes, `
		SELECT id, candidate_id, from_state, to_state, actor, note, changed_at
		FROM candidate_state_log
		WHERE candidate_id = ?
		ORDER BY id
	`, candidateID)
	if err != nil {
		return nil, classify("list candidate state log", err)
	}
	return changes, nil
}
