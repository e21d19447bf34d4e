package directory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/search"
	"github.com/roach88/placement/internal/store"
)


// CandidateDirectory registers candidates, tracks their state and finds them
// by name, code, phone or national ID.
type CandidateDirectory struct {
	store   *store.Store
	clock   Clock
	logger  *slog.Logger
	matcher *search.Matcher
}

// NewCandidateDirectory creates a candidate directory backed by s.
func NewCandidateDirectory(s *store.Store, opts ...Option) *CandidateDirectory {
	o := buildOptions(opts)
	return &CandidateDirectory{store: s, clock: o.clock, logger: o.logger, matcher: o.matcher}
}

// Create validates attrs, normalizes the national ID and stores a new
// candidate in state in_process with the next generated code.
func (d *CandidateDirectory) Create(ctx context.Context, attrs domain.CandidateAttrs) (domain.Candidate, error) {
	c, err := candidateFromAttrs(attrs)
	if err != nil {
		return domain.Candidate{}, err
	}
	now := d.clock.Now().UTC()
	c.State = domain.CandidateInProcess
	c.StateChangedAt = now
	c.StateChangedBy = domain.SystemActor
	c.CreatedAt = now

	err = d.store.InTx(ctx, "create candidate", func(tx *store.Tx) error {
		seq, err := tx.NextCandidateSeq(ctx)
		if err != nil {
			return err
		}
		code, err := domain.CandidateCode(seq)
		if err != nil {
			return domain.NewConflictError("candidate", "", "candidate codes exhausted", err)
		}
		c.Seq, c.Code = seq, code
		return tx.InsertCandidate(ctx, &c)
	})
	if err != nil {
		return domain.Candidate{}, err
	}

	d.logger.Info("candidate created", "candidate_id", c.ID, "code", c.Code)
	return c, nil
}

// Get returns the candidate with the given ID.
func (d *CandidateDirectory) Get(ctx context.Context, id int64) (domain.Candidate, error) {
	var c domain.Candidate
	err := d.store.Read(ctx, "get candidate", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetCandidate(ctx, id)
		return err
	})
	return c, err
}

// GetByCode returns the candidate with the given code.
func (d *CandidateDirectory) GetByCode(ctx context.Context, code string) (domain.Candidate, error) {
	var c domain.Candidate
	err := d.store.Read(ctx, "get candidate", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetCandidateByCode(ctx, search.StrictCode(code))
		return err
	})
	return c, err
}

// Update replaces a candidate's profile. Code, state and audit fields are
// preserved.
func (d *CandidateDirectory) Update(ctx context.Context, id int64, attrs domain.CandidateAttrs) (domain.Candidate, error) {
	next, err := candidateFromAttrs(attrs)
	if err != nil {
		return domain.Candidate{}, err
	}

	var c domain.Candidate
	err = d.store.InTx(ctx, "update candidate", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetCandidate(ctx, id)
		if err != nil {
			return err
		}
		c.NationalID, c.FullName, c.Phone, c.Email = next.NationalID, next.FullName, next.Phone, next.Email
		c.Experience, c.Availability, c.Skills = next.Experience, next.Availability, next.Skills
		c.HasReferences, c.SleepsIn = next.HasReferences, next.SleepsIn
		return tx.UpdateCandidate(ctx, c)
	})
	if err != nil {
		return domain.Candidate{}, err
	}

	d.logger.Info("candidate updated", "candidate_id", c.ID, "code", c.Code)
	return c, nil
}

// Delete removes a candidate. It fails with an integrity conflict while any
// request or replacement references the candidate.
func (d *CandidateDirectory) Delete(ctx context.Context, id int64) error {
	err := d.store.InTx(ctx, "delete candidate", func(tx *store.Tx) error {
		return tx.DeleteCandidate(ctx, id)
	})
	if err != nil {
		return err
	}
	d.logger.Info("candidate deleted", "candidate_id", id)
	return nil
}

// ChangeState moves a candidate to state, attributed to actor.
func (d *CandidateDirectory) ChangeState(ctx context.Context, id int64, state domain.CandidateState, actor, note string) (domain.Candidate, error) {
	var c domain.Candidate
	err := d.store.InTx(ctx, "change candidate state", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetCandidate(ctx, id)
		if err != nil {
			return err
		}
		return ApplyCandidateState(ctx, tx, &c, state, actor, note, d.clock.Now().UTC())
	})
	if err != nil {
		return domain.Candidate{}, err
	}

	d.logger.Info("candidate state changed", "candidate_id", c.ID, "state", c.State, "actor", c.StateChangedBy)
	return c, nil
}

// StateLog returns a candidate's state changes oldest first.
func (d *CandidateDirectory) StateLog(ctx context.Context, id int64) ([]domain.CandidateStateChange, error) {
	var changes []domain.CandidateStateChange
	err := d.store.Read(ctx, "candidate state log", func(tx *store.Tx) error {
		if _, err := tx.GetCandidate(ctx, id); err != nil {
			return err
		}
		var err error
		changes, err = tx.ListCandidateStateLog(ctx, id)
		return err
	})
	return changes, err
}

// Find returns the candidates matching a free-text query.
func (d *CandidateDirectory) Find(ctx context.Context, query string) ([]domain.Candidate, error) {
	var all []domain.Candidate
	err := d.store.Read(ctx, "find candidates", func(tx *store.Tx) error {
		var err error
		all, err = tx.ListCandidates(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	found := search.Match(d.matcher, query, all)
	d.logger.Debug("candidate search", "query", query, "results", len(found))
	return found, nil
}

// ApplyCandidateState validates and writes a candidate state change inside
// an open transaction, appending to the state log. Moving a candidate to the
// state it already has writes nothing.
func ApplyCandidateState(ctx context.Context, tx *store.Tx, c *domain.Candidate, to domain.CandidateState, actor, note string, at time.Time) error {
	if !to.Valid() {
		return domain.NewValidationError("state", "unknown candidate state "+string(to))
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return domain.NewValidationError("actor", "actor is required")
	}
	note = strings.TrimSpace(note)
	if to == domain.CandidateDisqualified && note == "" {
		return domain.NewValidationError("note", "a note is required to disqualify a candidate")
	}
	if c.State == to {
		return nil
	}

	if err := tx.SetCandidateState(ctx, c.ID, to, at, actor, note); err != nil {
		return err
	}
	change := domain.CandidateStateChange{
		CandidateID: c.ID,
		FromState:   c.State,
		ToState:     to,
		Actor:       actor,
		Note:        note,
		ChangedAt:   at,
	}
	if err := tx.InsertCandidateStateChange(ctx, &change); err != nil {
		return err
	}

	c.State = to
	c.StateChangedAt = at
	c.StateChangedBy = actor
	c.DisqualifyNote = ""
	if to == domain.CandidateDisqualified {
		c.DisqualifyNote = note
	}
	return nil
}

func candidateFromAttrs(attrs domain.CandidateAttrs) (domain.Candidate, error) {
	attrs.FullName = strings.TrimSpace(attrs.FullName)
	attrs.Phone = strings.TrimSpace(attrs.Phone)
	attrs.Email = strings.TrimSpace(attrs.Email)
	if err := domain.Validate(attrs); err != nil {
		return domain.Candidate{}, err
	}
	nationalID, err := domain.NormalizeNationalID(attrs.NationalID)
	if err != nil {
		return domain.Candidate{}, err
	}
	return domain.Candidate{
		NationalID:    nationalID,
		FullName:      attrs.FullName,
		Phone:         attrs.Phone,
		Email:         attrs.Email,
		Experience:    strings.TrimSpace(attrs.Experience),
		Availability:  strings.TrimSpace(attrs.Availability),
		Skills:        strings.TrimSpace(attrs.Skills),
		HasReferences: attrs.HasReferences,
		SleepsIn:      attrs.SleepsIn,
	}, nil
}
