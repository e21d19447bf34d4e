package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placement/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedClient(t *testing.T, s *Store, code string) domain.Client {
	t.Helper()
	c := domain.Client{Code: code, Name: "Client " + code, Phone: "809-555-0000", RegisteredAt: t0}
	require.NoError(t, s.InTx(context.Background(), "seed client", func(tx *Tx) error {
		return tx.InsertClient(context.Background(), &c)
	}))
	return c
}

func seedCandidate(t *testing.T, s *Store, nationalID string) domain.Candidate {
	t.Helper()
	ctx := context.Background()
	var c domain.Candidate
	require.NoError(t, s.InTx(ctx, "seed candidate", func(tx *Tx) error {
		seq, err := tx.NextCandidateSeq(ctx)
		if err != nil {
			return err
		}
		code, err := domain.CandidateCode(seq)
		if err != nil {
			return err
		}
		c = domain.Candidate{
			Seq:            seq,
			Code:           code,
			NationalID:     nationalID,
			FullName:       "Candidate " + nationalID,
			State:          domain.CandidateInProcess,
			StateChangedAt: t0,
			StateChangedBy: "test",
			CreatedAt:      t0,
		}
		return tx.InsertCandidate(ctx, &c)
	}))
	return c
}

func seedRequest(t *testing.T, s *Store, clientID int64, code string, created time.Time) domain.Request {
	t.Helper()
	r := domain.Request{
		ClientID:       clientID,
		Code:           code,
		Position:       "Nanny",
		State:          domain.RequestInProcess,
		CreatedAt:      created,
		LastModifiedAt: created,
	}
	require.NoError(t, s.InTx(context.Background(), "seed request", func(tx *Tx) error {
		return tx.InsertRequest(context.Background(), &r)
	}))
	return r
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM requests").Scan(&count))
	assert.Zero(t, count)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	s.Close()

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestClientRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	assert.NotZero(t, c.ID)

	err := s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.GetClientByCode(ctx, "C001")
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, "Client C001", got.Name)
		assert.True(t, got.RegisteredAt.Equal(t0))
		assert.Nil(t, got.LastRequestAt)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertClient_DuplicateCodeIsConflict(t *testing.T) {
	s := createTestStore(t)
	seedClient(t, s, "C001")

	err := s.InTx(context.Background(), "insert", func(tx *Tx) error {
		dup := domain.Client{Code: "C001", Name: "Other", RegisteredAt: t0}
		return tx.InsertClient(context.Background(), &dup)
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Contains(t, err.Error(), "duplicate key")
	assert.Contains(t, err.Error(), "client=C001")
}

func TestTouchClientRequest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	at := t0.Add(time.Hour)

	require.NoError(t, s.InTx(ctx, "touch", func(tx *Tx) error {
		return tx.TouchClientRequest(ctx, c.ID, at)
	}))

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.GetClient(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.RequestCount)
		require.NotNil(t, got.LastRequestAt)
		assert.True(t, got.LastRequestAt.Equal(at))
		return nil
	}))
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Read(ctx, "read", func(tx *Tx) error {
		_, err := tx.GetRequest(ctx, 42)
		return err
	})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Contains(t, err.Error(), "request=42")
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := domain.NewValidationError("x", "boom")

	err := s.InTx(ctx, "insert", func(tx *Tx) error {
		c := domain.Client{Code: "C009", Name: "Gone", RegisteredAt: t0}
		require.NoError(t, tx.InsertClient(ctx, &c))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		clients, err := tx.ListClients(ctx)
		require.NoError(t, err)
		assert.Empty(t, clients)
		return nil
	}))
}

func TestUpdateRequest_VersionCheck(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	r := seedRequest(t, s, c.ID, "C001-A", t0)
	assert.Equal(t, int64(1), r.Version)

	stale := r
	r.State = domain.RequestActive
	require.NoError(t, s.InTx(ctx, "activate", func(tx *Tx) error {
		return tx.UpdateRequest(ctx, &r)
	}))
	assert.Equal(t, int64(2), r.Version)

	stale.State = domain.RequestCancelled
	err := s.InTx(ctx, "cancel", func(tx *Tx) error {
		return tx.UpdateRequest(ctx, &stale)
	})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "state changed concurrently")

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestActive, got.State)
		assert.Equal(t, int64(2), got.Version)
		return nil
	}))
}

func TestRequestNullableFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	cand := seedCandidate(t, s, "00112345678")
	r := seedRequest(t, s, c.ID, "C001-A", t0)

	amount := domain.Cents(150050)
	paidAt := t0.Add(2 * time.Hour)
	r.State = domain.RequestPaid
	r.CandidateID = &cand.ID
	r.AmountPaid = &amount
	r.LastActivityAt = &paidAt
	r.Modality = domain.ModalityLiveIn
	require.NoError(t, s.InTx(ctx, "pay", func(tx *Tx) error {
		return tx.UpdateRequest(ctx, &r)
	}))

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.GetRequestByCode(ctx, "C001-A")
		require.NoError(t, err)
		require.NotNil(t, got.CandidateID)
		assert.Equal(t, cand.ID, *got.CandidateID)
		require.NotNil(t, got.AmountPaid)
		assert.Equal(t, amount, *got.AmountPaid)
		require.NotNil(t, got.LastActivityAt)
		assert.True(t, got.LastActivityAt.Equal(paidAt))
		assert.Nil(t, got.CancelledAt)
		assert.Equal(t, domain.ModalityLiveIn, got.Modality)
		return nil
	}))
}

func TestDeleteReferencedCandidateIsConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	cand := seedCandidate(t, s, "00112345678")
	r := seedRequest(t, s, c.ID, "C001-A", t0)
	r.CandidateID = &cand.ID
	require.NoError(t, s.InTx(ctx, "assign", func(tx *Tx) error {
		return tx.UpdateRequest(ctx, &r)
	}))

	err := s.InTx(ctx, "delete", func(tx *Tx) error {
		return tx.DeleteCandidate(ctx, cand.ID)
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestDeleteClientCascadesRequests(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	r := seedRequest(t, s, c.ID, "C001-A", t0)

	require.NoError(t, s.InTx(ctx, "delete", func(tx *Tx) error {
		return tx.DeleteClient(ctx, c.ID)
	}))

	err := s.Read(ctx, "read", func(tx *Tx) error {
		_, err := tx.GetRequest(ctx, r.ID)
		return err
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestListRequestsByState_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	older := seedRequest(t, s, c.ID, "C001-A", t0)
	newer := seedRequest(t, s, c.ID, "C001-B", t0.Add(time.Hour))
	seedRequest(t, s, c.ID, "C001-C", t0.Add(2*time.Hour))

	for _, r := range []*domain.Request{&older, &newer} {
		r.State = domain.RequestActive
		require.NoError(t, s.InTx(ctx, "activate", func(tx *Tx) error {
			return tx.UpdateRequest(ctx, r)
		}))
	}

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.ListRequestsByState(ctx, domain.RequestActive, domain.RequestReplacement)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "C001-B", got[0].Code)
		assert.Equal(t, "C001-A", got[1].Code)

		none, err := tx.ListRequestsByState(ctx)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}

func TestListRequestListings_JoinsClient(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	seedRequest(t, s, c.ID, "C001-A", t0)

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.ListRequestListings(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Client C001", got[0].ClientName)
		assert.Equal(t, "809-555-0000", got[0].ClientPhone)
		assert.Equal(t, "C001-A", got[0].Code)
		assert.Equal(t, "Client C001 Nanny", got[0].SearchName())
		return nil
	}))
}

func TestReplacementResolveOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	oldCand := seedCandidate(t, s, "00112345678")
	newCand := seedCandidate(t, s, "00187654321")
	r := seedRequest(t, s, c.ID, "C001-A", t0)

	rp := domain.Replacement{
		RequestID:      r.ID,
		OldCandidateID: oldCand.ID,
		Reason:         "no show",
		FailedAt:       t0,
		CreatedAt:      t0,
	}
	require.NoError(t, s.InTx(ctx, "record", func(tx *Tx) error {
		return tx.InsertReplacement(ctx, &rp)
	}))

	resolvedAt := t0.Add(24 * time.Hour)
	rp.NewCandidateID = &newCand.ID
	rp.ResolvedAt = &resolvedAt
	require.NoError(t, s.InTx(ctx, "resolve", func(tx *Tx) error {
		return tx.ResolveReplacement(ctx, rp)
	}))

	err := s.InTx(ctx, "resolve", func(tx *Tx) error {
		return tx.ResolveReplacement(ctx, rp)
	})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		list, err := tx.ListReplacements(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Resolved())
		assert.Equal(t, newCand.ID, *list[0].NewCandidateID)
		return nil
	}))
}

func TestReplacementEmptyReasonRejectedBySchema(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	cand := seedCandidate(t, s, "00112345678")
	r := seedRequest(t, s, c.ID, "C001-A", t0)

	err := s.InTx(ctx, "record", func(tx *Tx) error {
		rp := domain.Replacement{RequestID: r.ID, OldCandidateID: cand.ID, Reason: "  ", FailedAt: t0, CreatedAt: t0}
		return tx.InsertReplacement(ctx, &rp)
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Contains(t, err.Error(), "check constraint failed")
}

func TestEventsInWriteOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "C001")
	r := seedRequest(t, s, c.ID, "C001-A", t0)

	events := []domain.RequestEvent{
		{ID: "0190a000-0000-7000-8000-000000000002", RequestID: r.ID, Action: "create", ToState: domain.RequestInProcess, Actor: "system", OccurredAt: t0},
		{ID: "0190a000-0000-7000-8000-000000000001", RequestID: r.ID, Action: "activate", FromState: domain.RequestInProcess, ToState: domain.RequestActive, Actor: "system", OccurredAt: t0},
	}
	require.NoError(t, s.InTx(ctx, "events", func(tx *Tx) error {
		for _, ev := range events {
			if err := tx.InsertEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.ListEvents(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "create", got[0].Action)
		assert.Equal(t, "activate", got[1].Action)
		return nil
	}))
}

func TestCandidateStateLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cand := seedCandidate(t, s, "00112345678")
	assert.Equal(t, "CAN-000001", cand.Code)
	at := t0.Add(time.Hour)

	require.NoError(t, s.InTx(ctx, "state", func(tx *Tx) error {
		if err := tx.SetCandidateState(ctx, cand.ID, domain.CandidateDisqualified, at, "ana", "failed check"); err != nil {
			return err
		}
		return tx.InsertCandidateStateChange(ctx, &domain.CandidateStateChange{
			CandidateID: cand.ID,
			FromState:   domain.CandidateInProcess,
			ToState:     domain.CandidateDisqualified,
			Actor:       "ana",
			Note:        "failed check",
			ChangedAt:   at,
		})
	}))

	require.NoError(t, s.Read(ctx, "read", func(tx *Tx) error {
		got, err := tx.GetCandidate(ctx, cand.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CandidateDisqualified, got.State)
		assert.Equal(t, "failed check", got.DisqualifyNote)
		assert.Equal(t, "ana", got.StateChangedBy)

		log, err := tx.ListCandidateStateLog(ctx, cand.ID)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.Equal(t, domain.CandidateDisqualified, log[0].ToState)

		next, err := tx.NextCandidateSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), next)
		return nil
	}))
}
