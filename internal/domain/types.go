package domain

import "time"

// Client is a customer that submits service requests.
type Client struct {
	ID             int64      `json:"id" db:"id"`
	Code           string     `json:"code" db:"code"`
	Name           string     `json:"name" db:"name"`
	Phone          string     `json:"phone" db:"phone"`
	Email          string     `json:"email" db:"email"`
	RequestCount   int64      `json:"request_count" db:"request_count"`
	RegisteredAt   time.Time  `json:"registered_at" db:"registered_at"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty" db:"last_activity_at"`
	LastRequestAt  *time.Time `json:"last_request_at,omitempty" db:"last_request_at"`
}

// Candidate is a worker that can be placed on a request.
type Candidate struct {
	ID             int64          `json:"id" db:"id"`
	Seq            int64          `json:"-" db:"seq"`
	Code           string         `json:"code" db:"code"`
	NationalID     string         `json:"national_id" db:"national_id"`
	FullName       string         `json:"full_name" db:"full_name"`
	Phone          string         `json:"phone" db:"phone"`
	Email          string         `json:"email" db:"email"`
	Experience     string         `json:"experience" db:"experience"`
	Availability   string         `json:"availability" db:"availability"`
	Skills         string         `json:"skills" db:"skills"`
	HasReferences  bool           `json:"has_references" db:"has_references"`
	SleepsIn       bool           `json:"sleeps_in" db:"sleeps_in"`
	State          CandidateState `json:"state" db:"state"`
	StateChangedAt time.Time      `json:"state_changed_at" db:"state_changed_at"`
	StateChangedBy string         `json:"state_changed_by" db:"state_changed_by"`
	DisqualifyNote string         `json:"disqualify_note,omitempty" db:"disqualify_note"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// SearchName implements search.Record.
func (c Candidate) SearchName() string { return c.FullName }

// SearchCode implements search.Record.
func (c Candidate) SearchCode() string { return c.Code }

// SearchDigits implements search.Record.
func (c Candidate) SearchDigits() []string { return []string{c.Phone, c.NationalID} }

// CandidateStateChange is one entry of a candidate's state audit trail.
type CandidateStateChange struct {
	ID          int64          `json:"id" db:"id"`
	CandidateID int64          `json:"candidate_id" db:"candidate_id"`
	FromState   CandidateState `json:"from_state" db:"from_state"`
	ToState     CandidateState `json:"to_state" db:"to_state"`
	Actor       string         `json:"actor" db:"actor"`
	Note        string         `json:"note,omitempty" db:"note"`
	ChangedAt   time.Time      `json:"changed_at" db:"changed_at"`
}

// Request is a client's standing ask for a placed worker.
type Request struct {
	ID                 int64        `json:"id" db:"id"`
	ClientID           int64        `json:"client_id" db:"client_id"`
	Code               string       `json:"code" db:"code"`
	Position           string       `json:"position" db:"position"`
	Modality           Modality     `json:"modality,omitempty" db:"modality"`
	Notes              string       `json:"notes,omitempty" db:"notes"`
	State              RequestState `json:"state" db:"state"`
	CandidateID        *int64       `json:"candidate_id,omitempty" db:"candidate_id"`
	Plan               Plan         `json:"plan,omitempty" db:"plan"`
	Deposit            Cents        `json:"deposit" db:"deposit"`
	AmountPaid         *Cents       `json:"amount_paid,omitempty" db:"amount_paid"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	LastModifiedAt     time.Time    `json:"last_modified_at" db:"last_modified_at"`
	LastActivityAt     *time.Time   `json:"last_activity_at,omitempty" db:"last_activity_at"`
	LastPublishedAt    *time.Time   `json:"last_published_at,omitempty" db:"last_published_at"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Version            int64        `json:"version" db:"version"`
}

// RequestListing is a Request joined with the client fields used to search
// and display it.
type RequestListing struct {
	Request
	ClientName  string `json:"client_name" db:"client_name"`
	ClientPhone string `json:"client_phone" db:"client_phone"`
}

// SearchName implements search.Record.
func (r RequestListing) SearchName() string {
	if r.Position == "" {
		return r.ClientName
	}
	return r.ClientName + " " + r.Position
}

// SearchCode implements search.Record.
func (r RequestListing) SearchCode() string { return r.Code }

// SearchDigits implements search.Record.
func (r RequestListing) SearchDigits() []string { return []string{r.ClientPhone} }

// Replacement records an assignment failure on a request and, once
// resolved, the candidate that replaced the failing one.
type Replacement struct {
	ID               int64      `json:"id" db:"id"`
	RequestID        int64      `json:"request_id" db:"request_id"`
	OldCandidateID   int64      `json:"old_candidate_id" db:"old_candidate_id"`
	NewCandidateID   *int64     `json:"new_candidate_id,omitempty" db:"new_candidate_id"`
	Reason           string     `json:"reason" db:"reason"`
	FailedAt         time.Time  `json:"failed_at" db:"failed_at"`
	PlannedStart     *time.Time `json:"planned_start,omitempty" db:"planned_start"`
	ReplacementStart *time.Time `json:"replacement_start,omitempty" db:"replacement_start"`
	IsNewOpportunity bool       `json:"is_new_opportunity" db:"is_new_opportunity"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Resolved reports whether a replacing candidate has been assigned.
func (r Replacement) Resolved() bool {
	return r.NewCandidateID != nil
}

// RequestEvent is one entry of a request's append-only transition log.
type RequestEvent struct {
	ID         string       `json:"id" db:"id"`
	RequestID  int64        `json:"request_id" db:"request_id"`
	Action     string       `json:"action" db:"action"`
	FromState  RequestState `json:"from_state" db:"from_state"`
	ToState    RequestState `json:"to_state" db:"to_state"`
	Actor      string       `json:"actor" db:"actor"`
	Note       string       `json:"note,omitempty" db:"note"`
	OccurredAt time.Time    `json:"occurred_at" db:"occurred_at"`
}

// History entry types.
const (
	HistoryInitial     = "initial"
	HistoryReplacement = "replacement"
)

// HistoryEntry is one row of a request's reconstructed placement timeline.
type HistoryEntry struct {
	Type          string    `json:"type"`
	Label         string    `json:"label"`
	CandidateID   int64     `json:"candidate_id"`
	CandidateName string    `json:"candidate_name"`
	Date          time.Time `json:"date"`
}
