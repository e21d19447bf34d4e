package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/placement/internal/domain"
)

// lookupCandidate resolves a numeric ID or candidate code.
func lookupCandidate(ctx context.Context, app *App, ref string) (domain.Candidate, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		return app.Candidates.Get(ctx, id)
	}
	return app.Candidates.GetByCode(ctx, ref)
}

// lookupClient resolves a numeric ID or client code.
func lookupClient(ctx context.Context, app *App, ref string) (domain.Client, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		return app.Clients.Get(ctx, id)
	}
	return app.Clients.GetByCode(ctx, ref)
}

// parseTimeFlag accepts RFC 3339 or a bare date, which is read as midnight
// in loc. Empty input yields nil.
func parseTimeFlag(field, raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return &t, nil
	}
	return nil, domain.NewValidationError(field, fmt.Sprintf("%q is not a date (YYYY-MM-DD) or RFC 3339 time", raw))
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return formatTime(*t, loc)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
