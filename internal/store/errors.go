package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/placement/internal/domain"
)

// classify converts a driver error into a domain error. Errors that are
// already domain errors pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return domain.NewConflictError("", "", constraintMessage(se), fmt.Errorf("%s: %w", op, err))
	}

	// Busy, locked, I/O, closed connections and anything the driver reports
	// that is not a business rule are retryable store faults.
	return domain.NewUnavailableError(op, err)
}

func constraintMessage(se sqlite3.Error) string {
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "duplicate key"
	case sqlite3.ErrConstraintForeignKey:
		return "record is referenced by or references another record"
	case sqlite3.ErrConstraintCheck:
		return "check constraint failed"
	case sqlite3.ErrConstraintNotNull:
		return "required column is null"
	default:
		return "constraint violation"
	}
}

// notFound maps sql.ErrNoRows to a not-found error for entity and classifies
// everything else.
func notFound(op, entity string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(entity, idString(id))
	}
	return classify(op, err)
}

// conflict classifies err and, for integrity conflicts, names the entity.
func conflict(op, entity string, id any, err error) error {
	err = classify(op, err)
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindConflict && de.Entity == "" {
		de.Entity = entity
		de.ID = idString(id)
	}
	return err
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// errStale reports an optimistic version mismatch on a request.
func errStale(id int64) error {
	return &domain.Error{
		Kind:    domain.KindInvalidTransition,
		Message: "state changed concurrently",
		Entity:  "request",
		ID:      idString(id),
	}
}
