package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/placement/internal/domain"
)

// Tx is one open store transaction. It is only valid inside the InTx or Read
// callback that produced it.
type Tx struct {
	tx *sqlx.Tx
}

const clientColumns = `id, code, name, phone, email, request_count, registered_at, last_activity_at, last_request_at`

// InsertClient stores c and sets its ID.
func (t *Tx) InsertClient(ctx context.Context, c *domain.Client) error {
	res, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO clients (code, name, phone, email, request_count, registered_at, last_activity_at, last_request_at)
		VALUES (:code, :name, :phone, :email, :request_count, :registered_at, :last_activity_at, :last_request_at)
	`, c)
	if err != nil {
		return conflict("insert client", "client", c.Code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("insert client", err)
	}
	c.ID = id
	return nil
}

// GetClient returns the client with the given ID.
func (t *Tx) GetClient(ctx context.Context, id int64) (domain.Client, error) {
	var c domain.Client
	err := t.tx.GetContext(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	if err != nil {
		return domain.Client{}, notFound("get client", "client", id, err)
	}
	return c, nil
}

// GetClientByCode returns the client with the given business code.
func (t *Tx) GetClientByCode(ctx context.Context, code string) (domain.Client, error) {
	var c domain.Client
	err := t.tx.GetContext(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE code = ?`, code)
	if err != nil {
		return domain.Client{}, notFound("get client", "client", code, err)
	}
	return c, nil
}

// UpdateClient overwrites the editable client fields.
func (t *Tx) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE clients
		SET code = :code, name = :name, phone = :phone, email = :email, last_activity_at = :last_activity_at
		WHERE id = :id
	`, c)
	if err != nil {
		return conflict("update client", "client", c.Code, err)
	}
	return requireRow(res, "update client", "client", c.ID)
}

// DeleteClient removes a client together with its requests.
func (t *Tx) DeleteClient(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return conflict("delete client", "client", id, err)
	}
	return requireRow(res, "delete client", "client", id)
}

// ListClients returns every client ordered by name then code.
func (t *Tx) ListClients(ctx context.Context) ([]domain.Client, error) {
	clients := []domain.Client{}
	err := t.tx.SelectContext(ctx, &clients, `SELECT `+clientColumns+` FROM clients ORDER BY name COLLATE NOCASE, code`)
	if err != nil {
		return nil, classify("list clients", err)
	}
	return clients, nil
}

// TouchClientRequest records that a request was created for a client.
func (t *Tx) TouchClientRequest(ctx context.Context, id int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE clients
		SET request_count = request_count + 1, last_request_at = ?, last_activity_at = ?
		WHERE id = ?
	`, at, at, id)
	if err != nil {
		return classify("touch client", err)
	}
	return requireRow(res, "touch client", "client", id)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsAffected, op, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return domain.NewNotFoundError(entity, idString(id))
	}
	return nil
}
