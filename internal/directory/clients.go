package directory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/store"
)

// ClientDirectory registers and maintains clients.
type ClientDirectory struct {
	store  *store.Store
	clock  Clock
	logger *slog.Logger
}

// NewClientDirectory creates a client directory backed by s.
func NewClientDirectory(s *store.Store, opts ...Option) *ClientDirectory {
	o := buildOptions(opts)
	return &ClientDirectory{store: s, clock: o.clock, logger: o.logger}
}

// Register validates attrs and stores a new client. The code is upper-cased
// and must be unique.
func (d *ClientDirectory) Register(ctx context.Context, attrs domain.ClientAttrs) (domain.Client, error) {
	c, err := clientFromAttrs(attrs)
	if err != nil {
		return domain.Client{}, err
	}
	c.RegisteredAt = d.clock.Now().UTC()

	err = d.store.InTx(ctx, "register client", func(tx *store.Tx) error {
		return tx.InsertClient(ctx, &c)
	})
	if err != nil {
		return domain.Client{}, err
	}

	d.logger.Info("client registered", "client_id", c.ID, "code", c.Code)
	return c, nil
}

// Get returns the client with the given ID.
func (d *ClientDirectory) Get(ctx context.Context, id int64) (domain.Client, error) {
	var c domain.Client
	err := d.store.Read(ctx, "get client", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetClient(ctx, id)
		return err
	})
	return c, err
}

// GetByCode returns the client with the given code, matched case-insensitively.
func (d *ClientDirectory) GetByCode(ctx context.Context, code string) (domain.Client, error) {
	normalized, err := domain.NormalizeClientCode(code)
	if err != nil {
		return domain.Client{}, err
	}
	var c domain.Client
	err = d.store.Read(ctx, "get client", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetClientByCode(ctx, normalized)
		return err
	})
	return c, err
}

// Update replaces a client's code, name and contact details. Counters and
// registration time are preserved.
func (d *ClientDirectory) Update(ctx context.Context, id int64, attrs domain.ClientAttrs) (domain.Client, error) {
	next, err := clientFromAttrs(attrs)
	if err != nil {
		return domain.Client{}, err
	}

	var c domain.Client
	err = d.store.InTx(ctx, "update client", func(tx *store.Tx) error {
		var err error
		c, err = tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		now := d.clock.Now().UTC()
		c.Code, c.Name, c.Phone, c.Email = next.Code, next.Name, next.Phone, next.Email
		c.LastActivityAt = &now
		return tx.UpdateClient(ctx, c)
	})
	if err != nil {
		return domain.Client{}, err
	}

	d.logger.Info("client updated", "client_id", c.ID, "code", c.Code)
	return c, nil
}

// Delete removes a client and every request it owns.
func (d *ClientDirectory) Delete(ctx context.Context, id int64) error {
	err := d.store.InTx(ctx, "delete client", func(tx *store.Tx) error {
		return tx.DeleteClient(ctx, id)
	})
	if err != nil {
		return err
	}
	d.logger.Info("client deleted", "client_id", id)
	return nil
}

// List returns every client ordered by name.
func (d *ClientDirectory) List(ctx context.Context) ([]domain.Client, error) {
	var clients []domain.Client
	err := d.store.Read(ctx, "list clients", func(tx *store.Tx) error {
		var err error
		clients, err = tx.ListClients(ctx)
		return err
	})
	return clients, err
}

func clientFromAttrs(attrs domain.ClientAttrs) (domain.Client, error) {
	attrs.Code = strings.TrimSpace(attrs.Code)
	attrs.Name = strings.TrimSpace(attrs.Name)
	attrs.Phone = strings.TrimSpace(attrs.Phone)
	attrs.Email = strings.TrimSpace(attrs.Email)
	if err := domain.Validate(attrs); err != nil {
		return domain.Client{}, err
	}
	code, err := domain.NormalizeClientCode(attrs.Code)
	if err != nil {
		return domain.Client{}, err
	}
	return domain.Client{
		Code:  code,
		Name:  attrs.Name,
		Phone: attrs.Phone,
		Email: attrs.Email,
	}, nil
}
