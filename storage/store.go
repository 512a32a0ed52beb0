package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"wa_ingest/models"
)

// ErrNotFound is returned by Find* lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Store is the persistence port the ingestion pipeline depends on.
// Every Create* call is insert-or-fetch on the row's natural key: when the
// row already exists the argument is filled from it and created is false.
type Store interface {
	FindUserByPhone(ctx context.Context, mobile string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (created bool, err error)
	FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error)
	CreateAgent(ctx context.Context, a *models.Agent) (created bool, err error)
	CreateProperty(ctx context.Context, p *models.Property) (created bool, err error)

	// CreateOrUpdateMessage upserts by fingerprint. On conflict the stored
	// row keeps its id and links; processed and extracted_data are refreshed.
	CreateOrUpdateMessage(ctx context.Context, m *models.RawMessage) (created bool, err error)
	// LinkMessage sets the non-nil back-references of a message.
	LinkMessage(ctx context.Context, messageID uuid.UUID, propertyID, userID *uuid.UUID) error

	UpsertArea(ctx context.Context, a *models.Area) error
	UpsertFeature(ctx context.Context, f *models.Feature) error

	CreateRun(ctx context.Context, run *models.IngestRun) error
	FinishRun(ctx context.Context, run *models.IngestRun) error

	Close() error
}

// Transactor is implemented by stores that can run one message's writes
// atomically. fn receives a Store bound to the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// RunInTx runs fn inside a transaction when s supports one, directly
// otherwise.
func RunInTx(ctx context.Context, s Store, fn func(Store) error) error {
	if tx, ok := s.(Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(s)
}
