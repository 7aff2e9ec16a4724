package store

import (
	"context"

	"github.com/assessli/companion/internal/model"
)

// Store exposes persistence operations required by the pipeline.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Profiles() Profiles
	Messages() Messages

	// EnsureSchema idempotently creates both tables. Safe on every
	// process start; never erases existing rows.
	EnsureSchema(ctx context.Context) error
}

type Profiles interface {
	// Put upserts by id: a write with an existing id fully replaces
	// the prior record.
	Put(ctx context.Context, p *model.Profile) (*model.Profile, error)
	// Get returns model.ErrNotFound when no profile has the id.
	Get(ctx context.Context, id string) (*model.Profile, error)
	// List returns profiles ordered by created_at descending.
	List(ctx context.Context) ([]*model.Profile, error)
}

type Messages interface {
	// Create inserts a new message; ids are always freshly minted,
	// so this is never an upsert.
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	// ListRecent returns up to limit messages ordered by ts descending.
	ListRecent(ctx context.Context, limit int) ([]*model.Message, error)
	// ListByProfile returns a profile's messages ordered by ts ascending.
	ListByProfile(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error)
}
