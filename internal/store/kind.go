package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind is a logical product name attached to a chart family, used for
// permission scoping. Kinds are registered implicitly when charts are
// indexed.
type Kind struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Name      string    `db:"name" json:"name"`
}

type Kinds struct {
	s *Store
}

func (k *Kinds) Get(ctx context.Context, id uuid.UUID) (*Kind, error) {
	return getOne[Kind](ctx, k.s.pool, "SELECT * FROM deployment_kinds WHERE id = $1", id)
}

func (k *Kinds) GetByName(ctx context.Context, name string) (*Kind, error) {
	return getOne[Kind](ctx, k.s.pool, "SELECT * FROM deployment_kinds WHERE name = $1", name)
}

func (k *Kinds) List(ctx context.Context, filters Filters, p Pagination) (*Page[Kind], error) {
	return listPage[Kind](ctx, k.s.pool, "deployment_kinds", "name", filters, p)
}

// Ensure returns the kind with the given name, creating it if missing.
func (k *Kinds) Ensure(ctx context.Context, name string) (*Kind, error) {
	return getOne[Kind](ctx, k.s.pool, `
		INSERT INTO deployment_kinds (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING *`, name)
}
