package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Secret owns sensitive strings referenced by chart inputs. Contents are
// never serialized outward; the JSON shape omits them.
type Secret struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	EnvID      uuid.UUID `db:"env_id" json:"env_id"`
	Collection string    `db:"collection" json:"collection"`
	Name       string    `db:"name" json:"name"`
	Contents   string    `db:"contents" json:"-"`
}

type Secrets struct {
	s *Store
}

func (s *Secrets) Get(ctx context.Context, id uuid.UUID) (*Secret, error) {
	return getOne[Secret](ctx, s.s.pool, "SELECT * FROM secrets WHERE id = $1", id)
}

func (s *Secrets) List(ctx context.Context, filters Filters, p Pagination) (*Page[Secret], error) {
	return listPage[Secret](ctx, s.s.pool, "secrets", "name", filters, p)
}

func (s *Secrets) Create(ctx context.Context, envID uuid.UUID, collection, name, contents string) (*Secret, error) {
	return getOne[Secret](ctx, s.s.pool, `
		INSERT INTO secrets (env_id, collection, name, contents)
		VALUES ($1, $2, $3, $4) RETURNING *`,
		envID, collection, name, contents)
}

func (s *Secrets) Update(ctx context.Context, id uuid.UUID, name, contents *string) (*Secret, error) {
	return getOne[Secret](ctx, s.s.pool, `
		UPDATE secrets SET
			name = COALESCE($2, name),
			contents = COALESCE($3, contents),
			updated_at = NOW()
		WHERE id = $1 RETURNING *`, id, name, contents)
}

func (s *Secrets) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.s.pool.Exec(ctx, "DELETE FROM secrets WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
