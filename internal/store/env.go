package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Env is a tenancy boundary for deployments, permissions, secrets and
// resource type scopes.
type Env struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	Name            string          `db:"name" json:"name"`
	NodeSelector    json.RawMessage `db:"node_selector" json:"node_selector"`
	Tolerations     json.RawMessage `db:"tolerations" json:"tolerations"`
	AutoAddNewUsers bool            `db:"auto_add_new_users" json:"auto_add_new_users"`
}

type Envs struct {
	s *Store
}

func (e *Envs) Get(ctx context.Context, id uuid.UUID) (*Env, error) {
	return getOne[Env](ctx, e.s.pool, "SELECT * FROM envs WHERE id = $1", id)
}

func (e *Envs) List(ctx context.Context, filters Filters, p Pagination) (*Page[Env], error) {
	return listPage[Env](ctx, e.s.pool, "envs", "created_at", filters, p)
}

func (e *Envs) All(ctx context.Context) ([]Env, error) {
	return listAll[Env](ctx, e.s.pool, "envs", "created_at", nil)
}

type NewEnv struct {
	Name            string
	NodeSelector    json.RawMessage
	Tolerations     json.RawMessage
	AutoAddNewUsers bool
}

func (e *Envs) Create(ctx context.Context, n NewEnv) (*Env, error) {
	if n.NodeSelector == nil {
		n.NodeSelector = json.RawMessage(`{}`)
	}
	if n.Tolerations == nil {
		n.Tolerations = json.RawMessage(`[]`)
	}
	return getOne[Env](ctx, e.s.pool, `
		INSERT INTO envs (name, node_selector, tolerations, auto_add_new_users)
		VALUES ($1, $2, $3, $4) RETURNING *`,
		n.Name, n.NodeSelector, n.Tolerations, n.AutoAddNewUsers)
}

type UpdateEnv struct {
	Name            *string
	NodeSelector    json.RawMessage
	Tolerations     json.RawMessage
	AutoAddNewUsers *bool
}

func (e *Envs) Update(ctx context.Context, id uuid.UUID, u UpdateEnv) (*Env, error) {
	return getOne[Env](ctx, e.s.pool, `
		UPDATE envs SET
			name = COALESCE($2, name),
			node_selector = COALESCE($3, node_selector),
			tolerations = COALESCE($4, tolerations),
			auto_add_new_users = COALESCE($5, auto_add_new_users)
		WHERE id = $1 RETURNING *`,
		id, u.Name, u.NodeSelector, u.Tolerations, u.AutoAddNewUsers)
}

// Delete refuses to remove an env that still has deployments in any of its
// clusters, and nulls env_id on clusters that pointed at it.
func (e *Envs) Delete(ctx context.Context, id uuid.UUID) error {
	return e.s.withTx(ctx, func(tx pgx.Tx) error {
		var count int64
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM deployments
			WHERE cluster_id IN (SELECT id FROM k8s_clusters WHERE env_id = $1)`,
			id,
		).Scan(&count); err != nil {
			return wrapDBError(err)
		}
		if count > 0 {
			return errors.Wrapf(ErrConflict, "env has %d deployments", count)
		}
		if _, err := tx.Exec(ctx, "UPDATE k8s_clusters SET env_id = NULL WHERE env_id = $1", id); err != nil {
			return wrapDBError(err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM envs WHERE id = $1", id)
		if err != nil {
			return wrapDBError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
