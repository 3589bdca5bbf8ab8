package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResourceType is a user-defined resource collection declared by a chart's
// extension, upserted on first successful install. Unique per
// (env, kind, key); a null env makes the type visible from every env.
type ResourceType struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	EnvID            *uuid.UUID      `db:"env_id" json:"env_id,omitempty"`
	DeploymentKindID uuid.UUID       `db:"deployment_kind_id" json:"deployment_kind_id"`
	Key              string          `db:"key" json:"key"`
	Spec             json.RawMessage `db:"spec" json:"spec"`
}

type ResourceTypes struct {
	s *Store
}

func (t *ResourceTypes) Get(ctx context.Context, id uuid.UUID) (*ResourceType, error) {
	return getOne[ResourceType](ctx, t.s.pool, "SELECT * FROM deployment_resource_types WHERE id = $1", id)
}

func (t *ResourceTypes) List(ctx context.Context, filters Filters, p Pagination) (*Page[ResourceType], error) {
	return listPage[ResourceType](ctx, t.s.pool, "deployment_resource_types", "key", filters, p)
}

// Find resolves a resource type by key within an env scope, falling back to
// global types (null env).
func (t *ResourceTypes) Find(ctx context.Context, envID uuid.UUID, kindID uuid.UUID, key string) (*ResourceType, error) {
	return getOne[ResourceType](ctx, t.s.pool, `
		SELECT * FROM deployment_resource_types
		WHERE deployment_kind_id = $1 AND key = $2 AND (env_id = $3 OR env_id IS NULL)
		ORDER BY env_id NULLS LAST
		LIMIT 1`, kindID, key, envID)
}

// FindByKey resolves a resource type by bare key within an env scope, used
// when a collection name does not match any built-in table.
func (t *ResourceTypes) FindByKey(ctx context.Context, envID uuid.UUID, key string) (*ResourceType, error) {
	return getOne[ResourceType](ctx, t.s.pool, `
		SELECT * FROM deployment_resource_types
		WHERE key = $1 AND (env_id = $2 OR env_id IS NULL)
		ORDER BY env_id NULLS LAST
		LIMIT 1`, key, envID)
}

// Upsert creates or refreshes the spec of a resource type. Idempotent so
// that repeated installs of the same chart succeed.
func (t *ResourceTypes) Upsert(ctx context.Context, envID *uuid.UUID, kindID uuid.UUID, key string, spec json.RawMessage) (*ResourceType, error) {
	return getOne[ResourceType](ctx, t.s.pool, `
		INSERT INTO deployment_resource_types (env_id, deployment_kind_id, key, spec)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (env_id, deployment_kind_id, key) DO UPDATE SET spec = EXCLUDED.spec
		RETURNING *`,
		envID, kindID, key, spec)
}
