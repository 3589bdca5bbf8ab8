package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SyncStatus string

const (
	SyncStatusCreating SyncStatus = "creating"
	SyncStatusUpdating SyncStatus = "updating"
	SyncStatusDeleting SyncStatus = "deleting"
	SyncStatusReady    SyncStatus = "ready"
	SyncStatusError    SyncStatus = "error"
)

// Resource is a user-declared deployment resource, driven through its
// type's lifecycle hooks by the sync worker. Deletes first flip exists to
// false with sync_status=deleting so the delete hook can run before the row
// is removed.
type Resource struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	TypeID       uuid.UUID       `db:"type_id" json:"type_id"`
	DeploymentID *uuid.UUID      `db:"deployment_id" json:"deployment_id,omitempty"`
	Name         string          `db:"name" json:"name"`
	Exists       bool            `db:"exists" json:"exists"`
	Props        json.RawMessage `db:"props" json:"props"`
	SyncStatus   SyncStatus      `db:"sync_status" json:"sync_status"`
	SyncReason   *string         `db:"sync_reason" json:"sync_reason,omitempty"`
}

type Resources struct {
	s *Store
}

func (r *Resources) Get(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return getOne[Resource](ctx, r.s.pool, "SELECT * FROM deployment_resources WHERE id = $1", id)
}

func (r *Resources) List(ctx context.Context, filters Filters, p Pagination) (*Page[Resource], error) {
	return listPage[Resource](ctx, r.s.pool, "deployment_resources", "name", filters, p)
}

func (r *Resources) Create(ctx context.Context, typeID uuid.UUID, deploymentID *uuid.UUID, name string, props json.RawMessage) (*Resource, error) {
	if props == nil {
		props = json.RawMessage(`{}`)
	}
	return getOne[Resource](ctx, r.s.pool, `
		INSERT INTO deployment_resources (type_id, deployment_id, name, props)
		VALUES ($1, $2, $3, $4) RETURNING *`,
		typeID, deploymentID, name, props)
}

func (r *Resources) Update(ctx context.Context, id uuid.UUID, name *string, props json.RawMessage) (*Resource, error) {
	return getOne[Resource](ctx, r.s.pool, `
		UPDATE deployment_resources SET
			name = COALESCE($2, name),
			props = COALESCE($3, props),
			sync_status = 'updating'
		WHERE id = $1 AND exists RETURNING *`, id, name, props)
}

// MarkDeleting flips the row into the deleting state; the sync worker runs
// the delete hook and hard-deletes it afterwards.
func (r *Resources) MarkDeleting(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return getOne[Resource](ctx, r.s.pool, `
		UPDATE deployment_resources SET exists = FALSE, sync_status = 'deleting'
		WHERE id = $1 RETURNING *`, id)
}

func (r *Resources) SetSyncStatus(ctx context.Context, id uuid.UUID, status SyncStatus, reason *string) error {
	tag, err := r.s.pool.Exec(ctx,
		"UPDATE deployment_resources SET sync_status = $2, sync_reason = $3 WHERE id = $1",
		id, status, reason)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDelete removes the row. Only the sync worker calls this, after the
// delete lifecycle hook succeeded.
func (r *Resources) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM deployment_resources WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
