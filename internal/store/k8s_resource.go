package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StatusColor is a single display color contributed by a workload replica.
type StatusColor string

const (
	StatusColorPrimary StatusColor = "primary"
	StatusColorSuccess StatusColor = "success"
	StatusColorDanger  StatusColor = "danger"
)

// K8sResource mirrors a workload object observed in a tracked cluster, keyed
// by the object UID. Rows not re-observed after a watch restart are garbage
// collected.
type K8sResource struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	LastUpdatedAt time.Time       `db:"last_updated_at" json:"last_updated_at"`
	ClusterID     uuid.UUID       `db:"cluster_id" json:"cluster_id"`
	DeploymentID  uuid.UUID       `db:"deployment_id" json:"deployment_id"`
	Kind          string          `db:"kind" json:"kind"`
	APIVersion    string          `db:"api_version" json:"api_version"`
	Name          string          `db:"name" json:"name"`
	StatusColor   []StatusColor   `db:"status_color" json:"status_color"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata"`
}

type K8sResources struct {
	s *Store
}

func (k *K8sResources) Get(ctx context.Context, id uuid.UUID) (*K8sResource, error) {
	return getOne[K8sResource](ctx, k.s.pool, "SELECT * FROM k8s_resources WHERE id = $1", id)
}

func (k *K8sResources) List(ctx context.Context, filters Filters, p Pagination) (*Page[K8sResource], error) {
	return listPage[K8sResource](ctx, k.s.pool, "k8s_resources", "name", filters, p)
}

type UpsertK8sResource struct {
	ID           uuid.UUID
	ClusterID    uuid.UUID
	DeploymentID uuid.UUID
	Kind         string
	APIVersion   string
	Name         string
	StatusColor  []StatusColor
	Metadata     json.RawMessage
}

func (k *K8sResources) Upsert(ctx context.Context, u UpsertK8sResource) (*K8sResource, error) {
	colors, err := json.Marshal(u.StatusColor)
	if err != nil {
		return nil, err
	}
	if u.Metadata == nil {
		u.Metadata = json.RawMessage(`{}`)
	}
	return getOne[K8sResource](ctx, k.s.pool, `
		INSERT INTO k8s_resources (id, cluster_id, deployment_id, kind, api_version, name, status_color, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			last_updated_at = NOW(),
			deployment_id = EXCLUDED.deployment_id,
			kind = EXCLUDED.kind,
			api_version = EXCLUDED.api_version,
			name = EXCLUDED.name,
			status_color = EXCLUDED.status_color,
			metadata = EXCLUDED.metadata
		RETURNING *`,
		u.ID, u.ClusterID, u.DeploymentID, u.Kind, u.APIVersion, u.Name, colors, u.Metadata)
}

func (k *K8sResources) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := k.s.pool.Exec(ctx, "DELETE FROM k8s_resources WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStale removes rows in a cluster that were not re-observed since the
// given cutoff, typically one minute after a successful watch start.
func (k *K8sResources) DeleteStale(ctx context.Context, clusterID uuid.UUID, cutoff time.Time) (int64, error) {
	tag, err := k.s.pool.Exec(ctx,
		"DELETE FROM k8s_resources WHERE cluster_id = $1 AND last_updated_at < $2",
		clusterID, cutoff)
	if err != nil {
		return 0, wrapDBError(err)
	}
	return tag.RowsAffected(), nil
}
