package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cluster is a discovered Kubernetes cluster. Rows are upserted by the
// cluster tracker; ignored clusters are not watched.
type Cluster struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	ProviderID           string     `db:"provider_id" json:"provider_id"`
	EnvID                *uuid.UUID `db:"env_id" json:"env_id"`
	Name                 string     `db:"name" json:"name"`
	Region               string     `db:"region" json:"region"`
	LastSeenAt           time.Time  `db:"last_seen_at" json:"last_seen_at"`
	IsOK                 bool       `db:"is_ok" json:"is_ok"`
	NotOKReason          *string    `db:"not_ok_reason" json:"not_ok_reason"`
	Ignore               bool       `db:"ignore" json:"ignore"`
	IngressDomain        *string    `db:"ingress_domain" json:"ingress_domain"`
	IngressClass         *string    `db:"ingress_class" json:"ingress_class"`
	IngressTLSSecretName *string    `db:"ingress_tls_secret_name" json:"ingress_tls_secret_name"`
	GrafanaURL           *string    `db:"grafana_url" json:"grafana_url"`
	GrafanaDatasource    *string    `db:"grafana_datasource_name" json:"grafana_datasource_name"`
}

type Clusters struct {
	s *Store
}

func (c *Clusters) Get(ctx context.Context, id uuid.UUID) (*Cluster, error) {
	return getOne[Cluster](ctx, c.s.pool, "SELECT * FROM k8s_clusters WHERE id = $1", id)
}

func (c *Clusters) List(ctx context.Context, filters Filters, p Pagination) (*Page[Cluster], error) {
	return listPage[Cluster](ctx, c.s.pool, "k8s_clusters", "name", filters, p)
}

func (c *Clusters) All(ctx context.Context) ([]Cluster, error) {
	return listAll[Cluster](ctx, c.s.pool, "k8s_clusters", "name", nil)
}

// Upsert inserts a discovered cluster or, on provider_id conflict, refreshes
// its last_seen_at, name and region.
func (c *Clusters) Upsert(ctx context.Context, providerID, name, region string) (*Cluster, error) {
	return getOne[Cluster](ctx, c.s.pool, `
		INSERT INTO k8s_clusters (provider_id, name, region)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE SET
			last_seen_at = NOW(), name = EXCLUDED.name, region = EXCLUDED.region
		RETURNING *`,
		providerID, name, region)
}

type UpdateCluster struct {
	EnvID                *uuid.UUID
	ClearEnv             bool
	Ignore               *bool
	IngressDomain        *string
	IngressClass         *string
	IngressTLSSecretName *string
}

func (c *Clusters) Update(ctx context.Context, id uuid.UUID, u UpdateCluster) (*Cluster, error) {
	return getOne[Cluster](ctx, c.s.pool, `
		UPDATE k8s_clusters SET
			env_id = CASE WHEN $2 THEN NULL ELSE COALESCE($3, env_id) END,
			ignore = COALESCE($4, ignore),
			ingress_domain = COALESCE($5, ingress_domain),
			ingress_class = COALESCE($6, ingress_class),
			ingress_tls_secret_name = COALESCE($7, ingress_tls_secret_name)
		WHERE id = $1 RETURNING *`,
		id, u.ClearEnv, u.EnvID, u.Ignore, u.IngressDomain, u.IngressClass, u.IngressTLSSecretName)
}

// SetStatus records watcher health for the cluster.
func (c *Clusters) SetStatus(ctx context.Context, id uuid.UUID, ok bool, reason *string) error {
	tag, err := c.s.pool.Exec(ctx,
		"UPDATE k8s_clusters SET is_ok = $2, not_ok_reason = $3 WHERE id = $1",
		id, ok, reason)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
