package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registry is a Helm chart repository within a container registry, such as
// an ECR repo. Registries are auto-created on chart ingestion.
type Registry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	DomainName string    `db:"domain_name" json:"domain_name"`
	RepoName   string    `db:"repo_name" json:"repo_name"`
	KindID     uuid.UUID `db:"kind_id" json:"kind_id"`
	Available  bool      `db:"available" json:"available"`
	FaIcon     string    `db:"fa_icon" json:"fa_icon"`
}

type Registries struct {
	s *Store
}

func (r *Registries) Get(ctx context.Context, id uuid.UUID) (*Registry, error) {
	return getOne[Registry](ctx, r.s.pool, "SELECT * FROM helm_registries WHERE id = $1", id)
}

func (r *Registries) List(ctx context.Context, filters Filters, p Pagination) (*Page[Registry], error) {
	return listPage[Registry](ctx, r.s.pool, "helm_registries", "domain_name, repo_name", filters, p)
}

// Ensure returns the registry for (domain, repo), creating it under the
// given kind if missing.
func (r *Registries) Ensure(ctx context.Context, domainName, repoName string, kindID uuid.UUID) (*Registry, error) {
	return getOne[Registry](ctx, r.s.pool, `
		INSERT INTO helm_registries (domain_name, repo_name, kind_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain_name, repo_name) DO UPDATE SET available = TRUE
		RETURNING *`,
		domainName, repoName, kindID)
}

func (r *Registries) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.s.pool.Exec(ctx,
		"UPDATE helm_registries SET available = $2 WHERE id = $1", id, available)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
