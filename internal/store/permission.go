package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EnvRole string

const (
	EnvRoleAdmin EnvRole = "admin"
	EnvRoleUser  EnvRole = "user"
)

type KindRole string

const (
	KindRoleOwner      KindRole = "owner"
	KindRoleMaintainer KindRole = "maintainer"
)

// EnvPermission grants a user a role within an env.
type EnvPermission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	EnvID     uuid.UUID `db:"env_id" json:"env_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Role      EnvRole   `db:"role" json:"role"`
}

type EnvPermissions struct {
	s *Store
}

func (p *EnvPermissions) List(ctx context.Context, filters Filters, pg Pagination) (*Page[EnvPermission], error) {
	return listPage[EnvPermission](ctx, p.s.pool, "env_user_permissions", "created_at", filters, pg)
}

func (p *EnvPermissions) FindRole(ctx context.Context, envID, userID uuid.UUID) (EnvRole, error) {
	var role EnvRole
	err := p.s.pool.QueryRow(ctx,
		"SELECT role FROM env_user_permissions WHERE env_id = $1 AND user_id = $2",
		envID, userID).Scan(&role)
	if err != nil {
		return "", wrapDBError(err)
	}
	return role, nil
}

func (p *EnvPermissions) Grant(ctx context.Context, envID, userID uuid.UUID, role EnvRole) (*EnvPermission, error) {
	return getOne[EnvPermission](ctx, p.s.pool, `
		INSERT INTO env_user_permissions (env_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (env_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING *`, envID, userID, role)
}

// Revoke removes a grant. Revoking the acting user's own grant is refused so
// an admin cannot lock themselves out.
func (p *EnvPermissions) Revoke(ctx context.Context, id, actingUserID uuid.UUID) error {
	perm, err := getOne[EnvPermission](ctx, p.s.pool,
		"SELECT * FROM env_user_permissions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if perm.UserID == actingUserID {
		return errors.Wrap(ErrConflict, "cannot revoke own permission")
	}
	tag, err := p.s.pool.Exec(ctx, "DELETE FROM env_user_permissions WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// KindPermission grants a user a role over a deployment kind within an env.
// Lookups are by kind_id only; there is no legacy kind-name matching.
type KindPermission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	EnvID     uuid.UUID `db:"env_id" json:"env_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	KindID    uuid.UUID `db:"kind_id" json:"kind_id"`
	Role      KindRole  `db:"role" json:"role"`
}

type KindPermissions struct {
	s *Store
}

func (p *KindPermissions) List(ctx context.Context, filters Filters, pg Pagination) (*Page[KindPermission], error) {
	return listPage[KindPermission](ctx, p.s.pool, "deployment_permissions", "created_at", filters, pg)
}

func (p *KindPermissions) FindRole(ctx context.Context, envID, userID, kindID uuid.UUID) (KindRole, error) {
	var role KindRole
	err := p.s.pool.QueryRow(ctx,
		"SELECT role FROM deployment_permissions WHERE env_id = $1 AND user_id = $2 AND kind_id = $3",
		envID, userID, kindID).Scan(&role)
	if err != nil {
		return "", wrapDBError(err)
	}
	return role, nil
}

func (p *KindPermissions) Grant(ctx context.Context, envID, userID, kindID uuid.UUID, role KindRole) (*KindPermission, error) {
	return getOne[KindPermission](ctx, p.s.pool, `
		INSERT INTO deployment_permissions (env_id, user_id, kind_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (env_id, user_id, kind_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING *`, envID, userID, kindID, role)
}

func (p *KindPermissions) Revoke(ctx context.Context, id, actingUserID uuid.UUID) error {
	perm, err := getOne[KindPermission](ctx, p.s.pool,
		"SELECT * FROM deployment_permissions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if perm.UserID == actingUserID {
		return errors.Wrap(ErrConflict, "cannot revoke own permission")
	}
	tag, err := p.s.pool.Exec(ctx, "DELETE FROM deployment_permissions WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
