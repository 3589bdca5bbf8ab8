package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type DeploymentStatus string

const (
	DeploymentStatusUnknown      DeploymentStatus = "unknown"
	DeploymentStatusInstalling   DeploymentStatus = "installing"
	DeploymentStatusRenaming     DeploymentStatus = "renaming"
	DeploymentStatusUpgrading    DeploymentStatus = "upgrading"
	DeploymentStatusRunning      DeploymentStatus = "running"
	DeploymentStatusError        DeploymentStatus = "error"
	DeploymentStatusUninstalling DeploymentStatus = "uninstalling"
	DeploymentStatusUninstalled  DeploymentStatus = "uninstalled"
	DeploymentStatusDeleting     DeploymentStatus = "deleting"
)

// Deployment declares that a chart should be installed into a target
// cluster with a given input configuration. The live chart of a deployment
// is the chart of its revision task; helm_chart_id stages the intended chart
// which is only promoted on a successful install or upgrade.
type Deployment struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	Name           string           `db:"name" json:"name"`
	KindID         uuid.UUID        `db:"kind_id" json:"kind_id"`
	ClusterID      uuid.UUID        `db:"cluster_id" json:"cluster_id"`
	Enabled        bool             `db:"enabled" json:"enabled"`
	Status         DeploymentStatus `db:"status" json:"status"`
	Reason         *string          `db:"reason" json:"reason,omitempty"`
	HelmChartID    uuid.UUID        `db:"helm_chart_id" json:"helm_chart_id"`
	Config         json.RawMessage  `db:"config" json:"config"`
	ValuesOverride json.RawMessage  `db:"values_override" json:"values_override,omitempty"`
	RevisionID     *uuid.UUID       `db:"revision_id" json:"revision_id,omitempty"`
	ReportedStatus json.RawMessage  `db:"reported_status" json:"reported_status,omitempty"`
	DescriptionMD  *string          `db:"description_md" json:"description_md,omitempty"`
}

type Deployments struct {
	s *Store
}

func (d *Deployments) Get(ctx context.Context, id uuid.UUID) (*Deployment, error) {
	return getOne[Deployment](ctx, d.s.pool, "SELECT * FROM deployments WHERE id = $1", id)
}

func (d *Deployments) List(ctx context.Context, filters Filters, p Pagination) (*Page[Deployment], error) {
	return listPage[Deployment](ctx, d.s.pool, "deployments", "created_at", filters, p)
}

func (d *Deployments) All(ctx context.Context, filters Filters) ([]Deployment, error) {
	return listAll[Deployment](ctx, d.s.pool, "deployments", "created_at", filters)
}

// AllEnabled returns every enabled deployment, used by the credentials
// refresher.
func (d *Deployments) AllEnabled(ctx context.Context) ([]Deployment, error) {
	return d.All(ctx, Filters{Eq("enabled", true)})
}

type NewDeployment struct {
	Name           string
	KindID         uuid.UUID
	ClusterID      uuid.UUID
	HelmChartID    uuid.UUID
	Config         json.RawMessage
	ValuesOverride json.RawMessage
	DescriptionMD  *string
}

func (d *Deployments) Create(ctx context.Context, n NewDeployment) (*Deployment, error) {
	if n.Config == nil {
		n.Config = json.RawMessage(`{}`)
	}
	return getOne[Deployment](ctx, d.s.pool, `
		INSERT INTO deployments (name, kind_id, cluster_id, helm_chart_id, config, values_override, description_md)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING *`,
		n.Name, n.KindID, n.ClusterID, n.HelmChartID, n.Config, n.ValuesOverride, n.DescriptionMD)
}

type UpdateDeployment struct {
	Name           *string
	ClusterID      *uuid.UUID
	Enabled        *bool
	HelmChartID    *uuid.UUID
	Config         json.RawMessage
	ValuesOverride json.RawMessage
	DescriptionMD  *string
}

func (d *Deployments) Update(ctx context.Context, id uuid.UUID, u UpdateDeployment) (*Deployment, error) {
	return getOne[Deployment](ctx, d.s.pool, `
		UPDATE deployments SET
			name = COALESCE($2, name),
			cluster_id = COALESCE($3, cluster_id),
			enabled = COALESCE($4, enabled),
			helm_chart_id = COALESCE($5, helm_chart_id),
			config = COALESCE($6, config),
			values_override = COALESCE($7, values_override),
			description_md = COALESCE($8, description_md)
		WHERE id = $1 RETURNING *`,
		id, u.Name, u.ClusterID, u.Enabled, u.HelmChartID, u.Config, u.ValuesOverride, u.DescriptionMD)
}

// SetStatus updates the deployment status and reason. The reason is cleared
// when nil.
func (d *Deployments) SetStatus(ctx context.Context, id uuid.UUID, status DeploymentStatus, reason *string) error {
	tag, err := d.s.pool.Exec(ctx,
		"UPDATE deployments SET status = $2, reason = $3 WHERE id = $1",
		id, status, reason)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRevision promotes a task to be the deployment's live revision. The
// referenced task must have reached done status.
func (d *Deployments) SetRevision(ctx context.Context, id uuid.UUID, revisionID *uuid.UUID) error {
	return d.s.withTx(ctx, func(tx pgx.Tx) error {
		if revisionID != nil {
			var status TaskStatus
			if err := tx.QueryRow(ctx,
				"SELECT status FROM deployment_tasks WHERE id = $1", *revisionID,
			).Scan(&status); err != nil {
				return wrapDBError(err)
			}
			if status != TaskStatusDone {
				return errors.Errorf("task %s is not done, refusing to set as revision", *revisionID)
			}
		}
		tag, err := tx.Exec(ctx,
			"UPDATE deployments SET revision_id = $2 WHERE id = $1", id, revisionID)
		if err != nil {
			return wrapDBError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (d *Deployments) SetReportedStatus(ctx context.Context, id uuid.UUID, reported json.RawMessage) error {
	tag, err := d.s.pool.Exec(ctx,
		"UPDATE deployments SET reported_status = $2 WHERE id = $1", id, reported)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the deployment row. Used by the cluster tracker once a
// deleting deployment's namespace is gone.
func (d *Deployments) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := d.s.pool.Exec(ctx, "DELETE FROM deployments WHERE id = $1", id)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
