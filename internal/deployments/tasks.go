package deployments

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/platzio/platz-engine/internal/store"
)

// Actor identifies who requested a deployment mutation, a user or another
// deployment acting through the API.
type Actor struct {
	UserID       *uuid.UUID
	DeploymentID *uuid.UUID
}

// CreateInstallTask queues the initial install of a deployment and moves it
// to installing.
func CreateInstallTask(ctx context.Context, s *store.Store, d *store.Deployment, actor Actor) (*store.Task, error) {
	task, err := s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          d.ClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			Install: &store.InstallOp{HelmChartID: d.HelmChartID},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.Deployments().SetStatus(ctx, d.ID, store.DeploymentStatusInstalling, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateUpgradeTask queues an upgrade carrying the previous chart and an
// audit diff of the config change, then moves the deployment to upgrading.
func CreateUpgradeTask(ctx context.Context, s *store.Store, d *store.Deployment, prevChartID *uuid.UUID, oldConfig json.RawMessage, actor Actor) (*store.Task, error) {
	delta, err := ConfigDelta(oldConfig, d.Config)
	if err != nil {
		return nil, err
	}
	task, err := s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          d.ClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			Upgrade: &store.UpgradeOp{
				HelmChartID:     d.HelmChartID,
				PrevHelmChartID: prevChartID,
				ConfigDelta:     delta,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.Deployments().SetStatus(ctx, d.ID, store.DeploymentStatusUpgrading, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateRecreateTask queues a rename or cluster move. The task runs on the
// old cluster, which uninstalls there and re-queues an install on the new
// one. The deployment moves to renaming.
func CreateRecreateTask(ctx context.Context, s *store.Store, d *store.Deployment, oldClusterID uuid.UUID, oldName string, actor Actor) (*store.Task, error) {
	task, err := s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          oldClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			Recreate: &store.RecreateOp{
				OldClusterID: oldClusterID,
				OldName:      oldName,
				NewClusterID: d.ClusterID,
				NewName:      d.Name,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.Deployments().SetStatus(ctx, d.ID, store.DeploymentStatusRenaming, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateUninstallTask queues an uninstall. The deployment moves to the given
// status, uninstalling for a disable and deleting when the row is going away.
func CreateUninstallTask(ctx context.Context, s *store.Store, d *store.Deployment, status store.DeploymentStatus, actor Actor) (*store.Task, error) {
	task, err := s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          d.ClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			Uninstall: &store.UninstallOp{},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.Deployments().SetStatus(ctx, d.ID, status, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateInvokeActionTask queues a chart action invocation against the
// deployment's live chart.
func CreateInvokeActionTask(ctx context.Context, s *store.Store, d *store.Deployment, chartID uuid.UUID, actionID string, body json.RawMessage, actor Actor) (*store.Task, error) {
	return s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          d.ClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			InvokeAction: &store.InvokeActionOp{
				HelmChartID: chartID,
				ActionID:    actionID,
				Body:        body,
			},
		},
	})
}

// CreateRestartTask queues a rollout restart of one of the deployment's
// workloads.
func CreateRestartTask(ctx context.Context, s *store.Store, d *store.Deployment, resourceID uuid.UUID, resourceName string, actor Actor) (*store.Task, error) {
	return s.Tasks().Create(ctx, store.NewTask{
		DeploymentID:       d.ID,
		ClusterID:          d.ClusterID,
		ActingUserID:       actor.UserID,
		ActingDeploymentID: actor.DeploymentID,
		Operation: store.TaskOperation{
			RestartK8sResource: &store.RestartK8sResourceOp{
				ResourceID:   resourceID,
				ResourceName: resourceName,
			},
		},
	})
}

// ReinstallUsers fans out reinstall tasks to every enabled deployment whose
// live revision references the changed entity. Disabled users are skipped;
// they pick up the change on their next install.
func ReinstallUsers(ctx context.Context, s *store.Store, collection string, id uuid.UUID, originTable, reason string, actor Actor) ([]store.Task, error) {
	users, err := FindUsing(ctx, s, collection, id)
	if err != nil {
		return nil, err
	}
	var tasks []store.Task
	for _, d := range users {
		if !d.Enabled {
			continue
		}
		origin := originTable
		originID := id
		task, err := s.Tasks().Create(ctx, store.NewTask{
			DeploymentID:       d.ID,
			ClusterID:          d.ClusterID,
			ActingUserID:       actor.UserID,
			ActingDeploymentID: actor.DeploymentID,
			Operation: store.TaskOperation{
				Reinstall: &store.ReinstallOp{
					Reason:      reason,
					OriginTable: &origin,
					OriginID:    &originID,
				},
			},
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}
