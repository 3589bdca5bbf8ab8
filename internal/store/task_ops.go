package store

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TaskOperation is the closed variant persisted on deployment_tasks as
// externally tagged JSON, e.g. {"install":{"helm_chart_id":"..."}}.
// Exactly one variant pointer is set; unknown tags fail unmarshalling
// instead of being dropped.
type TaskOperation struct {
	Install            *InstallOp            `json:"install,omitempty"`
	Upgrade            *UpgradeOp            `json:"upgrade,omitempty"`
	Reinstall          *ReinstallOp          `json:"reinstall,omitempty"`
	Recreate           *RecreateOp           `json:"recreate,omitempty"`
	Uninstall          *UninstallOp          `json:"uninstall,omitempty"`
	InvokeAction       *InvokeActionOp       `json:"invoke_action,omitempty"`
	RestartK8sResource *RestartK8sResourceOp `json:"restart_k8s_resource,omitempty"`
}

type InstallOp struct {
	HelmChartID uuid.UUID `json:"helm_chart_id"`
}

type UpgradeOp struct {
	HelmChartID     uuid.UUID  `json:"helm_chart_id"`
	PrevHelmChartID *uuid.UUID `json:"prev_helm_chart_id,omitempty"`
	// ConfigDelta is an audit diff of the previous and new config, keyed
	// by input id with [old, new] pairs.
	ConfigDelta json.RawMessage `json:"config_delta,omitempty"`
}

type ReinstallOp struct {
	Reason string `json:"reason"`
	// OriginTable and OriginID identify the changed entity that fanned out
	// this reinstall, when there is one.
	OriginTable *string    `json:"origin_table,omitempty"`
	OriginID    *uuid.UUID `json:"origin_id,omitempty"`
}

type RecreateOp struct {
	OldClusterID uuid.UUID `json:"old_cluster_id"`
	OldName      string    `json:"old_name"`
	NewClusterID uuid.UUID `json:"new_cluster_id"`
	NewName      string    `json:"new_name"`
}

type UninstallOp struct{}

type InvokeActionOp struct {
	HelmChartID uuid.UUID       `json:"helm_chart_id"`
	ActionID    string          `json:"action_id"`
	Body        json.RawMessage `json:"body"`
}

type RestartK8sResourceOp struct {
	ResourceID   uuid.UUID `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
}

// Kind returns the operation's tag, or the empty string if no variant is
// set.
func (op TaskOperation) Kind() string {
	switch {
	case op.Install != nil:
		return "install"
	case op.Upgrade != nil:
		return "upgrade"
	case op.Reinstall != nil:
		return "reinstall"
	case op.Recreate != nil:
		return "recreate"
	case op.Uninstall != nil:
		return "uninstall"
	case op.InvokeAction != nil:
		return "invoke_action"
	case op.RestartK8sResource != nil:
		return "restart_k8s_resource"
	}
	return ""
}

// HelmChartID returns the chart the operation installs, when it carries one.
func (op TaskOperation) HelmChartID() *uuid.UUID {
	switch {
	case op.Install != nil:
		return &op.Install.HelmChartID
	case op.Upgrade != nil:
		return &op.Upgrade.HelmChartID
	case op.InvokeAction != nil:
		return &op.InvokeAction.HelmChartID
	}
	return nil
}

func (op *TaskOperation) UnmarshalJSON(data []byte) error {
	var tags map[string]json.RawMessage
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	if len(tags) != 1 {
		return errors.Errorf("task operation must have exactly one tag, got %d", len(tags))
	}
	type alias TaskOperation
	var parsed alias
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*op = TaskOperation(parsed)
	if op.Kind() == "" {
		for tag := range tags {
			return errors.Errorf("unknown task operation %q", tag)
		}
	}
	return nil
}
