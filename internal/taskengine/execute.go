package taskengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/resolver"
	"github.com/platzio/platz-engine/internal/store"
)

func (e *Engine) execute(ctx context.Context, task *store.Task) error {
	op := task.Operation
	switch {
	case op.Install != nil:
		return e.runHelmRelease(ctx, task, op.Install.HelmChartID, store.DeploymentStatusInstalling, "install")
	case op.Upgrade != nil:
		return e.runHelmRelease(ctx, task, op.Upgrade.HelmChartID, store.DeploymentStatusUpgrading, "upgrade")
	case op.Reinstall != nil:
		return e.runReinstall(ctx, task)
	case op.Recreate != nil:
		return e.runRecreate(ctx, task, op.Recreate)
	case op.Uninstall != nil:
		return e.runUninstall(ctx, task)
	case op.InvokeAction != nil:
		return e.runInvokeAction(ctx, task, op.InvokeAction)
	case op.RestartK8sResource != nil:
		return e.runRestart(ctx, task, op.RestartK8sResource)
	}
	return errors.Errorf("unknown task operation %q", op.Kind())
}

// taskTarget is everything a Helm-driving operation needs about its
// deployment.
type taskTarget struct {
	deployment *store.Deployment
	cluster    *store.Cluster
	env        *store.Env
	kind       *store.Kind
	client     kubernetes.Interface
	namespace  string
}

func (e *Engine) target(ctx context.Context, deploymentID uuid.UUID) (*taskTarget, error) {
	d, err := e.s.Deployments().Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	cluster, err := e.s.Clusters().Get(ctx, d.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster.EnvID == nil {
		return nil, errors.Errorf("cluster %s is not attached to an env", cluster.Name)
	}
	env, err := e.s.Envs().Get(ctx, *cluster.EnvID)
	if err != nil {
		return nil, err
	}
	kind, err := e.s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return nil, err
	}
	client, err := e.tracker.Client(cluster.ID)
	if err != nil {
		return nil, err
	}
	return &taskTarget{
		deployment: d,
		cluster:    cluster,
		env:        env,
		kind:       kind,
		client:     client,
		namespace:  deployments.Namespace(kind.Name, d.Name),
	}, nil
}

// runHelmRelease is the shared install/upgrade path: ensure the namespace,
// render values and secrets, run the Helm pod, then apply the chart's
// resource types.
func (e *Engine) runHelmRelease(ctx context.Context, task *store.Task, chartID uuid.UUID, status store.DeploymentStatus, helmCommand string) error {
	t, err := e.target(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	if err := e.s.Deployments().SetStatus(ctx, task.DeploymentID, status, nil); err != nil {
		return err
	}

	chart, err := e.s.Charts().Get(ctx, chartID)
	if err != nil {
		return err
	}
	schema, err := chartext.StoredUiSchema(chart.ValuesUI)
	if err != nil {
		return err
	}
	features, err := chartext.StoredFeatures(chart.Features)
	if err != nil {
		return err
	}

	if err := e.ensureNamespace(ctx, t); err != nil {
		return err
	}

	values, err := e.renderValues(ctx, task, t, schema, features)
	if err != nil {
		return err
	}

	if schema != nil {
		inputs, err := resolver.ParseInputs(t.deployment.Config)
		if err != nil {
			return err
		}
		secrets, err := e.resolver.RenderSecrets(ctx, *t.cluster.EnvID, schema, inputs)
		if err != nil {
			return err
		}
		if err := e.applyDerivedSecrets(ctx, t, secrets); err != nil {
			return err
		}
	}
	if err := e.applyCredsSecret(ctx, t); err != nil {
		return err
	}

	if err := e.runHelmPod(ctx, task, t, chart, helmCommand, values); err != nil {
		return err
	}

	return e.applyResourceTypes(ctx, t, chart)
}

// runReinstall re-executes the live revision task unchanged.
func (e *Engine) runReinstall(ctx context.Context, task *store.Task) error {
	d, err := e.s.Deployments().Get(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	if d.RevisionID == nil {
		return errors.New("deployment has no revision to reinstall")
	}
	revision, err := e.s.Tasks().Get(ctx, *d.RevisionID)
	if err != nil {
		return err
	}
	chartID := revision.Operation.HelmChartID()
	if chartID == nil {
		return errors.Errorf("revision task %s carries no chart", revision.ID)
	}
	return e.runHelmRelease(ctx, task, *chartID, store.DeploymentStatusUpgrading, "upgrade")
}

// runRecreate moves a deployment's namespace across clusters or names: the
// old namespace goes away, the new one is created and re-credentialed. The
// following upgrade task performs the actual Helm release.
func (e *Engine) runRecreate(ctx context.Context, task *store.Task, op *store.RecreateOp) error {
	if err := e.s.Deployments().SetStatus(ctx, task.DeploymentID, store.DeploymentStatusRenaming, nil); err != nil {
		return err
	}
	d, err := e.s.Deployments().Get(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	kind, err := e.s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return err
	}

	oldClient, err := e.tracker.Client(op.OldClusterID)
	if err != nil {
		return err
	}
	oldNamespace := deployments.Namespace(kind.Name, op.OldName)
	if err := deleteNamespace(ctx, oldClient, oldNamespace); err != nil {
		return err
	}

	t, err := e.target(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	if err := e.ensureNamespace(ctx, t); err != nil {
		return err
	}
	return e.applyCredsSecret(ctx, t)
}

func (e *Engine) runUninstall(ctx context.Context, task *store.Task) error {
	t, err := e.target(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	// A deployment on its way out keeps deleting so the tracker can drop the
	// row once the namespace is gone.
	if t.deployment.Status != store.DeploymentStatusDeleting {
		if err := e.s.Deployments().SetStatus(ctx, task.DeploymentID, store.DeploymentStatusUninstalling, nil); err != nil {
			return err
		}
	}
	return deleteNamespace(ctx, t.client, t.namespace)
}

func (e *Engine) runInvokeAction(ctx context.Context, task *store.Task, op *store.InvokeActionOp) error {
	t, err := e.target(ctx, task.DeploymentID)
	if err != nil {
		return err
	}
	chart, err := e.s.Charts().Get(ctx, op.HelmChartID)
	if err != nil {
		return err
	}
	actions, err := chartext.StoredActions(chart.ActionsSchema)
	if err != nil {
		return err
	}
	if actions == nil {
		return errors.New("chart has no actions")
	}
	action, err := actions.Find(op.ActionID)
	if err != nil {
		return err
	}
	features, err := chartext.StoredFeatures(chart.Features)
	if err != nil {
		return err
	}

	body, err := e.resolver.GenerateBody(ctx, *t.cluster.EnvID, action, op.Body)
	if err != nil {
		return err
	}
	var ingress chartext.IngressFeature
	if features != nil {
		ingress = features.Ingress
	}
	url, err := deployments.TargetURL(&action.Target, ingress.EffectiveHostnameFormat(), t.kind.Name, t.deployment, t.cluster)
	if err != nil {
		return err
	}
	_, err = deployments.InvokeTarget(ctx, e.http, &action.Target, url, body)
	return err
}

// runRestart triggers a rollout restart by bumping the restartedAt
// annotation on the workload's pod template.
func (e *Engine) runRestart(ctx context.Context, task *store.Task, op *store.RestartK8sResourceOp) error {
	resource, err := e.s.K8sResources().Get(ctx, op.ResourceID)
	if err != nil {
		return err
	}
	client, err := e.tracker.Client(resource.ClusterID)
	if err != nil {
		return err
	}
	namespace, err := resourceNamespace(resource)
	if err != nil {
		return err
	}

	patch := []byte(fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{"kubectl.kubernetes.io/restartedAt":%q}}}}}`,
		time.Now().Format(time.RFC3339)))

	switch resource.Kind {
	case "Deployment":
		_, err = client.AppsV1().Deployments(namespace).Patch(ctx, resource.Name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	case "StatefulSet":
		_, err = client.AppsV1().StatefulSets(namespace).Patch(ctx, resource.Name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	default:
		return errors.Errorf("cannot restart resource of kind %q", resource.Kind)
	}
	return errors.Wrapf(err, "failed to restart %s %s", resource.Kind, resource.Name)
}

// ensureNamespace creates or labels the deployment's namespace so the
// cluster watchers pick it up. An existing namespace is patched rather than
// replaced so metadata set by other controllers survives.
func (e *Engine) ensureNamespace(ctx context.Context, t *taskTarget) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: t.namespace,
			Labels: map[string]string{
				deployments.NamespaceLabel: deployments.NamespaceLabelValue,
			},
			Annotations: map[string]string{
				deployments.DeploymentIDAnnotation: t.deployment.ID.String(),
			},
		},
	}
	_, err := t.client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		patch := []byte(fmt.Sprintf(
			`{"metadata":{"labels":{%q:%q},"annotations":{%q:%q}}}`,
			deployments.NamespaceLabel, deployments.NamespaceLabelValue,
			deployments.DeploymentIDAnnotation, t.deployment.ID.String()))
		_, err = t.client.CoreV1().Namespaces().Patch(ctx, t.namespace, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	}
	return errors.Wrapf(err, "failed to ensure namespace %s", t.namespace)
}

func deleteNamespace(ctx context.Context, client kubernetes.Interface, name string) error {
	err := client.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if k8serrors.IsNotFound(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to delete namespace %s", name)
}

// applyResourceTypes upserts the chart's declared resource types once the
// release succeeded.
func (e *Engine) applyResourceTypes(ctx context.Context, t *taskTarget, chart *store.Chart) error {
	defs, err := chartext.StoredResourceTypes(chart.ResourceTypes)
	if err != nil || defs == nil {
		return err
	}
	for _, def := range defs.ResourceTypes {
		spec, err := json.Marshal(def.Spec)
		if err != nil {
			return errors.Wrapf(err, "failed to encode resource type %q", def.Key)
		}
		envID := t.cluster.EnvID
		if def.Spec.Global {
			envID = nil
		}
		if _, err := e.s.ResourceTypes().Upsert(ctx, envID, t.kind.ID, def.Key, spec); err != nil {
			return errors.Wrapf(err, "failed to upsert resource type %q", def.Key)
		}
	}
	return nil
}

func resourceNamespace(resource *store.K8sResource) (string, error) {
	var metadata struct {
		Namespace string `json:"namespace"`
	}
	if err := json.Unmarshal(resource.Metadata, &metadata); err != nil || metadata.Namespace == "" {
		return "", errors.Errorf("resource %s has no recorded namespace", resource.ID)
	}
	return metadata.Namespace, nil
}
