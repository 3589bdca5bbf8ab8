package clustertracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

// watcher mirrors one cluster into the store: namespaces select the owned
// deployments, workload objects feed the k8s_resources status table.
type watcher struct {
	s       *store.Store
	cluster store.Cluster
	client  kubernetes.Interface
	cancel  context.CancelFunc
	log     *logrus.Entry

	mu         sync.RWMutex
	namespaces map[string]uuid.UUID
}

func newWatcher(s *store.Store, cluster store.Cluster, client kubernetes.Interface) *watcher {
	return &watcher{
		s:          s,
		cluster:    cluster,
		client:     client,
		log:        logrus.WithField("cluster", cluster.Name),
		namespaces: map[string]uuid.UUID{},
	}
}

// run crash-loops the watch session, recording cluster health on the row.
func (w *watcher) run(ctx context.Context) {
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.WithError(err).Warn("Cluster watch failed, restarting")
		reason := err.Error()
		if err := w.s.Clusters().SetStatus(context.WithoutCancel(ctx), w.cluster.ID, false, &reason); err != nil {
			w.log.WithError(err).Error("Failed to record cluster status")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(durations.WatcherRestartSleep):
		}
	}
}

// watch runs one session: an initial sync, then concurrent watches on
// namespaces and workloads until one of them fails.
func (w *watcher) watch(ctx context.Context) error {
	startedAt := time.Now()

	if err := w.s.Clusters().SetStatus(ctx, w.cluster.ID, true, nil); err != nil {
		return err
	}

	// Workload watches resolve ownership through the namespace map, so the
	// namespace list must finish before they start. Otherwise a workload
	// seen first is skipped and its mirror row collected as stale.
	nsResourceVersion, err := w.listNamespaces(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.watchNamespaces(ctx, nsResourceVersion) })
	g.Go(func() error { return w.watchDeployments(ctx) })
	g.Go(func() error { return w.watchStatefulSets(ctx) })
	g.Go(func() error { return w.watchJobs(ctx) })
	g.Go(func() error { return w.collectStale(ctx, startedAt) })
	return g.Wait()
}

// collectStale deletes mirror rows not re-observed by the initial sync.
func (w *watcher) collectStale(ctx context.Context, startedAt time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(durations.ResourceStaleAfter):
	}
	deleted, err := w.s.K8sResources().DeleteStale(ctx, w.cluster.ID, startedAt)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.log.WithField("deleted", deleted).Info("Collected stale resources")
	}
	return nil
}

// listNamespaces seeds the namespace map from the cluster and returns the
// resourceVersion the namespace watch resumes from.
func (w *watcher) listNamespaces(ctx context.Context) (string, error) {
	list, err := w.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{
		LabelSelector: deployments.NamespaceSelector,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to list namespaces")
	}
	for i := range list.Items {
		w.trackNamespace(&list.Items[i])
	}
	return list.ResourceVersion, nil
}

func (w *watcher) watchNamespaces(ctx context.Context, resourceVersion string) error {
	for {
		resp, err := w.client.CoreV1().Namespaces().Watch(ctx, metav1.ListOptions{
			LabelSelector:       deployments.NamespaceSelector,
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			return errors.Wrap(err, "failed to watch namespaces")
		}
		for event := range resp.ResultChan() {
			if event.Type == watch.Error {
				resp.Stop()
				return errors.Wrap(k8serrors.FromObject(event.Object), "namespace watch failed")
			}
			ns, ok := event.Object.(*corev1.Namespace)
			if !ok {
				continue
			}
			resourceVersion = ns.ResourceVersion
			switch event.Type {
			case watch.Added, watch.Modified:
				w.trackNamespace(ns)
			case watch.Deleted:
				if err := w.namespaceDeleted(ctx, ns); err != nil {
					resp.Stop()
					return err
				}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *watcher) trackNamespace(ns *corev1.Namespace) {
	id, err := uuid.Parse(ns.Annotations[deployments.DeploymentIDAnnotation])
	if err != nil {
		return
	}
	w.mu.Lock()
	w.namespaces[ns.Name] = id
	w.mu.Unlock()
}

// namespaceDeleted finalizes uninstalls: a deployment waiting in
// uninstalling becomes uninstalled, one in deleting loses its row.
func (w *watcher) namespaceDeleted(ctx context.Context, ns *corev1.Namespace) error {
	w.mu.Lock()
	id, ok := w.namespaces[ns.Name]
	delete(w.namespaces, ns.Name)
	w.mu.Unlock()
	if !ok {
		return nil
	}

	deployment, err := w.s.Deployments().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	switch deployment.Status {
	case store.DeploymentStatusUninstalling:
		return w.s.Deployments().SetStatus(ctx, id, store.DeploymentStatusUninstalled, nil)
	case store.DeploymentStatusDeleting:
		err := w.s.Deployments().Delete(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (w *watcher) deploymentFor(namespace string) (uuid.UUID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.namespaces[namespace]
	return id, ok
}

func (w *watcher) watchDeployments(ctx context.Context) error {
	list, err := w.client.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to list deployments")
	}
	for i := range list.Items {
		if err := w.workloadEvent(ctx, &list.Items[i], watch.Added); err != nil {
			return err
		}
	}

	resourceVersion := list.ResourceVersion
	for {
		resp, err := w.client.AppsV1().Deployments(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			return errors.Wrap(err, "failed to watch deployments")
		}
		for event := range resp.ResultChan() {
			if event.Type == watch.Error {
				resp.Stop()
				return errors.Wrap(k8serrors.FromObject(event.Object), "deployment watch failed")
			}
			obj, ok := event.Object.(*appsv1.Deployment)
			if !ok {
				continue
			}
			resourceVersion = obj.ResourceVersion
			if err := w.workloadEvent(ctx, obj, event.Type); err != nil {
				resp.Stop()
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *watcher) watchStatefulSets(ctx context.Context) error {
	list, err := w.client.AppsV1().StatefulSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to list statefulsets")
	}
	for i := range list.Items {
		if err := w.workloadEvent(ctx, &list.Items[i], watch.Added); err != nil {
			return err
		}
	}

	resourceVersion := list.ResourceVersion
	for {
		resp, err := w.client.AppsV1().StatefulSets(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			return errors.Wrap(err, "failed to watch statefulsets")
		}
		for event := range resp.ResultChan() {
			if event.Type == watch.Error {
				resp.Stop()
				return errors.Wrap(k8serrors.FromObject(event.Object), "statefulset watch failed")
			}
			obj, ok := event.Object.(*appsv1.StatefulSet)
			if !ok {
				continue
			}
			resourceVersion = obj.ResourceVersion
			if err := w.workloadEvent(ctx, obj, event.Type); err != nil {
				resp.Stop()
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *watcher) watchJobs(ctx context.Context) error {
	list, err := w.client.BatchV1().Jobs(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}
	for i := range list.Items {
		if err := w.workloadEvent(ctx, &list.Items[i], watch.Added); err != nil {
			return err
		}
	}

	resourceVersion := list.ResourceVersion
	for {
		resp, err := w.client.BatchV1().Jobs(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
			ResourceVersion:     resourceVersion,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			return errors.Wrap(err, "failed to watch jobs")
		}
		for event := range resp.ResultChan() {
			if event.Type == watch.Error {
				resp.Stop()
				return errors.Wrap(k8serrors.FromObject(event.Object), "job watch failed")
			}
			obj, ok := event.Object.(*batchv1.Job)
			if !ok {
				continue
			}
			resourceVersion = obj.ResourceVersion
			if err := w.workloadEvent(ctx, obj, event.Type); err != nil {
				resp.Stop()
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// workloadEvent mirrors one workload object into k8s_resources when its
// namespace belongs to a deployment.
func (w *watcher) workloadEvent(ctx context.Context, obj metav1.Object, eventType watch.EventType) error {
	deploymentID, ok := w.deploymentFor(obj.GetNamespace())
	if !ok {
		return nil
	}
	id, err := uuid.Parse(string(obj.GetUID()))
	if err != nil {
		return nil
	}

	if eventType == watch.Deleted {
		err := w.s.K8sResources().Delete(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	kind, apiVersion, colors := workloadStatus(obj)
	if kind == "" {
		return nil
	}
	metadata, err := json.Marshal(map[string]string{"namespace": obj.GetNamespace()})
	if err != nil {
		return err
	}
	_, err = w.s.K8sResources().Upsert(ctx, store.UpsertK8sResource{
		ID:           id,
		ClusterID:    w.cluster.ID,
		DeploymentID: deploymentID,
		Kind:         kind,
		APIVersion:   apiVersion,
		Name:         obj.GetName(),
		StatusColor:  colors,
		Metadata:     metadata,
	})
	return err
}

// workloadStatus derives the flat per-replica color sequence shown for a
// workload.
func workloadStatus(obj metav1.Object) (kind, apiVersion string, colors []store.StatusColor) {
	switch o := obj.(type) {
	case *appsv1.Deployment:
		colors = append(colors, repeatColor(store.StatusColorSuccess, o.Status.AvailableReplicas)...)
		colors = append(colors, repeatColor(store.StatusColorDanger, o.Status.Replicas-o.Status.AvailableReplicas)...)
		return "Deployment", "apps/v1", colors
	case *appsv1.StatefulSet:
		colors = append(colors, repeatColor(store.StatusColorSuccess, o.Status.ReadyReplicas)...)
		colors = append(colors, repeatColor(store.StatusColorDanger, o.Status.Replicas-o.Status.ReadyReplicas)...)
		return "StatefulSet", "apps/v1", colors
	case *batchv1.Job:
		colors = append(colors, repeatColor(store.StatusColorPrimary, o.Status.Active)...)
		colors = append(colors, repeatColor(store.StatusColorSuccess, o.Status.Succeeded)...)
		colors = append(colors, repeatColor(store.StatusColorDanger, o.Status.Failed)...)
		return "Job", "batch/v1", colors
	}
	return "", "", nil
}

func repeatColor(color store.StatusColor, n int32) []store.StatusColor {
	if n <= 0 {
		return nil
	}
	colors := make([]store.StatusColor, n)
	for i := range colors {
		colors[i] = color
	}
	return colors
}
