// Package resourcesync drives deployment resources through their type's
// lifecycle hooks in response to row-change events.
package resourcesync

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/eventbus"
	"github.com/platzio/platz-engine/internal/metrics"
	"github.com/platzio/platz-engine/internal/store"
)

type Worker struct {
	s    *store.Store
	bus  *eventbus.Bus
	http *retryablehttp.Client
}

func New(s *store.Store, bus *eventbus.Bus) *Worker {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	return &Worker{s: s, bus: bus, http: httpClient}
}

// Run consumes deployment_resources change events. A lagged subscription is
// replaced by a full scan of unsynced rows.
func (w *Worker) Run(ctx context.Context) error {
	events := w.bus.Subscribe(ctx, "deployment_resources")
	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				events = w.bus.Subscribe(ctx, "deployment_resources")
				w.scan(ctx)
				continue
			}
			if event.Operation == eventbus.OpDelete {
				continue
			}
			if err := w.syncOne(ctx, event.Data.ID); err != nil {
				logrus.WithError(err).WithField("resource", event.Data.ID).Error("Failed to sync resource")
			}
		}
	}
}

// scan picks up rows whose events were missed.
func (w *Worker) scan(ctx context.Context) {
	for _, status := range []store.SyncStatus{store.SyncStatusCreating, store.SyncStatusUpdating, store.SyncStatusDeleting} {
		page, err := w.s.Resources().List(ctx, store.Filters{store.Eq("sync_status", string(status))}, store.Pagination{})
		if err != nil {
			logrus.WithError(err).Error("Failed to scan unsynced resources")
			return
		}
		for i := range page.Items {
			if err := w.syncOne(ctx, page.Items[i].ID); err != nil {
				logrus.WithError(err).WithField("resource", page.Items[i].ID).Error("Failed to sync resource")
			}
		}
	}
}

// syncOne runs the lifecycle hook matching the row's sync status. A type
// without the relevant hook is a successful no-op.
func (w *Worker) syncOne(ctx context.Context, id uuid.UUID) error {
	resource, err := w.s.Resources().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	var hookOf func(chartext.Lifecycle) *chartext.LifecycleAction
	switch resource.SyncStatus {
	case store.SyncStatusCreating:
		hookOf = func(l chartext.Lifecycle) *chartext.LifecycleAction { return l.Create }
	case store.SyncStatusUpdating:
		hookOf = func(l chartext.Lifecycle) *chartext.LifecycleAction { return l.Update }
	case store.SyncStatusDeleting:
		hookOf = func(l chartext.Lifecycle) *chartext.LifecycleAction { return l.Delete }
	default:
		return nil
	}

	if err := w.invokeHook(ctx, resource, hookOf); err != nil {
		reason := err.Error()
		metrics.ResourceSyncs.WithLabelValues(string(store.SyncStatusError)).Inc()
		return w.s.Resources().SetSyncStatus(ctx, resource.ID, store.SyncStatusError, &reason)
	}

	if resource.SyncStatus == store.SyncStatusDeleting {
		metrics.ResourceSyncs.WithLabelValues("deleted").Inc()
		err := w.s.Resources().HardDelete(ctx, resource.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	metrics.ResourceSyncs.WithLabelValues(string(store.SyncStatusReady)).Inc()
	return w.s.Resources().SetSyncStatus(ctx, resource.ID, store.SyncStatusReady, nil)
}

func (w *Worker) invokeHook(ctx context.Context, resource *store.Resource, hookOf func(chartext.Lifecycle) *chartext.LifecycleAction) error {
	resourceType, err := w.s.ResourceTypes().Get(ctx, resource.TypeID)
	if err != nil {
		return err
	}
	var spec chartext.ResourceTypeSpec
	if err := json.Unmarshal(resourceType.Spec, &spec); err != nil {
		return errors.Wrap(err, "failed to decode resource type spec")
	}
	hook := hookOf(spec.Lifecycle)
	if hook == nil || hook.Target == nil {
		return nil
	}

	if resource.DeploymentID == nil {
		return errors.New("resource has no owning deployment")
	}
	d, err := w.s.Deployments().Get(ctx, *resource.DeploymentID)
	if err != nil {
		return err
	}
	cluster, err := w.s.Clusters().Get(ctx, d.ClusterID)
	if err != nil {
		return err
	}
	kind, err := w.s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return err
	}

	format := chartext.HostnameFormatName
	chart, err := w.s.Charts().Get(ctx, d.HelmChartID)
	if err == nil {
		if features, ferr := chartext.StoredFeatures(chart.Features); ferr == nil && features != nil {
			format = features.Ingress.EffectiveHostnameFormat()
		}
	}

	url, err := deployments.TargetURL(hook.Target, format, kind.Name, d, cluster)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"id":    resource.ID,
		"name":  resource.Name,
		"props": resource.Props,
	})
	if err != nil {
		return err
	}
	_, err = deployments.InvokeTarget(ctx, w.http, hook.Target, url, body)
	return err
}
