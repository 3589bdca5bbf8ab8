// Package clustertracker supervises one watcher per tracked cluster,
// reconciling discovered clusters into the store and mirroring workload
// status.
package clustertracker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz-engine/internal/eventbus"
	"github.com/platzio/platz-engine/internal/metrics"
	"github.com/platzio/platz-engine/internal/store"
)

// Discovered carries a cluster found by a discovery source, together with a
// client connected to it.
type Discovered struct {
	ProviderID string
	Name       string
	Region     string
	Client     kubernetes.Interface
}

type Tracker struct {
	mu sync.RWMutex

	s           *store.Store
	bus         *eventbus.Bus
	watchers    map[uuid.UUID]*watcher
	clients     map[uuid.UUID]kubernetes.Interface
	discoveries chan Discovered
	changed     chan struct{}
}

func New(s *store.Store, bus *eventbus.Bus) *Tracker {
	return &Tracker{
		s:           s,
		bus:         bus,
		watchers:    map[uuid.UUID]*watcher{},
		clients:     map[uuid.UUID]kubernetes.Interface{},
		discoveries: make(chan Discovered),
		changed:     make(chan struct{}, 1),
	}
}

// Discoveries is the inbound channel for discovery sources.
func (t *Tracker) Discoveries() chan<- Discovered {
	return t.discoveries
}

// Changed signals that the tracked cluster set changed. The channel is
// coalescing; a receive means at least one change happened.
func (t *Tracker) Changed() <-chan struct{} {
	return t.changed
}

// IDs returns the ids of all clusters currently watched. Tasks are only
// picked up for these clusters.
func (t *Tracker) IDs() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(t.watchers))
	for id := range t.watchers {
		ids = append(ids, id)
	}
	return ids
}

// Client returns the kube client of a tracked cluster.
func (t *Tracker) Client(id uuid.UUID) (kubernetes.Interface, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	client, ok := t.clients[id]
	if !ok {
		return nil, errors.Errorf("cluster %s is not tracked", id)
	}
	return client, nil
}

// Run consumes discoveries and cluster row changes until the context ends,
// then stops all watchers.
func (t *Tracker) Run(ctx context.Context) error {
	events := t.bus.Subscribe(ctx, "k8s_clusters")
	for {
		select {
		case <-ctx.Done():
			t.stopAll()
			return ctx.Err()
		case d := <-t.discoveries:
			if err := t.reconcileDiscovered(ctx, d); err != nil {
				logrus.WithError(err).WithField("cluster", d.Name).Error("Failed to reconcile discovered cluster")
			}
		case event, ok := <-events:
			if !ok {
				// Subscription lagged; resubscribe and rescan known rows.
				events = t.bus.Subscribe(ctx, "k8s_clusters")
				t.rescan(ctx)
				continue
			}
			if event.Operation == eventbus.OpDelete {
				t.stop(event.Data.ID)
				continue
			}
			if err := t.reconcileRow(ctx, event.Data.ID); err != nil {
				logrus.WithError(err).WithField("cluster_id", event.Data.ID).Error("Failed to reconcile cluster row")
			}
		}
	}
}

func (t *Tracker) reconcileDiscovered(ctx context.Context, d Discovered) error {
	cluster, err := t.s.Clusters().Upsert(ctx, d.ProviderID, d.Name, d.Region)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.clients[cluster.ID] = d.Client
	t.mu.Unlock()
	return t.reconcile(ctx, cluster, d.Client)
}

// reconcileRow handles cluster row updates, mainly the ignore flag flipping.
func (t *Tracker) reconcileRow(ctx context.Context, id uuid.UUID) error {
	cluster, err := t.s.Clusters().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.stop(id)
			return nil
		}
		return err
	}
	t.mu.RLock()
	client, ok := t.clients[id]
	t.mu.RUnlock()
	if !ok {
		// Not discovered in this process yet; nothing to watch with.
		return nil
	}
	return t.reconcile(ctx, cluster, client)
}

func (t *Tracker) reconcile(ctx context.Context, cluster *store.Cluster, client kubernetes.Interface) error {
	if cluster.Ignore {
		t.stop(cluster.ID)
		return nil
	}

	t.mu.Lock()
	if _, running := t.watchers[cluster.ID]; running {
		t.mu.Unlock()
		return nil
	}
	w := newWatcher(t.s, *cluster, client)
	t.watchers[cluster.ID] = w
	t.mu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(wctx)

	logrus.WithField("cluster", cluster.Name).Info("Started cluster watcher")
	t.notifyChanged()
	return nil
}

func (t *Tracker) rescan(ctx context.Context) {
	clusters, err := t.s.Clusters().All(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to rescan clusters")
		return
	}
	for _, cluster := range clusters {
		t.mu.RLock()
		client, ok := t.clients[cluster.ID]
		t.mu.RUnlock()
		if !ok {
			continue
		}
		if err := t.reconcile(ctx, &cluster, client); err != nil {
			logrus.WithError(err).WithField("cluster", cluster.Name).Error("Failed to reconcile cluster")
		}
	}
}

func (t *Tracker) stop(id uuid.UUID) {
	t.mu.Lock()
	w, ok := t.watchers[id]
	if ok {
		delete(t.watchers, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	w.cancel()
	logrus.WithField("cluster", w.cluster.Name).Info("Stopped cluster watcher")
	t.notifyChanged()
}

func (t *Tracker) stopAll() {
	t.mu.Lock()
	watchers := t.watchers
	t.watchers = map[uuid.UUID]*watcher{}
	t.mu.Unlock()
	for _, w := range watchers {
		w.cancel()
	}
}

func (t *Tracker) notifyChanged() {
	t.mu.RLock()
	metrics.TrackedClusters.Set(float64(len(t.watchers)))
	t.mu.RUnlock()
	select {
	case t.changed <- struct{}{}:
	default:
	}
}
