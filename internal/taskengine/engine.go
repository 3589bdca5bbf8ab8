// Package taskengine claims pending deployment tasks and executes them,
// driving Helm through single-shot pods on the controlling cluster.
package taskengine

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz-engine/internal/clustertracker"
	"github.com/platzio/platz-engine/internal/eventbus"
	"github.com/platzio/platz-engine/internal/metrics"
	"github.com/platzio/platz-engine/internal/registryauth"
	"github.com/platzio/platz-engine/internal/resolver"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

// Config parameterizes the executor environment.
type Config struct {
	// OwnURL is the engine's public URL, handed to deployments in their
	// credentials secret and as platz.own_url in chart values.
	OwnURL string
	// Namespace on the controlling cluster where Helm pods run.
	Namespace string
	// ServiceAccount the Helm pods run under.
	ServiceAccount string
	// ChartExecutorImage is the single-shot Helm pod image.
	ChartExecutorImage string
	// RegistryRegion is passed to the pod for OCI registry login.
	RegistryRegion string
}

// KubeconfigSource yields a kubeconfig connecting to a target cluster, to be
// mounted into Helm pods.
type KubeconfigSource interface {
	Kubeconfig(ctx context.Context, cluster *store.Cluster) ([]byte, error)
}

type Engine struct {
	s           *store.Store
	bus         *eventbus.Bus
	tracker     *clustertracker.Tracker
	client      kubernetes.Interface
	kubeconfigs KubeconfigSource
	registry    registryauth.Provider
	resolver    *resolver.Resolver
	http        *retryablehttp.Client
	cfg         Config
}

// New builds the engine. registry may be nil when the chart registry needs no
// login.
func New(s *store.Store, bus *eventbus.Bus, tracker *clustertracker.Tracker, client kubernetes.Interface, kubeconfigs KubeconfigSource, registry registryauth.Provider, cfg Config) *Engine {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	return &Engine{
		s:           s,
		bus:         bus,
		tracker:     tracker,
		client:      client,
		kubeconfigs: kubeconfigs,
		registry:    registry,
		resolver:    resolver.New(&resolver.StoreCollections{Store: s}),
		http:        httpClient,
		cfg:         cfg,
	}
}

// Run drains the task queue whenever a task row changes, a tracked cluster
// appears, or the fallback tick fires.
func (e *Engine) Run(ctx context.Context) error {
	events := e.bus.Subscribe(ctx, "deployment_tasks")

	go e.refreshCredsLoop(ctx)
	go e.runStatusProbes(ctx)

	ticker := time.NewTicker(durations.TaskPollInterval)
	defer ticker.Stop()

	for {
		e.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = e.bus.Subscribe(ctx, "deployment_tasks")
			}
		case <-ticker.C:
		case <-e.tracker.Changed():
		}
	}
}

// drain claims and executes pending tasks on owned clusters until the queue
// is empty. Losing a claim race is not an error; the row belongs to another
// worker.
func (e *Engine) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		next, err := e.s.Tasks().NextPending(ctx, e.tracker.IDs())
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logrus.WithError(err).Error("Failed to fetch next pending task")
			}
			return
		}
		task, err := e.s.Tasks().Claim(ctx, next.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			logrus.WithError(err).Error("Failed to claim task")
			return
		}
		e.executeClaimed(ctx, task)
	}
}

// executeClaimed runs a started task to a terminal state.
func (e *Engine) executeClaimed(ctx context.Context, task *store.Task) {
	log := logrus.WithFields(logrus.Fields{
		"task":       task.ID,
		"deployment": task.DeploymentID,
		"operation":  task.Operation.Kind(),
	})
	log.Info("Executing task")
	startedAt := time.Now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(task.Operation.Kind()).Observe(time.Since(startedAt).Seconds())
	}()

	if err := e.execute(ctx, task); err != nil {
		log.WithError(err).Warn("Task failed")
		reason := err.Error()
		if _, ferr := e.s.Tasks().Finish(ctx, task.ID, store.TaskStatusFailed, &reason); ferr != nil {
			log.WithError(ferr).Error("Failed to record task failure")
		}
		metrics.TasksFinished.WithLabelValues(task.Operation.Kind(), string(store.TaskStatusFailed)).Inc()
		if opSetsDeploymentStatus(task.Operation) {
			if serr := e.s.Deployments().SetStatus(ctx, task.DeploymentID, store.DeploymentStatusError, &reason); serr != nil {
				log.WithError(serr).Error("Failed to record deployment error")
			}
		}
		return
	}

	if _, err := e.s.Tasks().Finish(ctx, task.ID, store.TaskStatusDone, nil); err != nil {
		log.WithError(err).Error("Failed to record task completion")
		return
	}
	metrics.TasksFinished.WithLabelValues(task.Operation.Kind(), string(store.TaskStatusDone)).Inc()
	if err := e.afterDone(ctx, task); err != nil {
		log.WithError(err).Error("Failed to finalize task")
		return
	}
	log.Info("Task done")
}

// opSetsDeploymentStatus reports whether a failure of the operation lands on
// the deployment row.
func opSetsDeploymentStatus(op store.TaskOperation) bool {
	switch {
	case op.InvokeAction != nil, op.RestartK8sResource != nil:
		return false
	}
	return true
}

// afterDone applies post-completion effects that depend on the task having
// reached done, like revision promotion.
func (e *Engine) afterDone(ctx context.Context, task *store.Task) error {
	switch {
	case task.Operation.Install != nil, task.Operation.Upgrade != nil:
		if err := e.s.Deployments().SetRevision(ctx, task.DeploymentID, &task.ID); err != nil {
			return err
		}
		return e.s.Deployments().SetStatus(ctx, task.DeploymentID, store.DeploymentStatusRunning, nil)
	case task.Operation.Reinstall != nil:
		// Reinstall re-runs the live revision without advancing it.
		return e.s.Deployments().SetStatus(ctx, task.DeploymentID, store.DeploymentStatusRunning, nil)
	case task.Operation.Uninstall != nil:
		return e.s.Deployments().SetRevision(ctx, task.DeploymentID, nil)
	}
	return nil
}
