// Package engine starts the platz engine: event bus, cluster tracker, task
// engine and resource sync worker.
package engine

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	command "github.com/platzio/platz-engine/internal/cmd"
	"github.com/platzio/platz-engine/internal/clustertracker"
	"github.com/platzio/platz-engine/internal/eventbus"
	"github.com/platzio/platz-engine/internal/registryauth"
	"github.com/platzio/platz-engine/internal/resourcesync"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/internal/taskengine"
	"github.com/platzio/platz-engine/pkg/version"
)

type PlatzEngine struct {
	command.DebugConfig
	DatabaseURL        string `usage:"Postgres connection URL" env:"DATABASE_URL"`
	Kubeconfig         string `usage:"Kubeconfig for the controlling cluster; in-cluster config when empty" env:"KUBECONFIG"`
	KubeconfigsDir     string `usage:"Directory of kubeconfig files for target clusters, one per provider id" name:"kubeconfigs-dir" env:"PLATZ_KUBECONFIGS_DIR"`
	OwnURL             string `usage:"Public URL of this engine, handed to deployments" name:"own-url" env:"PLATZ_OWN_URL"`
	Namespace          string `usage:"Namespace for Helm executor pods" default:"platz" env:"PLATZ_NAMESPACE"`
	ServiceAccount     string `usage:"Service account for Helm executor pods" name:"service-account" default:"platz-helm" env:"PLATZ_SERVICE_ACCOUNT"`
	ChartExecutorImage string `usage:"Image of the single-shot Helm pod" name:"chart-executor-image" env:"PLATZ_CHART_EXECUTOR_IMAGE"`
	RegistryRegion     string `usage:"AWS region of the OCI chart registry" name:"registry-region" env:"PLATZ_REGISTRY_REGION"`
	ClusterRegion      string `usage:"Region recorded for discovered clusters" name:"cluster-region" env:"PLATZ_CLUSTER_REGION"`
	MetricsAddr        string `usage:"Bind address of the metrics endpoint" name:"metrics-addr" default:":8080"`
}

func (p *PlatzEngine) PersistentPre(_ *cobra.Command, _ []string) error {
	p.SetupDebug()
	return nil
}

func (p *PlatzEngine) Run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := store.New(ctx, p.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := p.controllingClusterClient()
	if err != nil {
		return err
	}

	var registry registryauth.Provider
	if p.RegistryRegion != "" {
		ecr, err := registryauth.NewECR(ctx, p.RegistryRegion)
		if err != nil {
			return err
		}
		registry = ecr
	}

	bus := eventbus.New(s.Pool())
	tracker := clustertracker.New(s, bus)
	kubeconfigs := newKubeconfigDir(p.KubeconfigsDir, p.ClusterRegion)
	engine := taskengine.New(s, bus, tracker, client, kubeconfigs, registry, taskengine.Config{
		OwnURL:             p.OwnURL,
		Namespace:          p.Namespace,
		ServiceAccount:     p.ServiceAccount,
		ChartExecutorImage: p.ChartExecutorImage,
		RegistryRegion:     p.RegistryRegion,
	})
	syncer := resourcesync.New(s, bus)

	logrus.WithField("version", version.FriendlyVersion()).Info("Starting platz engine")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bus.Run(ctx) })
	g.Go(func() error { return tracker.Run(ctx) })
	g.Go(func() error { return kubeconfigs.Discover(ctx, tracker.Discoveries()) })
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return syncer.Run(ctx) })
	g.Go(func() error { return serveMetrics(ctx, p.MetricsAddr) })
	return g.Wait()
}

func (p *PlatzEngine) controllingClusterClient() (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if p.Kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", p.Kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(cfg)
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func App() *cobra.Command {
	root := command.Command(&PlatzEngine{}, cobra.Command{
		Use:     "platz-engine",
		Version: version.FriendlyVersion(),
	})
	root.AddCommand(
		migrateCommand(),
		indexChartCommand(),
	)
	return root
}
