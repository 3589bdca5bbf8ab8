package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/platzio/platz-engine/internal/clustertracker"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

// kubeconfigDir discovers target clusters from a directory of kubeconfig
// files, one per cluster, named <provider-id>.yaml. It doubles as the
// kubeconfig source for Helm pods.
type kubeconfigDir struct {
	dir    string
	region string
}

func newKubeconfigDir(dir, region string) *kubeconfigDir {
	return &kubeconfigDir{dir: dir, region: region}
}

// Discover announces every cluster in the directory, then keeps refreshing
// so last_seen_at stays current and new files are picked up.
func (k *kubeconfigDir) Discover(ctx context.Context, discoveries chan<- clustertracker.Discovered) error {
	for {
		if err := k.discoverOnce(ctx, discoveries); err != nil {
			logrus.WithError(err).Error("Cluster discovery failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(durations.TaskPollInterval):
		}
	}
}

func (k *kubeconfigDir) discoverOnce(ctx context.Context, discoveries chan<- clustertracker.Discovered) error {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read kubeconfigs dir %s", k.dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		providerID := strings.TrimSuffix(entry.Name(), ".yaml")
		client, err := k.clientFor(providerID)
		if err != nil {
			logrus.WithError(err).WithField("cluster", providerID).Warn("Skipping unreadable kubeconfig")
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case discoveries <- clustertracker.Discovered{
			ProviderID: providerID,
			Name:       providerID,
			Region:     k.region,
			Client:     client,
		}:
		}
	}
	return nil
}

func (k *kubeconfigDir) clientFor(providerID string) (kubernetes.Interface, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", k.path(providerID))
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(cfg)
}

// Kubeconfig returns the raw kubeconfig handed to Helm pods targeting the
// cluster.
func (k *kubeconfigDir) Kubeconfig(_ context.Context, cluster *store.Cluster) ([]byte, error) {
	data, err := os.ReadFile(k.path(cluster.ProviderID))
	return data, errors.Wrapf(err, "no kubeconfig for cluster %s", cluster.ProviderID)
}

func (k *kubeconfigDir) path(providerID string) string {
	return filepath.Join(k.dir, providerID+".yaml")
}
