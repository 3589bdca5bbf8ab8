package taskengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/store"
)

func TestEnsureNamespaceCreates(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	e := &Engine{}
	d := &store.Deployment{ID: uuid.New()}

	target := &taskTarget{deployment: d, client: clientset, namespace: "kafka-events"}
	require.NoError(t, e.ensureNamespace(context.Background(), target))

	ns, err := clientset.CoreV1().Namespaces().Get(context.Background(), "kafka-events", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, deployments.NamespaceLabelValue, ns.Labels[deployments.NamespaceLabel])
	assert.Equal(t, d.ID.String(), ns.Annotations[deployments.DeploymentIDAnnotation])
}

func TestEnsureNamespaceKeepsForeignMetadata(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "kafka-events",
			Labels:      map[string]string{"team": "data"},
			Annotations: map[string]string{"config.example.com/checksum": "abc123"},
		},
	})
	e := &Engine{}
	d := &store.Deployment{ID: uuid.New()}

	target := &taskTarget{deployment: d, client: clientset, namespace: "kafka-events"}
	require.NoError(t, e.ensureNamespace(context.Background(), target))

	ns, err := clientset.CoreV1().Namespaces().Get(context.Background(), "kafka-events", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "data", ns.Labels["team"])
	assert.Equal(t, "abc123", ns.Annotations["config.example.com/checksum"])
	assert.Equal(t, deployments.NamespaceLabelValue, ns.Labels[deployments.NamespaceLabel])
	assert.Equal(t, d.ID.String(), ns.Annotations[deployments.DeploymentIDAnnotation])
}
