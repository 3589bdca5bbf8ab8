package clustertracker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/store"
)

func TestWorkloadStatusDeployment(t *testing.T) {
	obj := &appsv1.Deployment{
		Status: appsv1.DeploymentStatus{
			Replicas:          3,
			AvailableReplicas: 2,
		},
	}
	kind, apiVersion, colors := workloadStatus(obj)
	assert.Equal(t, "Deployment", kind)
	assert.Equal(t, "apps/v1", apiVersion)
	assert.Equal(t, []store.StatusColor{
		store.StatusColorSuccess,
		store.StatusColorSuccess,
		store.StatusColorDanger,
	}, colors)
}

func TestWorkloadStatusStatefulSet(t *testing.T) {
	obj := &appsv1.StatefulSet{
		Status: appsv1.StatefulSetStatus{
			Replicas:      2,
			ReadyReplicas: 2,
		},
	}
	kind, apiVersion, colors := workloadStatus(obj)
	assert.Equal(t, "StatefulSet", kind)
	assert.Equal(t, "apps/v1", apiVersion)
	assert.Equal(t, []store.StatusColor{
		store.StatusColorSuccess,
		store.StatusColorSuccess,
	}, colors)
}

func TestWorkloadStatusJob(t *testing.T) {
	obj := &batchv1.Job{
		Status: batchv1.JobStatus{
			Active:    1,
			Succeeded: 2,
			Failed:    1,
		},
	}
	kind, apiVersion, colors := workloadStatus(obj)
	assert.Equal(t, "Job", kind)
	assert.Equal(t, "batch/v1", apiVersion)
	assert.Equal(t, []store.StatusColor{
		store.StatusColorPrimary,
		store.StatusColorSuccess,
		store.StatusColorSuccess,
		store.StatusColorDanger,
	}, colors)
}

func TestWorkloadStatusUnknownKind(t *testing.T) {
	kind, apiVersion, colors := workloadStatus(&corev1.Pod{})
	assert.Empty(t, kind)
	assert.Empty(t, apiVersion)
	assert.Nil(t, colors)
}

func TestTrackNamespace(t *testing.T) {
	w := newWatcher(nil, store.Cluster{Name: "test"}, nil)
	id := uuid.New()

	w.trackNamespace(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "kafka-events",
			Annotations: map[string]string{deployments.DeploymentIDAnnotation: id.String()},
		},
	})

	got, ok := w.deploymentFor("kafka-events")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = w.deploymentFor("other")
	assert.False(t, ok)
}

func expiredStatus() *metav1.Status {
	return &metav1.Status{
		Code:    http.StatusGone,
		Reason:  metav1.StatusReasonExpired,
		Message: "too old resource version",
	}
}

func TestWatchNamespacesSurfacesWatchError(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	fw := watch.NewFake()
	defer fw.Stop()
	clientset.PrependWatchReactor("namespaces", k8stesting.DefaultWatchReactor(fw, nil))
	go fw.Error(expiredStatus())

	w := newWatcher(nil, store.Cluster{Name: "test"}, clientset)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// An error event ends the session instead of re-watching with the same
	// stale resourceVersion; the crash loop then restarts from a fresh list.
	err := w.watchNamespaces(ctx, "1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "too old resource version")
	assert.NoError(t, ctx.Err())
}

func TestWatchDeploymentsSurfacesWatchError(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	fw := watch.NewFake()
	defer fw.Stop()
	clientset.PrependWatchReactor("deployments", k8stesting.DefaultWatchReactor(fw, nil))
	go fw.Error(expiredStatus())

	w := newWatcher(nil, store.Cluster{Name: "test"}, clientset)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := w.watchDeployments(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "too old resource version")
	assert.NoError(t, ctx.Err())
}

func TestListNamespacesSeedsMap(t *testing.T) {
	id := uuid.New()
	clientset := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "kafka-events",
			Labels:      map[string]string{deployments.NamespaceLabel: deployments.NamespaceLabelValue},
			Annotations: map[string]string{deployments.DeploymentIDAnnotation: id.String()},
		},
	})

	w := newWatcher(nil, store.Cluster{Name: "test"}, clientset)
	_, err := w.listNamespaces(context.Background())
	require.NoError(t, err)

	got, ok := w.deploymentFor("kafka-events")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestTrackNamespaceIgnoresUnannotated(t *testing.T) {
	w := newWatcher(nil, store.Cluster{Name: "test"}, nil)

	w.trackNamespace(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "kube-system"},
	})
	_, ok := w.deploymentFor("kube-system")
	assert.False(t, ok)

	w.trackNamespace(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "bad",
			Annotations: map[string]string{deployments.DeploymentIDAnnotation: "not-a-uuid"},
		},
	})
	_, ok = w.deploymentFor("bad")
	assert.False(t, ok)
}
