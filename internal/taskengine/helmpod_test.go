package taskengine

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func podInPhase(name string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "platz"},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

func TestWaitForHelmPodSucceeded(t *testing.T) {
	e := &Engine{
		client: fake.NewSimpleClientset(podInPhase("platz-helm-1", corev1.PodSucceeded)),
		cfg:    Config{Namespace: "platz"},
	}
	assert.NoError(t, e.waitForHelmPod(context.Background(), "platz-helm-1"))
}

func TestWaitForHelmPodFailedCapturesLogs(t *testing.T) {
	e := &Engine{
		client: fake.NewSimpleClientset(podInPhase("platz-helm-1", corev1.PodFailed)),
		cfg:    Config{Namespace: "platz"},
	}
	err := e.waitForHelmPod(context.Background(), "platz-helm-1")
	require.Error(t, err)
	// The fake clientset serves a fixed log body; the failure reason is the
	// pod's output, not a generic phase message.
	assert.Equal(t, "fake logs", err.Error())
}

func TestTailOutput(t *testing.T) {
	assert.Equal(t, "short output", tailOutput("short output"))

	ascii := strings.Repeat("x", 5000)
	assert.Len(t, tailOutput(ascii), 4000)

	// The cut lands inside a 3-byte rune; the tail must start at the next
	// rune boundary instead of keeping a partial byte.
	long := "a" + strings.Repeat("日", 1334)
	tail := tailOutput(long)
	assert.True(t, utf8.ValidString(tail))
	assert.Equal(t, strings.Repeat("日", 1333), tail)
}

func TestCreateHelmPod(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	e := &Engine{client: clientset, cfg: Config{Namespace: "platz"}}

	pod := podInPhase("platz-helm-2", "")
	require.NoError(t, e.createHelmPod(context.Background(), pod))

	created, err := clientset.CoreV1().Pods("platz").Get(context.Background(), "platz-helm-2", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "platz-helm-2", created.Name)
}
