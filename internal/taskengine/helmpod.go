package taskengine

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

const helmPodCreateAttempts = 10

// runHelmPod launches a single-shot Helm pod on the controlling cluster,
// pointed at the target cluster through a mounted kubeconfig, and waits for
// it to finish. Non-zero exit surfaces the pod's merged output as the error.
func (e *Engine) runHelmPod(ctx context.Context, task *store.Task, t *taskTarget, chart *store.Chart, helmCommand string, values map[string]any) error {
	registry, err := e.s.Registries().Get(ctx, chart.HelmRegistryID)
	if err != nil {
		return err
	}
	kubeconfig, err := e.kubeconfigs.Kubeconfig(ctx, t.cluster)
	if err != nil {
		return err
	}
	valuesYAML, err := yaml.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "failed to encode values")
	}
	var overrideYAML []byte
	if len(t.deployment.ValuesOverride) > 0 {
		overrideYAML, err = yaml.JSONToYAML(t.deployment.ValuesOverride)
		if err != nil {
			return errors.Wrap(err, "failed to encode values override")
		}
	}

	env := []corev1.EnvVar{
		{Name: "KUBECONFIG_BASE64", Value: base64.StdEncoding.EncodeToString(kubeconfig)},
		{Name: "HELM_REGISTRY_REGION", Value: e.cfg.RegistryRegion},
		{Name: "HELM_REGISTRY", Value: registry.DomainName},
		{Name: "HELM_REPO", Value: registry.RepoName},
		{Name: "HELM_CHART_TAG", Value: chart.ImageTag},
		{Name: "VALUES_BASE64", Value: base64.StdEncoding.EncodeToString(valuesYAML)},
		{Name: "VALUES_OVERRIDE_BASE64", Value: base64.StdEncoding.EncodeToString(overrideYAML)},
	}
	if e.registry != nil {
		creds, err := e.registry.Login(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to log into chart registry")
		}
		env = append(env,
			corev1.EnvVar{Name: "HELM_REGISTRY_USERNAME", Value: creds.Username},
			corev1.EnvVar{Name: "HELM_REGISTRY_PASSWORD", Value: creds.Password},
		)
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("platz-helm-%s", task.ID),
			Namespace: e.cfg.Namespace,
		},
		Spec: corev1.PodSpec{
			RestartPolicy:      corev1.RestartPolicyNever,
			ServiceAccountName: e.cfg.ServiceAccount,
			Containers: []corev1.Container{{
				Name:  "helm",
				Image: e.cfg.ChartExecutorImage,
				Args:  []string{helmCommand, t.namespace},
				Env:   env,
			}},
		},
	}

	if err := e.createHelmPod(ctx, pod); err != nil {
		return err
	}
	defer e.deleteHelmPod(pod.Name)

	return e.waitForHelmPod(ctx, pod.Name)
}

func (e *Engine) createHelmPod(ctx context.Context, pod *corev1.Pod) error {
	b := &backoff.Backoff{
		Min:    durations.HelmPodCreateRetrySleep,
		Max:    durations.HelmPodCreateRetrySleep,
		Factor: 1,
	}
	var err error
	for attempt := 0; attempt < helmPodCreateAttempts; attempt++ {
		_, err = e.client.CoreV1().Pods(pod.Namespace).Create(ctx, pod, metav1.CreateOptions{})
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return errors.Wrap(err, "failed to create helm pod")
}

func (e *Engine) deleteHelmPod(name string) {
	// Cleanup proceeds even when the task's context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b := &backoff.Backoff{
		Min:    durations.HelmPodCreateRetrySleep,
		Max:    durations.HelmPodCreateRetrySleep,
		Factor: 1,
	}
	var err error
	for attempt := 0; attempt < helmPodCreateAttempts; attempt++ {
		err = e.client.CoreV1().Pods(e.cfg.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
		if err == nil {
			return
		}
		time.Sleep(b.Duration())
	}
	logrus.WithError(err).WithField("pod", name).Error("Failed to delete helm pod")
}

// waitForHelmPod waits for the pod to schedule, then to finish, and reads
// its output on failure.
func (e *Engine) waitForHelmPod(ctx context.Context, name string) error {
	phase, err := e.waitForPhase(ctx, name, durations.HelmPodScheduleTimeout, func(p corev1.PodPhase) bool {
		return p != corev1.PodPending && p != corev1.PodUnknown
	})
	if err != nil {
		return errors.Wrap(err, "helm pod did not schedule")
	}

	if phase == corev1.PodRunning {
		phase, err = e.waitForPhase(ctx, name, durations.HelmPodRunTimeout, func(p corev1.PodPhase) bool {
			return p == corev1.PodSucceeded || p == corev1.PodFailed
		})
		if err != nil {
			return errors.Wrap(err, "helm pod did not finish")
		}
	}

	output := e.helmPodOutput(ctx, name)
	if phase != corev1.PodSucceeded {
		if output == "" {
			return errors.Errorf("helm pod finished with phase %s", phase)
		}
		return errors.New(output)
	}
	return nil
}

func (e *Engine) waitForPhase(ctx context.Context, name string, timeout time.Duration, done func(corev1.PodPhase) bool) (corev1.PodPhase, error) {
	deadline := time.Now().Add(timeout)
	for {
		pod, err := e.client.CoreV1().Pods(e.cfg.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", err
		}
		if done(pod.Status.Phase) {
			return pod.Status.Phase, nil
		}
		if time.Now().After(deadline) {
			return "", errors.Errorf("timed out in phase %s", pod.Status.Phase)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// helmPodOutput reads the pod's merged stdout and stderr, trimmed to a tail
// that fits a task reason.
func (e *Engine) helmPodOutput(ctx context.Context, name string) string {
	raw, err := e.client.CoreV1().Pods(e.cfg.Namespace).GetLogs(name, &corev1.PodLogOptions{}).Do(ctx).Raw()
	if err != nil {
		logrus.WithError(err).WithField("pod", name).Warn("Failed to read helm pod logs")
		return ""
	}
	return tailOutput(strings.TrimSpace(string(raw)))
}

// tailOutput keeps the last part of the pod output, short enough to store as
// a task reason, without splitting a rune at the cut.
func tailOutput(output string) string {
	const maxReason = 4000
	if len(output) <= maxReason {
		return output
	}
	output = output[len(output)-maxReason:]
	for len(output) > 0 && !utf8.RuneStart(output[0]) {
		output = output[1:]
	}
	return output
}
