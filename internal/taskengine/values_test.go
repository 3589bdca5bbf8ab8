package taskengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

func strptr(s string) *string { return &s }

func testTarget() *taskTarget {
	envID := uuid.New()
	return &taskTarget{
		deployment: &store.Deployment{ID: uuid.New(), Name: "events"},
		cluster: &store.Cluster{
			ID:            uuid.New(),
			Name:          "prod-1",
			ProviderID:    "arn:aws:eks:eu-west-1:123:cluster/prod-1",
			EnvID:         &envID,
			IngressDomain: strptr("example.com"),
		},
		env: &store.Env{
			ID:           envID,
			Name:         "production",
			NodeSelector: json.RawMessage(`{}`),
			Tolerations:  json.RawMessage(`[]`),
		},
		kind:      &store.Kind{ID: uuid.New(), Name: "Kafka"},
		namespace: "kafka-events",
	}
}

func TestRenderValuesPlatzBlock(t *testing.T) {
	e := &Engine{cfg: Config{OwnURL: "https://platz.example.com"}}
	target := testTarget()
	task := &store.Task{ID: uuid.New()}

	values, err := e.renderValues(context.Background(), task, target, nil, nil)
	require.NoError(t, err)

	platz, ok := values["platz"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, target.env.ID.String(), platz["env_id"])
	assert.Equal(t, "production", platz["env_name"])
	assert.Equal(t, target.cluster.ID.String(), platz["cluster_id"])
	assert.Equal(t, "prod-1", platz["cluster_name"])
	assert.Equal(t, target.cluster.ProviderID, platz["cluster"])
	assert.Equal(t, target.deployment.ID.String(), platz["deployment_id"])
	assert.Equal(t, "events", platz["deployment_name"])
	assert.Equal(t, "Kafka", platz["deployment_kind"])
	assert.Equal(t, task.ID.String(), platz["revision_id"])
	assert.Equal(t, "https://platz.example.com", platz["own_url"])

	assert.NotContains(t, values, "ingress")
}

func TestInsertEnvConstraintsDefaultPaths(t *testing.T) {
	env := &store.Env{
		NodeSelector: json.RawMessage(`{"role": "workers"}`),
		Tolerations:  json.RawMessage(`[{"key": "dedicated", "operator": "Exists"}]`),
	}

	values := map[string]any{}
	require.NoError(t, insertEnvConstraints(values, env, nil))

	assert.Equal(t, map[string]any{"role": "workers"}, values["nodeSelector"])
	assert.Equal(t, []any{
		map[string]any{"key": "dedicated", "operator": "Exists"},
	}, values["tolerations"])
}

func TestInsertEnvConstraintsFeaturePaths(t *testing.T) {
	env := &store.Env{
		NodeSelector: json.RawMessage(`{"role": "workers"}`),
		Tolerations:  json.RawMessage(`[]`),
	}
	features := &chartext.Features{
		NodeSelectorPaths: []string{"controller.nodeSelector", "agent.nodeSelector"},
		TolerationsPaths:  []string{"controller.tolerations"},
	}

	values := map[string]any{}
	require.NoError(t, insertEnvConstraints(values, env, features))

	controller, ok := values["controller"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"role": "workers"}, controller["nodeSelector"])
	assert.Equal(t, []any{}, controller["tolerations"])

	agent, ok := values["agent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"role": "workers"}, agent["nodeSelector"])

	assert.NotContains(t, values, "nodeSelector")
	assert.NotContains(t, values, "tolerations")
}

func TestInsertEnvConstraintsInvalidEnv(t *testing.T) {
	env := &store.Env{
		NodeSelector: json.RawMessage(`[]`),
		Tolerations:  json.RawMessage(`[]`),
	}
	assert.Error(t, insertEnvConstraints(map[string]any{}, env, nil))
}

func TestRenderIngress(t *testing.T) {
	target := testTarget()
	features := &chartext.Features{
		Ingress: chartext.IngressFeature{Enabled: true},
	}

	ingress, err := renderIngress(features, target)
	require.NoError(t, err)
	assert.Equal(t, true, ingress["enabled"])
	assert.Equal(t, []any{
		map[string]any{
			"host": "events.example.com",
			"paths": []any{
				map[string]any{"path": "/", "pathType": "Prefix"},
			},
		},
	}, ingress["hosts"])
	assert.NotContains(t, ingress, "className")
	assert.NotContains(t, ingress, "tls")
}

func TestRenderIngressClassNameAndTLS(t *testing.T) {
	target := testTarget()
	target.cluster.IngressClass = strptr("alb")
	target.cluster.IngressTLSSecretName = strptr("wildcard-tls")
	features := &chartext.Features{
		Ingress: chartext.IngressFeature{
			Enabled:        true,
			HostnameFormat: chartext.HostnameFormatKindAndName,
		},
	}

	ingress, err := renderIngress(features, target)
	require.NoError(t, err)
	assert.Equal(t, "alb", ingress["className"])
	assert.Equal(t, []any{
		map[string]any{
			"secretName": "wildcard-tls",
			"hosts":      []any{"kafka-events.example.com"},
		},
	}, ingress["tls"])
}

func TestRenderIngressFeatureClassOverride(t *testing.T) {
	target := testTarget()
	target.cluster.IngressClass = strptr("alb")
	features := &chartext.Features{
		Ingress: chartext.IngressFeature{
			Enabled:   true,
			ClassName: strptr("nginx"),
		},
	}

	ingress, err := renderIngress(features, target)
	require.NoError(t, err)
	assert.Equal(t, "nginx", ingress["className"])
}

func TestRenderIngressNoDomain(t *testing.T) {
	target := testTarget()
	target.cluster.IngressDomain = nil
	features := &chartext.Features{
		Ingress: chartext.IngressFeature{Enabled: true},
	}

	_, err := renderIngress(features, target)
	assert.Error(t, err)
}
