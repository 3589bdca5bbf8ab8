package taskengine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/resolver"
	"github.com/platzio/platz-engine/internal/store"
)

// renderValues builds the full values document passed to Helm: the resolved
// schema outputs, the platz metadata block, env scheduling constraints and
// the ingress block.
func (e *Engine) renderValues(ctx context.Context, task *store.Task, t *taskTarget, schema *chartext.UiSchema, features *chartext.Features) (map[string]any, error) {
	values := map[string]any{}
	if schema != nil {
		inputs, err := resolver.ParseInputs(t.deployment.Config)
		if err != nil {
			return nil, err
		}
		values, err = e.resolver.GetValues(ctx, *t.cluster.EnvID, schema, inputs)
		if err != nil {
			return nil, err
		}
	}

	values["platz"] = map[string]any{
		"env_id":          t.env.ID.String(),
		"env_name":        t.env.Name,
		"cluster_id":      t.cluster.ID.String(),
		"cluster_name":    t.cluster.Name,
		"cluster":         t.cluster.ProviderID,
		"deployment_id":   t.deployment.ID.String(),
		"deployment_name": t.deployment.Name,
		"deployment_kind": t.kind.Name,
		"revision_id":     task.ID.String(),
		"own_url":         e.cfg.OwnURL,
	}

	if err := insertEnvConstraints(values, t.env, features); err != nil {
		return nil, err
	}

	if features != nil && features.Ingress.Enabled {
		ingress, err := renderIngress(features, t)
		if err != nil {
			return nil, err
		}
		values["ingress"] = ingress
	}
	return values, nil
}

// insertEnvConstraints places the env's node selector and tolerations at the
// chart's declared paths, defaulting to the conventional top-level keys.
func insertEnvConstraints(values map[string]any, env *store.Env, features *chartext.Features) error {
	var nodeSelector map[string]any
	if err := json.Unmarshal(env.NodeSelector, &nodeSelector); err != nil {
		return errors.Wrap(err, "failed to decode env node selector")
	}
	var tolerations []any
	if err := json.Unmarshal(env.Tolerations, &tolerations); err != nil {
		return errors.Wrap(err, "failed to decode env tolerations")
	}

	nodeSelectorPaths := []string{"nodeSelector"}
	tolerationsPaths := []string{"tolerations"}
	if features != nil && len(features.NodeSelectorPaths) > 0 {
		nodeSelectorPaths = features.NodeSelectorPaths
	}
	if features != nil && len(features.TolerationsPaths) > 0 {
		tolerationsPaths = features.TolerationsPaths
	}

	for _, path := range nodeSelectorPaths {
		insertValueAtPath(values, strings.Split(path, "."), nodeSelector)
	}
	for _, path := range tolerationsPaths {
		insertValueAtPath(values, strings.Split(path, "."), tolerations)
	}
	return nil
}

func renderIngress(features *chartext.Features, t *taskTarget) (map[string]any, error) {
	host, err := deployments.Hostname(features.Ingress.EffectiveHostnameFormat(), t.kind.Name, t.deployment.Name, t.cluster)
	if err != nil {
		return nil, err
	}

	ingress := map[string]any{
		"enabled": true,
		"hosts": []any{
			map[string]any{
				"host": host,
				"paths": []any{
					map[string]any{"path": "/", "pathType": "Prefix"},
				},
			},
		},
	}

	className := t.cluster.IngressClass
	if features.Ingress.ClassName != nil {
		className = features.Ingress.ClassName
	}
	if className != nil && *className != "" {
		ingress["className"] = *className
	}

	if t.cluster.IngressTLSSecretName != nil && *t.cluster.IngressTLSSecretName != "" {
		ingress["tls"] = []any{
			map[string]any{
				"secretName": *t.cluster.IngressTLSSecretName,
				"hosts":      []any{host},
			},
		}
	}
	return ingress, nil
}

func insertValueAtPath(doc map[string]any, path []string, value any) {
	for len(path) > 1 {
		child, ok := doc[path[0]].(map[string]any)
		if !ok {
			child = map[string]any{}
			doc[path[0]] = child
		}
		doc = child
		path = path[1:]
	}
	doc[path[0]] = value
}
