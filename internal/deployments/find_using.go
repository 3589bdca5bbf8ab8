package deployments

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

// FindUsing enumerates deployments whose live revision references the given
// collection item: the revision task's chart UI schema has an input over the
// collection whose rendered config value equals the id. Used for reinstall
// fan-out and for refusing to disable or delete depended-upon entities.
func FindUsing(ctx context.Context, s *store.Store, collection string, id uuid.UUID) ([]store.Deployment, error) {
	all, err := s.Deployments().All(ctx, store.Filters{store.NotNull("revision_id")})
	if err != nil {
		return nil, err
	}
	var users []store.Deployment
	for _, d := range all {
		uses, err := deploymentUses(ctx, s, &d, collection, id)
		if err != nil {
			return nil, err
		}
		if uses {
			users = append(users, d)
		}
	}
	return users, nil
}

func deploymentUses(ctx context.Context, s *store.Store, d *store.Deployment, collection string, id uuid.UUID) (bool, error) {
	task, err := s.Tasks().Get(ctx, *d.RevisionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	chartID := task.Operation.HelmChartID()
	if chartID == nil {
		return false, nil
	}
	chart, err := s.Charts().Get(ctx, *chartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	schema, err := chartext.StoredUiSchema(chart.ValuesUI)
	if err != nil || schema == nil {
		return false, err
	}

	var config map[string]any
	if len(d.Config) > 0 {
		if err := json.Unmarshal(d.Config, &config); err != nil {
			return false, errors.Wrapf(err, "failed to decode config of deployment %s", d.ID)
		}
	}

	want := id.String()
	for _, input := range schema.Inputs {
		if input.Collection == nil || !collectionMatches(*input.Collection, collection) {
			continue
		}
		switch value := config[input.ID].(type) {
		case string:
			if value == want {
				return true, nil
			}
		case []any:
			for _, item := range value {
				if s, ok := item.(string); ok && s == want {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func collectionMatches(name chartext.CollectionName, collection string) bool {
	if name.Name != "" {
		return name.Name == collection
	}
	return name.Type == collection
}
