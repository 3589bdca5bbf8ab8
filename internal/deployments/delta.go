package deployments

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ConfigDelta diffs two config objects into an audit record mapping each
// changed key to its [old, new] pair. Added keys diff against null, removed
// keys against null on the new side.
func ConfigDelta(oldConfig, newConfig json.RawMessage) (json.RawMessage, error) {
	oldMap, err := decodeConfig(oldConfig)
	if err != nil {
		return nil, err
	}
	newMap, err := decodeConfig(newConfig)
	if err != nil {
		return nil, err
	}

	delta := map[string][2]any{}
	for key, oldValue := range oldMap {
		newValue, ok := newMap[key]
		if !ok {
			delta[key] = [2]any{oldValue, nil}
			continue
		}
		if !jsonEqual(oldValue, newValue) {
			delta[key] = [2]any{oldValue, newValue}
		}
	}
	for key, newValue := range newMap {
		if _, ok := oldMap[key]; !ok {
			delta[key] = [2]any{nil, newValue}
		}
	}
	if len(delta) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(delta)
}

func decodeConfig(raw json.RawMessage) (map[string]any, error) {
	m := map[string]any{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return m, nil
}

func jsonEqual(a, b any) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aJSON, bJSON)
}
