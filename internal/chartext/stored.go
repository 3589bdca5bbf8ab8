package chartext

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// The chart row persists extension documents in their parsed JSON form.
// These helpers decode them back; a nil raw document yields nil.

func StoredUiSchema(raw json.RawMessage) (*UiSchema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s UiSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored values-ui")
	}
	return &s, nil
}

func StoredActions(raw json.RawMessage) (*Actions, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a Actions
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored actions")
	}
	return &a, nil
}

func StoredFeatures(raw json.RawMessage) (*Features, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var f Features
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored features")
	}
	return &f, nil
}

func StoredResourceTypes(raw json.RawMessage) (*ResourceTypes, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var t ResourceTypes
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored resource-types")
	}
	return &t, nil
}
