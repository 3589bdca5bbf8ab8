package chartext

import (
	"encoding/json"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// APIVersionV1 is the current extension document version. Documents without
// an apiVersion tag are parsed as the legacy v0 shape, which is the bare
// spec.
const APIVersionV1 = "platz.io/v1"

const (
	KindValuesUi      = "ValuesUi"
	KindActions       = "Actions"
	KindFeatures      = "Features"
	KindResourceTypes = "ResourceTypes"
)

// ParseError is a chart extension parse failure. It is recorded on the
// chart row and never propagated; the chart stays listable so older
// deployments keep working.
type ParseError struct {
	Document string
	Err      error
}

func (e *ParseError) Error() string {
	return "failed to parse " + e.Document + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

type envelope struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Spec       json.RawMessage `json:"spec"`
}

// parseDocument dispatches on the document's apiVersion. Adding a version
// must never require migrating stored rows: the raw document is persisted
// and re-dispatched on every read.
func parseDocument(document, kind string, data []byte, out any) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return &ParseError{Document: document, Err: err}
	}
	var env envelope
	if err := json.Unmarshal(jsonData, &env); err != nil {
		return &ParseError{Document: document, Err: err}
	}
	switch env.APIVersion {
	case "":
		// Legacy v0: the document is the bare spec.
		if err := json.Unmarshal(jsonData, out); err != nil {
			return &ParseError{Document: document, Err: err}
		}
	case APIVersionV1:
		if env.Kind != kind {
			return &ParseError{Document: document, Err: errors.Errorf("expected kind %q, got %q", kind, env.Kind)}
		}
		if err := json.Unmarshal(env.Spec, out); err != nil {
			return &ParseError{Document: document, Err: err}
		}
	default:
		return &ParseError{Document: document, Err: errors.Errorf("unknown apiVersion %q", env.APIVersion)}
	}
	return nil
}

func ParseValuesUi(data []byte) (*UiSchema, error) {
	var s UiSchema
	if err := parseDocument("values-ui", KindValuesUi, data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func ParseActions(data []byte) (*Actions, error) {
	var a Actions
	if err := parseDocument("actions", KindActions, data, &a); err != nil {
		return nil, err
	}
	for i := range a.Actions {
		if err := a.Actions[i].Target.Validate(); err != nil {
			return nil, &ParseError{Document: "actions", Err: err}
		}
	}
	return &a, nil
}

func ParseFeatures(data []byte) (*Features, error) {
	var f Features
	if err := parseDocument("features", KindFeatures, data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func ParseResourceTypes(data []byte) (*ResourceTypes, error) {
	var t ResourceTypes
	if err := parseDocument("resource-types", KindResourceTypes, data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
