// Package chartext models the optional extension documents a chart carries:
// the input UI schema, feature flags, action endpoints and custom resource
// types. Each document is independently versioned by an apiVersion tag;
// unknown versions are recorded as an error on the chart row while the chart
// itself stays available.
package chartext

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type InputType string

const (
	InputTypeText             InputType = "text"
	InputTypeNumber           InputType = "number"
	InputTypeCheckbox         InputType = "Checkbox"
	InputTypeRadioSelect      InputType = "RadioSelect"
	InputTypeDaysAndHour      InputType = "DaysAndHour"
	InputTypeCollectionSelect InputType = "CollectionSelect"
)

// UiSchema declares a chart's inputs and how they map to rendered values
// and secrets.
type UiSchema struct {
	Inputs  []UiInput `json:"inputs"`
	Outputs UiOutputs `json:"outputs"`
}

func (s *UiSchema) Input(id string) *UiInput {
	for i := range s.Inputs {
		if s.Inputs[i].ID == id {
			return &s.Inputs[i]
		}
	}
	return nil
}

type UiInput struct {
	ID          string           `json:"id"`
	Type        InputType        `json:"type"`
	Label       string           `json:"label,omitempty"`
	HelpText    string           `json:"helpText,omitempty"`
	Collection  *CollectionName  `json:"collection,omitempty"`
	Required    bool             `json:"required,omitempty"`
	Sensitive   bool             `json:"sensitive,omitempty"`
	ItemType    *InputType       `json:"itemType,omitempty"`
	Options     []UiInputOption  `json:"options,omitempty"`
	ShowIfAll   []FieldCondition `json:"showIfAll,omitempty"`
	FilterProps []FieldCondition `json:"filterProps,omitempty"`
	Default     json.RawMessage  `json:"default,omitempty"`
}

// IsArray reports whether the input's value is an array of items.
func (i *UiInput) IsArray() bool {
	return i.ItemType != nil
}

type UiInputOption struct {
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
	HelpText string `json:"helpText,omitempty"`
}

// FieldCondition is a single predicate of a showIfAll clause: the named
// field must currently hold the given value.
type FieldCondition struct {
	FieldID string          `json:"field"`
	Value   json.RawMessage `json:"value"`
}

type UiOutputs struct {
	Values []UiOutputValue `json:"values,omitempty"`
	// Secrets maps secret name to its attributes, each rendered from a
	// reference.
	Secrets map[string]map[string]ValuesRef `json:"secrets,omitempty"`
}

// UiOutputValue writes a resolved reference at a dotted JSON path inside the
// rendered values document.
type UiOutputValue struct {
	Path  string    `json:"path"`
	Value ValuesRef `json:"value"`
}

// ValuesRef points from an output to an input. With no property it copies
// the input's value; with a property it treats the value as a collection
// item id and reads that item's property.
type ValuesRef struct {
	Input    string  `json:"input"`
	Property *string `json:"property,omitempty"`
}

// CollectionName names the collection a CollectionSelect input draws from:
// either a built-in table name, or a deployment resource type identified by
// kind and key. A bare string first matches a built-in and otherwise falls
// back to a resource type key.
type CollectionName struct {
	Name       string
	Deployment string
	Type       string
}

func (c *CollectionName) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name == "" {
			return errors.New("collection name is empty")
		}
		*c = CollectionName{Name: name}
		return nil
	}
	var obj struct {
		Deployment string `json:"deployment"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "invalid collection name")
	}
	if obj.Deployment == "" || obj.Type == "" {
		return errors.New("collection object requires deployment and type")
	}
	*c = CollectionName{Deployment: obj.Deployment, Type: obj.Type}
	return nil
}

func (c CollectionName) MarshalJSON() ([]byte, error) {
	if c.Name != "" {
		return json.Marshal(c.Name)
	}
	return json.Marshal(map[string]string{
		"deployment": c.Deployment,
		"type":       c.Type,
	})
}

func (c CollectionName) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Deployment + "/" + c.Type
}
