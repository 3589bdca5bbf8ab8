package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
)

type Resolver struct {
	collections CollectionSource
}

func New(collections CollectionSource) *Resolver {
	return &Resolver{collections: collections}
}

// Inputs is a deployment's decoded config: input id to value.
type Inputs map[string]any

func ParseInputs(raw json.RawMessage) (Inputs, error) {
	inputs := Inputs{}
	if len(raw) == 0 {
		return inputs, nil
	}
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, errors.Wrap(err, "failed to decode config inputs")
	}
	return inputs, nil
}

// GetValues renders the schema's value outputs into a nested values
// document. Outputs whose input is absent are omitted when the input is
// optional and fail with MissingInputValue when required.
func (r *Resolver) GetValues(ctx context.Context, envID uuid.UUID, schema *chartext.UiSchema, inputs Inputs) (map[string]any, error) {
	values := map[string]any{}
	for _, output := range schema.Outputs.Values {
		resolved, present, err := r.resolveRef(ctx, envID, schema, inputs, output.Value)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		insertAtPath(values, strings.Split(output.Path, "."), resolved)
	}
	return values, nil
}

// RenderedSecret is one derived secret: a name and its rendered attributes
// in deterministic order.
type RenderedSecret struct {
	Name  string
	Attrs []SecretAttr
}

type SecretAttr struct {
	Key   string
	Value string
}

// RenderSecrets renders the schema's secret outputs. Attribute values are
// always strings; non-string collection properties are JSON-stringified.
func (r *Resolver) RenderSecrets(ctx context.Context, envID uuid.UUID, schema *chartext.UiSchema, inputs Inputs) ([]RenderedSecret, error) {
	names := make([]string, 0, len(schema.Outputs.Secrets))
	for name := range schema.Outputs.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	rendered := make([]RenderedSecret, 0, len(names))
	for _, name := range names {
		refs := schema.Outputs.Secrets[name]
		attrNames := make([]string, 0, len(refs))
		for attr := range refs {
			attrNames = append(attrNames, attr)
		}
		sort.Strings(attrNames)

		secret := RenderedSecret{Name: name}
		for _, attr := range attrNames {
			value, present, err := r.resolveRef(ctx, envID, schema, inputs, refs[attr])
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			secret.Attrs = append(secret.Attrs, SecretAttr{Key: attr, Value: stringify(value)})
		}
		rendered = append(rendered, secret)
	}
	return rendered, nil
}

// resolveRef resolves a single reference. The second return is false when
// the referenced input is absent and optional.
func (r *Resolver) resolveRef(ctx context.Context, envID uuid.UUID, schema *chartext.UiSchema, inputs Inputs, ref chartext.ValuesRef) (any, bool, error) {
	input := schema.Input(ref.Input)
	if input == nil {
		return nil, false, &Error{Kind: MissingInputValue, Input: ref.Input}
	}
	value, ok := inputs[input.ID]
	if ok && !showIfSatisfied(input, inputs) {
		// A hidden input is treated as absent even when a stale value
		// is still present in the config.
		ok = false
	}
	if !ok {
		if input.Required {
			return nil, false, &Error{Kind: MissingInputValue, Input: input.ID}
		}
		return nil, false, nil
	}

	if ref.Property == nil {
		return value, true, nil
	}

	if input.Type != chartext.InputTypeCollectionSelect || input.Collection == nil {
		return nil, false, &Error{Kind: InputNotACollection, Input: input.ID}
	}
	collection, err := r.collections.Lookup(ctx, envID, *input.Collection)
	if err != nil {
		return nil, false, err
	}

	if input.IsArray() {
		items, ok := value.([]any)
		if !ok {
			return nil, false, &Error{Kind: InputNotACollection, Input: input.ID}
		}
		resolved := make([]string, 0, len(items))
		for _, item := range items {
			v, err := r.resolveItem(ctx, envID, collection, input.ID, item, *ref.Property)
			if err != nil {
				return nil, false, err
			}
			resolved = append(resolved, stringify(v))
		}
		return resolved, true, nil
	}

	v, err := r.resolveItem(ctx, envID, collection, input.ID, value, *ref.Property)
	if err != nil {
		return nil, false, err
	}
	return stringify(v), true, nil
}

func (r *Resolver) resolveItem(ctx context.Context, envID uuid.UUID, collection Collection, inputID string, rawID any, property string) (any, error) {
	idStr, ok := rawID.(string)
	if !ok {
		return nil, &Error{Kind: InputNotACollection, Input: inputID}
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, &Error{Kind: CollectionItemNotFound, Collection: collection.Name(), ItemID: idStr}
	}
	return collection.Resolve(ctx, envID, id, property)
}

// showIfSatisfied evaluates the input's showIfAll clause against the
// surrounding input object. Values compare by their JSON forms.
func showIfSatisfied(input *chartext.UiInput, inputs Inputs) bool {
	for _, cond := range input.ShowIfAll {
		actual, ok := inputs[cond.FieldID]
		if !ok {
			return false
		}
		actualJSON, err := json.Marshal(actual)
		if err != nil {
			return false
		}
		expected, err := normalizeJSON(cond.Value)
		if err != nil {
			return false
		}
		if !bytes.Equal(actualJSON, expected) {
			return false
		}
	}
	return true
}

func normalizeJSON(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func insertAtPath(doc map[string]any, path []string, value any) {
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

// GenerateBody resolves an action's request body. With no UI schema the
// given body passes through verbatim.
func (r *Resolver) GenerateBody(ctx context.Context, envID uuid.UUID, action *chartext.Action, body json.RawMessage) (json.RawMessage, error) {
	if action.UiSchema == nil {
		return body, nil
	}
	inputs, err := ParseInputs(body)
	if err != nil {
		return nil, err
	}
	values, err := r.GetValues(ctx, envID, action.UiSchema, inputs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(values)
}
