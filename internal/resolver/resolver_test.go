package resolver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz-engine/internal/chartext"
)

// fakeCollection resolves from an in-memory map of item id to properties.
type fakeCollection struct {
	name  string
	items map[uuid.UUID]map[string]any
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) Resolve(_ context.Context, _ uuid.UUID, id uuid.UUID, property string) (any, error) {
	props, ok := c.items[id]
	if !ok {
		return nil, &Error{Kind: CollectionItemNotFound, Collection: c.name, ItemID: id.String()}
	}
	value, ok := props[property]
	if !ok {
		return nil, &Error{Kind: UnknownProperty, Property: property, Collection: c.name}
	}
	return value, nil
}

type fakeCollections map[string]*fakeCollection

func (f fakeCollections) Lookup(_ context.Context, _ uuid.UUID, name chartext.CollectionName) (Collection, error) {
	c, ok := f[name.String()]
	if !ok {
		return nil, &Error{Kind: UnsupportedCollection, Collection: name.String()}
	}
	return c, nil
}

func collectionName(name string) *chartext.CollectionName {
	return &chartext.CollectionName{Name: name}
}

func strptr(s string) *string { return &s }

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: MissingInputValue, Input: "node_count"}, "MissingInputValue(node_count)"},
		{&Error{Kind: InputNotACollection, Input: "node_count"}, "InputNotACollection(node_count)"},
		{&Error{Kind: UnsupportedCollection, Collection: "widgets"}, "UnsupportedCollection(widgets)"},
		{&Error{Kind: CollectionItemNotFound, Collection: "secrets", ItemID: "abc"}, "CollectionItemNotFound(secrets, abc)"},
		{&Error{Kind: UnknownProperty, Property: "port", Collection: "secrets"}, "UnknownProperty(port, secrets)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.err.Error())
	}
}

func TestGetValuesNestedPaths(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "node_count", Type: chartext.InputTypeNumber, Required: true},
			{ID: "storage_class", Type: chartext.InputTypeText},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "replicas.count", Value: chartext.ValuesRef{Input: "node_count"}},
				{Path: "replicas.storage.class", Value: chartext.ValuesRef{Input: "storage_class"}},
			},
		},
	}

	values, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"node_count":    float64(3),
		"storage_class": "gp3",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"replicas": map[string]any{
			"count": float64(3),
			"storage": map[string]any{
				"class": "gp3",
			},
		},
	}, values)
}

func TestGetValuesOptionalInputOmitted(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "storage_class", Type: chartext.InputTypeText},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "storage.class", Value: chartext.ValuesRef{Input: "storage_class"}},
			},
		},
	}

	values, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestGetValuesRequiredInputMissing(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "node_count", Type: chartext.InputTypeNumber, Required: true},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "replicas.count", Value: chartext.ValuesRef{Input: "node_count"}},
			},
		},
	}

	_, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{})
	require.Error(t, err)
	assert.Equal(t, "MissingInputValue(node_count)", err.Error())
}

func TestGetValuesUnknownInputRef(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "x", Value: chartext.ValuesRef{Input: "nope"}},
			},
		},
	}

	_, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{})
	require.Error(t, err)
	assert.Equal(t, "MissingInputValue(nope)", err.Error())
}

func TestGetValuesHiddenInputTreatedAsAbsent(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "enable_tls", Type: chartext.InputTypeCheckbox},
			{
				ID:   "tls_secret",
				Type: chartext.InputTypeText,
				ShowIfAll: []chartext.FieldCondition{
					{FieldID: "enable_tls", Value: json.RawMessage(`true`)},
				},
			},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "tls.secret", Value: chartext.ValuesRef{Input: "tls_secret"}},
			},
		},
	}

	// A stale value survives in the config after the controlling checkbox
	// was turned off; it must not leak into the rendered values.
	values, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"enable_tls": false,
		"tls_secret": "stale-secret",
	})
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"enable_tls": true,
		"tls_secret": "live-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tls": map[string]any{"secret": "live-secret"},
	}, values)
}

func TestGetValuesCollectionProperty(t *testing.T) {
	itemID := uuid.New()
	r := New(fakeCollections{
		"secrets": {
			name: "secrets",
			items: map[uuid.UUID]map[string]any{
				itemID: {"name": "db-password", "contents": "hunter2"},
			},
		},
	})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{
				ID:         "password",
				Type:       chartext.InputTypeCollectionSelect,
				Collection: collectionName("secrets"),
				Required:   true,
			},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "db.password", Value: chartext.ValuesRef{Input: "password", Property: strptr("contents")}},
			},
		},
	}

	values, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"password": itemID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"db": map[string]any{"password": "hunter2"},
	}, values)
}

func TestGetValuesCollectionItemNotFound(t *testing.T) {
	r := New(fakeCollections{
		"secrets": {name: "secrets", items: map[uuid.UUID]map[string]any{}},
	})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{
				ID:         "password",
				Type:       chartext.InputTypeCollectionSelect,
				Collection: collectionName("secrets"),
				Required:   true,
			},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "db.password", Value: chartext.ValuesRef{Input: "password", Property: strptr("contents")}},
			},
		},
	}

	missing := uuid.New()
	_, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"password": missing.String(),
	})
	require.Error(t, err)
	assert.Equal(t, "CollectionItemNotFound(secrets, "+missing.String()+")", err.Error())
}

func TestGetValuesPropertyOnNonCollection(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "region", Type: chartext.InputTypeText},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "region", Value: chartext.ValuesRef{Input: "region", Property: strptr("name")}},
			},
		},
	}

	_, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{"region": "eu-west-1"})
	require.Error(t, err)
	assert.Equal(t, "InputNotACollection(region)", err.Error())
}

func TestGetValuesArrayCollectionProperty(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	r := New(fakeCollections{
		"secrets": {
			name: "secrets",
			items: map[uuid.UUID]map[string]any{
				first:  {"name": "alpha"},
				second: {"name": "beta"},
			},
		},
	})
	itemType := chartext.InputTypeText
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{
				ID:         "creds",
				Type:       chartext.InputTypeCollectionSelect,
				Collection: collectionName("secrets"),
				ItemType:   &itemType,
			},
		},
		Outputs: chartext.UiOutputs{
			Values: []chartext.UiOutputValue{
				{Path: "creds", Value: chartext.ValuesRef{Input: "creds", Property: strptr("name")}},
			},
		},
	}

	values, err := r.GetValues(context.Background(), uuid.New(), schema, Inputs{
		"creds": []any{first.String(), second.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"creds": []string{"alpha", "beta"}}, values)
}

func TestRenderSecretsDeterministicOrder(t *testing.T) {
	r := New(fakeCollections{})
	schema := &chartext.UiSchema{
		Inputs: []chartext.UiInput{
			{ID: "token", Type: chartext.InputTypeText, Required: true},
			{ID: "port", Type: chartext.InputTypeNumber, Required: true},
		},
		Outputs: chartext.UiOutputs{
			Secrets: map[string]map[string]chartext.ValuesRef{
				"zeta-creds": {
					"token": {Input: "token"},
				},
				"alpha-creds": {
					"token": {Input: "token"},
					"port":  {Input: "port"},
				},
			},
		},
	}

	secrets, err := r.RenderSecrets(context.Background(), uuid.New(), schema, Inputs{
		"token": "t0k3n",
		"port":  float64(5432),
	})
	require.NoError(t, err)
	require.Len(t, secrets, 2)

	assert.Equal(t, "alpha-creds", secrets[0].Name)
	assert.Equal(t, []SecretAttr{
		{Key: "port", Value: "5432"},
		{Key: "token", Value: "t0k3n"},
	}, secrets[0].Attrs)

	assert.Equal(t, "zeta-creds", secrets[1].Name)
	assert.Equal(t, []SecretAttr{{Key: "token", Value: "t0k3n"}}, secrets[1].Attrs)
}

func TestGenerateBodyPassthrough(t *testing.T) {
	r := New(fakeCollections{})
	action := &chartext.Action{ID: "flush"}
	body := json.RawMessage(`{"force": true}`)

	out, err := r.GenerateBody(context.Background(), uuid.New(), action, body)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestGenerateBodyResolved(t *testing.T) {
	r := New(fakeCollections{})
	action := &chartext.Action{
		ID: "scale",
		UiSchema: &chartext.UiSchema{
			Inputs: []chartext.UiInput{
				{ID: "replicas", Type: chartext.InputTypeNumber, Required: true},
			},
			Outputs: chartext.UiOutputs{
				Values: []chartext.UiOutputValue{
					{Path: "spec.replicas", Value: chartext.ValuesRef{Input: "replicas"}},
				},
			},
		},
	}

	out, err := r.GenerateBody(context.Background(), uuid.New(), action, json.RawMessage(`{"replicas": 5}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"spec": {"replicas": 5}}`, string(out))
}

func TestParseInputs(t *testing.T) {
	inputs, err := ParseInputs(nil)
	require.NoError(t, err)
	assert.Empty(t, inputs)

	inputs, err = ParseInputs(json.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, Inputs{"a": float64(1)}, inputs)

	_, err = ParseInputs(json.RawMessage(`[]`))
	assert.Error(t, err)
}
