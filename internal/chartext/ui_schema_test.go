package chartext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionNameFromString(t *testing.T) {
	var c CollectionName
	require.NoError(t, json.Unmarshal([]byte(`"secrets"`), &c))
	assert.Equal(t, "secrets", c.Name)
	assert.Equal(t, "secrets", c.String())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `"secrets"`, string(data))
}

func TestCollectionNameFromObject(t *testing.T) {
	var c CollectionName
	require.NoError(t, json.Unmarshal([]byte(`{"deployment": "kafka", "type": "topics"}`), &c))
	assert.Empty(t, c.Name)
	assert.Equal(t, "kafka", c.Deployment)
	assert.Equal(t, "topics", c.Type)
	assert.Equal(t, "kafka/topics", c.String())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deployment": "kafka", "type": "topics"}`, string(data))
}

func TestCollectionNameInvalid(t *testing.T) {
	var c CollectionName
	assert.Error(t, json.Unmarshal([]byte(`""`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"deployment": "kafka"}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`42`), &c))
}

func TestUiSchemaInput(t *testing.T) {
	itemType := InputTypeText
	schema := UiSchema{
		Inputs: []UiInput{
			{ID: "region", Type: InputTypeText},
			{ID: "hosts", Type: InputTypeText, ItemType: &itemType},
		},
	}

	require.NotNil(t, schema.Input("region"))
	assert.False(t, schema.Input("region").IsArray())
	require.NotNil(t, schema.Input("hosts"))
	assert.True(t, schema.Input("hosts").IsArray())
	assert.Nil(t, schema.Input("missing"))
}
