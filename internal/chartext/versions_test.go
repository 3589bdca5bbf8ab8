package chartext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bareValuesUi = `
inputs:
  - id: node_count
    type: number
    label: Node Count
    required: true
outputs:
  values:
    - path: replicas.count
      value:
        input: node_count
`

const v1ValuesUi = `
apiVersion: platz.io/v1
kind: ValuesUi
spec:
  inputs:
    - id: node_count
      type: number
      required: true
  outputs:
    values:
      - path: replicas.count
        value:
          input: node_count
`

func TestParseValuesUiLegacy(t *testing.T) {
	schema, err := ParseValuesUi([]byte(bareValuesUi))
	require.NoError(t, err)
	require.Len(t, schema.Inputs, 1)
	assert.Equal(t, "node_count", schema.Inputs[0].ID)
	assert.Equal(t, InputTypeNumber, schema.Inputs[0].Type)
	assert.True(t, schema.Inputs[0].Required)
	require.Len(t, schema.Outputs.Values, 1)
	assert.Equal(t, "replicas.count", schema.Outputs.Values[0].Path)
}

func TestParseValuesUiV1(t *testing.T) {
	schema, err := ParseValuesUi([]byte(v1ValuesUi))
	require.NoError(t, err)
	require.Len(t, schema.Inputs, 1)
	assert.Equal(t, "node_count", schema.Inputs[0].ID)
}

func TestParseValuesUiWrongKind(t *testing.T) {
	doc := `
apiVersion: platz.io/v1
kind: Features
spec: {}
`
	_, err := ParseValuesUi([]byte(doc))
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "values-ui", parseErr.Document)
}

func TestParseValuesUiUnknownVersion(t *testing.T) {
	doc := `
apiVersion: platz.io/v9
kind: ValuesUi
spec: {}
`
	_, err := ParseValuesUi([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown apiVersion")
}

func TestParseActionsValidatesTargets(t *testing.T) {
	doc := `
actions:
  - id: flush
    target:
      endpoint: standard_ingress
      path: api/flush
      method: POST
`
	actions, err := ParseActions([]byte(doc))
	require.NoError(t, err)
	action, err := actions.Find("flush")
	require.NoError(t, err)
	assert.Equal(t, MethodPost, action.Target.Method)
	_, err = actions.Find("missing")
	assert.Error(t, err)
}

func TestParseActionsRejectsUnknownEndpoint(t *testing.T) {
	doc := `
actions:
  - id: flush
    target:
      endpoint: carrier_pigeon
      path: api/flush
      method: POST
`
	_, err := ParseActions([]byte(doc))
	require.Error(t, err)
}

func TestParseFeaturesDefaults(t *testing.T) {
	features, err := ParseFeatures([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, CardinalityMany, features.EffectiveCardinality())
	assert.Equal(t, HostnameFormatName, features.Ingress.EffectiveHostnameFormat())
	assert.Nil(t, features.Status)
}

func TestParseFeaturesIngress(t *testing.T) {
	doc := `
cardinality: OnePerCluster
ingress:
  enabled: true
  hostname_format: KindAndName
  class_name: nginx
`
	features, err := ParseFeatures([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, CardinalityOnePerCluster, features.EffectiveCardinality())
	assert.True(t, features.Ingress.Enabled)
	assert.Equal(t, HostnameFormatKindAndName, features.Ingress.EffectiveHostnameFormat())
	require.NotNil(t, features.Ingress.ClassName)
	assert.Equal(t, "nginx", *features.Ingress.ClassName)
}

func TestParseResourceTypes(t *testing.T) {
	doc := `
apiVersion: platz.io/v1
kind: ResourceTypes
spec:
  resource_types:
    - key: topics
      spec:
        name_singular: Topic
        name_plural: Topics
        global: false
`
	types, err := ParseResourceTypes([]byte(doc))
	require.NoError(t, err)
	require.Len(t, types.ResourceTypes, 1)
	assert.Equal(t, "topics", types.ResourceTypes[0].Key)
	assert.Equal(t, "Topic", types.ResourceTypes[0].Spec.NameSingular)
}
