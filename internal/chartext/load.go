package chartext

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
)

// extensionDir is the subtree inside a chart artifact holding the extension
// documents.
const extensionDir = "platz/"

// Extension is the parsed bundle of a chart's extension documents along
// with their raw JSON forms for persistence. A parse failure leaves Err set
// and the affected document nil; the other documents still parse.
type Extension struct {
	ValuesUI      *UiSchema
	Actions       *Actions
	Features      *Features
	ResourceTypes *ResourceTypes

	RawValuesUI      json.RawMessage
	RawActions       json.RawMessage
	RawFeatures      json.RawMessage
	RawResourceTypes json.RawMessage

	Err error
}

// LoadArchive reads the extension documents out of a packaged chart.
func LoadArchive(path string) (*Extension, error) {
	c, err := loader.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chart archive")
	}
	return FromChart(c), nil
}

// FromChart extracts and parses the extension documents of a loaded chart.
func FromChart(c *chart.Chart) *Extension {
	ext := &Extension{}
	for _, f := range c.Files {
		if !strings.HasPrefix(f.Name, extensionDir) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(f.Name, extensionDir), ".yaml")
		switch name {
		case "values-ui":
			ext.ValuesUI, ext.RawValuesUI = parseOrRecord(f.Data, ParseValuesUi, ext)
		case "actions":
			ext.Actions, ext.RawActions = parseOrRecord(f.Data, ParseActions, ext)
		case "features":
			ext.Features, ext.RawFeatures = parseOrRecord(f.Data, ParseFeatures, ext)
		case "resource-types":
			ext.ResourceTypes, ext.RawResourceTypes = parseOrRecord(f.Data, ParseResourceTypes, ext)
		}
	}
	return ext
}

func parseOrRecord[T any](data []byte, parse func([]byte) (*T, error), ext *Extension) (*T, json.RawMessage) {
	parsed, err := parse(data)
	if err != nil {
		if ext.Err == nil {
			ext.Err = err
		}
		return nil, nil
	}
	raw, err := json.Marshal(parsed)
	if err != nil {
		if ext.Err == nil {
			ext.Err = err
		}
		return parsed, nil
	}
	return parsed, raw
}
