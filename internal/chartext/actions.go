package chartext

import (
	"github.com/pkg/errors"
)

type ActionEndpoint string

// StandardIngress targets the deployment's own ingress hostname.
const ActionEndpointStandardIngress ActionEndpoint = "standard_ingress"

type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

// Actions is the chart's action document: operator-invocable endpoints
// exposed by the running deployment.
type Actions struct {
	Actions []Action `json:"actions"`
}

func (a *Actions) Find(id string) (*Action, error) {
	for i := range a.Actions {
		if a.Actions[i].ID == id {
			return &a.Actions[i], nil
		}
	}
	return nil, errors.Errorf("chart has no action %q", id)
}

type Action struct {
	ID              string       `json:"id"`
	Title           string       `json:"title,omitempty"`
	FontawesomeIcon string       `json:"fontawesome_icon,omitempty"`
	Description     string       `json:"description,omitempty"`
	AllowedRole     string       `json:"allowed_role"`
	Target          ActionTarget `json:"target"`
	// UiSchema resolves the request body; when absent the body is passed
	// through verbatim.
	UiSchema *UiSchema `json:"ui_schema,omitempty"`
}

type ActionTarget struct {
	Endpoint ActionEndpoint `json:"endpoint"`
	Path     string         `json:"path"`
	Method   HTTPMethod     `json:"method"`
}

func (t ActionTarget) Validate() error {
	if t.Endpoint != ActionEndpointStandardIngress {
		return errors.Errorf("unknown action endpoint %q", t.Endpoint)
	}
	switch t.Method {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
	default:
		return errors.Errorf("unknown action method %q", t.Method)
	}
	return nil
}
