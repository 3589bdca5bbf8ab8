package chartext

// ResourceTypes is the chart's custom resource type document. Types are
// upserted into the database on the chart's first successful install.
type ResourceTypes struct {
	ResourceTypes []ResourceTypeDef `json:"resource_types"`
}

type ResourceTypeDef struct {
	Key  string           `json:"key"`
	Spec ResourceTypeSpec `json:"spec"`
}

type ResourceTypeSpec struct {
	NameSingular string `json:"name_singular"`
	NamePlural   string `json:"name_plural"`
	// Global types resolve from any env, not only the owning
	// deployment's.
	Global    bool      `json:"global,omitempty"`
	ValuesUI  *UiSchema `json:"values_ui,omitempty"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// Lifecycle declares optional hooks invoked by the resource sync worker. A
// missing hook makes the corresponding transition a successful no-op.
type Lifecycle struct {
	Create *LifecycleAction `json:"create,omitempty"`
	Update *LifecycleAction `json:"update,omitempty"`
	Delete *LifecycleAction `json:"delete,omitempty"`
}

type LifecycleAction struct {
	Target      *ActionTarget `json:"target,omitempty"`
	AllowedRole *string       `json:"allowed_role,omitempty"`
}
