package chartext

type Cardinality string

const (
	// CardinalityMany allows any number of deployments of the kind per
	// cluster; each must carry a non-empty name.
	CardinalityMany Cardinality = "Many"
	// CardinalityOnePerCluster allows a single deployment of the kind per
	// cluster; its name must be empty.
	CardinalityOnePerCluster Cardinality = "OnePerCluster"
)

type HostnameFormat string

const (
	HostnameFormatName        HostnameFormat = "Name"
	HostnameFormatKindAndName HostnameFormat = "KindAndName"
)

// Features is the union of all feature document versions, exposed
// uniformly.
type Features struct {
	Cardinality           Cardinality     `json:"cardinality,omitempty"`
	Ingress               IngressFeature  `json:"ingress,omitempty"`
	Status                *StatusFeature  `json:"status,omitempty"`
	ReinstallDependencies bool            `json:"reinstall_dependencies,omitempty"`
	NodeSelectorPaths     []string        `json:"node_selector_paths,omitempty"`
	TolerationsPaths      []string        `json:"tolerations_paths,omitempty"`
	Display               *DisplayFeature `json:"display,omitempty"`
}

func (f *Features) EffectiveCardinality() Cardinality {
	if f == nil || f.Cardinality == "" {
		return CardinalityMany
	}
	return f.Cardinality
}

type IngressFeature struct {
	Enabled        bool           `json:"enabled,omitempty"`
	HostnameFormat HostnameFormat `json:"hostname_format,omitempty"`
	ClassName      *string        `json:"class_name,omitempty"`
}

func (i IngressFeature) EffectiveHostnameFormat() HostnameFormat {
	if i.HostnameFormat == "" {
		return HostnameFormatName
	}
	return i.HostnameFormat
}

// StatusFeature configures the periodic status probe of a deployment.
type StatusFeature struct {
	Endpoint            ActionEndpoint `json:"endpoint"`
	Path                string         `json:"path"`
	RefreshIntervalSecs int            `json:"refresh_interval_secs"`
}

type DisplayFeature struct {
	Name *string `json:"name,omitempty"`
	Icon *string `json:"icon,omitempty"`
}
