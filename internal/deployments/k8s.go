package deployments

// Markers on namespaces owned by the engine. The cluster watchers select
// namespaces by the label and resolve ownership through the annotation.
const (
	NamespaceLabel         = "platz"
	NamespaceLabelValue    = "yes"
	NamespaceSelector      = NamespaceLabel + "=" + NamespaceLabelValue
	DeploymentIDAnnotation = "platz_deployment_id"
)
