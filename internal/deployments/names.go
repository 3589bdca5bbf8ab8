// Package deployments holds the deployment-level logic shared by the API
// surface and the task engine: naming, config diffing, dependency
// enumeration and task insertion.
package deployments

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

// Namespace returns the deployment's namespace name:
// "<kind-lowercase>-<name>", or the bare kind when the name is empty
// (one-per-cluster charts).
func Namespace(kindName, deploymentName string) string {
	kind := strings.ToLower(kindName)
	if deploymentName == "" {
		return kind
	}
	return kind + "-" + deploymentName
}

// Hostname computes the deployment's external DNS name on its cluster's
// ingress domain.
func Hostname(format chartext.HostnameFormat, kindName, deploymentName string, cluster *store.Cluster) (string, error) {
	if cluster.IngressDomain == nil || *cluster.IngressDomain == "" {
		return "", errors.Errorf("cluster %s has no ingress domain", cluster.Name)
	}
	switch format {
	case chartext.HostnameFormatKindAndName:
		return Namespace(kindName, deploymentName) + "." + *cluster.IngressDomain, nil
	case chartext.HostnameFormatName, "":
		if deploymentName == "" {
			return strings.ToLower(kindName) + "." + *cluster.IngressDomain, nil
		}
		return deploymentName + "." + *cluster.IngressDomain, nil
	}
	return "", errors.Errorf("unknown hostname format %q", format)
}

// ValidateName enforces the chart's cardinality: one-per-cluster charts
// require an empty name, many-per-cluster charts a non-empty one.
func ValidateName(cardinality chartext.Cardinality, name string) error {
	switch cardinality {
	case chartext.CardinalityOnePerCluster:
		if name != "" {
			return errors.New("deployments of this chart must have an empty name")
		}
	case chartext.CardinalityMany, "":
		if name == "" {
			return errors.New("deployment name must not be empty")
		}
	default:
		return errors.Errorf("unknown cardinality %q", cardinality)
	}
	return nil
}
