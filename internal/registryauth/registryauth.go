// Package registryauth provides short-lived credentials for OCI chart
// registries.
package registryauth

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/pkg/errors"
)

type Credentials struct {
	Username  string
	Password  string
	ExpiresAt time.Time
}

// Provider issues credentials for a registry host.
type Provider interface {
	Login(ctx context.Context) (*Credentials, error)
}

// ECR authenticates against AWS Elastic Container Registry, the registry
// kind chart repos are hosted on.
type ECR struct {
	client *ecr.Client
}

func NewECR(ctx context.Context, region string) (*ECR, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return &ECR{client: ecr.NewFromConfig(cfg)}, nil
}

func (e *ECR) Login(ctx context.Context) (*Credentials, error) {
	out, err := e.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ECR authorization token")
	}
	if len(out.AuthorizationData) == 0 || out.AuthorizationData[0].AuthorizationToken == nil {
		return nil, errors.New("ECR returned no authorization data")
	}
	auth := out.AuthorizationData[0]

	decoded, err := base64.StdEncoding.DecodeString(*auth.AuthorizationToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ECR authorization token")
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, errors.New("malformed ECR authorization token")
	}

	creds := &Credentials{Username: username, Password: password}
	if auth.ExpiresAt != nil {
		creds.ExpiresAt = *auth.ExpiresAt
	}
	return creds, nil
}
