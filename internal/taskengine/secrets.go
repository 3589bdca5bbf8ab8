package taskengine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	applycorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/resolver"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

const (
	credsSecretName       = "platz-creds"
	tokenSecretSettingKey = "deployment_token_secret"
)

// applyDerivedSecrets writes the chart's secret outputs into the target
// namespace. Server-side apply with the secret's own name as field manager
// keeps repeated installs idempotent.
func (e *Engine) applyDerivedSecrets(ctx context.Context, t *taskTarget, secrets []resolver.RenderedSecret) error {
	for _, secret := range secrets {
		data := map[string]string{}
		for _, attr := range secret.Attrs {
			data[attr.Key] = attr.Value
		}
		cfg := applycorev1.Secret(secret.Name, t.namespace).
			WithType(corev1.SecretTypeOpaque).
			WithStringData(data)
		_, err := t.client.CoreV1().Secrets(t.namespace).Apply(ctx, cfg, metav1.ApplyOptions{
			FieldManager: secret.Name,
			Force:        true,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to apply secret %q", secret.Name)
		}
	}
	return nil
}

// applyCredsSecret writes the deployment's access credentials into its
// namespace.
func (e *Engine) applyCredsSecret(ctx context.Context, t *taskTarget) error {
	token, expiresAt, err := e.mintDeploymentToken(ctx, t.deployment.ID.String())
	if err != nil {
		return err
	}
	cfg := applycorev1.Secret(credsSecretName, t.namespace).
		WithType(corev1.SecretTypeOpaque).
		WithStringData(map[string]string{
			"access_token": token,
			"server_url":   e.cfg.OwnURL,
			"expires_at":   expiresAt.Format(time.RFC3339),
		})
	_, err = t.client.CoreV1().Secrets(t.namespace).Apply(ctx, cfg, metav1.ApplyOptions{
		FieldManager: credsSecretName,
		Force:        true,
	})
	return errors.Wrap(err, "failed to apply creds secret")
}

// mintDeploymentToken signs a short-lived access token for the deployment,
// using a process-wide secret persisted as a setting.
func (e *Engine) mintDeploymentToken(ctx context.Context, subject string) (string, time.Time, error) {
	setting, err := e.s.Settings().GetOrSetDefault(ctx, tokenSecretSettingKey, func() (string, error) {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "failed to generate token secret")
		}
		return hex.EncodeToString(buf), nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(durations.DeploymentTokenLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(setting.Value))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign deployment token")
	}
	return signed, expiresAt, nil
}

// refreshCredsLoop re-issues credentials for every enabled deployment at
// half the token lifetime.
func (e *Engine) refreshCredsLoop(ctx context.Context) {
	ticker := time.NewTicker(durations.DeploymentTokenLifetime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		e.refreshCreds(ctx)
	}
}

func (e *Engine) refreshCreds(ctx context.Context) {
	enabled, err := e.s.Deployments().AllEnabled(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list deployments for creds refresh")
		return
	}
	for i := range enabled {
		if err := e.refreshDeploymentCreds(ctx, &enabled[i]); err != nil {
			logrus.WithError(err).WithField("deployment", enabled[i].ID).Warn("Failed to refresh deployment creds")
		}
	}
}

func (e *Engine) refreshDeploymentCreds(ctx context.Context, d *store.Deployment) error {
	kind, err := e.s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return err
	}
	client, err := e.tracker.Client(d.ClusterID)
	if err != nil {
		return err
	}
	return e.applyCredsSecret(ctx, &taskTarget{
		deployment: d,
		client:     client,
		namespace:  deployments.Namespace(kind.Name, d.Name),
	})
}
