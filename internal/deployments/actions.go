package deployments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

// TargetURL builds the URL of an action target on the deployment's ingress.
func TargetURL(target *chartext.ActionTarget, format chartext.HostnameFormat, kindName string, d *store.Deployment, cluster *store.Cluster) (string, error) {
	host, err := Hostname(format, kindName, d.Name, cluster)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s/%s", host, strings.TrimPrefix(target.Path, "/")), nil
}

// InvokeTarget issues an action's HTTP request and returns the response
// body. Non-2xx responses are errors carrying the body as the message.
func InvokeTarget(ctx context.Context, client *retryablehttp.Client, target *chartext.ActionTarget, url string, body json.RawMessage) (json.RawMessage, error) {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, string(target.Method), url, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build action request")
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "action request to %s failed", url)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read action response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("action returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
