package taskengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/deployments"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

// statusProber polls the status endpoint of charts that declare one and
// mirrors the response onto the deployment row.
type statusProber struct {
	e          *Engine
	lastProbed map[uuid.UUID]time.Time
}

func (e *Engine) runStatusProbes(ctx context.Context) {
	prober := &statusProber{e: e, lastProbed: map[uuid.UUID]time.Time{}}
	ticker := time.NewTicker(durations.TaskPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		prober.probeAll(ctx)
	}
}

func (p *statusProber) probeAll(ctx context.Context) {
	enabled, err := p.e.s.Deployments().AllEnabled(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list deployments for status probes")
		return
	}
	for i := range enabled {
		d := &enabled[i]
		if d.Status != store.DeploymentStatusRunning {
			continue
		}
		if err := p.probe(ctx, d); err != nil {
			logrus.WithError(err).WithField("deployment", d.ID).Debug("Status probe failed")
		}
	}
}

func (p *statusProber) probe(ctx context.Context, d *store.Deployment) error {
	var revision *store.Task
	if d.RevisionID != nil {
		var err error
		revision, err = p.e.s.Tasks().Get(ctx, *d.RevisionID)
		if err != nil {
			return err
		}
	}
	chart, err := p.e.s.Charts().Get(ctx, liveChartID(d, revision))
	if err != nil {
		return err
	}
	features, err := chartext.StoredFeatures(chart.Features)
	if err != nil || features == nil || features.Status == nil {
		return err
	}

	interval := time.Duration(features.Status.RefreshIntervalSecs) * time.Second
	if interval <= 0 {
		interval = durations.TaskPollInterval
	}
	if time.Since(p.lastProbed[d.ID]) < interval {
		return nil
	}
	p.lastProbed[d.ID] = time.Now()

	cluster, err := p.e.s.Clusters().Get(ctx, d.ClusterID)
	if err != nil {
		return err
	}
	kind, err := p.e.s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return err
	}
	host, err := deployments.Hostname(features.Ingress.EffectiveHostnameFormat(), kind.Name, d.Name, cluster)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("https://%s/%s", host, strings.TrimPrefix(features.Status.Path, "/"))

	probeCtx, cancel := context.WithTimeout(ctx, durations.StatusProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return p.recordError(ctx, d, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.recordError(ctx, d, fmt.Sprintf("status endpoint returned %d", resp.StatusCode))
	}
	if !json.Valid(body) {
		return p.recordError(ctx, d, "status endpoint returned invalid JSON")
	}
	return p.e.s.Deployments().SetReportedStatus(ctx, d.ID, body)
}

// liveChartID picks the chart actually released on the cluster. A staged
// helm_chart_id applies only before the first revision lands; after that the
// revision task carries the live chart.
func liveChartID(d *store.Deployment, revision *store.Task) uuid.UUID {
	if revision != nil {
		if id := revision.Operation.HelmChartID(); id != nil {
			return *id
		}
	}
	return d.HelmChartID
}

func (p *statusProber) recordError(ctx context.Context, d *store.Deployment, message string) error {
	reported, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	return p.e.s.Deployments().SetReportedStatus(ctx, d.ID, reported)
}
