package taskengine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/platzio/platz-engine/internal/store"
)

func TestLiveChartIDFollowsRevision(t *testing.T) {
	live := uuid.New()
	staged := uuid.New()

	// A staged upgrade changes helm_chart_id before the release runs; the
	// live release is still the revision's chart.
	d := &store.Deployment{HelmChartID: staged}
	revision := &store.Task{
		Operation: store.TaskOperation{Install: &store.InstallOp{HelmChartID: live}},
	}
	assert.Equal(t, live, liveChartID(d, revision))
}

func TestLiveChartIDBeforeFirstRevision(t *testing.T) {
	staged := uuid.New()
	d := &store.Deployment{HelmChartID: staged}
	assert.Equal(t, staged, liveChartID(d, nil))
}

func TestLiveChartIDUpgradeRevision(t *testing.T) {
	live := uuid.New()
	d := &store.Deployment{HelmChartID: uuid.New()}
	revision := &store.Task{
		Operation: store.TaskOperation{Upgrade: &store.UpgradeOp{HelmChartID: live}},
	}
	assert.Equal(t, live, liveChartID(d, revision))
}
