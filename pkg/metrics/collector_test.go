package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

func newTestCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.NewRegistry())
}

func TestCollector_RecordPrediction(t *testing.T) {
	c := newTestCollector()

	c.RecordPrediction(types.ModelClassifierV1, true, 2*time.Millisecond)
	c.RecordPrediction(types.ModelFallbackHeuristic, false, 4*time.Millisecond)
	c.RecordPrediction(types.ModelClassifierV1, true, 6*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.PredictionsTotal)
	assert.Equal(t, int64(2), snap.ModelPredictions)
	assert.Equal(t, int64(1), snap.FallbackPredictions)
	assert.Equal(t, int64(2), snap.ProfitablePredicted)
	assert.Equal(t, 4*time.Millisecond, snap.AvgScoreLatency)
}

func TestCollector_RecordScan(t *testing.T) {
	c := newTestCollector()

	c.RecordScan(120*time.Millisecond, 15, 4)
	c.RecordScan(90*time.Millisecond, 15, 2)

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.ScansTotal)
	assert.Equal(t, 90*time.Millisecond, snap.LastScanDuration)
	assert.Equal(t, 2, snap.ActiveOpportunities)
}

func TestCollector_RecordFetchError(t *testing.T) {
	c := newTestCollector()

	c.RecordFetchError("coingecko")
	c.RecordFetchError("gastracker")

	assert.Equal(t, int64(2), c.Snapshot().FetchErrors)
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := newTestCollector()

	snap := c.Snapshot()
	assert.Equal(t, int64(0), snap.PredictionsTotal)
	assert.Equal(t, time.Duration(0), snap.AvgScoreLatency)
}
