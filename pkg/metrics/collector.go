// Package metrics tracks scoring, scanning and fetch activity, exporting it
// both as a snapshot for the status endpoint and as Prometheus series.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// Collector implements the MetricsCollector interface
type Collector struct {
	mu sync.RWMutex

	predictionsTotal    int64
	modelPredictions    int64
	fallbackPredictions int64
	profitablePredicted int64
	scansTotal          int64
	lastScanDuration    time.Duration
	activeOpportunities int
	fetchErrors         int64

	latencySum   time.Duration
	latencyCount int64

	prom *promMetrics
}

type promMetrics struct {
	predictions   *prometheus.CounterVec
	profitable    prometheus.Counter
	scoreLatency  prometheus.Histogram
	scans         prometheus.Counter
	scanDuration  prometheus.Histogram
	opportunities prometheus.Gauge
	fetchErrors   *prometheus.CounterVec
}

// NewCollector creates a collector registered on the default Prometheus
// registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on a custom
// registry, used by tests to avoid duplicate registration.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	prom := &promMetrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_predictions_total",
			Help: "Total number of scoring requests by model mode",
		}, []string{"mode"}),
		profitable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_profitable_predictions_total",
			Help: "Total number of predictions classified profitable",
		}),
		scoreLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_score_duration_seconds",
			Help:    "Scoring latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_scans_total",
			Help: "Total number of completed market scans",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_scan_duration_seconds",
			Help:    "Market scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		opportunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_active_opportunities",
			Help: "Number of currently active opportunities",
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_fetch_errors_total",
			Help: "Total number of market data fetch failures by source",
		}, []string{"source"}),
	}
	registry.MustRegister(
		prom.predictions,
		prom.profitable,
		prom.scoreLatency,
		prom.scans,
		prom.scanDuration,
		prom.opportunities,
		prom.fetchErrors,
	)

	return &Collector{prom: prom}
}

// RecordPrediction records one scoring request.
func (c *Collector) RecordPrediction(mode string, profitable bool, latency time.Duration) {
	c.mu.Lock()
	c.predictionsTotal++
	if mode == types.ModelClassifierV1 {
		c.modelPredictions++
	} else {
		c.fallbackPredictions++
	}
	if profitable {
		c.profitablePredicted++
	}
	c.latencySum += latency
	c.latencyCount++
	c.mu.Unlock()

	c.prom.predictions.WithLabelValues(mode).Inc()
	if profitable {
		c.prom.profitable.Inc()
	}
	c.prom.scoreLatency.Observe(latency.Seconds())
}

// RecordScan records one completed market scan.
func (c *Collector) RecordScan(duration time.Duration, evaluated, active int) {
	c.mu.Lock()
	c.scansTotal++
	c.lastScanDuration = duration
	c.activeOpportunities = active
	c.mu.Unlock()

	c.prom.scans.Inc()
	c.prom.scanDuration.Observe(duration.Seconds())
	c.prom.opportunities.Set(float64(active))
}

// RecordFetchError records a market data fetch failure.
func (c *Collector) RecordFetchError(source string) {
	c.mu.Lock()
	c.fetchErrors++
	c.mu.Unlock()

	c.prom.fetchErrors.WithLabelValues(source).Inc()
}

// Snapshot returns a point-in-time copy of the collected metrics.
func (c *Collector) Snapshot() *interfaces.EngineMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var avg time.Duration
	if c.latencyCount > 0 {
		avg = c.latencySum / time.Duration(c.latencyCount)
	}

	return &interfaces.EngineMetrics{
		PredictionsTotal:    c.predictionsTotal,
		ModelPredictions:    c.modelPredictions,
		FallbackPredictions: c.fallbackPredictions,
		ProfitablePredicted: c.profitablePredicted,
		ScansTotal:          c.scansTotal,
		LastScanDuration:    c.lastScanDuration,
		ActiveOpportunities: c.activeOpportunities,
		FetchErrors:         c.fetchErrors,
		AvgScoreLatency:     avg,
	}
}
