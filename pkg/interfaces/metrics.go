package interfaces

import "time"

// EngineMetrics is a point-in-time snapshot of scoring activity, served by
// the status endpoint and the terminal monitor.
type EngineMetrics struct {
	PredictionsTotal    int64         `json:"predictions_total"`
	ModelPredictions    int64         `json:"model_predictions"`
	FallbackPredictions int64         `json:"fallback_predictions"`
	ProfitablePredicted int64         `json:"profitable_predicted"`
	ScansTotal          int64         `json:"scans_total"`
	LastScanDuration    time.Duration `json:"last_scan_duration"`
	ActiveOpportunities int           `json:"active_opportunities"`
	FetchErrors         int64         `json:"fetch_errors"`
	AvgScoreLatency     time.Duration `json:"avg_score_latency"`
}

// MetricsCollector records scoring, scanning and fetching activity. All
// methods must be safe for concurrent use.
type MetricsCollector interface {
	RecordPrediction(mode string, profitable bool, latency time.Duration)
	RecordScan(duration time.Duration, evaluated, active int)
	RecordFetchError(source string)
	Snapshot() *EngineMetrics
}

// Alert is an operational notification pushed to the webhook sink and the
// WebSocket stream when a high-score opportunity appears.
type Alert struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Token     string    `json:"token,omitempty"`
	ChainFrom string    `json:"chain_from,omitempty"`
	ChainTo   string    `json:"chain_to,omitempty"`
	Score     float64   `json:"score,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
