package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// APIServer defines the interface for the REST API server
type APIServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	GetRouter() http.Handler
}

// WebSocketServer defines the interface for real-time opportunity streaming
type WebSocketServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	BroadcastOpportunity(opp *types.Opportunity) error
	BroadcastAlert(alert *Alert) error
	BroadcastMetrics(metrics *EngineMetrics) error
	GetConnectedClients() int
}

// RateLimiter defines the interface for API rate limiting
type RateLimiter interface {
	Allow(clientID string) bool
	GetLimits(clientID string) *RateLimitInfo
	SetCustomLimit(clientID string, limit *RateLimit) error
}

// PredictRequest is the wire shape of a single scoring request.
type PredictRequest struct {
	Token            string   `json:"token"`
	Chain            string   `json:"chain"`
	ChainTo          string   `json:"chainTo,omitempty"`
	Price            float64  `json:"price"`
	Gas              float64  `json:"gas"`
	GrossProfit      *float64 `json:"grossProfit,omitempty"`
	NetProfit        *float64 `json:"netProfit,omitempty"`
	ROI              *float64 `json:"roi,omitempty"`
	TradeVolume      *float64 `json:"tradeVolume,omitempty"`
	PriceDiff        *float64 `json:"priceDiff,omitempty"`
	PriceDiffPercent *float64 `json:"priceDiffPercent,omitempty"`
	PricePerToken    *float64 `json:"pricePerToken,omitempty"`
}

// Observation converts the request into the engine's input type.
func (r *PredictRequest) Observation() types.Observation {
	return types.Observation{
		Token:            r.Token,
		Chain:            r.Chain,
		ChainTo:          r.ChainTo,
		Price:            r.Price,
		Gas:              r.Gas,
		GrossProfit:      r.GrossProfit,
		NetProfit:        r.NetProfit,
		ROI:              r.ROI,
		TradeVolume:      r.TradeVolume,
		PriceDiff:        r.PriceDiff,
		PriceDiffPercent: r.PriceDiffPercent,
		PricePerToken:    r.PricePerToken,
	}
}

// ArbitrageRequest scores one explicit two-chain price pair.
type ArbitrageRequest struct {
	Token       string  `json:"token"`
	ChainFrom   string  `json:"chainFrom"`
	ChainTo     string  `json:"chainTo"`
	PriceFrom   float64 `json:"priceFrom"`
	PriceTo     float64 `json:"priceTo"`
	GasCost     float64 `json:"gasCost"`
	TradeVolume float64 `json:"tradeVolume,omitempty"`
}

// ArbitrageResponse reports the derived economics alongside the decision.
type ArbitrageResponse struct {
	Token            string                `json:"token"`
	ChainFrom        string                `json:"chainFrom"`
	ChainTo          string                `json:"chainTo"`
	PriceDiff        float64               `json:"priceDiff"`
	PriceDiffPercent float64               `json:"priceDiffPercent"`
	GrossProfit      float64               `json:"grossProfit"`
	NetProfit        float64               `json:"netProfit"`
	Profitable       bool                  `json:"profitable"`
	ROI              float64               `json:"roi"`
	Score            float64               `json:"score"`
	Metadata         *types.ResultMetadata `json:"metadata,omitempty"`
	Warning          string                `json:"warning,omitempty"`
}

// StatusResponse represents the overall engine status
type StatusResponse struct {
	Status          string         `json:"status"`
	Version         string         `json:"version"`
	Uptime          time.Duration  `json:"uptime"`
	ModelMode       string         `json:"model_mode"`
	ModelLoadedAt   *time.Time     `json:"model_loaded_at,omitempty"`
	SupportedTokens []string       `json:"supported_tokens"`
	SupportedChains []string       `json:"supported_chains"`
	Metrics         *EngineMetrics `json:"metrics"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// OpportunityListResponse represents the API response for opportunity queries
type OpportunityListResponse struct {
	Opportunities []types.Opportunity `json:"opportunities"`
	Total         int                 `json:"total"`
	Limit         int                 `json:"limit"`
	Offset        int                 `json:"offset"`
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// RateLimitInfo contains current rate limit status
type RateLimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetTime  time.Time     `json:"reset_time"`
	WindowSize time.Duration `json:"window_size"`
}

// RateLimit defines rate limiting configuration
type RateLimit struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	WindowSize        time.Duration `json:"window_size"`
}

type MessageType string

const (
	MessageTypeOpportunity MessageType = "opportunity"
	MessageTypeMetrics     MessageType = "metrics"
	MessageTypeStatus      MessageType = "status"
	MessageTypeAlert       MessageType = "alert"
)
