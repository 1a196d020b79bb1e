package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/ranking"
	"github.com/arbscope/cross-chain-arb-engine/pkg/scanner"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
	"github.com/arbscope/cross-chain-arb-engine/pkg/validation"
)

// ModelStatus exposes the model adapter state the status endpoint reports.
type ModelStatus interface {
	Mode() string
	LoadedAt() *time.Time
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	scorer    interfaces.Scorer
	validator *validation.Validator
	builder   *features.Builder
	modelInfo ModelStatus
	opps      interfaces.OpportunityStore
	rank      *ranking.Queue
	scanner   *scanner.Scanner
	collector interfaces.MetricsCollector
	logger    zerolog.Logger
	startTime time.Time
	version   string
}

// HandlerDeps are the collaborators the handlers serve from. Opps, rank,
// scanner and collector are optional; the corresponding endpoints degrade.
type HandlerDeps struct {
	Scorer    interfaces.Scorer
	Validator *validation.Validator
	Builder   *features.Builder
	ModelInfo ModelStatus
	Opps      interfaces.OpportunityStore
	Rank      *ranking.Queue
	Scanner   *scanner.Scanner
	Collector interfaces.MetricsCollector
	Version   string
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps HandlerDeps, logger zerolog.Logger) *Handlers {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handlers{
		scorer:    deps.Scorer,
		validator: deps.Validator,
		builder:   deps.Builder,
		modelInfo: deps.ModelInfo,
		opps:      deps.Opps,
		rank:      deps.Rank,
		scanner:   deps.Scanner,
		collector: deps.Collector,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
		version:   version,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// Predict scores a single market observation.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var req interfaces.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := h.validator.ValidatePredictRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.scorer.Score(req.Observation())
	if result.Error != "" {
		writeError(w, http.StatusBadRequest, result.Error)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Arbitrage evaluates one explicit two-chain price pair: derives the gap
// economics and scores the gap the same way the scanner does.
func (h *Handlers) Arbitrage(w http.ResponseWriter, r *http.Request) {
	var req interfaces.ArbitrageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := h.validator.ValidateArbitrageRequest(&req); err != nil {
		var unsupported *types.UnsupportedChainError
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, unsupported.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	priceDiff := req.PriceTo - req.PriceFrom
	priceDiffPercent := priceDiff / req.PriceFrom * 100
	net := priceDiff - req.GasCost

	var roi float64
	if req.GasCost > 0 {
		roi = net / req.GasCost * 100
	}

	tradeVolume := req.TradeVolume
	if tradeVolume <= 0 {
		tradeVolume = features.DefaultTradeVolume
	}

	result := h.scorer.Score(types.Observation{
		Token:            req.Token,
		Chain:            req.ChainFrom,
		ChainTo:          req.ChainTo,
		Price:            priceDiff,
		Gas:              req.GasCost,
		GrossProfit:      &priceDiff,
		NetProfit:        &net,
		ROI:              &roi,
		TradeVolume:      &tradeVolume,
		PriceDiff:        &priceDiff,
		PriceDiffPercent: &priceDiffPercent,
	})
	if result.Error != "" {
		writeError(w, http.StatusBadRequest, result.Error)
		return
	}

	writeJSON(w, http.StatusOK, &interfaces.ArbitrageResponse{
		Token:            strings.ToUpper(strings.TrimSpace(req.Token)),
		ChainFrom:        strings.ToLower(strings.TrimSpace(req.ChainFrom)),
		ChainTo:          strings.ToLower(strings.TrimSpace(req.ChainTo)),
		PriceDiff:        priceDiff,
		PriceDiffPercent: priceDiffPercent,
		GrossProfit:      priceDiff,
		NetProfit:        net,
		Profitable:       net > 0,
		ROI:              roi,
		Score:            result.Score,
		Metadata:         result.Metadata,
		Warning:          result.Warning,
	})
}

// GetOpportunities lists stored opportunities with optional filtering.
func (h *Handlers) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	if h.opps == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity storage not configured")
		return
	}

	filter := parseOpportunityFilter(r)
	opps, total, err := h.opps.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("opportunity list failed")
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []types.Opportunity{}
	}

	writeJSON(w, http.StatusOK, &interfaces.OpportunityListResponse{
		Opportunities: opps,
		Total:         total,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}

// GetTopOpportunities returns the highest scored active opportunities from
// the ranking queue.
func (h *Handlers) GetTopOpportunities(w http.ResponseWriter, r *http.Request) {
	if h.rank == nil {
		writeError(w, http.StatusServiceUnavailable, "ranking not configured")
		return
	}

	n := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	top := h.rank.Top(n)
	opps := make([]types.Opportunity, 0, len(top))
	for _, opp := range top {
		opps = append(opps, *opp)
	}

	writeJSON(w, http.StatusOK, &interfaces.OpportunityListResponse{
		Opportunities: opps,
		Total:         h.rank.Size(),
		Limit:         n,
	})
}

// GetOpportunityByID returns one stored opportunity.
func (h *Handlers) GetOpportunityByID(w http.ResponseWriter, r *http.Request) {
	if h.opps == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity storage not configured")
		return
	}

	id := mux.Vars(r)["id"]
	opp, err := h.opps.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("opportunity %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

// TriggerScan runs one scan immediately instead of waiting for the next tick.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner not configured")
		return
	}

	result, err := h.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStatus reports engine, model and scanner state.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := &interfaces.StatusResponse{
		Status:      "healthy",
		Version:     h.version,
		Uptime:      time.Since(h.startTime),
		LastUpdated: time.Now().UTC(),
	}
	if h.builder != nil {
		status.SupportedTokens = h.builder.SupportedTokens()
		status.SupportedChains = h.builder.SupportedChains()
	}
	if h.modelInfo != nil {
		status.ModelMode = h.modelInfo.Mode()
		status.ModelLoadedAt = h.modelInfo.LoadedAt()
	}
	if h.collector != nil {
		status.Metrics = h.collector.Snapshot()
	}
	writeJSON(w, http.StatusOK, status)
}

// Helper functions

func parseOpportunityFilter(r *http.Request) interfaces.OpportunityFilter {
	filter := interfaces.OpportunityFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = strings.ToLower(status)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		filter.Token = strings.ToUpper(token)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if filter.Limit == 0 {
		filter.Limit = 50
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	return filter
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
