package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/ranking"
	"github.com/arbscope/cross-chain-arb-engine/pkg/scoring"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
	"github.com/arbscope/cross-chain-arb-engine/pkg/validation"
)

var (
	testTokens = []string{"ETH", "USDT", "USDC", "BNB", "MATIC"}
	testChains = []string{"ethereum", "polygon", "bsc"}
)

type stubModelInfo struct {
	mode     string
	loadedAt *time.Time
}

func (s *stubModelInfo) Mode() string         { return s.mode }
func (s *stubModelInfo) LoadedAt() *time.Time { return s.loadedAt }

type fakeOppStore struct {
	rows map[string]*types.Opportunity
}

func newFakeOppStore() *fakeOppStore {
	return &fakeOppStore{rows: make(map[string]*types.Opportunity)}
}

func (f *fakeOppStore) Upsert(_ context.Context, opp *types.Opportunity) (bool, error) {
	key := ranking.Key(opp.Token, opp.ChainFrom, opp.ChainTo)
	_, exists := f.rows[key]
	f.rows[key] = opp
	return !exists, nil
}

func (f *fakeOppStore) Expire(_ context.Context, token, chainFrom, chainTo string) error {
	if opp, ok := f.rows[ranking.Key(token, chainFrom, chainTo)]; ok {
		opp.Status = types.OpportunityExpired
	}
	return nil
}

func (f *fakeOppStore) GetByID(_ context.Context, id string) (*types.Opportunity, error) {
	for _, opp := range f.rows {
		if opp.ID == id {
			return opp, nil
		}
	}
	return nil, fmt.Errorf("opportunity %s not found", id)
}

func (f *fakeOppStore) List(_ context.Context, filter interfaces.OpportunityFilter) ([]types.Opportunity, int, error) {
	var out []types.Opportunity
	for _, opp := range f.rows {
		if filter.Status != "" && opp.Status != filter.Status {
			continue
		}
		if filter.Token != "" && opp.Token != filter.Token {
			continue
		}
		out = append(out, *opp)
	}
	return out, len(out), nil
}

func newTestHandlers(opps *fakeOppStore, rank *ranking.Queue) *Handlers {
	builder := features.NewBuilder(testTokens, testChains)
	engine := scoring.NewEngine(builder, nil, nil, zerolog.Nop())
	loadedAt := time.Now().UTC()

	return NewHandlers(HandlerDeps{
		Scorer:    engine,
		Validator: validation.NewValidator(testChains),
		Builder:   builder,
		ModelInfo: &stubModelInfo{mode: types.ModelFallbackHeuristic, loadedAt: &loadedAt},
		Opps:      opps,
		Rank:      rank,
		Version:   "test",
	}, zerolog.Nop())
}

func newTestRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.Health).Methods("GET")
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", h.Predict).Methods("POST")
	api.HandleFunc("/arbitrage", h.Arbitrage).Methods("POST")
	api.HandleFunc("/opportunities", h.GetOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/top", h.GetTopOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/{id}", h.GetOpportunityByID).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "test", resp["version"])
}

func TestPredict(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "POST", "/api/v1/predict", &interfaces.PredictRequest{
		Token: "ETH",
		Chain: "ethereum",
		Price: 150,
		Gas:   20,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var result types.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Profitable)
	assert.Equal(t, 1.0, result.Score)
	assert.NotEmpty(t, result.Warning)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, types.ModelFallbackHeuristic, result.Metadata.ModelUsed)
}

func TestPredict_ValidationErrors(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "POST", "/api/v1/predict", &interfaces.PredictRequest{
		Chain: "ethereum",
		Price: 100,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest("POST", "/api/v1/predict", bytes.NewBufferString("{not json"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestArbitrage(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "POST", "/api/v1/arbitrage", &interfaces.ArbitrageRequest{
		Token:     "eth",
		ChainFrom: "Ethereum",
		ChainTo:   "polygon",
		PriceFrom: 2000,
		PriceTo:   2050,
		GasCost:   5,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp interfaces.ArbitrageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ETH", resp.Token)
	assert.Equal(t, "ethereum", resp.ChainFrom)
	assert.Equal(t, 50.0, resp.PriceDiff)
	assert.InDelta(t, 2.5, resp.PriceDiffPercent, 1e-9)
	assert.InDelta(t, 45.0, resp.NetProfit, 1e-9)
	assert.True(t, resp.Profitable)
	assert.InDelta(t, 900.0, resp.ROI, 1e-9)
	assert.InDelta(t, 0.45, resp.Score, 1e-9)
	assert.NotEmpty(t, resp.Warning)
}

func TestArbitrage_UnsupportedChain(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "POST", "/api/v1/arbitrage", &interfaces.ArbitrageRequest{
		Token:     "ETH",
		ChainFrom: "solana",
		ChainTo:   "polygon",
		PriceFrom: 2000,
		PriceTo:   2050,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "solana")
}

func seedOpportunity(t *testing.T, opps *fakeOppStore, rank *ranking.Queue, id, token string, score float64) *types.Opportunity {
	t.Helper()
	roi := 100.0
	opp := &types.Opportunity{
		ID: id, Token: token, ChainFrom: "ethereum", ChainTo: "polygon",
		PriceFrom: 2000, PriceTo: 2050, PriceDiff: 50, PriceDiffPercent: 2.5,
		GasCost: 5, NetProfit: 45, ROI: &roi, Score: score,
		Status: types.OpportunityActive, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	_, err := opps.Upsert(context.Background(), opp)
	require.NoError(t, err)
	require.NoError(t, rank.Upsert(opp))
	return opp
}

func TestGetOpportunities(t *testing.T) {
	opps := newFakeOppStore()
	rank := ranking.NewQueue()
	seedOpportunity(t, opps, rank, "a", "ETH", 0.9)
	seedOpportunity(t, opps, rank, "b", "USDT", 0.4)
	router := newTestRouter(newTestHandlers(opps, rank))

	rr := doJSON(t, router, "GET", "/api/v1/opportunities?status=active", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp interfaces.OpportunityListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Opportunities, 2)
	assert.Equal(t, 50, resp.Limit)
}

func TestGetTopOpportunities(t *testing.T) {
	opps := newFakeOppStore()
	rank := ranking.NewQueue()
	seedOpportunity(t, opps, rank, "a", "ETH", 0.4)
	seedOpportunity(t, opps, rank, "b", "USDT", 0.9)
	seedOpportunity(t, opps, rank, "c", "BNB", 0.7)
	router := newTestRouter(newTestHandlers(opps, rank))

	rr := doJSON(t, router, "GET", "/api/v1/opportunities/top?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp interfaces.OpportunityListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Opportunities, 2)
	assert.Equal(t, "USDT", resp.Opportunities[0].Token)
	assert.Equal(t, "BNB", resp.Opportunities[1].Token)
	assert.Equal(t, 3, resp.Total)
}

func TestGetOpportunityByID(t *testing.T) {
	opps := newFakeOppStore()
	rank := ranking.NewQueue()
	seedOpportunity(t, opps, rank, "known", "ETH", 0.9)
	router := newTestRouter(newTestHandlers(opps, rank))

	rr := doJSON(t, router, "GET", "/api/v1/opportunities/known", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var opp types.Opportunity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &opp))
	assert.Equal(t, "ETH", opp.Token)

	rr = doJSON(t, router, "GET", "/api/v1/opportunities/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetStatus(t *testing.T) {
	router := newTestRouter(newTestHandlers(newFakeOppStore(), ranking.NewQueue()))

	rr := doJSON(t, router, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status interfaces.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, types.ModelFallbackHeuristic, status.ModelMode)
	assert.Equal(t, testTokens, status.SupportedTokens)
	assert.Equal(t, testChains, status.SupportedChains)
	assert.NotNil(t, status.ModelLoadedAt)
}
