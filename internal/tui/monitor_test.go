package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

func TestTUIModel(t *testing.T) {
	config := Config{
		RefreshRate: 1000,
		CompactMode: false,
		Debug:       true,
	}

	t.Run("initial model creation", func(t *testing.T) {
		model := initialModel(config)

		assert.Equal(t, config, model.config)
		assert.True(t, model.loading)
		assert.Nil(t, model.status)
		assert.Nil(t, model.error)
	})

	t.Run("init command", func(t *testing.T) {
		model := initialModel(config)
		cmd := model.Init()

		assert.NotNil(t, cmd)
	})
}

func TestTUIUpdate(t *testing.T) {
	config := Config{RefreshRate: 1000}
	model := initialModel(config)

	t.Run("window size message", func(t *testing.T) {
		msg := tea.WindowSizeMsg{Width: 100, Height: 50}
		newModel, cmd := model.Update(msg)

		updatedModel := newModel.(Model)
		assert.Equal(t, 100, updatedModel.width)
		assert.Equal(t, 50, updatedModel.height)
		assert.Nil(t, cmd)
	})

	t.Run("quit key message", func(t *testing.T) {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		_, cmd := model.Update(msg)

		assert.NotNil(t, cmd)
	})

	t.Run("refresh key message", func(t *testing.T) {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
		_, cmd := model.Update(msg)

		assert.NotNil(t, cmd)
	})

	t.Run("refresh message", func(t *testing.T) {
		status := &EngineStatus{
			Status:  "healthy",
			Version: "1.0.0",
		}
		msg := refreshMsg{
			status:        status,
			opportunities: []types.Opportunity{{Token: "ETH", Score: 0.9}},
		}

		newModel, cmd := model.Update(msg)
		updatedModel := newModel.(Model)

		assert.Equal(t, status, updatedModel.status)
		assert.Len(t, updatedModel.opportunities, 1)
		assert.False(t, updatedModel.loading)
		assert.Nil(t, updatedModel.error)
		assert.Nil(t, cmd)
	})

	t.Run("error message", func(t *testing.T) {
		testError := assert.AnError
		msg := errorMsg(testError)

		newModel, cmd := model.Update(msg)
		updatedModel := newModel.(Model)

		assert.Equal(t, testError, updatedModel.error)
		assert.False(t, updatedModel.loading)
		assert.Nil(t, cmd)
	})

	t.Run("tick message", func(t *testing.T) {
		msg := tickMsg(time.Now())
		_, cmd := model.Update(msg)

		assert.NotNil(t, cmd)
	})
}

func TestTUIView(t *testing.T) {
	config := Config{RefreshRate: 1000}
	model := initialModel(config)
	model.width = 80
	model.height = 24

	t.Run("view with no data", func(t *testing.T) {
		view := model.View()

		assert.Contains(t, view, "Loading status...")
		assert.Contains(t, view, "Cross-Chain Arbitrage Monitor")
	})

	t.Run("view with status data", func(t *testing.T) {
		model.loading = false
		model.status = &EngineStatus{
			Status:    "healthy",
			Version:   "1.0.0",
			ModelMode: types.ModelClassifierV1,
			Metrics: &Metrics{
				PredictionsTotal:    120,
				ModelPredictions:    100,
				FallbackPredictions: 20,
				ProfitablePredicted: 30,
				ScansTotal:          12,
				ActiveOpportunities: 4,
			},
		}
		model.opportunities = []types.Opportunity{
			{Token: "ETH", ChainFrom: "ethereum", ChainTo: "polygon", NetProfit: 42.5, Score: 0.91},
		}

		view := model.View()

		assert.Contains(t, view, "healthy")
		assert.Contains(t, view, "Version: 1.0.0")
		assert.Contains(t, view, "Scoring Activity")
		assert.Contains(t, view, "Profitable predicted: 30")
		assert.Contains(t, view, "Top Opportunities")
		assert.Contains(t, view, "ETH")
	})

	t.Run("compact mode hides opportunities", func(t *testing.T) {
		compact := initialModel(Config{RefreshRate: 1000, CompactMode: true})
		compact.width = 80
		compact.loading = false
		compact.status = &EngineStatus{Status: "healthy", Version: "1.0.0"}
		compact.opportunities = []types.Opportunity{{Token: "ETH"}}

		view := compact.View()
		assert.NotContains(t, view, "Top Opportunities")
	})

	t.Run("view with error", func(t *testing.T) {
		model.loading = false
		model.error = assert.AnError
		model.status = nil

		view := model.View()

		assert.Contains(t, view, "Error:")
		assert.Contains(t, view, assert.AnError.Error())
	})
}

func TestGetEngineStatus(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Run("offline engine", func(t *testing.T) {
		viper.Set("server.host", "127.0.0.1")
		viper.Set("server.port", 1)

		status, err := getEngineStatus()
		require.NoError(t, err)
		assert.Equal(t, "offline", status.Status)
		assert.Equal(t, "unknown", status.Version)
	})

	t.Run("running engine", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status := EngineStatus{
				Status:    "healthy",
				Version:   "1.0.0",
				ModelMode: types.ModelFallbackHeuristic,
				Metrics: &Metrics{
					PredictionsTotal:    50,
					ProfitablePredicted: 15,
				},
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(status)
		}))
		defer server.Close()

		pointViperAt(t, server.URL)

		status, err := getEngineStatus()
		require.NoError(t, err)
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "1.0.0", status.Version)
		require.NotNil(t, status.Metrics)
		assert.Equal(t, int64(50), status.Metrics.PredictionsTotal)
	})

	t.Run("server error reports offline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		pointViperAt(t, server.URL)

		status, err := getEngineStatus()
		require.NoError(t, err)
		assert.Equal(t, "offline", status.Status)
	})
}

func TestGetTopOpportunities(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"opportunities": []types.Opportunity{
				{Token: "ETH", ChainFrom: "ethereum", ChainTo: "polygon", Score: 0.9},
			},
			"total": 1,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	pointViperAt(t, server.URL)

	opps, err := getTopOpportunities()
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "ETH", opps[0].Token)
}

// pointViperAt sets server.host and server.port from an httptest URL.
func pointViperAt(t *testing.T, serverURL string) {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	viper.Set("server.host", u.Hostname())
	viper.Set("server.port", port)
}
