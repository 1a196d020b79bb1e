// Package tui implements the terminal monitor for the arbitrage engine.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// Config holds configuration for the TUI monitor
type Config struct {
	RefreshRate int
	CompactMode bool
	Debug       bool
}

// Model represents the TUI application state
type Model struct {
	config        Config
	status        *EngineStatus
	opportunities []types.Opportunity
	loading       bool
	error         error
	width         int
	height        int
	lastUpdate    time.Time
}

// EngineStatus represents the status data from the API
type EngineStatus struct {
	Status          string     `json:"status"`
	Version         string     `json:"version"`
	Uptime          int64      `json:"uptime"`
	ModelMode       string     `json:"model_mode"`
	ModelLoadedAt   *time.Time `json:"model_loaded_at,omitempty"`
	SupportedTokens []string   `json:"supported_tokens"`
	SupportedChains []string   `json:"supported_chains"`
	Metrics         *Metrics   `json:"metrics,omitempty"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// Metrics mirrors the engine metrics snapshot.
type Metrics struct {
	PredictionsTotal    int64 `json:"predictions_total"`
	ModelPredictions    int64 `json:"model_predictions"`
	FallbackPredictions int64 `json:"fallback_predictions"`
	ProfitablePredicted int64 `json:"profitable_predicted"`
	ScansTotal          int64 `json:"scans_total"`
	ActiveOpportunities int   `json:"active_opportunities"`
}

// tickMsg is sent when the refresh timer ticks
type tickMsg time.Time

// refreshMsg is sent when status and opportunities are updated
type refreshMsg struct {
	status        *EngineStatus
	opportunities []types.Opportunity
}

// errorMsg is sent when an error occurs
type errorMsg error

// StartMonitor starts the TUI monitor application
func StartMonitor(config Config) error {
	p := tea.NewProgram(initialModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func initialModel(config Config) Model {
	return Model{
		config:  config,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchState(),
		tickCmd(m.config.RefreshRate),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// Manual refresh
			return m, fetchState()
		}

	case tickMsg:
		return m, tea.Batch(
			fetchState(),
			tickCmd(m.config.RefreshRate),
		)

	case refreshMsg:
		m.status = msg.status
		m.opportunities = msg.opportunities
		m.loading = false
		m.error = nil
		m.lastUpdate = time.Now()
		return m, nil

	case errorMsg:
		m.error = msg
		m.loading = false
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	// Define styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2)

	var content string

	// Title
	title := titleStyle.Width(m.width - 2).Render("Cross-Chain Arbitrage Monitor")
	content += title + "\n\n"

	// Instructions
	instructions := "Press 'r' to refresh manually, 'q' to quit"
	content += lipgloss.NewStyle().Faint(true).Render(instructions) + "\n\n"

	// Status content
	if m.error != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
		content += errorStyle.Render(fmt.Sprintf("Error: %v", m.error)) + "\n"
	} else if m.loading {
		content += "Loading status...\n"
	} else if m.status != nil {
		content += m.renderStatus()
	}

	// Last update time
	if !m.lastUpdate.IsZero() {
		updateTime := fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))
		content += "\n" + lipgloss.NewStyle().Faint(true).Render(updateTime)
	}

	// Wrap content in border
	return contentStyle.Width(m.width - 4).Render(content)
}

func (m Model) renderStatus() string {
	var content string

	statusColor := lipgloss.Color("#FF0000")
	if m.status.Status == "healthy" {
		statusColor = lipgloss.Color("#00FF00")
	}

	statusStyle := lipgloss.NewStyle().Foreground(statusColor).Bold(true)
	content += fmt.Sprintf("Status:  %s\n", statusStyle.Render(m.status.Status))
	content += fmt.Sprintf("Version: %s\n", m.status.Version)
	if m.status.ModelMode != "" {
		modelColor := lipgloss.Color("#FFFF00")
		if m.status.ModelMode == types.ModelClassifierV1 {
			modelColor = lipgloss.Color("#00FF00")
		}
		content += fmt.Sprintf("Model:   %s\n", lipgloss.NewStyle().Foreground(modelColor).Render(m.status.ModelMode))
	}

	// Scoring metrics
	if m.status.Metrics != nil {
		content += "\nScoring Activity\n"
		content += "────────────────\n"
		content += fmt.Sprintf("Predictions:          %d (model %d / fallback %d)\n",
			m.status.Metrics.PredictionsTotal,
			m.status.Metrics.ModelPredictions,
			m.status.Metrics.FallbackPredictions)
		content += fmt.Sprintf("Profitable predicted: %d\n", m.status.Metrics.ProfitablePredicted)
		content += fmt.Sprintf("Scans completed:      %d\n", m.status.Metrics.ScansTotal)
		content += fmt.Sprintf("Active opportunities: %d\n", m.status.Metrics.ActiveOpportunities)
	}

	// Top opportunities
	if !m.config.CompactMode && len(m.opportunities) > 0 {
		content += "\nTop Opportunities\n"
		content += "─────────────────\n"
		for _, opp := range m.opportunities {
			content += fmt.Sprintf("%-6s %-9s → %-9s  net $%8.2f  score %.3f\n",
				opp.Token, opp.ChainFrom, opp.ChainTo, opp.NetProfit, opp.Score)
		}
	}

	return content
}

func fetchState() tea.Cmd {
	return func() tea.Msg {
		status, err := getEngineStatus()
		if err != nil {
			return errorMsg(err)
		}
		opps, err := getTopOpportunities()
		if err != nil {
			// Status alone is still worth showing.
			opps = nil
		}
		return refreshMsg{status: status, opportunities: opps}
	}
}

func tickCmd(refreshRate int) tea.Cmd {
	return tea.Tick(time.Duration(refreshRate)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func apiBaseURL() string {
	apiHost := viper.GetString("server.host")
	if apiHost == "" || apiHost == "0.0.0.0" {
		apiHost = "localhost"
	}
	apiPort := viper.GetInt("server.port")
	if apiPort == 0 {
		apiPort = 8080
	}
	return fmt.Sprintf("http://%s:%d", apiHost, apiPort)
}

func getJSON(url string, out interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getEngineStatus() (*EngineStatus, error) {
	var status EngineStatus
	if err := getJSON(apiBaseURL()+"/api/v1/status", &status); err != nil {
		// Engine might not be running
		return &EngineStatus{
			Status:      "offline",
			Version:     "unknown",
			LastUpdated: time.Now(),
		}, nil
	}
	return &status, nil
}

func getTopOpportunities() ([]types.Opportunity, error) {
	var resp struct {
		Opportunities []types.Opportunity `json:"opportunities"`
	}
	if err := getJSON(apiBaseURL()+"/api/v1/opportunities/top?limit=10", &resp); err != nil {
		return nil, err
	}
	return resp.Opportunities, nil
}
