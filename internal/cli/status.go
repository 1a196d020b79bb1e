package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check arbitrage engine status",
	Long: `Check the current status of the arbitrage engine including model mode,
scoring metrics and the active opportunity count.`,
	RunE: runStatus,
}

var (
	jsonOutput    bool
	watchMode     bool
	watchInterval time.Duration
)

// EngineStatus mirrors the /api/v1/status response.
type EngineStatus struct {
	Status          string         `json:"status"`
	Version         string         `json:"version"`
	Uptime          time.Duration  `json:"uptime"`
	ModelMode       string         `json:"model_mode"`
	ModelLoadedAt   *time.Time     `json:"model_loaded_at,omitempty"`
	SupportedTokens []string       `json:"supported_tokens"`
	SupportedChains []string       `json:"supported_chains"`
	Metrics         *StatusMetrics `json:"metrics,omitempty"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// StatusMetrics mirrors the engine metrics snapshot in the status response.
type StatusMetrics struct {
	PredictionsTotal    int64         `json:"predictions_total"`
	ModelPredictions    int64         `json:"model_predictions"`
	FallbackPredictions int64         `json:"fallback_predictions"`
	ProfitablePredicted int64         `json:"profitable_predicted"`
	ScansTotal          int64         `json:"scans_total"`
	LastScanDuration    time.Duration `json:"last_scan_duration"`
	ActiveOpportunities int           `json:"active_opportunities"`
	AvgScoreLatency     time.Duration `json:"avg_score_latency"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")
	statusCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "watch mode (continuous updates)")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "watch interval duration")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if watchMode {
		return runWatchStatus()
	}

	status, err := getEngineStatus()
	if err != nil {
		return fmt.Errorf("failed to get engine status: %w", err)
	}

	if jsonOutput {
		return outputJSON(status)
	}

	return outputFormatted(status)
}

func runWatchStatus() error {
	fmt.Printf("Watching engine status (interval: %v)\n", watchInterval)
	fmt.Println("Press Ctrl+C to stop watching...")
	fmt.Println()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	// Show initial status
	if err := showCurrentStatus(); err != nil {
		return err
	}

	for range ticker.C {
		fmt.Print("\033[H\033[2J") // Clear screen
		if err := showCurrentStatus(); err != nil {
			return err
		}
	}
	return nil
}

func showCurrentStatus() error {
	status, err := getEngineStatus()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}

	return outputFormatted(status)
}

func getEngineStatus() (*EngineStatus, error) {
	url := fmt.Sprintf("%s/api/v1/status", apiBaseURL())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		// Engine might not be running
		return &EngineStatus{
			Status:      "offline",
			LastUpdated: time.Now(),
		}, nil
	}
	defer resp.Body.Close()

	var status EngineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
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

func outputJSON(status *EngineStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}

func outputFormatted(status *EngineStatus) error {
	fmt.Printf("Arbitrage Engine Status\n")
	fmt.Printf("=======================\n\n")

	fmt.Printf("Status:      %s\n", status.Status)
	if status.Uptime > 0 {
		fmt.Printf("Uptime:      %s\n", status.Uptime)
	}
	fmt.Printf("Version:     %s\n", status.Version)
	if status.ModelMode != "" {
		fmt.Printf("Model:       %s\n", status.ModelMode)
	}
	if status.ModelLoadedAt != nil {
		fmt.Printf("Loaded at:   %s\n", status.ModelLoadedAt.Format(time.RFC3339))
	}
	if len(status.SupportedTokens) > 0 {
		fmt.Printf("Tokens:      %s\n", strings.Join(status.SupportedTokens, ", "))
	}
	if len(status.SupportedChains) > 0 {
		fmt.Printf("Chains:      %s\n", strings.Join(status.SupportedChains, ", "))
	}

	if status.Metrics != nil {
		fmt.Printf("\nScoring Metrics\n")
		fmt.Printf("---------------\n")
		fmt.Printf("Predictions:          %d (model %d / fallback %d)\n",
			status.Metrics.PredictionsTotal, status.Metrics.ModelPredictions, status.Metrics.FallbackPredictions)
		fmt.Printf("Profitable predicted: %d\n", status.Metrics.ProfitablePredicted)
		fmt.Printf("Scans completed:      %d\n", status.Metrics.ScansTotal)
		fmt.Printf("Active opportunities: %d\n", status.Metrics.ActiveOpportunities)
		if status.Metrics.AvgScoreLatency > 0 {
			fmt.Printf("Avg score latency:    %s\n", status.Metrics.AvgScoreLatency)
		}
	}

	return nil
}
