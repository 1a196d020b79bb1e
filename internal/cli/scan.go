package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trigger an immediate market scan",
	Long: `Ask a running engine to sweep the market now instead of waiting for
the next scheduled scan, and report what it found.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output the scan result as JSON")
}

// ScanResult mirrors the /api/v1/scan response.
type ScanResult struct {
	Found     int      `json:"opportunitiesFound"`
	Updated   int      `json:"opportunitiesUpdated"`
	Expired   int      `json:"opportunitiesExpired"`
	Errors    []string `json:"errors,omitempty"`
	Duration  string   `json:"duration"`
	Timestamp string   `json:"timestamp"`
}

func runScan(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/scan", apiBaseURL())

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("engine is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("scan failed: %s", apiErr.Error)
		}
		return fmt.Errorf("scan failed with status: %s", resp.Status)
	}

	var result ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode scan result: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(&result)
	}

	fmt.Println("Scan complete")
	fmt.Printf("  Found:    %d\n", result.Found)
	fmt.Printf("  Updated:  %d\n", result.Updated)
	fmt.Printf("  Expired:  %d\n", result.Expired)
	fmt.Printf("  Duration: %s\n", result.Duration)
	for _, e := range result.Errors {
		fmt.Printf("  Error:    %s\n", e)
	}
	return nil
}
