package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLICommands(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	tests := []struct {
		name           string
		args           []string
		expectedOutput string
	}{
		{
			name:           "help command",
			args:           []string{"--help"},
			expectedOutput: "scores cross-chain arbitrage opportunities",
		},
		{
			name:           "serve help",
			args:           []string{"serve", "--help"},
			expectedOutput: "Start the arbitrage engine",
		},
		{
			name:           "stop help",
			args:           []string{"stop", "--help"},
			expectedOutput: "Stop a running arbitrage engine",
		},
		{
			name:           "status help",
			args:           []string{"status", "--help"},
			expectedOutput: "Check the current status",
		},
		{
			name:           "train help",
			args:           []string{"train", "--help"},
			expectedOutput: "Train the logistic regression classifier",
		},
		{
			name:           "scan help",
			args:           []string{"scan", "--help"},
			expectedOutput: "sweep the market now",
		},
		{
			name:           "monitor help",
			args:           []string{"monitor", "--help"},
			expectedOutput: "terminal-based UI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(tt.args...)
			assert.NoError(t, err)
			assert.Contains(t, output, tt.expectedOutput)
		})
	}
}

func TestStatusCommand(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	// No server running on port 1
	t.Run("offline status", func(t *testing.T) {
		viper.Set("server.host", "127.0.0.1")
		viper.Set("server.port", 1)

		status, err := getEngineStatus()
		require.NoError(t, err)
		assert.Equal(t, "offline", status.Status)
	})

	t.Run("online status", func(t *testing.T) {
		server := createMockAPIServer(t)
		defer server.Close()
		setupTestServerConfig(t, server.URL)

		status, err := getEngineStatus()
		require.NoError(t, err)
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "classifier-v1", status.ModelMode)
		require.NotNil(t, status.Metrics)
		assert.Equal(t, int64(150), status.Metrics.PredictionsTotal)
	})
}

func TestScanCommand(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	server := createMockAPIServer(t)
	defer server.Close()
	setupTestServerConfig(t, server.URL)

	_, err := executeCommand("scan")
	require.NoError(t, err)
}

func TestStopCommand(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	t.Run("stop non-existent process", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "test-arb-engine.pid")
		// Above the kernel's pid_max ceiling, so no live process can hold it.
		err := os.WriteFile(pidFile, []byte("2147483647"), 0644)
		require.NoError(t, err)

		_, err = executeCommand("stop", "--pid-file", pidFile)
		// Should fail to signal the non-existent process
		assert.Error(t, err)
	})

	t.Run("stop with invalid PID file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid-pid.pid")
		err := os.WriteFile(pidFile, []byte("invalid"), 0644)
		require.NoError(t, err)

		_, err = executeCommand("stop", "--pid-file", pidFile)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid PID")
	})
}

func TestTrainCommandWithoutDatabase(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	// Without --synthetic and without a database the command must refuse.
	viper.Set("database.postgres_url", "")

	tmp := t.TempDir()
	viper.Set("model.model_path", filepath.Join(tmp, "model.json"))
	viper.Set("model.schema_path", filepath.Join(tmp, "features.txt"))

	useSynthetic = false
	_, err := executeCommand("train")
	assert.Error(t, err)
}

// Helper functions

func setupTestEnvironment(t *testing.T) {
	viper.Reset()

	viper.Set("server.host", "localhost")
	viper.Set("server.port", 8080)
	viper.Set("debug", false)
}

func cleanupTestEnvironment(t *testing.T) {
	viper.Reset()
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)

	// Create a new root command for testing
	testRootCmd := &cobra.Command{
		Use:  "arb-engine",
		Long: rootCmd.Long,
	}

	// Add all subcommands
	testRootCmd.AddCommand(serveCmd)
	testRootCmd.AddCommand(stopCmd)
	testRootCmd.AddCommand(statusCmd)
	testRootCmd.AddCommand(scanCmd)
	testRootCmd.AddCommand(trainCmd)
	testRootCmd.AddCommand(monitorCmd)

	// The subcommands are package-level singletons, so a --help run leaves
	// the help flag set and every later invocation would print usage instead
	// of executing. Clear it before each run.
	for _, c := range testRootCmd.Commands() {
		if f := c.Flags().Lookup("help"); f != nil {
			_ = f.Value.Set("false")
			f.Changed = false
		}
	}

	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)

	err := testRootCmd.Execute()
	return buf.String(), err
}

func createMockAPIServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":     "healthy",
			"version":    "1.0.0",
			"model_mode": "classifier-v1",
			"metrics": map[string]interface{}{
				"predictions_total":    150,
				"model_predictions":    120,
				"fallback_predictions": 30,
				"profitable_predicted": 45,
				"scans_total":          10,
				"active_opportunities": 3,
			},
			"last_updated": time.Now(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			t.Errorf("Failed to encode status: %v", err)
		}
	})

	mux.HandleFunc("/api/v1/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"opportunitiesFound":   2,
			"opportunitiesUpdated": 1,
			"opportunitiesExpired": 0,
			"duration":             "120ms",
			"timestamp":            time.Now().Format(time.RFC3339),
		})
	})

	return httptest.NewServer(mux)
}

func setupTestServerConfig(t *testing.T, serverURL string) {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	viper.Set("server.host", u.Hostname())
	viper.Set("server.port", port)
}
