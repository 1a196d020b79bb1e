package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arbscope/cross-chain-arb-engine/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arbitrage engine",
	Long: `Start the arbitrage engine: the REST API, the WebSocket stream and the
periodic opportunity scanner. The engine runs continuously until stopped.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "", "bind address for API server (overrides config)")
	serveCmd.Flags().Int("port", 0, "port for API server (overrides config)")
	serveCmd.Flags().Bool("no-scanner", false, "disable the periodic market scanner")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if noScanner, _ := cmd.Flags().GetBool("no-scanner"); noScanner {
		viper.Set("scanner.enabled", false)
	}

	fmt.Println("Starting arbitrage engine...")

	// fx blocks until a termination signal arrives.
	app.New().Run()
	return nil
}
