package main

import (
	"os"

	"bidvault/internal/config"
	"bidvault/utils"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the bidvault binary
var rootCmd = &cobra.Command{
	Use:   "bidvault",
	Short: "Auction bid acceptance backend",
	Long: `bidvault accepts bids on timed auctions, closes auctions when they end
and delivers outbid, won and ended notifications.

Available commands:
  serve          - Run the HTTP API, the auction closer and the event pipeline
  migrate        - Create or update the database schema
  close-expired  - Close every auction whose end time has passed, then exit
  token          - Issue a bearer token for a user id`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $BIDVAULT_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(closeExpiredCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads the configuration and applies the log level
func loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.AppConfig{}, err
	}
	utils.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		utils.Error("bidvault failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
