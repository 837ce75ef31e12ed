package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobletter/internal/notifier"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Operator alert subcommands",
}

var alertsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test alert",
	Long:  "Sends a test alert using the configured notifier.",
	RunE:  runAlertsTest,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsTestCmd)
}

func runAlertsTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	n := setupNotifier(cfg, httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := notifier.SendTestAlert(ctx, n); err != nil {
		logger.Error("test alert failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test alert sent successfully")
	return nil
}
