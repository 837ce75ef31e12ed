package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var triggerUser int64

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run a digest cycle for one user now",
	Long:  "Runs the same cycle as the scheduler for one user and delivers the digest over Telegram. Counts as that user's digest for the day.",
	RunE:  runTrigger,
}

func init() {
	triggerCmd.Flags().Int64VarP(&triggerUser, "user", "u", 0, "telegram user id")
	_ = triggerCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.scheduler.Trigger(ctx, triggerUser)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("trigger user %d: %w", triggerUser, err)
	}
	fmt.Printf("fetched %d, novel %d, delivered %d\n", out.Fetched, out.Novel, out.Delivered)
	for _, f := range out.Failures {
		fmt.Printf("failed: %s: %s\n", f.Source, f.Reason)
	}
	return nil
}
