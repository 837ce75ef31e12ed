package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobletter/internal/adapter"
	"github.com/amishk599/jobletter/internal/generate"
	"github.com/amishk599/jobletter/internal/httpapi"
	"github.com/amishk599/jobletter/internal/retry"
	"github.com/amishk599/jobletter/internal/telegram"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot and the digest scheduler",
	Long:  "Start the Telegram bot, the daily digest scheduler and the admin API; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"tick", cfg.Scheduler.TickInterval.String(),
		"sources", len(cfg.EnabledSources()),
		"digest_size", cfg.Digest.Size,
		"max_age", cfg.Digest.MaxAge.String(),
		"lock", cfg.Lock.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	letters := generate.New(
		a.store,
		buildWriter(cfg, logger),
		adapter.NewPageFetcher(a.httpClient),
		retry.Policy{MaxRetries: cfg.AI.Retries, BaseDelay: 2 * time.Second},
		logger,
	)
	bot := telegram.NewBot(
		a.api,
		a.store,
		a.scheduler,
		letters,
		a.aggregator.SourceNames(),
		telegram.Defaults{
			Hour:     cfg.Scheduler.DefaultHour,
			Minute:   cfg.Scheduler.DefaultMinute,
			Timezone: cfg.Scheduler.DefaultTimezone,
		},
		a.httpClient,
		logger,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.scheduler.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx, updates) })
	g.Go(func() error {
		<-gctx.Done()
		a.api.StopReceivingUpdates()
		return nil
	})
	if cfg.Admin.Addr != "" {
		srv := httpapi.NewServer(cfg.Admin.Addr, a.store, a.scheduler, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		a.Close()
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
