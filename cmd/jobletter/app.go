package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amishk599/jobletter/internal/aggregator"
	"github.com/amishk599/jobletter/internal/config"
	"github.com/amishk599/jobletter/internal/dedup"
	"github.com/amishk599/jobletter/internal/digest"
	"github.com/amishk599/jobletter/internal/poller"
	"github.com/amishk599/jobletter/internal/scheduler"
	"github.com/amishk599/jobletter/internal/store"
	"github.com/amishk599/jobletter/internal/telegram"
)

// app holds the components shared by the commands that deliver digests.
type app struct {
	cfg        *config.Config
	httpClient *http.Client
	store      *store.SQLiteStore
	aggregator *aggregator.Aggregator
	dedup      *dedup.Store
	api        *tgbotapi.BotAPI
	scheduler  *scheduler.Scheduler
	closers    []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SourcePolicy.Timeout + 5*time.Second},
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = sqlStore
	a.closers = append(a.closers, func() { sqlStore.Close() })

	sources, err := buildSources(cfg, a.httpClient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.aggregator = aggregator.New(sources, cfg.SourcePolicy.Timeout, logger)
	a.dedup = dedup.New(sqlStore, a.aggregator.SourceNames(), cfg.Digest.Size, logger)

	api, err := telegram.NewAPI(cfg.Telegram.Token)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	a.api = api
	logger.Info("authorized on telegram", "bot", api.Self.UserName)

	locker, release, err := buildLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("lock backend: %w", err)
	}
	a.closers = append(a.closers, release)

	transport := telegram.NewTransport(api, logger)
	dispatcher := digest.NewDispatcher(sqlStore, a.dedup, transport, logger)
	n := setupNotifier(cfg, a.httpClient, logger)
	userPoller := poller.NewUserPoller(a.aggregator, a.dedup, dispatcher, n, cfg.Digest.MaxResults, cfg.Digest.MaxAge, logger)

	a.scheduler = scheduler.NewScheduler(
		sqlStore,
		userPoller,
		locker,
		cfg.Scheduler.TickInterval,
		cfg.Scheduler.MaxConcurrent,
		cfg.Scheduler.CycleTimeout,
		logger,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
