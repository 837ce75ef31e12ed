package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobletter/internal/adapter"
	"github.com/amishk599/jobletter/internal/ai"
	"github.com/amishk599/jobletter/internal/config"
	"github.com/amishk599/jobletter/internal/lock"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/notifier"
	"github.com/amishk599/jobletter/internal/ratelimit"
	"github.com/amishk599/jobletter/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobletter",
	Short: "Daily job digests and cover letters over Telegram",
	Long:  "Jobletter searches job boards for every registered Telegram user once a day and writes cover letters on request.",
	// Running the binary without a subcommand starts the service.
	RunE:          runStart,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal in production where the environment is set directly.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBLETTER_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBLETTER_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBLETTER_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func createSource(sc config.SourceConfig, httpClient *http.Client) (model.JobSource, error) {
	boards := make([]adapter.Board, len(sc.Boards))
	for i, b := range sc.Boards {
		boards[i] = adapter.Board{Token: b.Token, Company: b.Company}
	}
	switch sc.Name {
	case "adzuna":
		return adapter.NewAdzunaAdapter(sc.AppID, sc.AppKey, sc.Country, httpClient), nil
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(boards, httpClient), nil
	case "lever":
		return adapter.NewLeverAdapter(boards, httpClient), nil
	case "ashby":
		return adapter.NewAshbyAdapter(boards, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported source %q", sc.Name)
	}
}

// buildSources creates every enabled source in config order. Each call to a
// source is spaced by the rate limiter and retried per the source policy.
func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) ([]model.JobSource, error) {
	limiter := ratelimit.NewSourceRateLimiter(cfg.SourcePolicy.MinDelay)
	policy := retry.Policy{MaxRetries: cfg.SourcePolicy.Retries, BaseDelay: cfg.SourcePolicy.RetryDelay}

	var sources []model.JobSource
	for _, sc := range cfg.EnabledSources() {
		src, err := createSource(sc, httpClient)
		if err != nil {
			return nil, err
		}
		src = ratelimit.NewRateLimitedSource(src, limiter)
		src = retry.NewRetrySource(src, policy, logger)
		sources = append(sources, src)
		logger.Info("registered source", "name", sc.Name, "boards", len(sc.Boards))
	}
	return sources, nil
}

func buildLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewMemory(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Lock.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis locks", "ttl", cfg.Lock.TTL.String())
	return lock.NewRedis(client, "jobletter:lock:", cfg.Lock.TTL, logger), func() { client.Close() }, nil
}

func buildWriter(cfg *config.Config, logger *slog.Logger) *ai.LetterWriter {
	var provider ai.LLMProvider = ai.NewDisabledProvider()
	if cfg.AI.Enabled {
		client := &http.Client{Timeout: cfg.AI.Timeout + 10*time.Second}
		provider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Temperature, client)
		logger.Info("letter generation enabled", "model", cfg.AI.Model)
	} else {
		logger.Warn("letter generation disabled, letters will fail until ai.enabled is set")
	}
	return ai.NewLetterWriter(provider, ai.CoverLetterTemplate, cfg.AI.Language, cfg.AI.Timeout, logger)
}
