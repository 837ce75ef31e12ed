package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobletter/internal/aggregator"
	"github.com/amishk599/jobletter/internal/audit"
	"github.com/amishk599/jobletter/internal/config"
	"github.com/amishk599/jobletter/internal/dedup"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/store"
)

var (
	checkUser  int64
	checkPlain bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Search once for a user and show what the next digest would hold",
	Long: "Dry run: searches every enabled source for one user and marks each posting as digest, " +
		"overflow or already seen. Nothing is sent and nothing is written to the store.",
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int64VarP(&checkUser, "user", "u", 0, "telegram user id (default: pick interactively)")
	checkCmd.Flags().BoolVar(&checkPlain, "plain", false, "print a table instead of opening the interactive view")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !checkPlain {
		// Interactive mode: log output before the alt screen corrupts the display.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: cfg.SourcePolicy.Timeout}
	sources, err := buildSources(cfg, httpClient, logger)
	if err != nil {
		return err
	}
	agg := aggregator.New(sources, cfg.SourcePolicy.Timeout, logger)
	novelty := dedup.New(sqlStore, agg.SourceNames(), cfg.Digest.Size, logger)

	search := func(u model.UserProfile) func(context.Context) (audit.Report, error) {
		return func(ctx context.Context) (audit.Report, error) {
			return dryRun(ctx, cfg, agg, novelty, u)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if checkUser != 0 {
		u, err := sqlStore.GetUser(ctx, checkUser)
		if err != nil {
			return fmt.Errorf("user %d: %w", checkUser, err)
		}
		if !u.HasPreferences() {
			return fmt.Errorf("user %d: %w", checkUser, model.ErrNoPreferences)
		}
		if checkPlain {
			report, err := search(u)(ctx)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		}
		report, err := audit.RunLoader("Searching for user "+fmt.Sprint(u.UserID), cfg.Scheduler.CycleTimeout, search(u))
		if err != nil {
			return err
		}
		_, err = audit.RunReview(report)
		return err
	}

	if checkPlain {
		return fmt.Errorf("--plain needs --user")
	}

	users, err := withPreferences(ctx, sqlStore)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users have finished /jobsetup yet.")
		return nil
	}

	for {
		choice, err := audit.RunUserPicker(users)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		u := users[choice]

		report, err := audit.RunLoader("Searching for user "+fmt.Sprint(u.UserID), cfg.Scheduler.CycleTimeout, search(u))
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			continue
		}

		wantQuit, err := audit.RunReview(report)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}

// dryRun runs the search and novelty steps of a digest cycle without
// delivering or recording anything.
func dryRun(ctx context.Context, cfg *config.Config, agg *aggregator.Aggregator, novelty *dedup.Store, u model.UserProfile) (audit.Report, error) {
	res := agg.Search(ctx, u, u.Query(cfg.Digest.MaxResults, cfg.Digest.MaxAge))
	report := audit.Report{User: u, Fetched: res.Postings, Failures: res.Failures}
	if res.AllFailed() {
		return report, fmt.Errorf("%w: %d attempted", model.ErrAllSourcesFailed, res.Attempted)
	}
	sel, err := novelty.FilterNovel(ctx, u.UserID, res.Postings)
	if err != nil {
		return report, err
	}
	report.Digest = sel.Postings
	report.Overflow = sel.Overflow
	return report, nil
}

func withPreferences(ctx context.Context, s *store.SQLiteStore) ([]model.UserProfile, error) {
	all, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var users []model.UserProfile
	for _, u := range all {
		if u.HasPreferences() {
			users = append(users, u)
		}
	}
	return users, nil
}

func printReport(r audit.Report) {
	marks := r.Marks()
	t := table.New().Headers("", "Source", "Title", "Company", "Location")
	for _, p := range r.Fetched {
		label := "seen"
		switch marks[p.ID] {
		case audit.MarkDigest:
			label = "digest"
		case audit.MarkOverflow:
			label = "overflow"
		}
		t.Row(label, p.Source, p.Title, p.Company, p.Location)
	}
	fmt.Println(t.Render())
	for _, f := range r.Failures {
		fmt.Printf("failed: %s: %s\n", f.Source, f.Reason)
	}
	fmt.Printf("\nFetched %d, digest %d, overflow %d\n", len(r.Fetched), len(r.Digest), len(r.Overflow))
}
