package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobletter/internal/scheduler"
	"github.com/amishk599/jobletter/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	Long:  "Reads the store and prints every user with their preferences and today's schedule state.",
	RunE:  runUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)
}

var headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cell = lipgloss.NewStyle().Padding(0, 1)

func runUsers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	ctx := context.Background()
	users, err := sqlStore.ListUsers(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("User", "Title", "Location", "Time", "Zone", "Alert", "State", "Last digest").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return cell
		})

	ready := 0
	for _, u := range users {
		st, err := sqlStore.GetScheduleState(ctx, u.UserID)
		if err != nil {
			return err
		}
		alert := "off"
		if u.AlertEnabled {
			alert = "on"
		}
		if u.Configured() {
			ready++
		}
		t.Row(
			fmt.Sprint(u.UserID),
			dash(u.Prefs.Title),
			dash(strings.TrimSpace(u.Prefs.Location)),
			fmt.Sprintf("%02d:%02d", u.Prefs.Hour, u.Prefs.Minute),
			dash(u.Prefs.Timezone),
			alert,
			scheduler.Evaluate(u, st, now).String(),
			dash(st.LastFiredDate),
		)
	}

	fmt.Println(t.Render())
	fmt.Printf("\nTotal: %d users (%d with resume and sample letter)\n", len(users), ready)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
