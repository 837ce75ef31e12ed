package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobletter/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes operator alerts to the given logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each alert via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert with one attribute per failed source.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, a model.Alert) error {
	args := []any{"user", a.UserID}
	if a.Err != nil {
		args = append(args, "error", a.Err)
	}
	for _, f := range a.Failures {
		args = append(args, "source."+f.Source, f.Reason)
	}
	n.logger.Warn(a.Message, args...)
	return nil
}
