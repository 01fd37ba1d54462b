package reminder

import (
	"context"
	"log/slog"
)

// Notifier delivers reminders to the user.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Compile-time interface checks.
var (
	_ Notifier = NoopNotifier{}
	_ Notifier = (*LogNotifier)(nil)
)

// NoopNotifier drops every reminder. Used when reminders are disabled.
type NoopNotifier struct{}

// Notify does nothing.
func (NoopNotifier) Notify(context.Context, Reminder) error { return nil }

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that logs at INFO.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the reminder.
func (n *LogNotifier) Notify(ctx context.Context, r Reminder) error {
	n.log.InfoContext(ctx, "expiry reminder", "title", r.Title, "body", r.Body, "kind", r.Kind)
	return nil
}
