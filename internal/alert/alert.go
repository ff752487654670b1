package alert

import (
	"context"
	"log/slog"
)

// Alert is a human-readable operator message.
type Alert struct {
	Subject string
	Body    string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// LogNotifier writes alerts to a logger. Used when email alerts are disabled.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("alert", "subject", a.Subject, "body", a.Body)
	return nil
}
