// Package notify defines the notification sink the auth client reports
// user-facing events through. The UI layer supplies its own toast-backed
// implementation; the client core never imports one.
package notify

import "log/slog"

// Notifier receives transient user-facing notifications.
type Notifier interface {
	Info(title, message string)
	Success(title, message string)
	Error(title, message string)
}

// LogNotifier writes notifications to a structured logger. It is the
// default sink when the embedding application does not provide one.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier wraps the given logger as a Notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Info(title, message string) {
	n.logger.Info("notification", "title", title, "message", message)
}

func (n *LogNotifier) Success(title, message string) {
	n.logger.Info("notification", "title", title, "message", message)
}

func (n *LogNotifier) Error(title, message string) {
	n.logger.Warn("notification", "title", title, "message", message)
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Info(string, string)    {}
func (discard) Success(string, string) {}
func (discard) Error(string, string)   {}
