package notify

import "context"

// Notifier sends a push message. It matches core.Notifier so
// implementations plug straight into the Manager.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// NoOpNotifier discards every message. Used when notifications are
// disabled so callers never branch on nil.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, title, body string) error {
	return nil
}
