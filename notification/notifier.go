package notification

import (
	"context"
	"errors"
)

// Notifier delivers events to a backend.
type Notifier interface {
	// Notify sends a notification for the given event.
	Notify(ctx context.Context, event *Event) error
}

// MultiNotifier fans each event out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier. Nil notifiers are dropped.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify sends the event to every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier discards events.
type NoopNotifier struct{}

// Notify does nothing and returns nil.
func (n *NoopNotifier) Notify(_ context.Context, _ *Event) error {
	return nil
}
