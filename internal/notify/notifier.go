// Package notify delivers engine events to users and observers.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/observability"
)

// Notifier receives engine events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// Named is implemented by notifiers that label their metrics.
type Named interface {
	Name() string
}

// Multi fans an event out to every notifier. One failing notifier does not stop the others.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

var _ Notifier = (*Multi)(nil)

// Notify delivers event to all notifiers and joins their errors.
func (m *Multi) Notify(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Notify(ctx, event)
		observability.RecordNotification(nameOf(n), string(event.Kind()), err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nameOf(n Notifier) string {
	if named, ok := n.(Named); ok {
		return named.Name()
	}
	return "unknown"
}

// Log writes events to a logrus logger.
type Log struct {
	log logrus.FieldLogger
}

// NewLog creates a logging notifier. A nil logger uses the standard logger.
func NewLog(log logrus.FieldLogger) *Log {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Log{log: log}
}

var _ Notifier = (*Log)(nil)

// Name implements Named.
func (l *Log) Name() string { return "log" }

// Notify logs event.
func (l *Log) Notify(_ context.Context, event domain.Event) error {
	meta := event.Meta()
	entry := l.log.WithFields(logrus.Fields{
		"event":      event.Kind(),
		"session_id": meta.SessionID,
		"follower":   meta.FollowerID,
		"master":     domain.ShortAddress(meta.MasterAddress),
	})

	switch e := event.(type) {
	case domain.TradeDetected:
		entry.WithFields(logrus.Fields{"version": e.Version, "function": e.Function}).Info("trade detected")
	case domain.TradeExecuted:
		entry.WithFields(logrus.Fields{
			"version":      e.Version,
			"tx_hash":      e.TxHash,
			"input_asset":  e.InputAsset,
			"output_asset": e.OutputAsset,
			"amount":       e.Amount,
		}).Info("trade executed")
	case domain.TradeFailed:
		entry = entry.WithFields(logrus.Fields{"version": e.Version, "reason": e.Reason, "terminal": e.Terminal})
		if e.Terminal {
			entry.Error("trade failed, session stopped")
		} else {
			entry.Warn("trade failed")
		}
	default:
		entry.Info("event")
	}
	return nil
}
