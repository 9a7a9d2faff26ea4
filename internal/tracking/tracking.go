// Package tracking reports dispatch failures to an error tracker.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// New returns a Sentry tracker, or a no-op tracker when dsn is empty.
func New(dsn, environment string) (Tracker, error) {
	if dsn == "" {
		return Noop{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("sentry enabled", "environment", environment)
	return &Sentry{hub: sentry.CurrentHub()}, nil
}

type Sentry struct {
	hub *sentry.Hub
}

func (t *Sentry) CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

func (t *Sentry) Flush(timeout time.Duration) {
	if !sentry.Flush(timeout) {
		slog.Warn("sentry flush timed out")
	}
}

type Noop struct{}

func (Noop) CaptureError(context.Context, error, map[string]string) {}
func (Noop) Flush(time.Duration)                                   {}
