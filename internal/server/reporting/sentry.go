// Package reporting forwards unexpected failures to Sentry.
package reporting

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/getsentry/sentry-go"
)

// Reporter captures errors. A Reporter built without a DSN is disabled and
// every method is a no-op.
type Reporter struct {
	hub *sentry.Hub
}

type Options struct {
	DSN         string
	Environment string
	Release     string
	// Transport overrides the HTTP transport; used by tests.
	Transport sentry.Transport
}

// New initialises a Sentry client. Initialisation failures are logged and
// leave the Reporter disabled.
func New(ctx context.Context, opts Options, logger logging.Logger) *Reporter {
	if opts.DSN == "" {
		logger.Info(ctx, "SENTRY_DSN not set, Sentry disabled")
		return &Reporter{}
	}

	environment := opts.Environment
	if environment == "" {
		environment = "development"
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: environment,
		Release:     opts.Release,
		Transport:   opts.Transport,
	})
	if err != nil {
		logger.Error(ctx, "Sentry initialization failed", "error", err)
		return &Reporter{}
	}

	logger.Info(ctx, "Sentry initialized", "environment", environment)
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureException sends err with the given tags.
func (r *Reporter) CaptureException(err error, tags map[string]string) {
	if !r.Enabled() {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
