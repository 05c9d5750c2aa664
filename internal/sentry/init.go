package sentry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// Options configures the SDK client.
type Options struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	MaxBreadcrumbs   int
	Debug            bool
}

// Init starts the SDK with hook installed as the event and transaction
// scrubber. With an empty DSN the SDK is left disabled and Init is a no-op.
func Init(opts Options, hook *Hook) error {
	if opts.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:                   opts.DSN,
		Environment:           opts.Environment,
		Release:               opts.Release,
		EnableTracing:         opts.TracesSampleRate > 0,
		TracesSampleRate:      opts.TracesSampleRate,
		MaxBreadcrumbs:        opts.MaxBreadcrumbs,
		AttachStacktrace:      true,
		SendDefaultPII:        false,
		Debug:                 opts.Debug,
		BeforeSend:            hook.ScrubEvent,
		BeforeSendTransaction: hook.ScrubTransaction,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Middleware reports panics in h to Sentry and re-panics so the router's
// recoverer still answers the request.
func Middleware(h http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(h)
}
