// Package telemetry sends opt-in error reports to Sentry. Reports are built
// by the errors package; this package owns SDK setup and privacy filtering.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/privacy"
)

// DefaultFlushTimeout bounds how long shutdown waits for queued events.
const DefaultFlushTimeout = 2 * time.Second

// Config configures the Sentry client.
type Config struct {
	DSN         string
	Environment string
	Version     string
	Debug       bool
	// Transport replaces the HTTP transport (tests).
	Transport sentry.Transport
}

// Init initializes the Sentry SDK and routes enhanced errors to it. The
// returned function flushes pending events and detaches the reporter.
func Init(cfg Config, log logger.Logger) (func(), error) {
	log = logger.OrDiscard(log).Module("telemetry")

	if strings.TrimSpace(cfg.DSN) == "" && cfg.Transport == nil {
		return nil, errors.Newf("sentry DSN is required").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := cfg.Environment
	if environment == "" {
		environment = "production"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		SampleRate:       1.0,
		TracesSampleRate: 0,
		Debug:            cfg.Debug,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("birdtarifa@%s", version),
		Transport:        cfg.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("error reporting enabled",
		logger.String("environment", environment),
		logger.String("release", version))

	return func() {
		errors.SetTelemetryReporter(nil)
		if !sentry.Flush(DefaultFlushTimeout) {
			log.Warn("timed out flushing error reports")
		}
	}, nil
}

// applyPrivacyFilters strips host identity and scrubs URLs from the event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
