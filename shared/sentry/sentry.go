package sentry

import (
	"fmt"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
)

// Config holds Sentry client settings
type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter forwards errors to Sentry. A zero DSN yields a reporter that drops everything.
type Reporter struct {
	enabled bool
}

// NewReporter initialises the global Sentry hub when a DSN is configured
func NewReporter(config *Config) (*Reporter, error) {
	if config.DSN == "" {
		return &Reporter{}, nil
	}

	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:         config.DSN,
		Environment: config.Environment,
		Release:     config.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry.Init: %w", err)
	}

	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent anywhere
func (r *Reporter) Enabled() bool {
	return r.enabled
}

// Capture sends err with the given tags
func (r *Reporter) Capture(err error, tags map[string]string) {
	if !r.enabled || err == nil {
		return
	}

	sentrygo.WithScope(func(scope *sentrygo.Scope) {
		scope.SetTags(tags)
		sentrygo.CaptureException(err)
	})
}

// Flush waits for buffered events before the program terminates
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.enabled {
		return
	}
	sentrygo.Flush(timeout)
}
