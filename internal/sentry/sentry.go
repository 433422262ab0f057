// Package sentry provides Sentry SDK initialization for Better Stack error tracking integration.
// The CLI reports failed commands here; authentication failures are user errors and are
// never reported.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/openct/openct-cms/internal/ctxutil"
	domerrors "github.com/openct/openct-cms/internal/errors"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the Better Stack Errors ingesting host (e.g., "errors.betterstack.com").
	Host string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK with Better Stack configuration.
// If Token is empty, Sentry is disabled and nil is returned.
// The DSN is constructed as: https://$TOKEN@$HOST/1
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil // Sentry disabled
	}

	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	// The project ID (/1) is required by Sentry SDK but ignored by Better Stack.
	dsn := fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// ShouldReport reports whether err is worth sending. Wrong credentials,
// unknown institution names and missing stored entries are user mistakes.
func ShouldReport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !domerrors.IsAuthentication(err) &&
		!domerrors.IsUnknownInstitution(err) &&
		!domerrors.IsNotFound(err)
}

// CaptureCommandError reports a failed CLI command, tagged with the command
// name and the institution/request id carried by ctx.
func CaptureCommandError(ctx context.Context, command string, err error) {
	if !ShouldReport(err) || !IsEnabled() {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("command", command)
		inst := ctxutil.GetInstitution(ctx)
		if stage, errInst, ok := domerrors.StageOf(err); ok {
			scope.SetTag("stage", string(stage))
			if inst == "" {
				inst = errInst
			}
		}
		if inst != "" {
			scope.SetTag("institution", inst)
		}
		if id, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		var te *domerrors.TransportError
		if errors.As(err, &te) {
			scope.SetExtra("url", te.URL)
			scope.SetExtra("status", te.StatusCode)
		}
		hub.CaptureException(err)
	})
}
