package sentry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domerrors "github.com/openct/openct-cms/internal/errors"
)

func TestInitialize_EmptyToken(t *testing.T) {
	t.Parallel()

	// Should return nil when token is empty (disabled)
	if err := Initialize(Config{Token: ""}); err != nil {
		t.Errorf("Expected nil error for empty token, got %v", err)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()

	// Should return error when token is set but host is empty
	if err := Initialize(Config{Token: "test-token", Host: ""}); err == nil {
		t.Error("Expected error when host is missing")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Cannot use t.Parallel() as Sentry uses global state

	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
		SampleRate:  0, // defaults to 1.0
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}

	// Must not panic with a tagged context
	CaptureCommandError(context.Background(), "classes", errors.New("boom"))

	Flush(time.Second)
}

func TestShouldReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("sync: %w", context.Canceled), false},
		{"authentication", domerrors.NewAuthenticationError("demo", nil), false},
		{"unknown institution", fmt.Errorf("lookup: %w", domerrors.ErrUnknownInstitution), false},
		{"not found", fmt.Errorf("custom institution: %w", domerrors.ErrNotFound), false},
		{"transport", domerrors.NewTransportError("http://cms/", 500, errors.New("bad gateway")), true},
		{"login stage", domerrors.At(domerrors.StageLogin).For("demo").Wrap(domerrors.NewAuthenticationError("demo", nil), "login failed"), false},
		{"fetch stage transport", domerrors.At(domerrors.StageFetch).Wrap(domerrors.NewTransportError("http://cms/", 502, nil), "fetch failed"), true},
		{"plain", errors.New("disk full"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ShouldReport(tt.err); got != tt.want {
				t.Errorf("ShouldReport(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
