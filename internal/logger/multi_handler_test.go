package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

func TestNewMultiHandler_NilFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	mh := NewMultiHandler(nil, slog.NewJSONHandler(&buf, nil), nil)
	if len(mh.handlers) != 1 {
		t.Errorf("Expected 1 handler after filtering nils, got %d", len(mh.handlers))
	}
}

func TestMultiHandler_FanOut(t *testing.T) {
	t.Parallel()
	var debugBuf, errorBuf bytes.Buffer
	mh := NewMultiHandler(
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(mh).With("module", "scraper")

	log.Info("fetched")

	if !strings.Contains(debugBuf.String(), `"module":"scraper"`) {
		t.Errorf("debug sink missing record or attrs: %q", debugBuf.String())
	}
	if errorBuf.Len() != 0 {
		t.Errorf("error sink should not receive info, got %q", errorBuf.String())
	}
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	mh := NewMultiHandler(slog.NewJSONHandler(&buf, nil), failingHandler{})

	err := mh.Handle(context.Background(), slog.NewRecord(testTime, slog.LevelInfo, "x", 0))
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Errorf("expected joined sink error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Error("healthy sink should still receive the record")
	}
}

var testTime = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
