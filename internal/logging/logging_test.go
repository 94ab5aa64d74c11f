package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger() (*bytes.Buffer, ServiceLogger) {
	buf := &bytes.Buffer{}
	return buf, NewSlogServiceLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestSlogServiceLoggerWritesFields(t *testing.T) {
	buf, log := newBufferLogger()

	log.Info("queue ready", LogFields{"queue": "estoque_eventos"})

	out := buf.String()
	if !strings.Contains(out, "queue ready") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "queue=estoque_eventos") {
		t.Fatalf("expected field in output, got %q", out)
	}
}

func TestSlogServiceLoggerErrorIncludesError(t *testing.T) {
	buf, log := newBufferLogger()

	log.Error("publish failed", errors.New("channel closed"), nil)

	if !strings.Contains(buf.String(), "channel closed") {
		t.Fatalf("expected wrapped error in output, got %q", buf.String())
	}
}

func TestWithCarriesFields(t *testing.T) {
	buf, log := newBufferLogger()

	log.With(LogFields{"service": "stock"}).Debug("consuming", nil)

	if !strings.Contains(buf.String(), "service=stock") {
		t.Fatalf("expected persistent field in output, got %q", buf.String())
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := Nop()
	log.With(LogFields{"k": "v"}).Info("ignored", nil)
	log.Error("ignored", errors.New("x"), LogFields{"k": "v"})
}
