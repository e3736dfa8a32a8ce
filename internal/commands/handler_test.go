package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

type testMessage struct {
	Name string
}

func (testMessage) Type() string { return "mirror.test.message" }

func (testMessage) Validate() error { return nil }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "mirror.test.invalid" }

func (invalidMessage) Validate() error {
	return validationError()
}

func validationError() error {
	return errors.New("invalid")
}

func TestHandlerExecuteSuccess(t *testing.T) {
	called := false
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		called = true
		return nil
	})

	if err := h.Execute(context.Background(), testMessage{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !called {
		t.Fatal("expected handler to be invoked")
	}
}

func TestHandlerValidationShortCircuitsExecution(t *testing.T) {
	called := false
	h := NewHandler[invalidMessage](func(ctx context.Context, msg invalidMessage) error {
		called = true
		return nil
	})

	err := h.Execute(context.Background(), invalidMessage{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when validation fails")
	}
}

func TestHandlerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		called = true
		return nil
	})

	err := h.Execute(ctx, testMessage{})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if called {
		t.Fatal("expected handler not to run when context is cancelled")
	}
}

func TestHandlerWrapsExecutionError(t *testing.T) {
	execErr := errors.New("boom")
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return execErr
	})

	err := h.Execute(context.Background(), testMessage{})
	if err == nil {
		t.Fatal("expected wrapped execution error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if !goerrors.HasCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category to propagate, got %v", err)
	}
}

func TestHandlerHonoursTimeoutOption(t *testing.T) {
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	}, WithTimeout[testMessage](10*time.Millisecond))

	err := h.Execute(context.Background(), testMessage{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category for timeout, got %v", err)
	}
}

func TestHandlerPreservesCategorisedErrors(t *testing.T) {
	coded := goerrors.Wrap(errors.New("remote down"), goerrors.CategoryCommand, "source unavailable").
		WithTextCode("SYNC_SOURCE_UNAVAILABLE")
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return coded
	})

	err := h.Execute(context.Background(), testMessage{})
	if err != error(coded) {
		t.Fatalf("expected categorised error returned unchanged, got %v", err)
	}
}

func TestHandlerTelemetryReceivesOutcome(t *testing.T) {
	clock := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC),
	}
	var infos []TelemetryInfo
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return nil
	},
		WithOperation[testMessage]("test.run"),
		WithMessageFields(func(msg testMessage) map[string]any {
			return map[string]any{"name": msg.Name}
		}),
		WithClock[testMessage](func() time.Time {
			next := clock[0]
			clock = clock[1:]
			return next
		}),
		WithTelemetry(func(ctx context.Context, msg testMessage, info TelemetryInfo) {
			infos = append(infos, info)
		}),
	)

	if err := h.Execute(context.Background(), testMessage{Name: "alpha"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one telemetry call, got %d", len(infos))
	}
	info := infos[0]
	if info.Status != TelemetryStatusSuccess {
		t.Fatalf("expected success status, got %q", info.Status)
	}
	if info.Command != "mirror.test.message" || info.Operation != "test.run" {
		t.Fatalf("unexpected command identity %q/%q", info.Command, info.Operation)
	}
	if info.Fields["name"] != "alpha" {
		t.Fatalf("expected message fields merged, got %#v", info.Fields)
	}
	if info.Duration != 2*time.Second {
		t.Fatalf("expected 2s duration, got %s", info.Duration)
	}
}

func TestHandlerTelemetryReportsContextErrors(t *testing.T) {
	var status TelemetryStatus
	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return context.DeadlineExceeded
	}, WithTelemetry(func(ctx context.Context, msg testMessage, info TelemetryInfo) {
		status = info.Status
	}))

	if err := h.Execute(context.Background(), testMessage{}); err == nil {
		t.Fatal("expected error")
	}
	if status != TelemetryStatusContextError {
		t.Fatalf("expected context_error status, got %q", status)
	}
}

type recordingLogger struct {
	name     string
	messages []string
}

func (r *recordingLogger) Trace(string, ...any)         {}
func (r *recordingLogger) Debug(string, ...any)         {}
func (r *recordingLogger) Info(msg string, _ ...any)    { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Warn(string, ...any)          {}
func (r *recordingLogger) Error(msg string, _ ...any)   { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Fatal(string, ...any)         {}
func (r *recordingLogger) WithContext(context.Context) interfaces.Logger { return r }

type recordingProvider struct {
	loggers map[string]*recordingLogger
}

func (p *recordingProvider) GetLogger(name string) interfaces.Logger {
	if p.loggers == nil {
		p.loggers = map[string]*recordingLogger{}
	}
	logger := &recordingLogger{name: name}
	p.loggers[name] = logger
	return logger
}

func TestCommandLoggerScopesModule(t *testing.T) {
	provider := &recordingProvider{}
	logger := CommandLogger(provider, " sync ")
	if logger == nil {
		t.Fatal("expected logger")
	}
	if _, ok := provider.loggers["mirror.commands.sync"]; !ok {
		t.Fatalf("expected mirror.commands.sync logger, got %#v", provider.loggers)
	}

	h := NewHandler[testMessage](func(ctx context.Context, msg testMessage) error {
		return nil
	}, WithTelemetry(DefaultTelemetry[testMessage](logger)))
	if err := h.Execute(context.Background(), testMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	recorded := provider.loggers["mirror.commands.sync"]
	if len(recorded.messages) != 1 || recorded.messages[0] != "command.execute.success" {
		t.Fatalf("expected success logged once, got %#v", recorded.messages)
	}
}
