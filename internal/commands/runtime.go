package commands

import (
	"context"
	"time"

	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

// DefaultCommandTimeout bounds a command unless the handler overrides it. A
// full reconciliation pass fetches every body, so the bound is generous.
const DefaultCommandTimeout = 10 * time.Minute

// EnsureContext falls back to context.Background for nil contexts.
func EnsureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// WithCommandTimeout applies timeout unless it is zero or negative.
func WithCommandTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func EnsureLogger(logger interfaces.Logger) interfaces.Logger {
	return logging.Ensure(logger)
}
