package utils

import (
	"context"
	"time"
)

const (
	DefaultDBTimeout      = 5 * time.Second
	DefaultGatewayTimeout = 10 * time.Second
)

func WithDBTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultDBTimeout)
}

// WithGatewayTimeout bounds calls to the product and order services so no
// cart operation blocks indefinitely on a collaborator.
func WithGatewayTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultGatewayTimeout
	}

	return context.WithTimeout(ctx, timeout)
}
