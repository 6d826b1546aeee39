package graph

import (
	"context"
	"log/slog"
	"time"
)

// Handler is a function that processes the graph state.
// It returns the state handed to the next node. A nil state with a nil error
// keeps the current state, so handlers that mutate in place may return nil.
type Handler func(ctx context.Context, state State) (State, error)

// Middleware is a function that wraps a Handler with additional functionality.
type Middleware func(Handler) Handler

// ChainMiddlewares composes middlewares into one, applying them in order.
// The first middleware becomes the outermost wrapper.
func ChainMiddlewares(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- { // apply in reverse to make mws[0] outermost
			h = mws[i](h)
		}
		return h
	}
}

// Logging returns a middleware that logs each node execution with its duration.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, state State) (State, error) {
			attrs := make([]any, 0, 6)
			if node, ok := FromNodeContext(ctx); ok {
				attrs = append(attrs, slog.String("node", node.Name), slog.String("run_id", node.RunID))
			}
			start := time.Now()
			logger.DebugContext(ctx, "node started", attrs...)
			output, err := next(ctx, state)
			attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
			if err != nil {
				logger.ErrorContext(ctx, "node failed", append(attrs, slog.Any("error", err))...)
				return output, err
			}
			logger.InfoContext(ctx, "node finished", attrs...)
			return output, nil
		}
	}
}
