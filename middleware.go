package stepflow

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a ModelInvoker with additional behavior.
type Middleware func(ModelInvoker) ModelInvoker

// ChainMiddlewares composes middlewares into one, applying them in order.
// The first middleware becomes the outermost wrapper.
func ChainMiddlewares(mws ...Middleware) Middleware {
	return func(next ModelInvoker) ModelInvoker {
		h := next
		for i := len(mws) - 1; i >= 0; i-- { // apply in reverse to make mws[0] outermost
			h = mws[i](h)
		}
		return h
	}
}

// namedInvoker keeps the wrapped invoker's name.
type namedInvoker struct {
	name   string
	invoke InvokerFunc
}

func (n *namedInvoker) Name() string {
	return n.name
}

func (n *namedInvoker) Invoke(ctx context.Context, messages []*Message, opts ...ModelOption) (*Message, error) {
	return n.invoke(ctx, messages, opts...)
}

// Wrap returns an invoker named after next whose Invoke is fn.
func Wrap(next ModelInvoker, fn InvokerFunc) ModelInvoker {
	return &namedInvoker{name: next.Name(), invoke: fn}
}

// Logging returns a middleware that logs every model invocation.
func Logging(logger *slog.Logger) Middleware {
	return func(next ModelInvoker) ModelInvoker {
		return Wrap(next, func(ctx context.Context, messages []*Message, opts ...ModelOption) (*Message, error) {
			start := time.Now()
			res, err := next.Invoke(ctx, messages, opts...)
			attrs := []any{
				slog.String("model", next.Name()),
				slog.Int("messages", len(messages)),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.ErrorContext(ctx, "model invocation failed", append(attrs, slog.Any("error", err))...)
				return nil, err
			}
			if res == nil {
				logger.WarnContext(ctx, "model returned no message", attrs...)
				return nil, nil
			}
			logger.DebugContext(ctx, "model invoked", append(attrs,
				slog.String("finish_reason", res.FinishReason),
				slog.Int64("input_tokens", res.Usage.InputTokens),
				slog.Int64("output_tokens", res.Usage.OutputTokens),
			)...)
			return res, nil
		})
	}
}
