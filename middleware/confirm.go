package middleware

import (
	"context"
	"errors"

	"github.com/go-kratos/stepflow"
)

var (
	// ErrConfirmDenied is returned when confirmation middleware denies execution.
	ErrConfirmDenied = errors.New("confirmation denied")
)

// ConfirmFunc is a callback used by the confirmation middleware to decide
// whether a request may be sent to the model. It returns true to allow the
// invocation, false to deny it, and may return an error to abort.
type ConfirmFunc func(ctx context.Context, model string, messages []*stepflow.Message) (bool, error)

// Confirm returns a Middleware that invokes the provided confirmation
// callback before delegating to the next invoker. If confirmation is
// denied, it returns ErrConfirmDenied. If the callback returns an
// error, that error is propagated.
func Confirm(confirm ConfirmFunc) stepflow.Middleware {
	return func(next stepflow.ModelInvoker) stepflow.ModelInvoker {
		return stepflow.Wrap(next, func(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
			ok, err := confirm(ctx, next.Name(), messages)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrConfirmDenied
			}
			return next.Invoke(ctx, messages, opts...)
		})
	}
}
