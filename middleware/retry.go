package middleware

import (
	"context"

	"github.com/go-kratos/kit/retry"

	"github.com/go-kratos/stepflow"
)

// Retry returns a middleware that retries model invocations with configurable retry behavior.
//
// Parameters:
//
//	attempts: The total number of attempts, including the initial one.
//	          For example, attempts=3 means up to 3 tries (1 initial + 2 retries).
//	opts:     Optional configuration for retry behavior. See retry.Option (from github.com/go-kratos/kit/retry) for details.
//
// Behavior:
//   - The same messages are sent on each attempt. Invokers must not mutate them.
//   - If all attempts fail, the last error is returned.
//   - Context cancellation is respected between attempts.
//
// Example usage:
//
//	// Retry up to 5 times with exponential backoff, only on rate limits.
//	mw := Retry(5,
//	    retry.WithBackoff(retry.NewExponentialBackoff()),
//	    retry.WithRetryable(func(err error) bool {
//	        return IsRateLimited(err)
//	    }),
//	)
func Retry(attempts int, opts ...retry.Option) stepflow.Middleware {
	r := retry.New(attempts, opts...)
	return func(next stepflow.ModelInvoker) stepflow.ModelInvoker {
		return stepflow.Wrap(next, func(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
			var res *stepflow.Message
			err := r.Do(ctx, func(ctx context.Context) error {
				msg, err := next.Invoke(ctx, messages, opts...)
				if err != nil {
					return err
				}
				res = msg
				return nil
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
