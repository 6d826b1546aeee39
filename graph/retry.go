package graph

import (
	"context"

	"github.com/go-kratos/kit/retry"
)

// Retry returns a middleware that retries node handlers.
// The executor never retries on its own; this middleware must be installed
// explicitly with WithMiddleware or wrapped around a single handler.
//
// Parameters:
//
//	attempts: The total number of attempts, including the initial one.
//	opts:     Optional configuration, see retry.Option from github.com/go-kratos/kit/retry.
//
// Each attempt receives a fresh clone of the incoming state, so partial
// in-place mutations of a failed attempt are not observed by the next one.
// When all attempts fail the last error is returned.
//
// Example usage:
//
//	mw := Retry(3, retry.WithRetryable(func(err error) bool {
//	    return !errors.Is(err, ErrMissingField)
//	}))
func Retry(attempts int, opts ...retry.Option) Middleware {
	r := retry.New(attempts, opts...)
	return func(next Handler) Handler {
		return func(ctx context.Context, input State) (State, error) {
			var output State
			err := r.Do(ctx, func(ctx context.Context) error {
				var err error
				attempt := input.Clone()
				if output, err = next(ctx, attempt); err == nil && output == nil {
					output = attempt
				}
				return err
			})
			if err != nil {
				return nil, err
			}
			return output, nil
		}
	}
}
