package browser

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is how often WaitFor re-evaluates its condition.
const DefaultPollInterval = 100 * time.Millisecond

// Condition is polled by WaitFor. It returns true once satisfied.
type Condition func(ctx context.Context) (bool, error)

// WaitFor polls cond every interval until it returns true, the timeout
// expires or ctx is done. Crash errors returned by cond end the wait
// immediately; other errors are retried and reported in the TimeoutError.
func WaitFor(ctx context.Context, what string, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err != nil && IsCrash(err) {
			return err
		}
		if err == nil && ok {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{What: what, Timeout: timeout, Err: lastErr}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Truthy reports whether a JavaScript evaluation result counts as true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
