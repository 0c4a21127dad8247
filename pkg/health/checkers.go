package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// SizeCheck fails when size() exceeds limit. Used to bound in-memory
// registries.
func SizeCheck(limit int, size func() int) CheckFunc {
	return func(context.Context) error {
		if n := size(); n > limit {
			return errors.Errorf("size %d exceeds limit %d", n, limit)
		}
		return nil
	}
}
