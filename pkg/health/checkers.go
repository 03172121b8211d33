package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Built-in liveness checks for the API process itself.

// GoroutineCountCheck flags goroutine leaks: the check fails once the live
// goroutine count passes limit.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck flags memory pressure: the check fails when any recorded
// stop-the-world GC pause exceeded limit.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		var worst time.Duration
		for _, pause := range stats.Pause {
			if pause > worst {
				worst = pause
			}
		}
		if worst > limit {
			return errors.Errorf("worst GC pause %s, limit %s", worst, limit)
		}
		return nil
	}
}
