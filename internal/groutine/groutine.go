// Package groutine starts goroutines carrying a name, both as a pprof label and as a
// context value, so long-lived bridge loops are identifiable in profiles and logs.
package groutine

import (
	"context"
	"runtime/pprof"
	"sync"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn in a goroutine labelled name.
// If parentCtx is nil, context.Background() is used.
//
//	groutine.Go(ctx, "ws-read-loop", func(ctx context.Context) {
//	    // work
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
}

// GoTracked is Go with wg accounting: wg.Add(1) happens before the goroutine starts
// and wg.Done when fn returns.
func GoTracked(parentCtx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	Go(parentCtx, name, func(ctx context.Context) {
		defer wg.Done()
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(goroutineNameKey).(string); ok {
		return s
	}
	return ""
}
