// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Go runs fn on its own goroutine with panic recovery. A panicking background
// task must never take the whole process down with it; the recovered value and
// stack are logged instead. The context identifies the owning scope in the
// panic log; fn is expected to honor its cancellation itself.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in background routine (ctx err: %v): %v\n%s", ctx.Err(), r, debug.Stack())
			}
		}()
		fn()
	}()
}
