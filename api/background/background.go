// Package background supervises fire-and-forget goroutines, such as
// event publishing, so the server can drain them on shutdown.
package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Go runs fn in a supervised goroutine. Panics are recovered and
// logged; they never take the server down.
func (b *Background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("background task panicked: %v", rec)
			}
		}()
		fn()
	}()
}

// Shutdown waits for running tasks until the context expires.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
