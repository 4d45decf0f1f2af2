package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/logging"
)

// Runner runs tasks in the background. A started task is never cancelled.
type Runner struct {
	wg sync.WaitGroup
}

// Spawn runs fn in its own goroutine. Panics are turned into errors, the
// outcome is logged and done is always called with it.
func (r *Runner) Spawn(ctx context.Context, name string, docID uuid.UUID, fn func(ctx context.Context) error, done func(error)) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := run(ctx, name, fn)
		if err != nil {
			logging.L().Error("task.failed", "task", name, "doc", docID, "err", err)
		} else {
			logging.L().Info("task.done", "task", name, "doc", docID)
		}
		if done != nil {
			done(err)
		}
	}()
}

func run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", name, p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every spawned task returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
