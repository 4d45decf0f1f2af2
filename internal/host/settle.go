package host

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SettlePolicy bounds how long callers wait for a projection to settle.
type SettlePolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultSettlePolicy retries a busy projection a few times before giving up.
var DefaultSettlePolicy = SettlePolicy{Attempts: 5, Backoff: 50 * time.Millisecond}

// Settle waits for doc's projection, retrying ErrBusy up to p.Attempts times.
// Errors other than ErrBusy are returned immediately.
func Settle(ctx context.Context, doc Document, p SettlePolicy) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = doc.WaitForDone(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, ErrBusy) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return fmt.Errorf("settle %s after %d attempts: %w", doc.Name(), attempts, err)
}

// Render refreshes doc's projection and waits for it to settle.
func Render(ctx context.Context, doc Document, p SettlePolicy) error {
	doc.RefreshProjection()
	return Settle(ctx, doc, p)
}
