package net

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Locator is a Service that resolves the service address on first use. A
// fixed Address skips discovery; otherwise mDNS is queried until a service
// answers, and the result is kept for later calls.
type Locator struct {
	Address string
	Timeout time.Duration

	mu     sync.Mutex
	client *Client
}

var _ Service = (*Locator)(nil)

func (l *Locator) resolve(ctx context.Context) (*Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	addr := l.Address
	if addr == "" {
		var err error
		if addr, err = Discover(ctx, l.Timeout); err != nil {
			return nil, err
		}
		log.Printf("[NET] Found generation service at %s", addr)
	}
	l.client = NewClient(addr)
	return l.client, nil
}

// Forget drops the resolved address so the next call discovers again.
func (l *Locator) Forget() {
	l.mu.Lock()
	l.client = nil
	l.mu.Unlock()
}

func (l *Locator) ScribbleToLine(ctx context.Context, req ScribbleToLineRequest) error {
	c, err := l.resolve(ctx)
	if err != nil {
		return &ServiceError{Op: OpScribbleToLine, Err: err}
	}
	return l.check(c.ScribbleToLine(ctx, req))
}

func (l *Locator) DetailColored(ctx context.Context, req DetailColoredRequest) error {
	c, err := l.resolve(ctx)
	if err != nil {
		return &ServiceError{Op: OpDetailColored, Err: err}
	}
	return l.check(c.DetailColored(ctx, req))
}

// check forgets a discovered address whose service went away.
func (l *Locator) check(err error) error {
	if err != nil && l.Address == "" && errors.Is(err, ErrUnreachable) {
		l.Forget()
	}
	return err
}
