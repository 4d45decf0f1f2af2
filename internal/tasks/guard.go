package tasks

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrTaskInFlight is returned when a document already runs a task.
var ErrTaskInFlight = errors.New("tasks: another task is running on this document")

// Guard hands out at most one permit per document.
type Guard struct {
	held map[uuid.UUID]string
	mu   sync.Mutex
}

// NewGuard returns a guard with no permits taken.
func NewGuard() *Guard {
	return &Guard{held: make(map[uuid.UUID]string)}
}

// TryAcquire takes the permit for docID on behalf of task. The returned
// release function may be called more than once.
func (g *Guard) TryAcquire(docID uuid.UUID, task string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[docID]; busy {
		return nil, ErrTaskInFlight
	}
	g.held[docID] = task
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, docID)
			g.mu.Unlock()
		})
	}, nil
}

// Holder returns the task holding docID's permit.
func (g *Guard) Holder(docID uuid.UUID) (task string, busy bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	task, busy = g.held[docID]
	return task, busy
}
