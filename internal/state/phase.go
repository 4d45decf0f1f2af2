package state

import (
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/host"
)

// Phase is the per-document state that decides which operations are
// offered.
type Phase int

const (
	// NoDocument means no document is active.
	NoDocument Phase = iota
	// Uninitialized means the active document has no overlays yet.
	Uninitialized
	// Ready means the overlays exist and generation may run.
	Ready
)

func (p Phase) String() string {
	switch p {
	case NoDocument:
		return "no document"
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// PhaseListener is called after the phase or the active document changed.
type PhaseListener func(p Phase, doc host.Document)

// Tracker follows the active document and derives its phase from the
// registry.
type Tracker struct {
	reg       *Registry
	doc       host.Document
	phase     Phase
	listeners []PhaseListener
	mu        sync.RWMutex
}

// NewTracker returns a tracker in the NoDocument phase.
func NewTracker(reg *Registry) *Tracker {
	return &Tracker{reg: reg}
}

// On registers a listener.
func (t *Tracker) On(l PhaseListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) emit(p Phase, doc host.Document) {
	t.mu.RLock()
	listeners := t.listeners
	t.mu.RUnlock()
	for _, l := range listeners {
		l(p, doc)
	}
}

// SetActive makes doc the active document. A document with a session is
// Ready, one without is Uninitialized. Setting the same document again does
// nothing.
func (t *Tracker) SetActive(doc host.Document) {
	t.mu.Lock()
	if sameDocument(t.doc, doc) {
		t.mu.Unlock()
		return
	}
	t.doc = doc
	switch {
	case doc == nil:
		t.phase = NoDocument
	case t.hasSession(doc.ID()):
		t.phase = Ready
	default:
		t.phase = Uninitialized
	}
	p := t.phase
	t.mu.Unlock()
	t.emit(p, doc)
}

func (t *Tracker) hasSession(id uuid.UUID) bool {
	_, ok := t.reg.Lookup(id)
	return ok
}

// MarkReady moves doc to Ready once its overlays were created. It is ignored
// when doc is no longer active.
func (t *Tracker) MarkReady(doc host.Document) {
	t.mu.Lock()
	if doc == nil || !sameDocument(t.doc, doc) {
		t.mu.Unlock()
		return
	}
	t.phase = Ready
	t.mu.Unlock()
	t.emit(Ready, doc)
}

// Active returns the active document and its phase.
func (t *Tracker) Active() (host.Document, Phase) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc, t.phase
}

func sameDocument(a, b host.Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}
