package state

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/logging"
)

// WorkdirPrefix prefixes every session directory name.
const WorkdirPrefix = "channelboard_"

// SessionError reports a failure creating or removing a session directory.
type SessionError struct {
	Op         string
	DocumentID uuid.UUID
	Err        error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.DocumentID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Registry maps document ids to sessions. It owns the session directories
// and removes them on Remove and Close.
type Registry struct {
	root     string
	sessions map[uuid.UUID]*Session
	mu       sync.Mutex
}

// NewRegistry creates session directories under root, or under the system
// temp directory when root is empty.
func NewRegistry(root string) *Registry {
	return &Registry{
		root:     root,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// GetOrCreate returns the session of docID, creating it with transparent
// size-sized overlay files if the document has none.
func (r *Registry) GetOrCreate(docID uuid.UUID, size image.Point) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[docID]; ok {
		return s, nil
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, &SessionError{Op: "create", DocumentID: docID, Err: fmt.Errorf("invalid canvas size %v", size)}
	}

	dir, err := os.MkdirTemp(r.root, WorkdirPrefix)
	if err != nil {
		return nil, &SessionError{Op: "create", DocumentID: docID, Err: err}
	}
	s := &Session{DocumentID: docID, Dir: dir}
	for _, c := range Channels {
		if err := writePlaceholder(s.OverlayPath(c), size); err != nil {
			os.RemoveAll(dir)
			return nil, &SessionError{Op: "seed " + c.FileName(), DocumentID: docID, Err: err}
		}
	}

	r.sessions[docID] = s
	log.Printf("[SESSION] Created session for %s in %s", docID, dir)
	logging.L().Info("session.created", "doc", docID, "dir", dir)
	return s, nil
}

func writePlaceholder(path string, size image.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, image.NewNRGBA(image.Rectangle{Max: size})); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Lookup returns the session of docID.
func (r *Registry) Lookup(docID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[docID]
	return s, ok
}

// Remove drops the session of docID and deletes its directory.
func (r *Registry) Remove(docID uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[docID]
	delete(r.sessions, docID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return &SessionError{Op: "remove", DocumentID: docID, Err: err}
	}
	logging.L().Info("session.removed", "doc", docID)
	return nil
}

// Close removes every session.
func (r *Registry) Close() error {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		errs = append(errs, r.Remove(id))
	}
	return errors.Join(errs...)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
