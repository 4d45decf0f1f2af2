// Package memhost is an in-memory implementation of the host document API:
// a layer tree with group, paint and file layers, filter and transparency
// masks, a compositor, color space conversion and PNG export.
package memhost

import (
	"slices"
	"sync"

	"ChannelBoard/internal/host"
)

// Host owns the open documents and tracks the active one.
type Host struct {
	mu           sync.Mutex
	docs         []*Document
	active       *Document
	settleFaults int
	listeners    []func(host.Document)
}

var _ host.Host = (*Host)(nil)

// New creates an empty host.
func New() *Host {
	return &Host{}
}

// NewDocument creates a document holding one transparent paint layer, the
// same starting point the editor gives a new image.
func (h *Host) NewDocument(spec host.DocumentSpec) (*Document, error) {
	d, err := newDocument(h, spec)
	if err != nil {
		return nil, err
	}
	layer := d.newNode("Layer 1", host.PaintLayer)
	d.root.children = append(d.root.children, layer)
	layer.parent = d.root
	d.active = layer
	h.register(d)
	return d, nil
}

// CreateDocument implements host.Host.
func (h *Host) CreateDocument(spec host.DocumentSpec) (host.Document, error) {
	d, err := h.NewDocument(spec)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewEmptyDocument creates a document whose root has no children.
func (h *Host) NewEmptyDocument(spec host.DocumentSpec) (*Document, error) {
	d, err := newDocument(h, spec)
	if err != nil {
		return nil, err
	}
	h.register(d)
	return d, nil
}

func (h *Host) register(d *Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs = append(h.docs, d)
	if h.settleFaults > 0 {
		d.mu.Lock()
		d.busy = h.settleFaults
		d.mu.Unlock()
	}
}

func (h *Host) unregister(d *Document) {
	h.mu.Lock()
	h.docs = slices.DeleteFunc(h.docs, func(o *Document) bool { return o == d })
	wasActive := h.active == d
	h.mu.Unlock()
	if wasActive {
		h.SetActiveDocument(nil)
	}
}

// SetSettleFaults makes every document created afterwards, clones and
// offscreen documents included, report host.ErrBusy for its first n waits.
func (h *Host) SetSettleFaults(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleFaults = n
}

// Documents returns the open documents in creation order.
func (h *Host) Documents() []*Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.docs)
}

// ActiveDocument returns the active document or nil.
func (h *Host) ActiveDocument() host.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return nil
	}
	return h.active
}

// SetActiveDocument changes the active document and notifies listeners when
// it actually changed.
func (h *Host) SetActiveDocument(d *Document) {
	h.mu.Lock()
	if h.active == d {
		h.mu.Unlock()
		return
	}
	h.active = d
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	var doc host.Document
	if d != nil {
		doc = d
	}
	for _, fn := range listeners {
		fn(doc)
	}
}

// OnActiveDocumentChanged registers fn to be called with the new active
// document, or nil when no document is active.
func (h *Host) OnActiveDocumentChanged(fn func(host.Document)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}
