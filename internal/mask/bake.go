package mask

import (
	"errors"
	"image"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

// Undo restores the layers changed by Bake.
type Undo struct {
	entries []bakeEntry
}

type bakeEntry struct {
	layer  host.Node
	rect   image.Rectangle
	pixels []byte
	masks  []host.Node
}

// Len is the number of layers that were baked.
func (u *Undo) Len() int { return len(u.entries) }

// Restore puts back the original pixels and re-attaches the removed masks.
func (u *Undo) Restore() error {
	var errs []error
	for i := len(u.entries) - 1; i >= 0; i-- {
		e := u.entries[i]
		if !e.rect.Empty() {
			if err := e.layer.SetPixelData(e.pixels, e.rect); err != nil {
				errs = append(errs, err)
			}
		}
		for _, m := range e.masks {
			if m.Parent() == nil {
				e.layer.AddChildNode(m, nil)
			}
		}
	}
	u.entries = nil
	return errors.Join(errs...)
}

// Bake writes the rendered content of every leaf whose label is in allowed
// back into the leaf and removes the leaf's masks, so a following synthesis
// starts from flat pixels.
func Bake(doc host.Document, allowed label.Selector) (*Undo, error) {
	u := &Undo{}
	for _, l := range channel.Leaves(doc.RootNode(), allowed) {
		masks := l.ChildNodes()
		if len(masks) == 0 {
			continue
		}
		r := l.Bounds()
		e := bakeEntry{layer: l, rect: r, masks: masks}
		if !r.Empty() {
			e.pixels = l.PixelData(r)
			if err := l.SetPixelData(l.ProjectionPixelData(r), r); err != nil {
				u.Restore()
				return nil, &SynthesisError{Stage: StageBake, Layer: l.Name(), Err: err}
			}
		}
		u.entries = append(u.entries, e)
		for _, m := range masks {
			l.RemoveChildNode(m)
		}
	}
	doc.RefreshProjection()
	return u, nil
}
