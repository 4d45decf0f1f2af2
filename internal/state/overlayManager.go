package state

import (
	"errors"
	"fmt"
	"strings"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/logging"
)

// OverlayManager creates and reloads the three overlay layers of a session.
type OverlayManager struct {
	Opacity uint8
}

// NewOverlayManager returns a manager creating overlays with opacity.
func NewOverlayManager(opacity uint8) *OverlayManager {
	return &OverlayManager{Opacity: opacity}
}

// Reinitialize replaces every root layer carrying the overlay marker with
// fresh lineart, shadow and light file layers on top of the stack, and
// records their ids in s. The document is left untouched if a layer cannot
// be created.
func (m *OverlayManager) Reinitialize(doc host.Document, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]host.FileNode, 0, len(Channels))
	for _, c := range Channels {
		fn, err := doc.CreateFileLayer(c.LayerName(), s.OverlayPath(c), host.ScaleToImageSize)
		if err != nil {
			return fmt.Errorf("create %s overlay: %w", c, err)
		}
		fn.SetOpacity(m.Opacity)
		fn.SetBlendMode(c.BlendMode())
		created = append(created, fn)
	}

	root := doc.RootNode()
	removed := 0
	for _, n := range root.ChildNodes() {
		if strings.Contains(n.Name(), OverlayMarker) {
			root.RemoveChildNode(n)
			removed++
		}
	}
	for i, fn := range created {
		if !root.AddChildNode(fn, nil) {
			panic(fmt.Sprintf("state: cannot attach %s overlay", Channels[i]))
		}
		fn.SetLocked(true)
		id := fn.ID()
		*s.slot(Channels[i]) = &id
	}
	s.revision++
	doc.RefreshProjection()

	logging.L().Info("overlay.reinitialized", "doc", doc.Name(), "removed", removed)
	return nil
}

// Refresh reloads the overlay layers from their files. Missing overlays are
// rebuilt with Reinitialize.
func (m *OverlayManager) Refresh(doc host.Document, s *Session) error {
	var nodes []host.FileNode
	for _, c := range Channels {
		n, err := m.Overlay(doc, s, c)
		if errors.Is(err, host.ErrNotFound) {
			logging.L().Warn("overlay.missing", "doc", doc.Name(), "channel", c.String())
			return m.Reinitialize(doc, s)
		}
		if err != nil {
			return err
		}
		fn, ok := n.(host.FileNode)
		if !ok {
			return m.Reinitialize(doc, s)
		}
		nodes = append(nodes, fn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, fn := range nodes {
		if err := fn.Reload(); err != nil {
			return fmt.Errorf("reload %s overlay: %w", Channels[i], err)
		}
	}
	s.revision++
	doc.RefreshProjection()
	return nil
}

// Overlay resolves the overlay layer of channel c. Layers deleted by the user
// or belonging to a closed document are reported as host.ErrNotFound.
func (m *OverlayManager) Overlay(doc host.Document, s *Session, c Channel) (host.Node, error) {
	id, ok := s.OverlayID(c)
	if !ok {
		return nil, fmt.Errorf("%s overlay: %w", c, host.ErrNotFound)
	}
	n, err := doc.NodeByID(id)
	if err != nil {
		return nil, fmt.Errorf("%s overlay: %w", c, err)
	}
	if n.Parent() == nil {
		return nil, fmt.Errorf("%s overlay detached: %w", c, host.ErrNotFound)
	}
	return n, nil
}
