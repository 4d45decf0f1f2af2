package state

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

// OverlayMarker is part of the name of every layer the overlay manager owns.
const OverlayMarker = "[ChannelBoard SystemLayer]"

// Channel identifies one of the managed overlays.
type Channel int

const (
	ChannelLineart Channel = iota
	ChannelShadow
	ChannelLight
)

// Channels lists the overlays bottom-most first.
var Channels = []Channel{ChannelLineart, ChannelShadow, ChannelLight}

func (c Channel) String() string {
	switch c {
	case ChannelLineart:
		return "lineart"
	case ChannelShadow:
		return "shadow"
	case ChannelLight:
		return "light"
	default:
		return "unknown"
	}
}

// ParseChannel parses a channel name as returned by String.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// FileName is the overlay's file inside the session directory.
func (c Channel) FileName() string { return c.String() + ".png" }

// LayerName is the name of the overlay layer.
func (c Channel) LayerName() string { return c.String() + OverlayMarker }

// BlendMode is the fixed blend mode of the overlay layer.
func (c Channel) BlendMode() host.BlendMode {
	switch c {
	case ChannelShadow:
		return host.BlendMultiply
	case ChannelLight:
		return host.BlendAdd
	default:
		return host.BlendNormal
	}
}

// Label is the color label of the user layers the overlay is transferred to.
func (c Channel) Label() label.ColorLabel {
	switch c {
	case ChannelShadow:
		return label.Shadow
	case ChannelLight:
		return label.Light
	default:
		return label.Lineart
	}
}

// Session is the per-document working state: a private directory holding
// the overlay files and the ids of the overlay layers in the document.
type Session struct {
	DocumentID uuid.UUID
	Dir        string

	mu       sync.Mutex
	lineart  *uuid.UUID
	shadow   *uuid.UUID
	light    *uuid.UUID
	revision uint64
}

// OverlayPath returns the path of the overlay file for c.
func (s *Session) OverlayPath(c Channel) string {
	return filepath.Join(s.Dir, c.FileName())
}

// OverlayID returns the id of the overlay layer for c, if one was created.
func (s *Session) OverlayID(c Channel) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.slot(c)
	if *p == nil {
		return uuid.Nil, false
	}
	return **p, true
}

// Revision counts the overlay rebuilds and reloads of the session.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// slot returns the field holding c's id. Callers hold mu.
func (s *Session) slot(c Channel) **uuid.UUID {
	switch c {
	case ChannelShadow:
		return &s.shadow
	case ChannelLight:
		return &s.light
	default:
		return &s.lineart
	}
}
