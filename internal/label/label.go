// Package label defines the color-label taxonomy used to classify layers and
// the selector sets that pick layers by label.
package label

import (
	"fmt"
	"strings"
)

// ColorLabel tags a leaf layer with the channel it belongs to.
// The numeric values match the host's color label ordinals.
type ColorLabel uint8

const (
	None ColorLabel = iota
	Scribble
	Lineart
	BaseColor
	Shadow
	Light
)

// All lists every label in ordinal order.
var All = []ColorLabel{None, Scribble, Lineart, BaseColor, Shadow, Light}

func (l ColorLabel) String() string {
	switch l {
	case None:
		return "none"
	case Scribble:
		return "scribble"
	case Lineart:
		return "lineart"
	case BaseColor:
		return "basecolor"
	case Shadow:
		return "shadow"
	case Light:
		return "light"
	default:
		return fmt.Sprintf("label(%d)", uint8(l))
	}
}

// Valid reports whether l is one of the defined labels.
func (l ColorLabel) Valid() bool {
	switch l {
	case None, Scribble, Lineart, BaseColor, Shadow, Light:
		return true
	default:
		return false
	}
}

// FromOrdinal maps a host color label index to a ColorLabel. Host colors
// outside the taxonomy are treated as None.
func FromOrdinal(n int) ColorLabel {
	if n < 0 || n > int(Light) {
		return None
	}
	return ColorLabel(n)
}

// ParseColorLabel parses the lower-case name returned by String.
func ParseColorLabel(s string) (ColorLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "scribble":
		return Scribble, nil
	case "lineart":
		return Lineart, nil
	case "basecolor", "base_color", "base-color":
		return BaseColor, nil
	case "shadow":
		return Shadow, nil
	case "light":
		return Light, nil
	default:
		return None, fmt.Errorf("unknown color label %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so labels read naturally in
// yaml manifests.
func (l ColorLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid color label %d", uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ColorLabel) UnmarshalText(b []byte) error {
	v, err := ParseColorLabel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
