package label

import (
	"strings"
)

// Selector is a set of color labels. The zero value is the empty set.
type Selector uint8

// NewSelector returns the set containing labels.
func NewSelector(labels ...ColorLabel) Selector {
	var s Selector
	for _, l := range labels {
		s = s.With(l)
	}
	return s
}

// With returns s with l added. Invalid labels are ignored.
func (s Selector) With(l ColorLabel) Selector {
	if !l.Valid() {
		return s
	}
	return s | 1<<l
}

// Has reports whether l is in the set.
func (s Selector) Has(l ColorLabel) bool {
	if !l.Valid() {
		return false
	}
	return s&(1<<l) != 0
}

// Empty reports whether the set has no members.
func (s Selector) Empty() bool { return s == 0 }

// Labels returns the members in ordinal order.
func (s Selector) Labels() []ColorLabel {
	var out []ColorLabel
	for _, l := range All {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s Selector) String() string {
	labels := s.Labels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// ParseSelector parses a comma separated list of label names such as
// "lineart,basecolor".
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		l, err := ParseColorLabel(part)
		if err != nil {
			return 0, err
		}
		sel = sel.With(l)
	}
	return sel, nil
}

// Selectors used by the generation exports.
var (
	ScribbleOnly  = NewSelector(Scribble)
	LineartOnly   = NewSelector(Lineart)
	BaseColorOnly = NewSelector(BaseColor)
	ShadowOnly    = NewSelector(Shadow)
	LightOnly     = NewSelector(Light)
	LineAndBase   = NewSelector(Lineart, BaseColor)
	FullColored   = NewSelector(Lineart, BaseColor, Shadow, Light)
)
