package label

import "testing"

func TestParseColorLabelRoundTrip(t *testing.T) {
	for _, l := range All {
		got, err := ParseColorLabel(l.String())
		if err != nil {
			t.Fatalf("ParseColorLabel(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("ParseColorLabel(%q) = %v, want %v", l.String(), got, l)
		}
	}
	if _, err := ParseColorLabel("purple"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestFromOrdinal(t *testing.T) {
	tests := []struct {
		n    int
		want ColorLabel
	}{
		{0, None},
		{1, Scribble},
		{5, Light},
		{6, None},
		{-1, None},
	}
	for _, tt := range tests {
		if got := FromOrdinal(tt.n); got != tt.want {
			t.Errorf("FromOrdinal(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSelectorMembership(t *testing.T) {
	s := NewSelector(Lineart, Shadow)
	for _, l := range All {
		want := l == Lineart || l == Shadow
		if s.Has(l) != want {
			t.Errorf("Has(%v) = %v, want %v", l, s.Has(l), want)
		}
	}
	if s.Has(ColorLabel(42)) {
		t.Error("invalid label reported as member")
	}
	if got := s.String(); got != "{lineart,shadow}" {
		t.Errorf("String() = %q", got)
	}
	var empty Selector
	if !empty.Empty() || len(empty.Labels()) != 0 {
		t.Error("zero selector should be empty")
	}
}

func TestParseSelector(t *testing.T) {
	s, err := ParseSelector("lineart, basecolor,,light")
	if err != nil {
		t.Fatal(err)
	}
	if s != NewSelector(Lineart, BaseColor, Light) {
		t.Errorf("ParseSelector = %v", s)
	}
	if _, err := ParseSelector("lineart,nope"); err == nil {
		t.Error("expected error")
	}
}
