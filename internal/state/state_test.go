package state

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
)

func newDocument(t *testing.T, w, h int) (*memhost.Host, *memhost.Document) {
	t.Helper()
	hst := memhost.New()
	d, err := hst.NewDocument(host.DocumentSpec{Name: "doc", Width: w, Height: h, Space: host.RGBA8, Resolution: 72})
	if err != nil {
		t.Fatal(err)
	}
	return hst, d
}

func TestGetOrCreateSeedsPlaceholders(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	s, err := reg.GetOrCreate(uuid.New(), image.Pt(7, 5))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(s.Dir), WorkdirPrefix) {
		t.Errorf("dir %s lacks prefix", s.Dir)
	}
	for _, c := range Channels {
		f, err := os.Open(filepath.Join(s.Dir, c.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds() != image.Rect(0, 0, 7, 5) {
			t.Errorf("%s bounds = %v", c, img.Bounds())
		}
		for y := 0; y < 5; y++ {
			for x := 0; x < 7; x++ {
				if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
					t.Fatalf("%s pixel (%d,%d) not transparent", c, x, y)
				}
			}
		}
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	a, b := uuid.New(), uuid.New()
	s1, err := reg.GetOrCreate(a, image.Pt(2, 2))
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := reg.GetOrCreate(a, image.Pt(9, 9))
	s3, _ := reg.GetOrCreate(b, image.Pt(2, 2))
	if s1 != s2 {
		t.Error("same document gave different sessions")
	}
	if s1 == s3 || s1.Dir == s3.Dir {
		t.Error("different documents share a session")
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d", reg.Len())
	}
}

func TestRegistryRemoveAndClose(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	a, b := uuid.New(), uuid.New()
	sa, _ := reg.GetOrCreate(a, image.Pt(1, 1))
	sb, _ := reg.GetOrCreate(b, image.Pt(1, 1))

	if err := reg.Remove(a); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sa.Dir); !errors.Is(err, os.ErrNotExist) {
		t.Error("removed session directory still exists")
	}
	if _, ok := reg.Lookup(a); ok {
		t.Error("removed session still registered")
	}
	if err := reg.Remove(a); err != nil {
		t.Errorf("second Remove = %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sb.Dir); !errors.Is(err, os.ErrNotExist) || reg.Len() != 0 {
		t.Error("Close left sessions behind")
	}
}

func TestGetOrCreateErrors(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	_, err := reg.GetOrCreate(uuid.New(), image.Pt(1, 1))
	var se *SessionError
	if !errors.As(err, &se) || se.Op != "create" {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewRegistry(t.TempDir()).GetOrCreate(uuid.New(), image.Pt(0, 4)); err == nil {
		t.Error("empty canvas accepted")
	}
}

func overlays(doc host.Document) []host.Node {
	var out []host.Node
	for _, n := range doc.RootNode().ChildNodes() {
		if strings.Contains(n.Name(), OverlayMarker) {
			out = append(out, n)
		}
	}
	return out
}

func TestReinitializeIdempotent(t *testing.T) {
	_, d := newDocument(t, 4, 4)
	reg := NewRegistry(t.TempDir())
	s, err := reg.GetOrCreate(d.ID(), image.Pt(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	m := NewOverlayManager(127)
	for i := 0; i < 2; i++ {
		if err := m.Reinitialize(d, s); err != nil {
			t.Fatal(err)
		}
	}

	got := overlays(d)
	if len(got) != 3 {
		t.Fatalf("overlays = %d, want 3", len(got))
	}
	kids := d.RootNode().ChildNodes()
	if kids[0].Name() != "Layer 1" {
		t.Errorf("user layer moved: %s", kids[0].Name())
	}
	for i, c := range Channels {
		n := kids[len(kids)-3+i]
		if n.Name() != c.LayerName() {
			t.Errorf("position %d = %s, want %s", i, n.Name(), c.LayerName())
		}
		if n.Type() != host.FileLayer || !n.Locked() || n.Opacity() != 127 || n.BlendMode() != c.BlendMode() {
			t.Errorf("%s: type %v locked %v opacity %d blend %v", c, n.Type(), n.Locked(), n.Opacity(), n.BlendMode())
		}
		id, ok := s.OverlayID(c)
		if !ok || id != n.ID() {
			t.Errorf("%s id not recorded", c)
		}
		if fn := n.(host.FileNode); fn.Path() != s.OverlayPath(c) || fn.Scaling() != host.ScaleToImageSize {
			t.Errorf("%s source = %s", c, fn.Path())
		}
	}
	if s.Revision() != 2 {
		t.Errorf("revision = %d", s.Revision())
	}
}

func TestReinitializeKeepsDocumentOnFailure(t *testing.T) {
	_, d := newDocument(t, 2, 2)
	reg := NewRegistry(t.TempDir())
	s, _ := reg.GetOrCreate(d.ID(), image.Pt(2, 2))
	m := NewOverlayManager(127)
	if err := m.Reinitialize(d, s); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(s.OverlayPath(ChannelLight)); err != nil {
		t.Fatal(err)
	}
	if err := m.Reinitialize(d, s); err == nil {
		t.Fatal("expected error")
	}
	if len(overlays(d)) != 3 {
		t.Error("existing overlays removed by failed rebuild")
	}
}

func TestRefreshReloadsAndRecovers(t *testing.T) {
	_, d := newDocument(t, 2, 1)
	reg := NewRegistry(t.TempDir())
	s, _ := reg.GetOrCreate(d.ID(), image.Pt(2, 1))
	m := NewOverlayManager(255)
	if err := m.Reinitialize(d, s); err != nil {
		t.Fatal(err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Pix = []byte{0, 0, 0, 255, 0, 0, 0, 255}
	f, _ := os.Create(s.OverlayPath(ChannelLineart))
	png.Encode(f, img)
	f.Close()

	if err := m.Refresh(d, s); err != nil {
		t.Fatal(err)
	}
	n, err := m.Overlay(d, s, ChannelLineart)
	if err != nil {
		t.Fatal(err)
	}
	if px := n.PixelData(d.Bounds()); px[3] != 255 {
		t.Errorf("overlay not reloaded: %v", px)
	}

	d.RootNode().RemoveChildNode(n)
	if _, err := m.Overlay(d, s, ChannelLineart); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("deleted overlay lookup = %v", err)
	}
	if err := m.Refresh(d, s); err != nil {
		t.Fatal(err)
	}
	if len(overlays(d)) != 3 {
		t.Errorf("overlays after recovery = %d", len(overlays(d)))
	}
}

func TestOverlayLookupOnClosedDocument(t *testing.T) {
	_, d := newDocument(t, 1, 1)
	reg := NewRegistry(t.TempDir())
	s, _ := reg.GetOrCreate(d.ID(), image.Pt(1, 1))
	m := NewOverlayManager(127)
	if _, err := m.Overlay(d, s, ChannelShadow); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("lookup before init = %v", err)
	}
	if err := m.Reinitialize(d, s); err != nil {
		t.Fatal(err)
	}
	d.Close()
	if _, err := m.Overlay(d, s, ChannelShadow); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("lookup on closed document = %v", err)
	}
}

func TestTrackerPhases(t *testing.T) {
	hst, d := newDocument(t, 1, 1)
	other, _ := hst.NewDocument(host.DocumentSpec{Width: 1, Height: 1, Space: host.RGBA8})
	reg := NewRegistry(t.TempDir())
	tr := NewTracker(reg)

	var seen []Phase
	tr.On(func(p Phase, _ host.Document) { seen = append(seen, p) })

	tr.SetActive(d)
	tr.SetActive(d)
	reg.GetOrCreate(d.ID(), image.Pt(1, 1))
	tr.MarkReady(other)
	tr.MarkReady(d)
	tr.SetActive(other)
	tr.SetActive(d)
	tr.SetActive(nil)

	want := []Phase{Uninitialized, Ready, Uninitialized, Ready, NoDocument}
	if len(seen) != len(want) {
		t.Fatalf("phases = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("phases = %v, want %v", seen, want)
		}
	}
	if doc, p := tr.Active(); doc != nil || p != NoDocument {
		t.Errorf("Active = %v, %v", doc, p)
	}
}

func TestChannelAttributes(t *testing.T) {
	tests := []struct {
		c     Channel
		name  string
		blend host.BlendMode
	}{
		{ChannelLineart, "lineart[ChannelBoard SystemLayer]", host.BlendNormal},
		{ChannelShadow, "shadow[ChannelBoard SystemLayer]", host.BlendMultiply},
		{ChannelLight, "light[ChannelBoard SystemLayer]", host.BlendAdd},
	}
	for _, tt := range tests {
		if tt.c.LayerName() != tt.name || tt.c.BlendMode() != tt.blend {
			t.Errorf("%v: %s %v", tt.c, tt.c.LayerName(), tt.c.BlendMode())
		}
		if got, err := ParseChannel(" " + strings.ToUpper(tt.c.String())); err != nil || got != tt.c {
			t.Errorf("ParseChannel(%v) = %v, %v", tt.c, got, err)
		}
	}
	if _, err := ParseChannel("basecolor"); err == nil {
		t.Error("expected unknown channel")
	}
}
