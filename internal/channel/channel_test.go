package channel_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/label"
)

var fastSettle = host.SettlePolicy{Attempts: 3, Backoff: time.Millisecond}

type fixture struct {
	host   *memhost.Host
	doc    *memhost.Document
	group  host.Node
	hidden host.Node
	leaves map[label.ColorLabel]host.Node
}

// newFixture builds a 4x1 document: lineart, basecolor and shadow leaves
// inside a group, a scribble leaf at the root and an empty hidden group.
// Each leaf paints one opaque pixel at its own column.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := memhost.New()
	d, err := h.NewEmptyDocument(host.DocumentSpec{Name: "fixture", Width: 4, Height: 1, Space: host.RGBA8, Resolution: 72})
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{host: h, doc: d, leaves: map[label.ColorLabel]host.Node{}}

	f.group = d.CreateNode("colors", host.GroupLayer)
	d.RootNode().AddChildNode(f.group, nil)
	f.hidden = d.CreateNode("hidden", host.GroupLayer)
	f.hidden.SetVisible(false)
	d.RootNode().AddChildNode(f.hidden, nil)

	add := func(parent host.Node, l label.ColorLabel, x int, c color.NRGBA) {
		n := d.CreateNode(l.String(), host.PaintLayer)
		n.SetColorLabel(l)
		if err := n.SetPixelData([]byte{c.R, c.G, c.B, c.A}, image.Rect(x, 0, x+1, 1)); err != nil {
			t.Fatal(err)
		}
		parent.AddChildNode(n, nil)
		f.leaves[l] = n
	}
	add(f.group, label.Lineart, 0, color.NRGBA{R: 255, A: 255})
	add(f.group, label.BaseColor, 1, color.NRGBA{G: 255, A: 255})
	add(f.group, label.Shadow, 2, color.NRGBA{B: 255, A: 255})
	add(d.RootNode(), label.Scribble, 3, color.NRGBA{R: 9, G: 9, B: 9, A: 255})
	return f
}

func TestSetLeafVisibilityAllSelectors(t *testing.T) {
	for bits := 0; bits < 1<<len(label.All); bits++ {
		var sel label.Selector
		for i, l := range label.All {
			if bits&(1<<i) != 0 {
				sel = sel.With(l)
			}
		}
		f := newFixture(t)
		channel.SetLeafVisibility(f.doc.RootNode(), sel)

		if !f.group.Visible() || f.hidden.Visible() {
			t.Fatalf("%v: group visibility changed", sel)
		}
		if !f.doc.RootNode().Visible() {
			t.Fatalf("%v: root hidden", sel)
		}
		for l, n := range f.leaves {
			if n.Visible() != sel.Has(l) {
				t.Errorf("%v: leaf %v visible = %v", sel, l, n.Visible())
			}
		}
	}
}

func TestSetLeafVisibilityIsMonotonicOff(t *testing.T) {
	f := newFixture(t)
	f.leaves[label.Lineart].SetVisible(false)
	channel.SetLeafVisibility(f.doc.RootNode(), label.LineartOnly)
	if f.leaves[label.Lineart].Visible() {
		t.Error("allowed leaf was made visible")
	}
}

func TestSetLeafVisibilityNoLeaves(t *testing.T) {
	h := memhost.New()
	d, _ := h.NewEmptyDocument(host.DocumentSpec{Width: 1, Height: 1, Space: host.RGBA8})
	g := d.CreateNode("empty", host.GroupLayer)
	d.RootNode().AddChildNode(g, nil)
	channel.SetLeafVisibility(d.RootNode(), 0)
	if !g.Visible() {
		t.Error("group hidden")
	}
}

func TestLeaves(t *testing.T) {
	f := newFixture(t)
	got := channel.Leaves(f.doc.RootNode(), label.NewSelector(label.Lineart, label.Scribble, label.Shadow))
	want := []label.ColorLabel{label.Lineart, label.Shadow, label.Scribble}
	if len(got) != len(want) {
		t.Fatalf("got %d leaves", len(got))
	}
	for i, n := range got {
		if n.ColorLabel() != want[i] {
			t.Errorf("leaf %d = %v, want %v", i, n.ColorLabel(), want[i])
		}
	}
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func alphaAt(img image.Image, x, y int) uint32 {
	_, _, _, a := img.At(x, y).RGBA()
	return a >> 8
}

func TestExportLineartOnly(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "lineart.png")
	e := channel.NewExporter(fastSettle)
	if err := e.ExportFiltered(context.Background(), f.doc, label.LineartOnly, true, out); err != nil {
		t.Fatal(err)
	}
	img := readPNG(t, out)
	if img.Bounds() != image.Rect(0, 0, 4, 1) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if r, _, _, a := img.At(0, 0).RGBA(); r>>8 != 255 || a>>8 != 255 {
		t.Errorf("lineart pixel missing")
	}
	for x := 1; x < 4; x++ {
		if a := alphaAt(img, x, 0); a != 0 {
			t.Errorf("pixel %d alpha = %d, want 0", x, a)
		}
	}
}

func TestExportWithoutAlphaFillsWhite(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "scribble.png")
	e := channel.NewExporter(fastSettle)
	if err := e.ExportFiltered(context.Background(), f.doc, label.ScribbleOnly, false, out); err != nil {
		t.Fatal(err)
	}
	img := readPNG(t, out)
	if r, g, b, a := img.At(0, 0).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 || a>>8 != 255 {
		t.Errorf("background not white: %v", img.At(0, 0))
	}
	if r, _, _, _ := img.At(3, 0).RGBA(); r>>8 != 9 {
		t.Errorf("scribble pixel = %v", img.At(3, 0))
	}
}

func TestExportDeterministic(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	e := channel.NewExporter(fastSettle)
	var outs [][]byte
	for _, name := range []string{"a.png", "b.png"} {
		p := filepath.Join(dir, name)
		if err := e.ExportFiltered(context.Background(), f.doc, label.FullColored, true, p); err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, b)
	}
	if !bytes.Equal(outs[0], outs[1]) {
		t.Error("repeated exports differ")
	}
}

func TestExportLeavesLiveDocumentUntouched(t *testing.T) {
	f := newFixture(t)
	e := channel.NewExporter(fastSettle)
	if err := e.ExportFiltered(context.Background(), f.doc, 0, true, filepath.Join(t.TempDir(), "none.png")); err != nil {
		t.Fatal(err)
	}
	for l, n := range f.leaves {
		if !n.Visible() {
			t.Errorf("live leaf %v hidden by export", l)
		}
	}
	if n := len(f.host.Documents()); n != 1 {
		t.Errorf("open documents = %d, want 1", n)
	}
}

func TestExportErrors(t *testing.T) {
	t.Run("unsettled", func(t *testing.T) {
		f := newFixture(t)
		f.host.SetSettleFaults(10)
		e := channel.NewExporter(host.SettlePolicy{Attempts: 2, Backoff: time.Millisecond})
		err := e.ExportFiltered(context.Background(), f.doc, label.LineartOnly, true, filepath.Join(t.TempDir(), "x.png"))
		var ee *channel.ExportError
		if !errors.As(err, &ee) || !errors.Is(err, host.ErrBusy) {
			t.Fatalf("err = %v", err)
		}
		if n := len(f.host.Documents()); n != 1 {
			t.Errorf("clone not closed: %d documents", n)
		}
	})
	t.Run("write", func(t *testing.T) {
		f := newFixture(t)
		p := filepath.Join(t.TempDir(), "missing", "x.png")
		err := channel.NewExporter(fastSettle).ExportFiltered(context.Background(), f.doc, label.LineartOnly, true, p)
		var ee *channel.ExportError
		if !errors.As(err, &ee) || ee.Path != p {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("closed", func(t *testing.T) {
		f := newFixture(t)
		f.doc.Close()
		err := channel.NewExporter(fastSettle).ExportFiltered(context.Background(), f.doc, label.LineartOnly, true, filepath.Join(t.TempDir(), "x.png"))
		if !errors.Is(err, host.ErrClosed) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestExportSet(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	paths, err := channel.NewExporter(fastSettle).ExportSet(context.Background(), f.doc, dir, []channel.Request{
		{Name: "lineart", Allowed: label.LineartOnly, Alpha: true},
		{Name: "base", Allowed: label.BaseColorOnly, Alpha: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[1] != filepath.Join(dir, "base.png") {
		t.Fatalf("paths = %v", paths)
	}
	if a := alphaAt(readPNG(t, paths[1]), 1, 0); a != 255 {
		t.Errorf("base color pixel alpha = %d", a)
	}
}
