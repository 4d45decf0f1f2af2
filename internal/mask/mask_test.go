package mask_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"ChannelBoard/internal/config"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/label"
	"ChannelBoard/internal/mask"
)

var fastSettle = host.SettlePolicy{Attempts: 2, Backoff: time.Millisecond}

type scene struct {
	host *memhost.Host
	doc  *memhost.Document
	base host.Node
	leaf host.Node
}

// newScene builds a 4x2 document with a transparent multiply base layer and a
// lineart leaf whose alpha is binary. Opaque pixels use different colors,
// black included.
func newScene(t *testing.T) *scene {
	t.Helper()
	h := memhost.New()
	d, err := h.NewEmptyDocument(host.DocumentSpec{Name: "scene", Width: 4, Height: 2, Space: host.RGBA8, Resolution: 300})
	if err != nil {
		t.Fatal(err)
	}
	base := d.CreateNode("lineart overlay", host.PaintLayer)
	base.SetBlendMode(host.BlendMultiply)
	d.RootNode().AddChildNode(base, nil)

	leaf := d.CreateNode("ink", host.PaintLayer)
	leaf.SetColorLabel(label.Lineart)
	pix := []byte{
		0, 0, 0, 255, 0, 0, 0, 0, 200, 10, 10, 255, 0, 0, 0, 0,
		0, 0, 0, 0, 30, 200, 90, 255, 0, 0, 0, 0, 255, 255, 255, 255,
	}
	if err := leaf.SetPixelData(pix, d.Bounds()); err != nil {
		t.Fatal(err)
	}
	d.RootNode().AddChildNode(leaf, nil)
	return &scene{host: h, doc: d, base: base, leaf: leaf}
}

func newSynth(h host.Host) *mask.Synthesizer {
	return mask.NewSynthesizer(h, fastSettle, config.Default().Binarize.Passes)
}

func maskOf(t *testing.T, n host.Node) host.Node {
	t.Helper()
	kids := n.ChildNodes()
	if len(kids) != 1 || kids[0].Type() != host.TransparencyMask {
		t.Fatalf("children of %s = %v, want one transparency mask", n.Name(), kids)
	}
	return kids[0]
}

func TestSynthesizeBinaryRoundTrip(t *testing.T) {
	s := newScene(t)
	res, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base)
	if err != nil {
		t.Fatal(err)
	}
	m := maskOf(t, s.leaf)
	want := []byte{255, 0, 255, 0, 0, 255, 0, 255}
	if got := m.PixelData(s.doc.Bounds()); !bytes.Equal(got, want) {
		t.Errorf("mask = %v, want %v", got, want)
	}
	if !m.Locked() {
		t.Error("mask not locked")
	}
	if len(res.Masks) != 1 || res.Masks[0].LayerID != s.leaf.ID() || res.Masks[0].MaskID != m.ID() {
		t.Fatalf("result = %+v", res)
	}
	if st := res.Masks[0].Stats; st.Opaque != 4 || st.Transparent != 4 || !st.Binary() {
		t.Errorf("stats = %+v", st)
	}
}

func TestSynthesizeKeepsBaseBlendMode(t *testing.T) {
	s := newScene(t)
	if _, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base); err != nil {
		t.Fatal(err)
	}
	if got := s.base.BlendMode(); got != host.BlendMultiply {
		t.Errorf("base blend mode = %v, want multiply", got)
	}
}

func TestSynthesizeSaturatesSoftAlpha(t *testing.T) {
	s := newScene(t)
	soft := bytes.Repeat([]byte{50, 50, 50, 12}, 8)
	if err := s.leaf.SetPixelData(soft, s.doc.Bounds()); err != nil {
		t.Fatal(err)
	}
	if _, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base); err != nil {
		t.Fatal(err)
	}
	for i, a := range maskOf(t, s.leaf).PixelData(s.doc.Bounds()) {
		if a < 240 {
			t.Errorf("pixel %d alpha = %d, want near opaque", i, a)
		}
	}
}

func TestSynthesizeIncludesBaseCoverage(t *testing.T) {
	s := newScene(t)
	px := []byte{0, 0, 255, 255}
	if err := s.base.SetPixelData(px, image.Rect(1, 0, 2, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base); err != nil {
		t.Fatal(err)
	}
	got := maskOf(t, s.leaf).PixelData(s.doc.Bounds())
	if got[1] != 255 {
		t.Errorf("base pixel not part of stencil: %v", got)
	}
}

func TestSynthesizeClosesOffscreenDocuments(t *testing.T) {
	s := newScene(t)
	g := s.doc.CreateNode("group", host.GroupLayer)
	s.doc.RootNode().AddChildNode(g, nil)
	nested := s.doc.CreateNode("nested ink", host.PaintLayer)
	nested.SetColorLabel(label.Lineart)
	g.AddChildNode(nested, nil)

	res, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Masks) != 2 || res.Masks[1].Layer != "nested ink" {
		t.Fatalf("result = %+v", res)
	}
	maskOf(t, nested)
	if n := len(s.host.Documents()); n != 1 {
		t.Errorf("open documents = %d, want 1", n)
	}
}

func TestSynthesizeNoMatchingLeaves(t *testing.T) {
	s := newScene(t)
	res, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.ShadowOnly, s.base)
	if err != nil || len(res.Masks) != 0 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestSynthesizeOffscreenBusyAttachesNothing(t *testing.T) {
	s := newScene(t)
	s.host.SetSettleFaults(10)
	_, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base)

	var se *mask.SynthesisError
	if !errors.As(err, &se) || !errors.Is(err, host.ErrBusy) {
		t.Fatalf("err = %v", err)
	}
	if se.Stage != mask.StageComposite || se.Layer != "ink" {
		t.Errorf("stage = %q layer = %q", se.Stage, se.Layer)
	}
	if kids := s.leaf.ChildNodes(); len(kids) != 0 {
		t.Errorf("mask attached after failure: %v", kids)
	}
	if s.base.BlendMode() != host.BlendMultiply {
		t.Error("blend mode not restored after failure")
	}
	if n := len(s.host.Documents()); n != 1 {
		t.Errorf("offscreen documents left open: %d", n)
	}
}

func TestSynthesizeLiveBusyAtCapture(t *testing.T) {
	s := newScene(t)
	s.doc.InjectBusy(10)
	_, err := newSynth(s.host).Synthesize(context.Background(), s.doc, label.LineartOnly, s.base)
	var se *mask.SynthesisError
	if !errors.As(err, &se) || se.Stage != mask.StageCaptureBase {
		t.Fatalf("err = %v", err)
	}
	if s.base.BlendMode() != host.BlendMultiply {
		t.Error("blend mode not restored")
	}
}

// flakyDoc fails every WaitForDone after the first n.
type flakyDoc struct {
	host.Document
	n     int
	calls int
}

func (d *flakyDoc) WaitForDone(ctx context.Context) error {
	d.calls++
	if d.calls > d.n {
		return host.ErrBusy
	}
	return d.Document.WaitForDone(ctx)
}

func TestSynthesizeFinalSettleFailureDetachesMasks(t *testing.T) {
	s := newScene(t)
	doc := &flakyDoc{Document: s.doc, n: 1}
	_, err := newSynth(s.host).Synthesize(context.Background(), doc, label.LineartOnly, s.base)
	var se *mask.SynthesisError
	if !errors.As(err, &se) || se.Stage != mask.StageSettle {
		t.Fatalf("err = %v", err)
	}
	if kids := s.leaf.ChildNodes(); len(kids) != 0 {
		t.Errorf("masks left attached: %v", kids)
	}
}

func TestBakeAndRestore(t *testing.T) {
	s := newScene(t)
	r := s.doc.Bounds()
	before := s.leaf.PixelData(r)

	m := s.doc.CreateTransparencyMask("old")
	if err := m.SetPixelData([]byte{0, 0, 0, 0, 0, 0, 0, 0}, r); err != nil {
		t.Fatal(err)
	}
	s.leaf.AddChildNode(m, nil)

	undo, err := mask.Bake(s.doc, label.LineartOnly)
	if err != nil {
		t.Fatal(err)
	}
	if undo.Len() != 1 {
		t.Fatalf("baked %d layers", undo.Len())
	}
	if len(s.leaf.ChildNodes()) != 0 {
		t.Error("masks not removed")
	}
	for i, a := range s.leaf.PixelData(r) {
		if i%4 == 3 && a != 0 {
			t.Fatalf("baked pixels keep alpha: %v", s.leaf.PixelData(r))
		}
	}

	if err := undo.Restore(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s.leaf.PixelData(r), before) {
		t.Error("pixels not restored")
	}
	if kids := s.leaf.ChildNodes(); len(kids) != 1 || kids[0].ID() != m.ID() {
		t.Errorf("mask not restored: %v", kids)
	}
}

func TestBakeSkipsUnmaskedLeaves(t *testing.T) {
	s := newScene(t)
	undo, err := mask.Bake(s.doc, label.LineartOnly)
	if err != nil || undo.Len() != 0 {
		t.Fatalf("len = %d, err = %v", undo.Len(), err)
	}
}

func TestStats(t *testing.T) {
	st := mask.Stats([]byte{0, 0, 1, 128, 254, 255, 255, 255})
	want := mask.AlphaStats{Transparent: 2, Partial: 3, Opaque: 3}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
	if st.Binary() {
		t.Error("partial stencil reported binary")
	}
}
