// Package mask turns label-selected layers into transparency-mask stencils.
//
// Every stencil is computed in a disposable offscreen document: the base
// layer's pixels and the leaf's rendered pixels are stacked, the leaf copy is
// pushed through steep alpha levels passes, and the composite is converted to
// a single 8-bit alpha channel. Masks are attached to the live document only
// once every stencil is ready.
package mask

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
	"ChannelBoard/internal/logging"
)

// Stage names the step of a synthesis that failed.
type Stage string

const (
	StageCaptureBase Stage = "capture base"
	StageOffscreen   Stage = "offscreen document"
	StageComposite   Stage = "composite"
	StageBinarize    Stage = "binarize"
	StageStencil     Stage = "stencil"
	StageAttach      Stage = "attach"
	StageSettle      Stage = "settle"
	StageBake        Stage = "bake"
)

// SynthesisError reports a failed synthesis. Layer is empty for failures
// that do not concern a single leaf.
type SynthesisError struct {
	Stage Stage
	Layer string
	Err   error
}

func (e *SynthesisError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("mask synthesis: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("mask synthesis: %s %q: %v", e.Stage, e.Layer, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Synthesizer creates transparency masks from label-selected leaves.
type Synthesizer struct {
	Host   host.Host
	Settle host.SettlePolicy
	// Passes holds the alpha curve of each levels pass, applied in order.
	Passes []host.LevelsCurve
}

// NewSynthesizer returns a synthesizer creating offscreen documents on h.
func NewSynthesizer(h host.Host, settle host.SettlePolicy, passes []host.LevelsCurve) *Synthesizer {
	return &Synthesizer{Host: h, Settle: settle, Passes: passes}
}

// Attached describes one mask added by Synthesize.
type Attached struct {
	LayerID uuid.UUID
	Layer   string
	MaskID  uuid.UUID
	Stats   AlphaStats
}

// Result lists the masks added by Synthesize, bottom-most leaf first.
type Result struct {
	Masks []Attached
}

// Synthesize attaches a locked transparency mask to every leaf under doc's
// root whose label is in allowed. The mask is opaque wherever the leaf,
// composited over base, has any alpha. On failure no mask is left attached
// and base keeps its blend mode.
func (s *Synthesizer) Synthesize(ctx context.Context, doc host.Document, allowed label.Selector, base host.Node) (Result, error) {
	if base == nil {
		panic("mask: Synthesize without base layer")
	}
	log := logging.L().With("doc", doc.Name(), "labels", allowed.String())

	basePix, err := s.captureBase(ctx, doc, base)
	if err != nil {
		return Result{}, err
	}

	leaves := channel.Leaves(doc.RootNode(), allowed)
	stencils := make([][]byte, len(leaves))
	for i, l := range leaves {
		st, err := s.stencil(ctx, doc, basePix, l)
		if err != nil {
			return Result{}, err
		}
		stencils[i] = st
	}

	r := doc.Bounds()
	res := Result{Masks: make([]Attached, 0, len(leaves))}
	var masks []host.Node
	detach := func() {
		for i, m := range masks {
			leaves[i].RemoveChildNode(m)
		}
		doc.RefreshProjection()
	}
	for i, l := range leaves {
		m := doc.CreateTransparencyMask("mask")
		if err := m.SetPixelData(stencils[i], r); err != nil {
			detach()
			return Result{}, &SynthesisError{Stage: StageAttach, Layer: l.Name(), Err: err}
		}
		m.SetLocked(true)
		if !l.AddChildNode(m, nil) {
			detach()
			return Result{}, &SynthesisError{Stage: StageAttach, Layer: l.Name(), Err: fmt.Errorf("layer rejected mask")}
		}
		masks = append(masks, m)

		a := Attached{LayerID: l.ID(), Layer: l.Name(), MaskID: m.ID(), Stats: Stats(stencils[i])}
		log.Debug("mask.attached", "layer", a.Layer, "transparent", a.Stats.Transparent, "partial", a.Stats.Partial, "opaque", a.Stats.Opaque)
		res.Masks = append(res.Masks, a)
	}

	if err := host.Render(ctx, doc, s.Settle); err != nil {
		detach()
		return Result{}, &SynthesisError{Stage: StageSettle, Err: err}
	}
	log.Info("mask.synthesized", "masks", len(res.Masks))
	return res, nil
}

// captureBase renders doc with base in normal blend mode and returns base's
// pixels for the whole canvas. The blend mode is restored on return.
func (s *Synthesizer) captureBase(ctx context.Context, doc host.Document, base host.Node) ([]byte, error) {
	mode := base.BlendMode()
	base.SetBlendMode(host.BlendNormal)
	defer func() {
		base.SetBlendMode(mode)
		doc.RefreshProjection()
	}()

	if err := host.Render(ctx, doc, s.Settle); err != nil {
		return nil, &SynthesisError{Stage: StageCaptureBase, Layer: base.Name(), Err: err}
	}
	return base.ProjectionPixelData(doc.Bounds()), nil
}

// stencil computes the 8-bit alpha stencil of leaf in an offscreen document
// matching doc's canvas and color space.
func (s *Synthesizer) stencil(ctx context.Context, doc host.Document, basePix []byte, leaf host.Node) ([]byte, error) {
	name := leaf.Name()
	fail := func(stage Stage, err error) error {
		return &SynthesisError{Stage: stage, Layer: name, Err: err}
	}

	cs := doc.ColorSpace()
	off, err := s.Host.CreateDocument(host.DocumentSpec{
		Name:       "Image",
		Width:      doc.Width(),
		Height:     doc.Height(),
		Space:      cs,
		Resolution: doc.Resolution(),
	})
	if err != nil {
		return nil, fail(StageOffscreen, err)
	}
	defer off.Close()

	r := off.Bounds()
	root := off.RootNode()

	// The new document's own layer goes back on top, unused.
	var placeholder host.Node
	if kids := root.ChildNodes(); len(kids) > 0 {
		placeholder = kids[0]
		root.RemoveChildNode(placeholder)
		placeholder.SetInheritAlpha(true)
	}

	baseCopy := off.CreateNode("base_layer", host.PaintLayer)
	if err := baseCopy.SetPixelData(basePix, r); err != nil {
		return nil, fail(StageComposite, err)
	}
	leafCopy := off.CreateNode("l", host.PaintLayer)
	if err := leafCopy.SetPixelData(leaf.ProjectionPixelData(r), r); err != nil {
		return nil, fail(StageComposite, err)
	}
	root.AddChildNode(baseCopy, nil)
	root.AddChildNode(leafCopy, nil)
	if placeholder != nil {
		root.AddChildNode(placeholder, nil)
	}
	if err := host.Render(ctx, off, s.Settle); err != nil {
		return nil, fail(StageComposite, err)
	}

	for _, curve := range s.Passes {
		fm := off.CreateFilterMask("binarize_filter_mask", binarizeLevels(cs, curve), host.SelectAll(r))
		leafCopy.AddChildNode(fm, nil)
	}
	if err := host.Render(ctx, off, s.Settle); err != nil {
		return nil, fail(StageBinarize, err)
	}

	if err := baseCopy.SetPixelData(root.ProjectionPixelData(r), r); err != nil {
		return nil, fail(StageBinarize, err)
	}
	root.RemoveChildNode(leafCopy)
	if placeholder != nil {
		root.RemoveChildNode(placeholder)
	}
	if err := host.Render(ctx, off, s.Settle); err != nil {
		return nil, fail(StageBinarize, err)
	}

	if err := off.SetColorSpace(host.Alpha8); err != nil {
		return nil, fail(StageStencil, err)
	}
	if err := host.Render(ctx, off, s.Settle); err != nil {
		return nil, fail(StageStencil, err)
	}
	return root.ProjectionPixelData(r), nil
}

// binarizeLevels leaves color channels unchanged and maps alpha through
// curve.
func binarizeLevels(cs host.ColorSpace, curve host.LevelsCurve) host.LevelsConfig {
	if cs.Model == host.ModelAlpha {
		return host.LevelsConfig{Channels: []host.LevelsCurve{curve}}
	}
	return host.LevelsConfig{Channels: []host.LevelsCurve{
		host.IdentityLevels, host.IdentityLevels, host.IdentityLevels, curve,
	}}
}
