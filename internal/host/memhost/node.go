package memhost

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/google/uuid"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

// node is a layer or mask owned by a Document. All fields are guarded by the
// owning document's mutex.
type node struct {
	doc *Document

	id           uuid.UUID
	name         string
	typ          host.NodeType
	colorLabel   label.ColorLabel
	visible      bool
	blend        host.BlendMode
	opacity      uint8
	locked       bool
	inheritAlpha bool

	parent   *node
	children []*node

	pix  *image.NRGBA64 // paint and file layers
	mask *image.Alpha16 // transparency masks

	levels host.LevelsConfig // filter masks
	sel    host.Selection

	path    string // file layers
	scaling host.FileScaling
}

var (
	_ host.Node     = (*node)(nil)
	_ host.FileNode = (*node)(nil)
)

func (d *Document) newNode(name string, t host.NodeType) *node {
	n := &node{
		doc:     d,
		id:      uuid.New(),
		name:    name,
		typ:     t,
		visible: true,
		opacity: 255,
	}
	switch t {
	case host.PaintLayer, host.FileLayer:
		n.pix = newBuffer(d.width, d.height)
	case host.TransparencyMask:
		// New transparency masks reveal the whole layer.
		n.mask = image.NewAlpha16(image.Rect(0, 0, d.width, d.height))
		for i := range n.mask.Pix {
			n.mask.Pix[i] = 0xff
		}
	}
	return n
}

// own converts a host.Node belonging to this document into its node. Nodes
// from other documents or other hosts are a programming error.
func (d *Document) own(hn host.Node) *node {
	n, ok := hn.(*node)
	if !ok || n.doc != d {
		panic(fmt.Sprintf("memhost: node %v does not belong to document %q", hn, d.name))
	}
	return n
}

func (n *node) String() string { return fmt.Sprintf("%s(%s)", n.typ, n.id) }

func (n *node) ID() uuid.UUID { return n.id }

func (n *node) Name() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.name
}

func (n *node) SetName(name string) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.name = name
}

func (n *node) Type() host.NodeType { return n.typ }

func (n *node) ColorLabel() label.ColorLabel {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.colorLabel
}

func (n *node) SetColorLabel(l label.ColorLabel) {
	if !l.Valid() {
		panic(fmt.Sprintf("memhost: invalid color label %d", l))
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.colorLabel = l
}

func (n *node) Visible() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.visible
}

func (n *node) SetVisible(visible bool) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.visible = visible
}

func (n *node) BlendMode() host.BlendMode {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.blend
}

func (n *node) SetBlendMode(mode host.BlendMode) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.blend = mode
}

func (n *node) Opacity() uint8 {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.opacity
}

func (n *node) SetOpacity(opacity uint8) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.opacity = opacity
}

func (n *node) Locked() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.locked
}

func (n *node) SetLocked(locked bool) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.locked = locked
}

func (n *node) InheritAlpha() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.inheritAlpha
}

func (n *node) SetInheritAlpha(inherit bool) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.inheritAlpha = inherit
}

func (n *node) Parent() host.Node {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) ChildNodes() []host.Node {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	out := make([]host.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *node) AddChildNode(child, above host.Node) bool {
	c := n.doc.own(child)
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	if n.typ.IsMask() || c.parent != nil || c == n || n.hasAncestor(c) {
		return false
	}
	idx := len(n.children)
	if above != nil {
		a := n.doc.own(above)
		i := slices.Index(n.children, a)
		if i < 0 {
			return false
		}
		idx = i + 1
	}
	n.children = slices.Insert(n.children, idx, c)
	c.parent = n
	return true
}

func (n *node) RemoveChildNode(child host.Node) bool {
	c := n.doc.own(child)
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	i := slices.Index(n.children, c)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	c.parent = nil
	if n.doc.active == c {
		n.doc.active = nil
	}
	return true
}

func (n *node) hasAncestor(a *node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

func (n *node) Bounds() image.Rectangle {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	switch n.typ {
	case host.TransparencyMask:
		return alphaBounds(n.mask)
	case host.FilterMask:
		return n.sel.Rect
	case host.GroupLayer:
		return opaqueBounds(n.doc.project(n))
	default:
		return opaqueBounds(n.pix)
	}
}

func (n *node) PixelData(r image.Rectangle) []byte {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.pixelData(r)
}

// pixelData encodes the raw content of n. Masks always use 8-bit alpha.
func (n *node) pixelData(r image.Rectangle) []byte {
	switch n.typ {
	case host.TransparencyMask:
		return encodeAlpha(n.mask, r)
	case host.FilterMask:
		a := image.NewAlpha16(n.doc.bounds())
		sel := n.sel.Rect.Intersect(a.Rect)
		for y := sel.Min.Y; y < sel.Max.Y; y++ {
			for x := sel.Min.X; x < sel.Max.X; x++ {
				a.SetAlpha16(x, y, color.Alpha16{A: uint16(n.sel.Value) * 257})
			}
		}
		return encodeAlpha(a, r)
	case host.GroupLayer:
		return encodePixels(n.doc.project(n), r, n.doc.space)
	default:
		return encodePixels(n.pix, r, n.doc.space)
	}
}

func (n *node) ProjectionPixelData(r image.Rectangle) []byte {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	switch {
	case n.typ.IsMask():
		return n.pixelData(r)
	case n == n.doc.root:
		return encodePixels(n.doc.rootProjection(), r, n.doc.space)
	default:
		return encodePixels(n.doc.project(n), r, n.doc.space)
	}
}

func (n *node) SetPixelData(data []byte, r image.Rectangle) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	switch n.typ {
	case host.TransparencyMask:
		return decodeAlpha(n.mask, data, r)
	case host.PaintLayer, host.FileLayer:
		if err := decodePixels(n.pix, data, r, n.doc.space); err != nil {
			return err
		}
		quantizeBuffer(n.pix, n.doc.space)
		return nil
	default:
		return fmt.Errorf("%w: set pixel data on %s", host.ErrUnsupported, n.typ)
	}
}

func (n *node) Path() string { return n.path }

func (n *node) Scaling() host.FileScaling { return n.scaling }

func (n *node) Reload() error {
	if n.typ != host.FileLayer {
		return fmt.Errorf("%w: reload %s", host.ErrUnsupported, n.typ)
	}
	pix, err := loadFile(n.path, n.scaling, n.doc.width, n.doc.height)
	if err != nil {
		return err
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	quantizeBuffer(pix, n.doc.space)
	n.pix = pix
	return nil
}

// cloneInto deep-copies n and its subtree into document d, keeping ids.
func (n *node) cloneInto(d *Document, parent *node) *node {
	c := *n
	c.doc = d
	c.parent = parent
	c.pix = cloneBuffer(n.pix)
	c.mask = cloneAlpha(n.mask)
	c.levels = host.LevelsConfig{Channels: slices.Clone(n.levels.Channels)}
	c.children = make([]*node, len(n.children))
	for i, ch := range n.children {
		c.children[i] = ch.cloneInto(d, &c)
	}
	return &c
}
