package memhost

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/host"
)

// Document is an in-memory layered image. The tree, pixel buffers and the
// cached projection are guarded by mu.
type Document struct {
	mu   sync.Mutex
	host *Host

	id         uuid.UUID
	name       string
	width      int
	height     int
	space      host.ColorSpace
	resolution float64

	root   *node
	active *node

	projection *image.NRGBA64
	dirty      bool
	busy       int
	batch      bool
	closed     bool
}

var _ host.Document = (*Document)(nil)

func newDocument(h *Host, spec host.DocumentSpec) (*Document, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("memhost: invalid document size %dx%d", spec.Width, spec.Height)
	}
	if err := spec.Space.Validate(); err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = "Untitled"
	}
	d := &Document{
		host:       h,
		name:       name,
		width:      spec.Width,
		height:     spec.Height,
		space:      spec.Space,
		resolution: spec.Resolution,
		dirty:      true,
	}
	d.root = d.newNode("root", host.GroupLayer)
	d.id = d.root.id
	return d, nil
}

func (d *Document) ID() uuid.UUID { return d.id }

func (d *Document) Name() string { return d.name }

func (d *Document) Width() int { return d.width }

func (d *Document) Height() int { return d.height }

func (d *Document) Bounds() image.Rectangle { return d.bounds() }

func (d *Document) bounds() image.Rectangle { return image.Rect(0, 0, d.width, d.height) }

func (d *Document) ColorSpace() host.ColorSpace {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.space
}

func (d *Document) Resolution() float64 { return d.resolution }

func (d *Document) RootNode() host.Node { return d.root }

func (d *Document) NodeByID(id uuid.UUID) (host.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("node %s: %w: %w", id, host.ErrNotFound, host.ErrClosed)
	}
	if n := findNode(d.root, id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("node %s: %w", id, host.ErrNotFound)
}

func findNode(n *node, id uuid.UUID) *node {
	if n.id == id {
		return n
	}
	for _, c := range n.children {
		if f := findNode(c, id); f != nil {
			return f
		}
	}
	return nil
}

func (d *Document) ActiveNode() host.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return nil
	}
	return d.active
}

func (d *Document) SetActiveNode(hn host.Node) {
	var n *node
	if hn != nil {
		n = d.own(hn)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = n
}

func (d *Document) CreateNode(name string, t host.NodeType) host.Node {
	if t != host.GroupLayer && t != host.PaintLayer {
		panic(fmt.Sprintf("memhost: CreateNode cannot create %s", t))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newNode(name, t)
}

func (d *Document) CreateFileLayer(name, path string, scaling host.FileScaling) (host.FileNode, error) {
	pix, err := loadFile(path, scaling, d.width, d.height)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.newNode(name, host.FileLayer)
	quantizeBuffer(pix, d.space)
	n.pix = pix
	n.path = path
	n.scaling = scaling
	return n, nil
}

func (d *Document) CreateFilterMask(name string, cfg host.LevelsConfig, sel host.Selection) host.Node {
	for i, c := range cfg.Channels {
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("memhost: filter mask %q channel %d: %v", name, i, err))
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.newNode(name, host.FilterMask)
	n.levels = host.LevelsConfig{Channels: append([]host.LevelsCurve(nil), cfg.Channels...)}
	n.sel = sel
	return n
}

func (d *Document) CreateTransparencyMask(name string) host.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newNode(name, host.TransparencyMask)
}

func (d *Document) RefreshProjection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = true
}

func (d *Document) WaitForDone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return host.ErrClosed
	}
	if d.busy > 0 {
		d.busy--
		return host.ErrBusy
	}
	if d.dirty || d.projection == nil {
		d.projection = d.project(d.root)
		d.dirty = false
	}
	return nil
}

// InjectBusy makes the next n WaitForDone calls report host.ErrBusy.
func (d *Document) InjectBusy(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = n
}

// rootProjection returns the last settled projection, rendering one if the
// document was never rendered. Callers hold mu.
func (d *Document) rootProjection() *image.NRGBA64 {
	if d.projection == nil {
		d.projection = d.project(d.root)
	}
	return d.projection
}

func (d *Document) SetColorSpace(cs host.ColorSpace) error {
	if err := cs.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return host.ErrClosed
	}
	d.space = cs
	walk(d.root, func(n *node) {
		quantizeBuffer(n.pix, cs)
	})
	quantizeBuffer(d.projection, cs)
	d.dirty = true
	return nil
}

func walk(n *node, fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

func (d *Document) Clone() (host.Document, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, host.ErrClosed
	}
	c := &Document{
		host:       d.host,
		name:       d.name,
		width:      d.width,
		height:     d.height,
		space:      d.space,
		resolution: d.resolution,
		dirty:      true,
	}
	c.root = d.root.cloneInto(c, nil)
	c.root.id = uuid.New()
	c.id = c.root.id
	if d.active != nil {
		c.active = findNode(c.root, d.active.id)
	}
	d.mu.Unlock()

	if d.host != nil {
		d.host.register(c)
	}
	return c, nil
}

func (d *Document) SetBatchMode(batch bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batch = batch
}

// BatchMode reports whether interactive prompts are suppressed.
func (d *Document) BatchMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batch
}

func (d *Document) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.projection = nil
	d.mu.Unlock()

	if d.host != nil {
		d.host.unregister(d)
	}
	return nil
}

func (d *Document) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Projection returns a copy of the last settled projection as an image.
func (d *Document) Projection() *image.NRGBA64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneBuffer(d.rootProjection())
}
