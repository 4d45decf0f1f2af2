package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/google/uuid"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
	"ChannelBoard/internal/logging"
	"ChannelBoard/internal/mask"
	"ChannelBoard/internal/net"
	"ChannelBoard/internal/state"
)

// ErrNoSession is returned for documents that were never initialized.
var ErrNoSession = errors.New("tasks: document is not initialized")

// Task names.
const (
	TaskInitialize = "initialize"
	TaskLineart    = "gen_lineart"
	TaskDetail     = "gen_detail"
	TaskTransfer   = "transfer"
	TaskImport     = "import_overlay"
)

// Export sets sent to the generation service, in request order.
var (
	LineartExports = []channel.Request{
		{Name: net.KeyScribble, Allowed: label.ScribbleOnly, Alpha: false},
		{Name: net.KeyLineart, Allowed: label.LineartOnly, Alpha: true},
	}
	DetailExports = []channel.Request{
		{Name: net.KeyFull, Allowed: label.FullColored, Alpha: false},
		{Name: net.KeyBaseColorImage, Allowed: label.LineAndBase, Alpha: false},
		{Name: net.KeyLineart, Allowed: label.LineartOnly, Alpha: true},
		{Name: net.KeyBaseColor, Allowed: label.BaseColorOnly, Alpha: true},
		{Name: net.KeyShadow, Allowed: label.ShadowOnly, Alpha: true},
		{Name: net.KeyLight, Allowed: label.LightOnly, Alpha: true},
	}
)

// EventKind classifies board events.
type EventKind int

const (
	// TaskStarted is emitted once a task holds the document's permit.
	TaskStarted EventKind = iota
	// TaskFinished is emitted after the permit was released.
	TaskFinished
	// OverlaysReplaced is emitted when generation rewrote overlays; their
	// transfer switches no longer apply.
	OverlaysReplaced
)

// Event reports task progress to observers such as the panel.
type Event struct {
	Kind       EventKind
	DocumentID uuid.UUID
	Task       string
	Channels   []state.Channel
	Err        error
}

// Listener observes board events. It is called from the task's goroutine.
type Listener func(Event)

// Board runs the document operations. Every operation holds the document's
// guard permit while it runs.
type Board struct {
	Registry *state.Registry
	Overlays *state.OverlayManager
	Exporter *channel.Exporter
	Synth    *mask.Synthesizer
	Service  net.Service
	Guard    *Guard
	// Tracker is optional; Initialize marks the document ready on it.
	Tracker *state.Tracker
	// ScratchDir holds per-call export directories; empty means os.TempDir.
	ScratchDir string

	runner    Runner
	listeners []Listener
	mu        sync.RWMutex
}

// NewBoard wires a board with a fresh guard.
func NewBoard(reg *state.Registry, overlays *state.OverlayManager, exp *channel.Exporter, synth *mask.Synthesizer, svc net.Service) *Board {
	return &Board{
		Registry: reg,
		Overlays: overlays,
		Exporter: exp,
		Synth:    synth,
		Service:  svc,
		Guard:    NewGuard(),
	}
}

// On registers a listener.
func (b *Board) On(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Board) emit(e Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()
	for _, l := range listeners {
		l(e)
	}
}

func (b *Board) begin(doc host.Document, task string) (func(error), error) {
	release, err := b.Guard.TryAcquire(doc.ID(), task)
	if err != nil {
		return nil, err
	}
	b.emit(Event{Kind: TaskStarted, DocumentID: doc.ID(), Task: task})
	logging.L().Info("task.start", "task", task, "doc", doc.Name())
	return func(err error) {
		release()
		b.emit(Event{Kind: TaskFinished, DocumentID: doc.ID(), Task: task, Err: err})
	}, nil
}

func (b *Board) session(doc host.Document) (*state.Session, error) {
	s, ok := b.Registry.Lookup(doc.ID())
	if !ok {
		return nil, fmt.Errorf("%s: %w", doc.Name(), ErrNoSession)
	}
	return s, nil
}

// Initialize creates the document's session when needed and rebuilds its
// overlays. Calling it again reloads them.
func (b *Board) Initialize(ctx context.Context, doc host.Document) (s *state.Session, err error) {
	end, err := b.begin(doc, TaskInitialize)
	if err != nil {
		return nil, err
	}
	defer func() { end(err) }()

	s, err = b.Registry.GetOrCreate(doc.ID(), image.Pt(doc.Width(), doc.Height()))
	if err != nil {
		return nil, err
	}
	if err := b.Overlays.Reinitialize(doc, s); err != nil {
		return nil, err
	}
	if b.Tracker != nil {
		b.Tracker.MarkReady(doc)
	}
	return s, nil
}

// GenerateLineart sends the scribble and lineart channels to the service and
// reloads the lineart overlay from its answer.
func (b *Board) GenerateLineart(ctx context.Context, doc host.Document) (err error) {
	end, err := b.begin(doc, TaskLineart)
	if err != nil {
		return err
	}
	defer func() { end(err) }()

	s, err := b.session(doc)
	if err != nil {
		return err
	}
	err = b.withExports(ctx, doc, LineartExports, func(p []string) error {
		return b.Service.ScribbleToLine(ctx, net.ScribbleToLineRequest{
			Scribble: p[0],
			Lineart:  p[1],
			Output:   s.OverlayPath(state.ChannelLineart),
		})
	})
	if err != nil {
		return err
	}
	return b.replaced(doc, s, TaskLineart, state.ChannelLineart)
}

// GenerateDetail sends six channel combinations to the service and reloads
// the shadow and light overlays from its answer.
func (b *Board) GenerateDetail(ctx context.Context, doc host.Document) (err error) {
	end, err := b.begin(doc, TaskDetail)
	if err != nil {
		return err
	}
	defer func() { end(err) }()

	s, err := b.session(doc)
	if err != nil {
		return err
	}
	err = b.withExports(ctx, doc, DetailExports, func(p []string) error {
		return b.Service.DetailColored(ctx, net.DetailColoredRequest{
			Full:           p[0],
			BaseColorImage: p[1],
			Lineart:        p[2],
			BaseColor:      p[3],
			Shadow:         p[4],
			Light:          p[5],
			ShadowOutput:   s.OverlayPath(state.ChannelShadow),
			LightOutput:    s.OverlayPath(state.ChannelLight),
		})
	})
	if err != nil {
		return err
	}
	return b.replaced(doc, s, TaskDetail, state.ChannelShadow, state.ChannelLight)
}

// withExports writes reqs into a scratch directory that is removed when fn
// returns.
func (b *Board) withExports(ctx context.Context, doc host.Document, reqs []channel.Request, fn func(paths []string) error) error {
	dir, err := os.MkdirTemp(b.ScratchDir, "channelboard_export_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	paths, err := b.Exporter.ExportSet(ctx, doc, dir, reqs)
	if err != nil {
		return err
	}
	return fn(paths)
}

func (b *Board) replaced(doc host.Document, s *state.Session, task string, channels ...state.Channel) error {
	if err := b.Overlays.Refresh(doc, s); err != nil {
		return err
	}
	b.emit(Event{Kind: OverlaysReplaced, DocumentID: doc.ID(), Task: task, Channels: channels})
	return nil
}

// ImportOverlay replaces c's overlay with the PNG at src. The file is
// checked to decode at the document's size before anything is replaced.
func (b *Board) ImportOverlay(ctx context.Context, doc host.Document, c state.Channel, src string) (err error) {
	end, err := b.begin(doc, TaskImport)
	if err != nil {
		return err
	}
	defer func() { end(err) }()

	s, err := b.session(doc)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("overlay %s: %w", src, err)
	}
	if cfg.Width != doc.Width() || cfg.Height != doc.Height() {
		return fmt.Errorf("overlay %s is %dx%d, document is %dx%d", src, cfg.Width, cfg.Height, doc.Width(), doc.Height())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(s.OverlayPath(c), data, 0o644); err != nil {
		return err
	}
	return b.replaced(doc, s, TaskImport, c)
}

// Transfer bakes the masks of every leaf labelled with c's label. When
// enabled it then masks those leaves against c's overlay. On failure the
// baked leaves are restored. The active node is kept.
func (b *Board) Transfer(ctx context.Context, doc host.Document, c state.Channel, enabled bool) (res mask.Result, err error) {
	end, err := b.begin(doc, TaskTransfer)
	if err != nil {
		return mask.Result{}, err
	}
	defer func() { end(err) }()

	s, err := b.session(doc)
	if err != nil {
		return mask.Result{}, err
	}
	active := doc.ActiveNode()
	defer doc.SetActiveNode(active)

	sel := label.NewSelector(c.Label())
	undo, err := mask.Bake(doc, sel)
	if err != nil {
		return mask.Result{}, err
	}
	if !enabled {
		return mask.Result{}, nil
	}
	base, err := b.Overlays.Overlay(doc, s, c)
	if err != nil {
		return mask.Result{}, errors.Join(err, undo.Restore())
	}
	res, err = b.Synth.Synthesize(ctx, doc, sel, base)
	if err != nil {
		return mask.Result{}, errors.Join(err, undo.Restore())
	}
	return res, nil
}

// Go runs op on doc in the background and reports its outcome to done.
func (b *Board) Go(ctx context.Context, name string, doc host.Document, op func(ctx context.Context, doc host.Document) error, done func(error)) {
	b.runner.Spawn(ctx, name, doc.ID(), func(ctx context.Context) error {
		return op(ctx, doc)
	}, done)
}

// Wait blocks until every background operation finished.
func (b *Board) Wait() {
	b.runner.Wait()
}
