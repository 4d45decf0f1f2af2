package ui

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"

	"ChannelBoard/internal/channel"
	"ChannelBoard/internal/config"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/label"
	"ChannelBoard/internal/logging"
	"ChannelBoard/internal/mask"
	"ChannelBoard/internal/net"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
)

var fastSettle = host.SettlePolicy{Attempts: 2, Backoff: time.Millisecond}

// echoService answers with copies of its channel inputs.
type echoService struct{}

func copyFile(dst, src string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

func (echoService) ScribbleToLine(_ context.Context, req net.ScribbleToLineRequest) error {
	return copyFile(req.Output, req.Lineart)
}

func (echoService) DetailColored(_ context.Context, req net.DetailColoredRequest) error {
	if err := copyFile(req.ShadowOutput, req.Shadow); err != nil {
		return err
	}
	return copyFile(req.LightOutput, req.Light)
}

type panelRig struct {
	panel   *Panel
	board   *tasks.Board
	tracker *state.Tracker
	doc     *memhost.Document
	ink     host.Node
}

func newPanelRig(t *testing.T) *panelRig {
	t.Helper()
	test.NewTempApp(t)

	h := memhost.New()
	d, err := h.NewDocument(host.DocumentSpec{Name: "sketch", Width: 2, Height: 1, Space: host.RGBA8, Resolution: 72})
	if err != nil {
		t.Fatal(err)
	}
	ink := d.CreateNode("ink", host.PaintLayer)
	ink.SetColorLabel(label.Lineart)
	if err := ink.SetPixelData([]byte{0, 0, 0, 255, 0, 0, 0, 0}, d.Bounds()); err != nil {
		t.Fatal(err)
	}
	d.RootNode().AddChildNode(ink, nil)

	reg := state.NewRegistry(t.TempDir())
	board := tasks.NewBoard(reg, state.NewOverlayManager(127), channel.NewExporter(fastSettle),
		mask.NewSynthesizer(h, fastSettle, config.Default().Binarize.Passes), echoService{})
	tracker := state.NewTracker(reg)
	board.Tracker = tracker
	t.Cleanup(func() {
		board.Wait()
		reg.Close()
	})
	return &panelRig{panel: NewPanel(board, tracker), board: board, tracker: tracker, doc: d, ink: ink}
}

func TestPanelFollowsPhase(t *testing.T) {
	r := newPanelRig(t)
	p := r.panel

	if p.phaseLabel.Text != "No document" || p.initButton.Visible() || !p.genLineart.Disabled() {
		t.Errorf("no document: label %q init visible %v", p.phaseLabel.Text, p.initButton.Visible())
	}

	r.tracker.SetActive(r.doc)
	if p.phaseLabel.Text != "sketch: not initialized" || p.initButton.Disabled() || !p.genDetail.Disabled() {
		t.Errorf("uninitialized: label %q", p.phaseLabel.Text)
	}

	test.Tap(p.initButton)
	r.board.Wait()
	if p.phaseLabel.Text != "sketch: ready" || p.initButton.Text != "Reload" {
		t.Errorf("ready: label %q button %q", p.phaseLabel.Text, p.initButton.Text)
	}
	if p.genLineart.Disabled() || p.transfer[state.ChannelShadow].Disabled() {
		t.Error("controls disabled after initialize")
	}
}

func TestPanelDisablesWhileBusy(t *testing.T) {
	r := newPanelRig(t)
	p := r.panel
	r.tracker.SetActive(r.doc)
	test.Tap(p.initButton)
	r.board.Wait()

	p.onEvent(tasks.Event{Kind: tasks.TaskStarted, DocumentID: r.doc.ID(), Task: "external"})
	if !p.genLineart.Disabled() || !p.initButton.Disabled() || !p.transfer[state.ChannelLight].Disabled() {
		t.Error("controls enabled while a task runs")
	}
	p.onEvent(tasks.Event{Kind: tasks.TaskFinished, DocumentID: r.doc.ID(), Task: "external"})
	if p.genLineart.Disabled() {
		t.Error("controls not re-enabled")
	}
}

func TestGenerationResetsTransfer(t *testing.T) {
	r := newPanelRig(t)
	p := r.panel
	r.tracker.SetActive(r.doc)
	test.Tap(p.initButton)
	r.board.Wait()

	check := p.transfer[state.ChannelLineart]
	check.SetChecked(true)
	r.board.Wait()
	if len(r.ink.ChildNodes()) != 1 {
		t.Fatalf("transfer did not mask: %v", r.ink.ChildNodes())
	}

	test.Tap(p.genLineart)
	r.board.Wait()
	if check.Checked {
		t.Error("transfer switch still on after generation")
	}
	if len(r.ink.ChildNodes()) != 0 {
		t.Error("mask not baked after reset")
	}
	if p.genLineart.Disabled() || check.Disabled() {
		t.Error("controls left disabled")
	}
}

func TestPanelLogSink(t *testing.T) {
	r := newPanelRig(t)
	p := r.panel
	logger := slog.New(logging.NewFuncHandler(slog.LevelInfo, p.LogSink(), nil))

	logger.Info("gen.done", "doc", "sketch")
	logger.Error("task.failed", "err", "offline")
	lines := p.LogLines()
	if len(lines) != 2 || lines[0] != "gen.done doc=sketch" || !strings.HasPrefix(lines[1], "ERROR task.failed") {
		t.Errorf("lines = %q", lines)
	}

	for i := 0; i < maxLogLines+5; i++ {
		p.Log("x")
	}
	if n := len(p.LogLines()); n != maxLogLines {
		t.Errorf("log kept %d lines", n)
	}
}

func TestPreviewWidget(t *testing.T) {
	test.NewTempApp(t)
	h := memhost.New()
	d, err := h.NewDocument(host.DocumentSpec{Name: "p", Width: 5, Height: 3, Space: host.RGBA8, Resolution: 72})
	if err != nil {
		t.Fatal(err)
	}
	pv := NewPreviewWidget()
	test.WidgetRenderer(pv)

	pv.SetDocument(d)
	if img := pv.Image(); img == nil || img.Bounds().Dx() != 5 || img.Bounds().Dy() != 3 {
		t.Fatalf("image = %v", img)
	}
	d.Close()
	pv.Reload()
	if pv.Image() != nil {
		t.Error("closed document still shown")
	}
	pv.SetDocument(nil)
	if pv.Image() != nil {
		t.Error("nil document shows an image")
	}

	for i := 0; i < 30; i++ {
		pv.ZoomIn()
	}
	if pv.Scale() != 8 {
		t.Errorf("scale = %v", pv.Scale())
	}
	pv.ResetView()
	if pv.Scale() != 1 {
		t.Errorf("scale after reset = %v", pv.Scale())
	}
}
