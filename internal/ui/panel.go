package ui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
)

const maxLogLines = 200

// Panel is the control panel: setup, generation and transfer controls plus
// a log view. It only observes the board and the tracker; the board's guard
// decides what may run.
type Panel struct {
	board   *tasks.Board
	tracker *state.Tracker

	phaseLabel *widget.Label
	initButton *widget.Button
	genLineart *widget.Button
	genDetail  *widget.Button
	transfer   map[state.Channel]*widget.Check
	logLabel   *widget.Label
	logScroll  *container.Scroll
	container  fyne.CanvasObject

	// UI goroutine only.
	doc      host.Document
	phase    state.Phase
	running  int
	pending  int
	toReset  []state.Channel
	logLines []string

	// OnOverlaysChanged is called after a task changed the document.
	OnOverlaysChanged func()
}

// NewPanel builds the panel and subscribes it to board and tracker events.
func NewPanel(board *tasks.Board, tracker *state.Tracker) *Panel {
	p := &Panel{
		board:    board,
		tracker:  tracker,
		transfer: make(map[state.Channel]*widget.Check),
	}

	p.phaseLabel = widget.NewLabel("")
	p.initButton = widget.NewButton("Initialize", p.onInitialize)
	p.genLineart = widget.NewButton("Gen Lineart", func() {
		p.run(tasks.TaskLineart, p.board.GenerateLineart)
	})
	p.genDetail = widget.NewButton("Gen Detail", func() {
		p.run(tasks.TaskDetail, p.board.GenerateDetail)
	})
	for _, c := range state.Channels {
		c := c
		p.transfer[c] = widget.NewCheck("Transfer", func(on bool) { p.onTransfer(c, on) })
	}

	p.logLabel = widget.NewLabel("")
	p.logLabel.Wrapping = fyne.TextWrapWord
	p.logScroll = container.NewVScroll(p.logLabel)
	p.logScroll.SetMinSize(fyne.NewSize(280, 160))

	channels := container.NewGridWithColumns(3,
		p.channelName(state.ChannelLineart), p.genLineart, p.transfer[state.ChannelLineart],
		p.channelName(state.ChannelShadow), p.genDetail, p.transfer[state.ChannelShadow],
		p.channelName(state.ChannelLight), widget.NewLabel(""), p.transfer[state.ChannelLight],
	)
	p.container = container.NewBorder(
		container.NewVBox(
			widget.NewCard("Document", "", container.NewVBox(p.phaseLabel, p.initButton)),
			widget.NewCard("Channels", "", channels),
			widget.NewCard("Labels", "", NewLegend()),
		),
		nil, nil, nil,
		widget.NewCard("Log", "", p.logScroll),
	)

	tracker.On(func(ph state.Phase, doc host.Document) {
		fyne.Do(func() { p.applyPhase(ph, doc) })
	})
	board.On(func(e tasks.Event) {
		fyne.Do(func() { p.onEvent(e) })
	})
	doc, ph := tracker.Active()
	p.applyPhase(ph, doc)
	return p
}

func (p *Panel) channelName(c state.Channel) fyne.CanvasObject {
	return container.NewHBox(newColorSwatch(c.Label()), widget.NewLabel(c.String()))
}

// Container returns the panel's root object.
func (p *Panel) Container() fyne.CanvasObject {
	return p.container
}

// Log appends a line to the log view. Call it on the UI goroutine.
func (p *Panel) Log(line string) {
	p.logLines = append(p.logLines, line)
	if n := len(p.logLines) - maxLogLines; n > 0 {
		p.logLines = slices.Delete(p.logLines, 0, n)
	}
	p.logLabel.SetText(strings.Join(p.logLines, "\n"))
	p.logScroll.ScrollToBottom()
}

// LogLines returns the lines in the log view.
func (p *Panel) LogLines() []string {
	return slices.Clone(p.logLines)
}

// LogSink returns a callback for logging.NewFuncHandler that appends to the
// log view from any goroutine.
func (p *Panel) LogSink() func(slog.Level, string) {
	return func(l slog.Level, msg string) {
		line := msg
		if l >= slog.LevelWarn {
			line = l.String() + " " + msg
		}
		fyne.Do(func() { p.Log(line) })
	}
}

func (p *Panel) applyPhase(ph state.Phase, doc host.Document) {
	p.doc, p.phase = doc, ph
	switch ph {
	case state.NoDocument:
		p.phaseLabel.SetText("No document")
	case state.Uninitialized:
		p.phaseLabel.SetText(doc.Name() + ": not initialized")
		p.initButton.SetText("Initialize")
	case state.Ready:
		p.phaseLabel.SetText(doc.Name() + ": ready")
		p.initButton.SetText("Reload")
	}
	p.updateControls()
}

func (p *Panel) onEvent(e tasks.Event) {
	switch e.Kind {
	case tasks.TaskStarted:
		p.running++
	case tasks.TaskFinished:
		p.running--
		if p.OnOverlaysChanged != nil {
			p.OnOverlaysChanged()
		}
	case tasks.OverlaysReplaced:
		p.toReset = append(p.toReset, e.Channels...)
	}
	p.updateControls()
	if e.Kind == tasks.TaskFinished {
		p.resetTransfers()
	}
}

// resetTransfers unchecks the switches of regenerated overlays once no task
// runs. Unchecking bakes the old masks like a manual switch-off would.
func (p *Panel) resetTransfers() {
	if p.busy() || len(p.toReset) == 0 {
		return
	}
	reset := p.toReset
	p.toReset = nil
	for _, c := range reset {
		p.transfer[c].SetChecked(false)
	}
}

func (p *Panel) busy() bool {
	return p.running > 0 || p.pending > 0
}

func (p *Panel) updateControls() {
	ready := p.phase == state.Ready && !p.busy()
	setEnabled(p.initButton, p.phase != state.NoDocument && !p.busy())
	setEnabled(p.genLineart, ready)
	setEnabled(p.genDetail, ready)
	for _, c := range state.Channels {
		setEnabled(p.transfer[c], ready)
	}
	if p.phase == state.NoDocument {
		p.initButton.Hide()
	} else {
		p.initButton.Show()
	}
}

type disableable interface {
	Enable()
	Disable()
}

func setEnabled(w disableable, on bool) {
	if on {
		w.Enable()
	} else {
		w.Disable()
	}
}

func (p *Panel) onInitialize() {
	p.run(tasks.TaskInitialize, func(ctx context.Context, doc host.Document) error {
		_, err := p.board.Initialize(ctx, doc)
		return err
	})
}

func (p *Panel) onTransfer(c state.Channel, on bool) {
	p.run(tasks.TaskTransfer, func(ctx context.Context, doc host.Document) error {
		res, err := p.board.Transfer(ctx, doc, c, on)
		if err != nil {
			return err
		}
		if on {
			p.logf("%s: masked %d %s layer(s)", c, len(res.Masks), c.Label())
		}
		return nil
	})
}

func (p *Panel) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	fyne.Do(func() { p.Log(line) })
}

// run disables the controls at once and hands op to the board. Failures
// reach the log view through the task runner's logger.
func (p *Panel) run(name string, op func(ctx context.Context, doc host.Document) error) {
	doc := p.doc
	if doc == nil {
		return
	}
	p.pending++
	p.updateControls()
	p.Log(name)
	p.board.Go(context.Background(), name, doc, op, func(err error) {
		fyne.Do(func() {
			p.pending--
			p.updateControls()
			p.resetTransfers()
		})
	})
}
