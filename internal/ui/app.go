package ui

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"ChannelBoard/internal/export"
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/host/memhost"
	"ChannelBoard/internal/state"
	"ChannelBoard/internal/tasks"
)

// App is the desktop window: the document list and preview next to the
// control panel.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	host    *memhost.Host
	board   *tasks.Board
	tracker *state.Tracker

	Panel   *Panel
	Preview *PreviewWidget
	docs    *widget.Select
}

// NewApp builds the window and follows h's active document.
func NewApp(a fyne.App, h *memhost.Host, board *tasks.Board, tracker *state.Tracker) *App {
	w := a.NewWindow("ChannelBoard")
	w.Resize(fyne.NewSize(1100, 760))

	app := &App{
		fyneApp: a,
		window:  w,
		host:    h,
		board:   board,
		tracker: tracker,
		Panel:   NewPanel(board, tracker),
		Preview: NewPreviewWidget(),
	}
	app.Panel.OnOverlaysChanged = app.Preview.Reload
	app.docs = widget.NewSelect(nil, app.onSelectDocument)
	app.docs.PlaceHolder = "No document"

	h.OnActiveDocumentChanged(func(doc host.Document) {
		tracker.SetActive(doc)
		fyne.Do(func() {
			app.Preview.SetDocument(doc)
			app.syncDocuments()
		})
	})

	toolbar := container.NewHBox(
		widget.NewLabel("Document:"),
		app.docs,
		widget.NewSeparator(),
		widget.NewButton("-", app.Preview.ZoomOut),
		widget.NewButton("+", app.Preview.ZoomIn),
		widget.NewButton("1:1", app.Preview.ResetView),
	)
	split := container.NewHSplit(
		container.NewBorder(toolbar, nil, nil, nil, app.Preview),
		app.Panel.Container(),
	)
	split.Offset = 0.65

	w.SetMainMenu(app.menu())
	w.SetContent(split)
	w.SetOnClosed(func() {
		board.Wait()
	})
	return app
}

func (a *App) menu() *fyne.MainMenu {
	return fyne.NewMainMenu(
		fyne.NewMenu("File",
			fyne.NewMenuItem("Open Document...", a.onOpen),
			fyne.NewMenuItem("Close Document", a.onClose),
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Export Contact Sheet...", a.onContactSheet),
		),
	)
}

// Open loads a document manifest and makes it the active document.
func (a *App) Open(path string) error {
	doc, err := a.host.LoadManifest(path)
	if err != nil {
		return err
	}
	log.Printf("[APP] Opened %s (%dx%d)", doc.Name(), doc.Width(), doc.Height())
	a.host.SetActiveDocument(doc)
	return nil
}

func (a *App) syncDocuments() {
	var names []string
	for _, d := range a.host.Documents() {
		names = append(names, documentTitle(d))
	}
	a.docs.SetOptions(names)
	if active := a.host.ActiveDocument(); active != nil {
		a.docs.SetSelected(documentTitle(active))
	} else {
		a.docs.ClearSelected()
	}
}

func documentTitle(d host.Document) string {
	return fmt.Sprintf("%s [%s]", d.Name(), d.ID().String()[:8])
}

func (a *App) onSelectDocument(title string) {
	for _, d := range a.host.Documents() {
		if documentTitle(d) == title {
			a.host.SetActiveDocument(d)
			return
		}
	}
}

func (a *App) onOpen() {
	fd := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		if err := a.Open(path); err != nil {
			dialog.ShowError(err, a.window)
		}
	}, a.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".yaml", ".yml"}))
	fd.Show()
}

func (a *App) onClose() {
	doc := a.host.ActiveDocument()
	if doc == nil {
		return
	}
	if _, busy := a.board.Guard.Holder(doc.ID()); busy {
		dialog.ShowInformation("Busy", "Wait for the running task to finish.", a.window)
		return
	}
	if err := a.board.Registry.Remove(doc.ID()); err != nil {
		log.Printf("[APP] %v", err)
	}
	doc.Close()
	a.syncDocuments()
}

func (a *App) onContactSheet() {
	doc, ph := a.tracker.Active()
	if ph != state.Ready {
		dialog.ShowInformation("Contact sheet", "Initialize the document first.", a.window)
		return
	}
	s, ok := a.board.Registry.Lookup(doc.ID())
	if !ok {
		return
	}
	fd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		path := wc.URI().Path()
		wc.Close()
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			path += ".pdf"
		}
		if err := export.ContactSheet(path, doc.Name(), export.SessionTiles(s)); err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		a.Panel.Log("contact sheet written to " + path)
	}, a.window)
	fd.SetFileName(doc.Name() + "-channels.pdf")
	fd.Show()
}

// ShowAndRun runs the event loop.
func (a *App) ShowAndRun() {
	a.window.ShowAndRun()
}
