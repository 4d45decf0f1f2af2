package ui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"ChannelBoard/internal/host"
)

// projector is implemented by documents that can hand out their composited
// image.
type projector interface {
	Projection() *image.NRGBA64
}

// PreviewWidget shows the settled projection of the active document over a
// checker background. Scrolling zooms.
type PreviewWidget struct {
	widget.BaseWidget
	mu    sync.RWMutex
	doc   host.Document
	img   image.Image
	scale float32
}

var _ fyne.Widget = (*PreviewWidget)(nil)
var _ fyne.Scrollable = (*PreviewWidget)(nil)

func NewPreviewWidget() *PreviewWidget {
	p := &PreviewWidget{scale: 1}
	p.ExtendBaseWidget(p)
	return p
}

// SetDocument switches the preview to doc. A nil doc clears it.
func (p *PreviewWidget) SetDocument(doc host.Document) {
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	p.Reload()
}

// Reload fetches the document's projection again.
func (p *PreviewWidget) Reload() {
	p.mu.Lock()
	p.img = nil
	if pr, ok := p.doc.(projector); ok && !p.doc.Closed() {
		p.img = pr.Projection()
	}
	p.mu.Unlock()
	p.Refresh()
}

// Image returns the image currently shown.
func (p *PreviewWidget) Image() image.Image {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.img
}

func (p *PreviewWidget) Scale() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scale
}

func (p *PreviewWidget) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		p.ZoomIn()
	} else {
		p.ZoomOut()
	}
}

func (p *PreviewWidget) ZoomIn() {
	p.mu.Lock()
	p.scale *= 1.2
	if p.scale > 8 {
		p.scale = 8
	}
	p.mu.Unlock()
	p.Refresh()
}

func (p *PreviewWidget) ZoomOut() {
	p.mu.Lock()
	p.scale /= 1.2
	if p.scale < 0.1 {
		p.scale = 0.1
	}
	p.mu.Unlock()
	p.Refresh()
}

func (p *PreviewWidget) ResetView() {
	p.mu.Lock()
	p.scale = 1
	p.mu.Unlock()
	p.Refresh()
}

func (p *PreviewWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &previewRenderer{preview: p}
	r.background = canvas.NewRasterWithPixels(func(x, y, w, h int) color.Color {
		if (x/8+y/8)%2 == 0 {
			return color.NRGBA{R: 245, G: 246, B: 248, A: 255}
		}
		return color.NRGBA{R: 220, G: 220, B: 220, A: 255}
	})
	r.image = canvas.NewImageFromImage(nil)
	r.image.FillMode = canvas.ImageFillContain
	r.image.ScaleMode = canvas.ImageScalePixels
	return r
}

type previewRenderer struct {
	preview    *PreviewWidget
	background *canvas.Raster
	image      *canvas.Image
}

func (r *previewRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.background, r.image}
}

func (r *previewRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	img := r.preview.Image()
	if img == nil {
		r.image.Resize(fyne.NewSize(0, 0))
		return
	}
	b := img.Bounds()
	s := r.preview.Scale()
	w, h := float32(b.Dx())*s, float32(b.Dy())*s
	if w > size.Width || h > size.Height {
		w, h = size.Width, size.Height
	}
	r.image.Resize(fyne.NewSize(w, h))
	r.image.Move(fyne.NewPos((size.Width-w)/2, (size.Height-h)/2))
}

func (r *previewRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *previewRenderer) Refresh() {
	r.image.Image = r.preview.Image()
	r.Layout(r.preview.Size())
	r.image.Refresh()
	canvas.Refresh(r.preview)
}

func (r *previewRenderer) Destroy() {}
