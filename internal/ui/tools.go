package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"ChannelBoard/internal/label"
)

// labelColors are the swatch colors of the color labels, matching the
// host's label palette.
var labelColors = map[label.ColorLabel]color.NRGBA{
	label.None:      {R: 0, G: 0, B: 0, A: 0},
	label.Scribble:  {R: 91, G: 173, B: 220, A: 255},
	label.Lineart:   {R: 151, G: 202, B: 63, A: 255},
	label.BaseColor: {R: 247, G: 229, B: 61, A: 255},
	label.Shadow:    {R: 255, G: 170, B: 63, A: 255},
	label.Light:     {R: 177, G: 102, B: 63, A: 255},
}

// --- Custom Widget for Label Swatches ---
type colorSwatch struct {
	widget.BaseWidget
	Color color.Color
}

func newColorSwatch(l label.ColorLabel) *colorSwatch {
	s := &colorSwatch{Color: labelColors[l]}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(16, 16))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

// NewLegend lists the color labels the board reads.
func NewLegend() fyne.CanvasObject {
	rows := container.NewVBox()
	for _, l := range label.All {
		if l == label.None {
			continue
		}
		rows.Add(container.NewHBox(newColorSwatch(l), widget.NewLabel(l.String())))
	}
	return rows
}
