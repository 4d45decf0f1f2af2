package export

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/jung-kurt/gofpdf"

	"ChannelBoard/internal/state"
)

// Tile is one image on a contact sheet.
type Tile struct {
	Caption string
	Path    string
}

// SessionTiles lists the overlay files of s in channel order.
func SessionTiles(s *state.Session) []Tile {
	tiles := make([]Tile, 0, len(state.Channels))
	for _, c := range state.Channels {
		tiles = append(tiles, Tile{Caption: c.String(), Path: s.OverlayPath(c)})
	}
	return tiles
}

const (
	margin    = 10.0
	gap       = 6.0
	captionH  = 6.0
	titleSize = 14.0
)

// ContactSheet writes a landscape A4 PDF with the tiles side by side under
// title. Transparent areas show the page's checker pattern.
func ContactSheet(path, title string, tiles []Tile) error {
	if len(tiles) == 0 {
		return errors.New("export: no tiles")
	}
	p := gofpdf.New("L", "mm", "A4", "")
	p.AddPage()
	pageW, pageH := p.GetPageSize()

	p.SetFont("Helvetica", "B", titleSize)
	p.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	cellW := (pageW - 2*margin - gap*float64(len(tiles)-1)) / float64(len(tiles))
	top := margin + 12
	maxH := pageH - top - margin - captionH

	p.SetFont("Helvetica", "", 10)
	p.SetDrawColor(0, 0, 0)
	p.SetLineWidth(0.2)
	for i, t := range tiles {
		w, h, err := imageSize(t.Path)
		if err != nil {
			return fmt.Errorf("export: %s: %w", t.Caption, err)
		}
		x := margin + float64(i)*(cellW+gap)
		dw, dh := fit(float64(w), float64(h), cellW, maxH)

		checker(p, x, top, dw, dh)
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		p.ImageOptions(t.Path, x, top, dw, dh, false, opts, 0, "")
		p.Rect(x, top, dw, dh, "D")

		p.SetXY(x, top+dh+1)
		p.CellFormat(dw, captionH, t.Caption, "", 0, "C", false, 0, "")
	}
	return p.OutputFileAndClose(path)
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, errors.New("empty image")
	}
	return cfg.Width, cfg.Height, nil
}

// fit scales w x h to fit inside maxW x maxH keeping the aspect ratio.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	s := maxW / w
	if h*s > maxH {
		s = maxH / h
	}
	return w * s, h * s
}

func checker(p *gofpdf.Fpdf, x, y, w, h float64) {
	const sq = 4.0
	p.SetFillColor(255, 255, 255)
	p.Rect(x, y, w, h, "F")
	p.SetFillColor(220, 220, 220)
	for row := 0; float64(row)*sq < h; row++ {
		for col := row % 2; float64(col)*sq < w; col += 2 {
			cx, cy := x+float64(col)*sq, y+float64(row)*sq
			p.Rect(cx, cy, min(sq, x+w-cx), min(sq, y+h-cy), "F")
		}
	}
}
