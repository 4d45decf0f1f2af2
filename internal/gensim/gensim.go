// Package gensim is a deterministic stand-in for the generation service. It
// derives overlays from the channel exports with plain pixel rules so the
// board can be exercised without a model server.
package gensim

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"ChannelBoard/internal/net"
)

// Ink colors of the generated overlays.
var (
	LineColor   = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	ShadowColor = color.NRGBA{R: 60, G: 40, B: 110, A: 255}
	LightColor  = color.NRGBA{R: 255, G: 240, B: 200, A: 255}
)

// Handler answers scribble_to_line and detail_colored requests.
type Handler struct {
	// Threshold is the luminance difference (0-255) a pixel needs to count
	// as a stroke, a shadow or a light.
	Threshold uint8
}

var _ net.Handler = (*Handler)(nil)

// New returns a handler with the default threshold.
func New() *Handler {
	return &Handler{Threshold: 24}
}

func (h *Handler) Handle(ctx context.Context, op string, in map[string][]byte) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch op {
	case net.OpScribbleToLine:
		return h.scribbleToLine(in)
	case net.OpDetailColored:
		return h.detailColored(in)
	}
	return nil, fmt.Errorf("unknown op %q", op)
}

func decodeInputs(in map[string][]byte, keys ...string) (map[string]*image.NRGBA, error) {
	imgs := make(map[string]*image.NRGBA, len(keys))
	var size image.Rectangle
	for _, k := range keys {
		b, ok := in[k]
		if !ok {
			return nil, fmt.Errorf("missing input %s", k)
		}
		src, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", k, err)
		}
		r := src.Bounds().Sub(src.Bounds().Min)
		if size.Empty() {
			size = r
		} else if r != size {
			return nil, fmt.Errorf("input %s is %v, want %v", k, r.Size(), size.Size())
		}
		dst := image.NewNRGBA(r)
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
		imgs[k] = dst
	}
	return imgs, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// luma returns the luminance of c composited over white.
func luma(c color.NRGBA) int {
	a := int(c.A)
	r := (int(c.R)*a + 255*(255-a)) / 255
	g := (int(c.G)*a + 255*(255-a)) / 255
	b := (int(c.B)*a + 255*(255-a)) / 255
	return (299*r + 587*g + 114*b) / 1000
}

// scribbleToLine inks every dark scribble pixel and keeps the existing
// lineart on top.
func (h *Handler) scribbleToLine(in map[string][]byte) (map[string][]byte, error) {
	imgs, err := decodeInputs(in, net.KeyScribble, net.KeyLineart)
	if err != nil {
		return nil, err
	}
	scribble, lineart := imgs[net.KeyScribble], imgs[net.KeyLineart]
	out := image.NewNRGBA(scribble.Rect)
	limit := 255 - int(h.Threshold)
	for y := out.Rect.Min.Y; y < out.Rect.Max.Y; y++ {
		for x := out.Rect.Min.X; x < out.Rect.Max.X; x++ {
			if luma(scribble.NRGBAAt(x, y)) < limit {
				out.SetNRGBA(x, y, LineColor)
			}
		}
	}
	draw.Draw(out, out.Rect, lineart, lineart.Rect.Min, draw.Over)
	b, err := encode(out)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{net.KeyLineart: b}, nil
}

// detailColored compares the full render against the base colors: darker
// pixels become shadow, brighter ones light. The existing overlays are kept
// underneath.
func (h *Handler) detailColored(in map[string][]byte) (map[string][]byte, error) {
	imgs, err := decodeInputs(in, net.KeyFull, net.KeyBaseColorImage, net.KeyLineart,
		net.KeyBaseColor, net.KeyShadow, net.KeyLight)
	if err != nil {
		return nil, err
	}
	full, base, lineart := imgs[net.KeyFull], imgs[net.KeyBaseColorImage], imgs[net.KeyLineart]
	shadow := image.NewNRGBA(full.Rect)
	light := image.NewNRGBA(full.Rect)
	draw.Draw(shadow, shadow.Rect, imgs[net.KeyShadow], shadow.Rect.Min, draw.Src)
	draw.Draw(light, light.Rect, imgs[net.KeyLight], light.Rect.Min, draw.Src)

	t := int(h.Threshold)
	for y := full.Rect.Min.Y; y < full.Rect.Max.Y; y++ {
		for x := full.Rect.Min.X; x < full.Rect.Max.X; x++ {
			// Strokes are neither shadow nor light.
			if lineart.NRGBAAt(x, y).A > 127 {
				continue
			}
			d := luma(full.NRGBAAt(x, y)) - luma(base.NRGBAAt(x, y))
			switch {
			case d < -t:
				shadow.SetNRGBA(x, y, withAlpha(ShadowColor, -d))
			case d > t:
				light.SetNRGBA(x, y, withAlpha(LightColor, d))
			}
		}
	}

	sb, err := encode(shadow)
	if err != nil {
		return nil, err
	}
	lb, err := encode(light)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{net.KeyShadow: sb, net.KeyLight: lb}, nil
}

func withAlpha(c color.NRGBA, strength int) color.NRGBA {
	a := 2 * strength
	if a > 255 {
		a = 255
	}
	c.A = uint8(a)
	return c
}
