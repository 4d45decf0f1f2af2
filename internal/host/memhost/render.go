package memhost

import (
	"image"
	"image/color"
	"math"

	"ChannelBoard/internal/host"
)

// project renders n with its masks applied into a new canvas-sized buffer.
// Callers hold d.mu.
func (d *Document) project(n *node) *image.NRGBA64 {
	var buf *image.NRGBA64
	switch n.typ {
	case host.GroupLayer:
		buf = newBuffer(d.width, d.height)
		for _, c := range n.children {
			if c.typ.IsMask() || !c.visible {
				continue
			}
			composite(buf, d.project(c), c.blend, c.opacity, c.inheritAlpha, d.space)
		}
	case host.PaintLayer, host.FileLayer:
		buf = cloneBuffer(n.pix)
	default:
		return newBuffer(d.width, d.height)
	}
	d.applyMasks(n, buf)
	return buf
}

// applyMasks runs n's visible mask children over buf in stacking order.
func (d *Document) applyMasks(n *node, buf *image.NRGBA64) {
	for _, m := range n.children {
		if !m.visible {
			continue
		}
		switch m.typ {
		case host.FilterMask:
			applyLevels(buf, m.levels, m.sel, d.space)
		case host.TransparencyMask:
			applyTransparency(buf, m.mask, d.space.Depth)
		}
	}
}

func normalize(v uint16) float64 { return float64(v) / 0xffff }

// composite blends src over dst. Blending is separable and follows the
// source-over model: the blended color is weighted by the backdrop alpha and
// the result is stored non-premultiplied.
func composite(dst, src *image.NRGBA64, mode host.BlendMode, opacity uint8, inherit bool, cs host.ColorSpace) {
	r := dst.Rect.Intersect(src.Rect)
	op := float64(opacity) / 255
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s := src.NRGBA64At(x, y)
			if s.A == 0 {
				continue
			}
			b := dst.NRGBA64At(x, y)
			ab := normalize(b.A)
			as := normalize(s.A) * op
			if inherit {
				as *= ab
			}
			if as == 0 {
				continue
			}
			ao := as + ab*(1-as)
			channel := func(back, fore float64) float64 {
				mixed := (1-ab)*fore + ab*blendChannel(mode, back, fore)
				return (as*mixed + ab*back*(1-as)) / ao
			}
			out := color.NRGBA64{
				R: quantizeFloat(channel(normalize(b.R), normalize(s.R)), cs.Depth),
				G: quantizeFloat(channel(normalize(b.G), normalize(s.G)), cs.Depth),
				B: quantizeFloat(channel(normalize(b.B), normalize(s.B)), cs.Depth),
				A: quantizeFloat(ao, cs.Depth),
			}
			if cs.Model == host.ModelAlpha {
				out.R, out.G, out.B = 0, 0, 0
			}
			dst.SetNRGBA64(x, y, out)
		}
	}
}

func blendChannel(mode host.BlendMode, cb, cs float64) float64 {
	switch mode {
	case host.BlendMultiply:
		return cb * cs
	case host.BlendAdd:
		return math.Min(1, cb+cs)
	case host.BlendScreen:
		return cb + cs - cb*cs
	default:
		return cs
	}
}

// applyLevels maps every channel of the selected pixels through its curve.
// The selection value weights the filtered result against the original.
func applyLevels(buf *image.NRGBA64, cfg host.LevelsConfig, sel host.Selection, cs host.ColorSpace) {
	r := sel.Rect.Intersect(buf.Rect)
	w := float64(sel.Value) / 255
	if w == 0 {
		return
	}
	level := func(i int, v uint16) uint16 {
		in := normalize(v)
		out := cfg.Curve(i).Apply(in)
		return quantizeFloat(in+(out-in)*w, cs.Depth)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := buf.NRGBA64At(x, y)
			if cs.Model == host.ModelAlpha {
				c.A = level(0, c.A)
			} else {
				c.R = level(0, c.R)
				c.G = level(1, c.G)
				c.B = level(2, c.B)
				c.A = level(3, c.A)
			}
			buf.SetNRGBA64(x, y, c)
		}
	}
}

// applyTransparency multiplies the alpha of buf by the mask.
func applyTransparency(buf *image.NRGBA64, mask *image.Alpha16, depth host.ColorDepth) {
	r := buf.Rect.Intersect(mask.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := mask.Alpha16At(x, y).A
			if m == 0xffff {
				continue
			}
			c := buf.NRGBA64At(x, y)
			c.A = quantizeFloat(normalize(c.A)*normalize(m), depth)
			buf.SetNRGBA64(x, y, c)
		}
	}
}
