package memhost

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"ChannelBoard/internal/host"
)

// ExportImage writes the settled projection to path as PNG. The encoding is
// deterministic: identical projections produce identical bytes.
func (d *Document) ExportImage(path string, opts host.ExportOptions) error {
	if opts.Indexed || opts.Interlaced || opts.SaveSRGBProfile || opts.ForceSRGB {
		return fmt.Errorf("%w: export options %+v", host.ErrUnsupported, opts)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return host.ErrClosed
	}
	img := flatten(d.rootProjection(), d.space, opts)
	d.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: compressionLevel(opts.Compression)}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// compressionLevel maps the host's 0-9 compression scale onto the PNG
// encoder levels.
func compressionLevel(c int) png.CompressionLevel {
	switch {
	case c <= 0:
		return png.NoCompression
	case c <= 3:
		return png.BestSpeed
	case c <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// flatten converts a projection into the image handed to the encoder. Alpha
// documents export their alpha as gray; without alpha, transparency is
// composited over the fill color.
func flatten(p *image.NRGBA64, cs host.ColorSpace, opts host.ExportOptions) image.Image {
	r := p.Rect
	if cs.Model == host.ModelAlpha {
		if cs.Depth == host.DepthU8 {
			g := image.NewGray(r)
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					g.SetGray(x, y, color.Gray{Y: uint8(p.NRGBA64At(x, y).A >> 8)})
				}
			}
			return g
		}
		g := image.NewGray16(r)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray16(x, y, color.Gray16{Y: p.NRGBA64At(x, y).A})
			}
		}
		return g
	}

	if opts.Alpha {
		if cs.Depth == host.DepthU8 {
			out := image.NewNRGBA(r)
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					c := p.NRGBA64At(x, y)
					out.SetNRGBA(x, y, color.NRGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: uint8(c.A >> 8)})
				}
			}
			return out
		}
		return cloneBuffer(p)
	}

	fill := opts.FillColor
	fr, fg, fb := normalize(uint16(fill.R)*257), normalize(uint16(fill.G)*257), normalize(uint16(fill.B)*257)
	over := func(c, f, a float64) uint16 { return quantizeFloat(c*a+f*(1-a), cs.Depth) }
	if cs.Depth == host.DepthU8 {
		out := image.NewRGBA(r)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				c := p.NRGBA64At(x, y)
				a := normalize(c.A)
				out.SetRGBA(x, y, color.RGBA{
					R: uint8(over(normalize(c.R), fr, a) >> 8),
					G: uint8(over(normalize(c.G), fg, a) >> 8),
					B: uint8(over(normalize(c.B), fb, a) >> 8),
					A: 0xff,
				})
			}
		}
		return out
	}
	out := image.NewRGBA64(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := p.NRGBA64At(x, y)
			a := normalize(c.A)
			out.SetRGBA64(x, y, color.RGBA64{
				R: over(normalize(c.R), fr, a),
				G: over(normalize(c.G), fg, a),
				B: over(normalize(c.B), fb, a),
				A: 0xffff,
			})
		}
	}
	return out
}
