package memhost

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"ChannelBoard/internal/host"
)

// Pixels are stored as 16-bit non-premultiplied RGBA covering the canvas.
// Values are kept quantized to the document depth so that 8-bit documents
// only ever hold multiples of 257.

func newBuffer(w, h int) *image.NRGBA64 {
	return image.NewNRGBA64(image.Rect(0, 0, w, h))
}

func cloneBuffer(b *image.NRGBA64) *image.NRGBA64 {
	if b == nil {
		return nil
	}
	out := image.NewNRGBA64(b.Rect)
	copy(out.Pix, b.Pix)
	return out
}

func cloneAlpha(a *image.Alpha16) *image.Alpha16 {
	if a == nil {
		return nil
	}
	out := image.NewAlpha16(a.Rect)
	copy(out.Pix, a.Pix)
	return out
}

// quantize rounds v to the nearest value representable at depth d.
func quantize(v uint16, d host.ColorDepth) uint16 {
	if d != host.DepthU8 {
		return v
	}
	v8 := (uint32(v)*255 + 32767) / 65535
	return uint16(v8 * 257)
}

func quantizeFloat(f float64, d host.ColorDepth) uint16 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 0xffff
	}
	return quantize(uint16(f*65535+0.5), d)
}

func quantizeBuffer(b *image.NRGBA64, cs host.ColorSpace) {
	if b == nil {
		return
	}
	for y := b.Rect.Min.Y; y < b.Rect.Max.Y; y++ {
		for x := b.Rect.Min.X; x < b.Rect.Max.X; x++ {
			c := b.NRGBA64At(x, y)
			if cs.Model == host.ModelAlpha {
				c.R, c.G, c.B = 0, 0, 0
			} else {
				c.R = quantize(c.R, cs.Depth)
				c.G = quantize(c.G, cs.Depth)
				c.B = quantize(c.B, cs.Depth)
			}
			c.A = quantize(c.A, cs.Depth)
			b.SetNRGBA64(x, y, c)
		}
	}
}

func putChannel(dst []byte, v uint16, d host.ColorDepth) int {
	if d == host.DepthU8 {
		dst[0] = uint8(v >> 8)
		return 1
	}
	binary.LittleEndian.PutUint16(dst, v)
	return 2
}

func readChannel(src []byte, d host.ColorDepth) (uint16, int) {
	if d == host.DepthU8 {
		return uint16(src[0]) * 257, 1
	}
	return binary.LittleEndian.Uint16(src), 2
}

// encodePixels serializes r from b in color space cs. Pixels of r outside b
// read as transparent.
func encodePixels(b *image.NRGBA64, r image.Rectangle, cs host.ColorSpace) []byte {
	out := make([]byte, r.Dx()*r.Dy()*cs.PixelSize())
	off := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			var c color.NRGBA64
			if b != nil && (image.Point{X: x, Y: y}).In(b.Rect) {
				c = b.NRGBA64At(x, y)
			}
			if cs.Model == host.ModelRGBA {
				off += putChannel(out[off:], c.R, cs.Depth)
				off += putChannel(out[off:], c.G, cs.Depth)
				off += putChannel(out[off:], c.B, cs.Depth)
			}
			off += putChannel(out[off:], c.A, cs.Depth)
		}
	}
	return out
}

// decodePixels writes data for rectangle r into b.
func decodePixels(b *image.NRGBA64, data []byte, r image.Rectangle, cs host.ColorSpace) error {
	if want := r.Dx() * r.Dy() * cs.PixelSize(); len(data) != want {
		return fmt.Errorf("pixel data for %v in %s: got %d bytes, want %d", r, cs, len(data), want)
	}
	off := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			var c color.NRGBA64
			var n int
			if cs.Model == host.ModelRGBA {
				c.R, n = readChannel(data[off:], cs.Depth)
				off += n
				c.G, n = readChannel(data[off:], cs.Depth)
				off += n
				c.B, n = readChannel(data[off:], cs.Depth)
				off += n
			}
			c.A, n = readChannel(data[off:], cs.Depth)
			off += n
			if (image.Point{X: x, Y: y}).In(b.Rect) {
				b.SetNRGBA64(x, y, c)
			}
		}
	}
	return nil
}

func encodeAlpha(a *image.Alpha16, r image.Rectangle) []byte {
	out := make([]byte, r.Dx()*r.Dy())
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if (image.Point{X: x, Y: y}).In(a.Rect) {
				out[i] = uint8(a.Alpha16At(x, y).A >> 8)
			}
			i++
		}
	}
	return out
}

func decodeAlpha(a *image.Alpha16, data []byte, r image.Rectangle) error {
	if want := r.Dx() * r.Dy(); len(data) != want {
		return fmt.Errorf("mask data for %v: got %d bytes, want %d", r, len(data), want)
	}
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if (image.Point{X: x, Y: y}).In(a.Rect) {
				a.SetAlpha16(x, y, color.Alpha16{A: uint16(data[i]) * 257})
			}
			i++
		}
	}
	return nil
}

// opaqueBounds returns the smallest rectangle holding every pixel with
// non-zero alpha.
func opaqueBounds(b *image.NRGBA64) image.Rectangle {
	var r image.Rectangle
	if b == nil {
		return r
	}
	for y := b.Rect.Min.Y; y < b.Rect.Max.Y; y++ {
		for x := b.Rect.Min.X; x < b.Rect.Max.X; x++ {
			if b.NRGBA64At(x, y).A != 0 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

func alphaBounds(a *image.Alpha16) image.Rectangle {
	var r image.Rectangle
	for y := a.Rect.Min.Y; y < a.Rect.Max.Y; y++ {
		for x := a.Rect.Min.X; x < a.Rect.Max.X; x++ {
			if a.Alpha16At(x, y).A != 0 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}
