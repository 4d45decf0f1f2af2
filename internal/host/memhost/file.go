package memhost

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"ChannelBoard/internal/host"
)

// loadFile decodes an image file into a canvas-sized buffer.
func loadFile(path string, scaling host.FileScaling, w, h int) (*image.NRGBA64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layer file: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode layer file %s: %w", path, err)
	}
	return fitImage(src, scaling, w, h), nil
}

// fitImage places src on a w x h canvas, scaling it to the canvas when
// requested and the sizes differ.
func fitImage(src image.Image, scaling host.FileScaling, w, h int) *image.NRGBA64 {
	dst := newBuffer(w, h)
	sb := src.Bounds()
	if scaling == host.ScaleToImageSize && (sb.Dx() != w || sb.Dy() != h) {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
		return dst
	}
	xdraw.Copy(dst, image.Point{}, src, sb, xdraw.Src, nil)
	return dst
}
