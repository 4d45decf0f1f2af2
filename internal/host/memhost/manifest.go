package memhost

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	"gopkg.in/yaml.v3"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

// Manifest describes a document on disk: canvas, color space and a layer
// tree whose paint layers are read from image files or filled with a color.
type Manifest struct {
	Name       string      `yaml:"name"`
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	ColorModel string      `yaml:"color_model"`
	ColorDepth string      `yaml:"color_depth"`
	Profile    string      `yaml:"profile"`
	Resolution float64     `yaml:"resolution"`
	Layers     []LayerSpec `yaml:"layers"`
}

// LayerSpec describes one layer. Layers are listed bottom-most first.
type LayerSpec struct {
	Name     string           `yaml:"name"`
	Type     string           `yaml:"type"`
	Label    label.ColorLabel `yaml:"label"`
	Source   string           `yaml:"source"`
	Fill     string           `yaml:"fill"`
	Rect     []int            `yaml:"rect"`
	Blend    string           `yaml:"blend"`
	Opacity  *int             `yaml:"opacity"`
	Visible  *bool            `yaml:"visible"`
	Locked   bool             `yaml:"locked"`
	Children []LayerSpec      `yaml:"children"`
}

// LoadManifest reads a manifest file and builds the document it describes.
// Relative sources are resolved against the manifest's directory.
func (h *Host) LoadManifest(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return h.Build(m, filepath.Dir(path))
}

// ParseManifest decodes manifest yaml.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	if m.ColorModel == "" {
		m.ColorModel = string(host.ModelRGBA)
	}
	if m.ColorDepth == "" {
		m.ColorDepth = string(host.DepthU8)
	}
	if m.Profile == "" && host.ColorModel(m.ColorModel) == host.ModelRGBA {
		m.Profile = host.DefaultProfile
	}
	if m.Resolution == 0 {
		m.Resolution = 72
	}
	return m, nil
}

// Build creates a document from m.
func (h *Host) Build(m Manifest, baseDir string) (*Document, error) {
	d, err := h.NewEmptyDocument(host.DocumentSpec{
		Name:   m.Name,
		Width:  m.Width,
		Height: m.Height,
		Space: host.ColorSpace{
			Model:   host.ColorModel(m.ColorModel),
			Depth:   host.ColorDepth(m.ColorDepth),
			Profile: m.Profile,
		},
		Resolution: m.Resolution,
	})
	if err != nil {
		return nil, err
	}
	for _, ls := range m.Layers {
		if err := d.buildLayer(d.root, ls, baseDir); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Document) buildLayer(parent *node, ls LayerSpec, baseDir string) error {
	blend, err := host.ParseBlendMode(ls.Blend)
	if err != nil {
		return fmt.Errorf("layer %q: %w", ls.Name, err)
	}

	var n host.Node
	switch strings.ToLower(ls.Type) {
	case "group":
		n = d.CreateNode(ls.Name, host.GroupLayer)
		for _, c := range ls.Children {
			if err := d.buildLayer(n.(*node), c, baseDir); err != nil {
				return err
			}
		}
	case "file":
		fn, err := d.CreateFileLayer(ls.Name, resolve(baseDir, ls.Source), host.ScaleToImageSize)
		if err != nil {
			return fmt.Errorf("layer %q: %w", ls.Name, err)
		}
		n = fn
	case "", "paint":
		n = d.CreateNode(ls.Name, host.PaintLayer)
		if err := d.paintLayer(n.(*node), ls, baseDir); err != nil {
			return fmt.Errorf("layer %q: %w", ls.Name, err)
		}
	default:
		return fmt.Errorf("layer %q: unknown type %q", ls.Name, ls.Type)
	}

	n.SetColorLabel(ls.Label)
	n.SetBlendMode(blend)
	if ls.Opacity != nil {
		if *ls.Opacity < 0 || *ls.Opacity > 255 {
			return fmt.Errorf("layer %q: opacity %d outside 0..255", ls.Name, *ls.Opacity)
		}
		n.SetOpacity(uint8(*ls.Opacity))
	}
	if ls.Visible != nil {
		n.SetVisible(*ls.Visible)
	}
	n.SetLocked(ls.Locked)
	if !parent.AddChildNode(n, nil) {
		return fmt.Errorf("layer %q: cannot attach to %q", ls.Name, parent.name)
	}
	return nil
}

func (d *Document) paintLayer(n *node, ls LayerSpec, baseDir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ls.Source != "" {
		f, err := os.Open(resolve(baseDir, ls.Source))
		if err != nil {
			return err
		}
		defer f.Close()
		src, _, err := image.Decode(f)
		if err != nil {
			return err
		}
		n.pix = fitImage(src, host.ScaleNone, d.width, d.height)
	}
	if ls.Fill != "" {
		c, err := parseHexColor(ls.Fill)
		if err != nil {
			return err
		}
		r := d.bounds()
		if len(ls.Rect) == 4 {
			r = image.Rect(ls.Rect[0], ls.Rect[1], ls.Rect[2], ls.Rect[3]).Intersect(r)
		} else if len(ls.Rect) != 0 {
			return fmt.Errorf("rect needs 4 values, got %d", len(ls.Rect))
		}
		xdraw.Draw(n.pix, r, image.NewUniform(c), image.Point{}, xdraw.Src)
	}
	quantizeBuffer(n.pix, d.space)
	return nil
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// parseHexColor parses #rrggbb or #rrggbbaa.
func parseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
