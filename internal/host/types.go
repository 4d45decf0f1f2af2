package host

import (
	"fmt"
	"math"
	"strings"
)

// NodeType enumerates the kinds of nodes in a layer tree.
type NodeType int

const (
	GroupLayer NodeType = iota
	PaintLayer
	FileLayer
	FilterMask
	TransparencyMask
)

func (t NodeType) String() string {
	switch t {
	case GroupLayer:
		return "grouplayer"
	case PaintLayer:
		return "paintlayer"
	case FileLayer:
		return "filelayer"
	case FilterMask:
		return "filtermask"
	case TransparencyMask:
		return "transparencymask"
	default:
		return "unknown"
	}
}

// IsMask reports whether nodes of this type modify their parent instead of
// being composited as layers.
func (t NodeType) IsMask() bool {
	return t == FilterMask || t == TransparencyMask
}

// BlendMode specifies how a layer composites onto its backdrop.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendAdd
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "normal"
	case BlendMultiply:
		return "multiply"
	case BlendAdd:
		return "add"
	case BlendScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// ParseBlendMode parses the name returned by String.
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return BlendNormal, nil
	case "multiply":
		return BlendMultiply, nil
	case "add":
		return BlendAdd, nil
	case "screen":
		return BlendScreen, nil
	default:
		return BlendNormal, fmt.Errorf("unknown blend mode %q", s)
	}
}

// FileScaling controls how a file layer is fitted to the canvas.
type FileScaling int

const (
	ScaleNone FileScaling = iota
	ScaleToImageSize
)

// ColorModel names the channels of a color space.
type ColorModel string

const (
	ModelRGBA  ColorModel = "RGBA"
	ModelAlpha ColorModel = "A"
)

// Channels returns the number of channels per pixel, or 0 if unknown.
func (m ColorModel) Channels() int {
	switch m {
	case ModelRGBA:
		return 4
	case ModelAlpha:
		return 1
	default:
		return 0
	}
}

// ColorDepth names the storage size of one channel.
type ColorDepth string

const (
	DepthU8  ColorDepth = "U8"
	DepthU16 ColorDepth = "U16"
)

// Bytes returns the bytes per channel, or 0 if unknown.
func (d ColorDepth) Bytes() int {
	switch d {
	case DepthU8:
		return 1
	case DepthU16:
		return 2
	default:
		return 0
	}
}

// DefaultProfile is the profile assigned to new RGBA documents.
const DefaultProfile = "sRGB-elle-V2-srgbtrc.icc"

// ColorSpace is the pixel encoding of a document.
type ColorSpace struct {
	Model   ColorModel
	Depth   ColorDepth
	Profile string
}

// RGBA8 is the common 8-bit RGBA color space.
var RGBA8 = ColorSpace{Model: ModelRGBA, Depth: DepthU8, Profile: DefaultProfile}

// Alpha8 is the single channel 8-bit alpha color space.
var Alpha8 = ColorSpace{Model: ModelAlpha, Depth: DepthU8}

// PixelSize returns the bytes per pixel.
func (cs ColorSpace) PixelSize() int {
	return cs.Model.Channels() * cs.Depth.Bytes()
}

// Validate reports whether the host can store pixels in cs.
func (cs ColorSpace) Validate() error {
	if cs.PixelSize() == 0 {
		return fmt.Errorf("%w: color space %s/%s", ErrUnsupported, cs.Model, cs.Depth)
	}
	return nil
}

func (cs ColorSpace) String() string {
	if cs.Profile == "" {
		return string(cs.Model) + "/" + string(cs.Depth)
	}
	return string(cs.Model) + "/" + string(cs.Depth) + "/" + cs.Profile
}

// LevelsCurve maps an input range to an output range through a gamma curve.
// All values are normalized to [0,1].
type LevelsCurve struct {
	InBlack  float64
	InWhite  float64
	Gamma    float64
	OutBlack float64
	OutWhite float64
}

// IdentityLevels leaves a channel unchanged.
var IdentityLevels = LevelsCurve{InBlack: 0, InWhite: 1, Gamma: 1, OutBlack: 0, OutWhite: 1}

// Apply maps v through the curve.
func (c LevelsCurve) Apply(v float64) float64 {
	span := c.InWhite - c.InBlack
	if span <= 0 {
		if v >= c.InWhite {
			return c.OutWhite
		}
		return c.OutBlack
	}
	x := (v - c.InBlack) / span
	if x <= 0 {
		return c.OutBlack
	}
	if x >= 1 {
		return c.OutWhite
	}
	if c.Gamma > 0 && c.Gamma != 1 {
		x = math.Pow(x, 1/c.Gamma)
	}
	return c.OutBlack + (c.OutWhite-c.OutBlack)*x
}

// Validate checks that the curve is well formed.
func (c LevelsCurve) Validate() error {
	for _, v := range []float64{c.InBlack, c.InWhite, c.OutBlack, c.OutWhite} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("levels value %v outside [0,1]", v)
		}
	}
	if c.InWhite < c.InBlack {
		return fmt.Errorf("levels input white %v below black %v", c.InWhite, c.InBlack)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("levels gamma %v must be positive", c.Gamma)
	}
	return nil
}

// LevelsConfig configures a levels filter. Channels are indexed in color
// space order (R, G, B, A for RGBA); missing channels are left unchanged.
type LevelsConfig struct {
	Channels []LevelsCurve
}

// Curve returns the curve for channel i.
func (lc LevelsConfig) Curve(i int) LevelsCurve {
	if i < 0 || i >= len(lc.Channels) {
		return IdentityLevels
	}
	return lc.Channels[i]
}
