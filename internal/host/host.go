// Package host describes the document API of the raster editor that the
// channel tooling drives. The tooling only borrows nodes for the duration of a
// call; documents and nodes are owned by the host.
package host

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/google/uuid"

	"ChannelBoard/internal/label"
)

var (
	// ErrBusy is returned by WaitForDone when the projection has not settled.
	ErrBusy = errors.New("host: projection not settled")
	// ErrNotFound is returned when a node or document cannot be resolved,
	// including lookups against a closed document.
	ErrNotFound = errors.New("host: not found")
	// ErrClosed is returned by operations on a closed document.
	ErrClosed = errors.New("host: document closed")
	// ErrUnsupported is returned for color spaces or export options the host
	// cannot honor.
	ErrUnsupported = errors.New("host: unsupported")
)

// Node is a layer or mask in a document's layer tree.
type Node interface {
	ID() uuid.UUID
	Name() string
	SetName(name string)
	Type() NodeType

	ColorLabel() label.ColorLabel
	SetColorLabel(l label.ColorLabel)
	Visible() bool
	SetVisible(visible bool)
	BlendMode() BlendMode
	SetBlendMode(mode BlendMode)
	Opacity() uint8
	SetOpacity(opacity uint8)
	Locked() bool
	SetLocked(locked bool)
	InheritAlpha() bool
	SetInheritAlpha(inherit bool)

	// Parent returns nil for the root node and for detached nodes.
	Parent() Node
	// ChildNodes returns the children bottom-most first.
	ChildNodes() []Node
	// AddChildNode inserts child directly above the sibling above. A nil
	// above places child on top of all siblings.
	AddChildNode(child, above Node) bool
	RemoveChildNode(child Node) bool

	// Bounds is the extent of the node's non-transparent content.
	Bounds() image.Rectangle
	// PixelData returns the raw content in the document's color space.
	PixelData(r image.Rectangle) []byte
	// ProjectionPixelData returns the content with the node's masks applied.
	ProjectionPixelData(r image.Rectangle) []byte
	SetPixelData(data []byte, r image.Rectangle) error
}

// FileNode is a layer whose pixels are read from a file on disk.
type FileNode interface {
	Node
	Path() string
	Scaling() FileScaling
	// Reload re-reads the file.
	Reload() error
}

// Document is an open image in the host.
type Document interface {
	// ID is stable for the lifetime of the document.
	ID() uuid.UUID
	Name() string
	Width() int
	Height() int
	Bounds() image.Rectangle
	ColorSpace() ColorSpace
	Resolution() float64

	RootNode() Node
	NodeByID(id uuid.UUID) (Node, error)
	ActiveNode() Node
	SetActiveNode(n Node)

	// CreateNode creates a detached GroupLayer or PaintLayer.
	CreateNode(name string, t NodeType) Node
	CreateFileLayer(name, path string, scaling FileScaling) (FileNode, error)
	CreateFilterMask(name string, cfg LevelsConfig, sel Selection) Node
	CreateTransparencyMask(name string) Node

	// RefreshProjection schedules a full re-render.
	RefreshProjection()
	// WaitForDone blocks until the scheduled render completes. It returns
	// ErrBusy when the host gave up before the projection settled.
	WaitForDone(ctx context.Context) error

	SetColorSpace(cs ColorSpace) error
	Clone() (Document, error)
	SetBatchMode(batch bool)
	ExportImage(path string, opts ExportOptions) error

	Close() error
	Closed() bool
}

// DocumentSpec describes a document to create.
type DocumentSpec struct {
	Name       string
	Width      int
	Height     int
	Space      ColorSpace
	Resolution float64
}

// Host creates documents.
type Host interface {
	CreateDocument(spec DocumentSpec) (Document, error)
}

// Selection is a rectangular selection with a uniform selection value.
type Selection struct {
	Rect  image.Rectangle
	Value uint8
}

// SelectAll returns a fully selected rectangle.
func SelectAll(r image.Rectangle) Selection {
	return Selection{Rect: r, Value: 255}
}

// ExportOptions configures ExportImage.
type ExportOptions struct {
	Alpha           bool
	Compression     int
	ForceSRGB       bool
	Indexed         bool
	Interlaced      bool
	SaveSRGBProfile bool
	// FillColor replaces transparency when Alpha is false.
	FillColor color.NRGBA
}

// DefaultExportOptions is the fixed PNG configuration used for channel
// exports: no embedded profile, no interlacing, white fill.
func DefaultExportOptions(alpha bool) ExportOptions {
	return ExportOptions{
		Alpha:       alpha,
		Compression: 1,
		FillColor:   color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// WalkNodes calls fn for n and every descendant, parents before children.
func WalkNodes(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.ChildNodes() {
		WalkNodes(c, fn)
	}
}
