package net

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreachable is wrapped by errors from calls that could not connect.
var ErrUnreachable = errors.New("service unreachable")

// Operation names on the wire.
const (
	OpScribbleToLine = "scribble_to_line"
	OpDetailColored  = "detail_colored"
)

// ScribbleToLineRequest turns a scribble export and a lineart export into a
// new lineart overlay written to Output.
type ScribbleToLineRequest struct {
	Scribble string
	Lineart  string
	Output   string
}

// DetailColoredRequest turns six channel exports into new shadow and light
// overlays.
type DetailColoredRequest struct {
	Full           string
	BaseColorImage string
	Lineart        string
	BaseColor      string
	Shadow         string
	Light          string
	ShadowOutput   string
	LightOutput    string
}

// Service is the generation service. Implementations read the input files
// and replace the output files; an output is either fully written or left
// as it was.
type Service interface {
	ScribbleToLine(ctx context.Context, req ScribbleToLineRequest) error
	DetailColored(ctx context.Context, req DetailColoredRequest) error
}

// ServiceError reports a failed service call.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Request is the message sent to the service.
type Request struct {
	ID     string            `json:"id"`
	Op     string            `json:"op"`
	Inputs map[string][]byte `json:"inputs"`
}

// Response answers a Request with the same ID.
type Response struct {
	ID      string            `json:"id"`
	Outputs map[string][]byte `json:"outputs,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Input and output keys.
const (
	KeyScribble       = "scribble"
	KeyLineart        = "lineart"
	KeyFull           = "full"
	KeyBaseColorImage = "basecolor_image"
	KeyBaseColor      = "basecolor"
	KeyShadow         = "shadow"
	KeyLight          = "light"
)
