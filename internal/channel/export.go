package channel

import (
	"context"
	"fmt"
	"path/filepath"

	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
	"ChannelBoard/internal/logging"
)

// ExportError reports a failed channel export.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Exporter renders label-filtered views of a document to PNG.
type Exporter struct {
	Settle host.SettlePolicy
}

// NewExporter returns an exporter that waits for renders with policy p.
func NewExporter(p host.SettlePolicy) *Exporter {
	return &Exporter{Settle: p}
}

// ExportFiltered writes doc with only the leaves in allowed visible to
// outputPath. The work happens on a clone that is closed before returning,
// so doc is never modified.
func (e *Exporter) ExportFiltered(ctx context.Context, doc host.Document, allowed label.Selector, includeAlpha bool, outputPath string) error {
	clone, err := doc.Clone()
	if err != nil {
		return &ExportError{Path: outputPath, Err: fmt.Errorf("clone document: %w", err)}
	}
	defer clone.Close()

	SetLeafVisibility(clone.RootNode(), allowed)
	if err := host.Render(ctx, clone, e.Settle); err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	clone.SetBatchMode(true)

	if err := clone.ExportImage(outputPath, host.DefaultExportOptions(includeAlpha)); err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	logging.L().Debug("channel.exported", "doc", doc.Name(), "labels", allowed.String(), "alpha", includeAlpha, "path", outputPath)
	return nil
}

// Request names one export of a set.
type Request struct {
	Name    string
	Allowed label.Selector
	Alpha   bool
}

// ExportSet exports every request into dir as <name>.png and returns the
// paths in request order. It stops at the first failure.
func (e *Exporter) ExportSet(ctx context.Context, doc host.Document, dir string, reqs []Request) ([]string, error) {
	paths := make([]string, 0, len(reqs))
	for _, r := range reqs {
		p := filepath.Join(dir, r.Name+".png")
		if err := e.ExportFiltered(ctx, doc, r.Allowed, r.Alpha, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
