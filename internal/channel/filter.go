// Package channel selects layers by color label and renders the selection to
// flat raster files.
package channel

import (
	"ChannelBoard/internal/host"
	"ChannelBoard/internal/label"
)

// SetLeafVisibility hides every non-group node under root whose label is not
// in allowed. Allowed nodes keep their visibility and groups are never
// touched, so a nested allowed leaf still renders through its groups.
func SetLeafVisibility(root host.Node, allowed label.Selector) {
	if root == nil {
		panic("channel: SetLeafVisibility on nil node")
	}
	if root.Type() != host.GroupLayer && !allowed.Has(root.ColorLabel()) {
		root.SetVisible(false)
	}
	for _, c := range root.ChildNodes() {
		SetLeafVisibility(c, allowed)
	}
}

// Leaves returns the layers under root whose label is in sel, bottom-most
// first. Only groups are descended into; masks below a layer are not
// candidates.
func Leaves(root host.Node, sel label.Selector) []host.Node {
	var out []host.Node
	var walk func(n host.Node)
	walk = func(n host.Node) {
		if n.Type() == host.GroupLayer {
			for _, c := range n.ChildNodes() {
				walk(c)
			}
			return
		}
		if sel.Has(n.ColorLabel()) {
			out = append(out, n)
		}
	}
	walk(root)
	return out
}
