package browser

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/scrollprobe/internal/dom"
)

// ErrNoElements is returned when no element matched the configured selectors.
var ErrNoElements = errors.New("no tracked elements matched the selectors")

// NodeInfo is the layout of one registered page node.
type NodeInfo struct {
	ID     string  `json:"id"`
	Parent string  `json:"parent"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Snapshot is the page layout read in one Runtime.evaluate call.
type Snapshot struct {
	ViewportHeight float64    `json:"viewport_height"`
	ContentHeight  float64    `json:"content_height"`
	ScrollY        float64    `json:"scroll_y"`
	Tracked        []string   `json:"tracked"`
	Nodes          []NodeInfo `json:"nodes"`
}

// Layout converts the snapshot into a declarative dom.Layout.
func (s Snapshot) Layout() dom.Layout {
	layout := dom.Layout{
		ViewportHeight: s.ViewportHeight,
		ContentHeight:  s.ContentHeight,
		Elements:       make([]dom.ElementSpec, 0, len(s.Nodes)),
	}
	for _, n := range s.Nodes {
		layout.Elements = append(layout.Elements, dom.ElementSpec{
			ID:     n.ID,
			Parent: n.Parent,
			Top:    n.Top,
			Height: n.Height,
		})
	}
	return layout
}

// Document builds a fresh document from the snapshot and returns it along
// with the tracked nodes in page order.
func (s Snapshot) Document() (*dom.Document, []*dom.Node, error) {
	if len(s.Tracked) == 0 {
		return nil, nil, ErrNoElements
	}
	doc, err := dom.Build(s.Layout())
	if err != nil {
		return nil, nil, fmt.Errorf("build document: %w", err)
	}
	doc.SetScrollY(s.ScrollY)
	tracked, err := doc.Lookup(s.Tracked...)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup tracked nodes: %w", err)
	}
	return doc, tracked, nil
}

// Apply updates doc in place so node identity survives a relayout. Nodes are
// applied parent-first regardless of snapshot order.
func (s Snapshot) Apply(doc *dom.Document) error {
	doc.SetViewportHeight(s.ViewportHeight)
	doc.SetContentHeight(s.ContentHeight)

	pending := s.Nodes
	for len(pending) > 0 {
		var deferred []NodeInfo
		for _, n := range pending {
			if n.Parent != "" {
				if _, ok := doc.Node(n.Parent); !ok && containsNode(pending, n.Parent) {
					deferred = append(deferred, n)
					continue
				}
			}
			if _, err := doc.Upsert(n.ID, n.Parent, n.Top, n.Height); err != nil {
				return fmt.Errorf("apply node %s: %w", n.ID, err)
			}
		}
		if len(deferred) == len(pending) {
			return fmt.Errorf("%w: unresolved parents in snapshot", dom.ErrCycle)
		}
		pending = deferred
	}
	doc.SetScrollY(s.ScrollY)
	return nil
}

func containsNode(nodes []NodeInfo, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
