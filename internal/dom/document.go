// Package dom provides an in-memory document model that satisfies the
// responder's layout interface. It backs simulations and holds the layout
// snapshots read from a real browser.
package dom

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/JakeFAU/scrollprobe/internal/responder"
)

var (
	// ErrUnknownParent is returned when an element names a parent that does not exist.
	ErrUnknownParent = errors.New("unknown offset parent")
	// ErrCycle is returned when offset parents form a loop.
	ErrCycle = errors.New("offset parent cycle")
	// ErrDuplicateID is returned when two elements share an ID.
	ErrDuplicateID = errors.New("duplicate element id")
)

// Node is one positioned box. Nodes are compared by identity.
type Node struct {
	id     string
	top    float64
	height float64
	parent *Node
}

// ID returns the node's identifier.
func (n *Node) ID() string {
	return n.id
}

// Document is a flat set of nodes plus viewport state. It is not safe for
// concurrent use; hosts mutate it from their event loop.
type Document struct {
	nodes          map[string]*Node
	order          []*Node
	viewportHeight float64
	contentHeight  float64
	scrollY        float64
}

var _ responder.Document[*Node] = (*Document)(nil)

// New returns an empty document with the given viewport height.
func New(viewportHeight float64) *Document {
	return &Document{
		nodes:          make(map[string]*Node),
		viewportHeight: viewportHeight,
	}
}

// Add inserts a node positioned top pixels below its offset parent. An empty
// parentID attaches the node to the document root.
func (d *Document) Add(id, parentID string, top, height float64) (*Node, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("element id is required")
	}
	if _, ok := d.nodes[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	var parent *Node
	if parentID != "" {
		p, ok := d.nodes[parentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, parentID, id)
		}
		parent = p
	}
	n := &Node{id: id, top: top, height: height, parent: parent}
	d.nodes[id] = n
	d.order = append(d.order, n)
	return n, nil
}

// Node looks up a node by ID.
func (d *Document) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (d *Document) Nodes() []*Node {
	return append([]*Node(nil), d.order...)
}

// Lookup resolves ids to nodes, preserving order.
func (d *Document) Lookup(ids ...string) ([]*Node, error) {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n, ok := d.nodes[id]
		if !ok {
			return nil, fmt.Errorf("element %q not found", id)
		}
		out = append(out, n)
	}
	return out, nil
}

// Move changes a node's local offset and height, as a layout change would.
func (d *Document) Move(id string, top, height float64) error {
	n, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("element %q not found", id)
	}
	n.top = top
	n.height = height
	return nil
}

// Upsert adds a node or updates an existing one in place so that its identity
// survives a relayout. The parent, when set, must already exist.
func (d *Document) Upsert(id, parentID string, top, height float64) (*Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return d.Add(id, parentID, top, height)
	}
	var parent *Node
	if parentID != "" {
		p, ok := d.nodes[parentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, parentID, id)
		}
		for a := p; a != nil; a = a.parent {
			if a == n {
				return nil, fmt.Errorf("%w: %s -> %s", ErrCycle, id, parentID)
			}
		}
		parent = p
	}
	n.parent = parent
	n.top = top
	n.height = height
	return n, nil
}

// SetViewportHeight changes the viewport height and re-clamps the scroll offset.
func (d *Document) SetViewportHeight(h float64) {
	d.viewportHeight = h
	d.scrollY = d.clampScroll(d.scrollY)
}

// SetContentHeight overrides the scrollable height. Zero derives it from the
// lowest node bottom.
func (d *Document) SetContentHeight(h float64) {
	d.contentHeight = h
	d.scrollY = d.clampScroll(d.scrollY)
}

// SetScrollY moves the viewport, clamped to [0, MaxScrollY]. It returns the
// applied offset.
func (d *Document) SetScrollY(y float64) float64 {
	d.scrollY = d.clampScroll(y)
	return d.scrollY
}

// ContentHeight returns the scrollable height of the document.
func (d *Document) ContentHeight() float64 {
	if d.contentHeight > 0 {
		return d.contentHeight
	}
	var bottom float64
	for _, n := range d.order {
		bottom = math.Max(bottom, responder.OffsetTop[*Node](d, n)+n.height)
	}
	return bottom
}

// MaxScrollY returns the largest reachable scroll offset.
func (d *Document) MaxScrollY() float64 {
	return math.Max(0, d.ContentHeight()-d.viewportHeight)
}

func (d *Document) clampScroll(y float64) float64 {
	return math.Min(math.Max(0, y), d.MaxScrollY())
}

// OffsetTop implements responder.Document.
func (d *Document) OffsetTop(n *Node) float64 {
	return n.top
}

// OffsetParent implements responder.Document.
func (d *Document) OffsetParent(n *Node) (*Node, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

// ClientHeight implements responder.Document.
func (d *Document) ClientHeight(n *Node) float64 {
	return n.height
}

// ScrollY implements responder.Document.
func (d *Document) ScrollY() float64 {
	return d.scrollY
}

// ViewportHeight implements responder.Document.
func (d *Document) ViewportHeight() float64 {
	return d.viewportHeight
}
