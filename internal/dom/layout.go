package dom

import (
	"fmt"
)

// ElementSpec declares one node of a layout.
type ElementSpec struct {
	ID     string  `mapstructure:"id" json:"id"`
	Parent string  `mapstructure:"parent" json:"parent,omitempty"`
	Top    float64 `mapstructure:"top" json:"top"`
	Height float64 `mapstructure:"height" json:"height"`
}

// Layout declares a complete document. Elements may reference parents
// declared later in the list.
type Layout struct {
	ViewportHeight float64       `mapstructure:"viewport_height" json:"viewport_height"`
	ContentHeight  float64       `mapstructure:"content_height" json:"content_height,omitempty"`
	Elements       []ElementSpec `mapstructure:"elements" json:"elements"`
}

// Build constructs a Document from a Layout.
func Build(layout Layout) (*Document, error) {
	if layout.ViewportHeight <= 0 {
		return nil, fmt.Errorf("layout viewport_height must be > 0")
	}
	doc := New(layout.ViewportHeight)
	declared := make(map[string]bool, len(layout.Elements))
	for _, el := range layout.Elements {
		if declared[el.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, el.ID)
		}
		declared[el.ID] = true
	}

	pending := append([]ElementSpec(nil), layout.Elements...)
	for len(pending) > 0 {
		var next []ElementSpec
		for _, el := range pending {
			if el.Parent != "" {
				if _, ok := doc.Node(el.Parent); !ok {
					if !declared[el.Parent] {
						return nil, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, el.Parent, el.ID)
					}
					next = append(next, el)
					continue
				}
			}
			if _, err := doc.Add(el.ID, el.Parent, el.Top, el.Height); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("%w: involving %s", ErrCycle, next[0].ID)
		}
		pending = next
	}
	doc.SetContentHeight(layout.ContentHeight)
	return doc, nil
}
