package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrollprobe/internal/responder"
)

func TestBuildResolvesForwardParents(t *testing.T) {
	t.Parallel()

	doc, err := Build(Layout{
		ViewportHeight: 800,
		Elements: []ElementSpec{
			{ID: "card", Parent: "section", Top: 50, Height: 100},
			{ID: "section", Parent: "main", Top: 900, Height: 600},
			{ID: "main", Top: 40, Height: 3000},
		},
	})
	require.NoError(t, err)

	card, ok := doc.Node("card")
	require.True(t, ok)
	assert.Equal(t, 990.0, responder.OffsetTop[*Node](doc, card))
	assert.Equal(t, 3040.0, doc.ContentHeight())
	assert.Equal(t, 2240.0, doc.MaxScrollY())
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		layout Layout
		want   error
	}{
		{
			name:   "unknown parent",
			layout: Layout{ViewportHeight: 800, Elements: []ElementSpec{{ID: "a", Parent: "ghost"}}},
			want:   ErrUnknownParent,
		},
		{
			name: "cycle",
			layout: Layout{ViewportHeight: 800, Elements: []ElementSpec{
				{ID: "a", Parent: "b"},
				{ID: "b", Parent: "a"},
			}},
			want: ErrCycle,
		},
		{
			name:   "duplicate",
			layout: Layout{ViewportHeight: 800, Elements: []ElementSpec{{ID: "a"}, {ID: "a"}}},
			want:   ErrDuplicateID,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tt.layout)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Build(Layout{})
	require.Error(t, err)
}

func TestScrollIsClamped(t *testing.T) {
	t.Parallel()

	doc := New(500)
	_, err := doc.Add("tall", "", 0, 2000)
	require.NoError(t, err)

	assert.Equal(t, 0.0, doc.SetScrollY(-20))
	assert.Equal(t, 1500.0, doc.SetScrollY(9000))
	assert.Equal(t, 700.0, doc.SetScrollY(700))

	doc.SetViewportHeight(1900)
	assert.Equal(t, 100.0, doc.ScrollY())

	doc.SetContentHeight(5000)
	assert.Equal(t, 3100.0, doc.MaxScrollY())
}

func TestUpsertKeepsIdentity(t *testing.T) {
	t.Parallel()

	doc := New(800)
	root, err := doc.Add("root", "", 0, 4000)
	require.NoError(t, err)
	el, err := doc.Add("el", "", 1000, 200)
	require.NoError(t, err)

	again, err := doc.Upsert("el", "root", 500, 300)
	require.NoError(t, err)
	assert.Same(t, el, again)

	parent, ok := doc.OffsetParent(el)
	require.True(t, ok)
	assert.Same(t, root, parent)
	assert.Equal(t, 300.0, doc.ClientHeight(el))

	_, err = doc.Upsert("root", "el", 0, 4000)
	require.ErrorIs(t, err, ErrCycle)
}

func TestLookupAndMove(t *testing.T) {
	t.Parallel()

	doc := New(800)
	_, err := doc.Add("a", "", 100, 10)
	require.NoError(t, err)
	_, err = doc.Add("b", "", 200, 10)
	require.NoError(t, err)

	nodes, err := doc.Lookup("b", "a")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, []string{nodes[0].ID(), nodes[1].ID()})

	_, err = doc.Lookup("missing")
	require.Error(t, err)

	require.NoError(t, doc.Move("a", 300, 50))
	assert.Equal(t, 300.0, doc.OffsetTop(nodes[1]))
	require.Error(t, doc.Move("missing", 0, 0))

	_, err = doc.Add("a", "", 0, 0)
	require.ErrorIs(t, err, ErrDuplicateID)
}
