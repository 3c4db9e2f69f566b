package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrollprobe/internal/dom"
	"github.com/JakeFAU/scrollprobe/internal/responder"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		ViewportHeight: 800,
		ContentHeight:  3000,
		ScrollY:        300,
		Tracked:        []string{"card"},
		Nodes: []NodeInfo{
			{ID: "card", Parent: "section", Top: 40, Height: 200},
			{ID: "section", Parent: "", Top: 960, Height: 600},
		},
	}
}

func TestSnapshotDocument(t *testing.T) {
	t.Parallel()

	doc, tracked, err := sampleSnapshot().Document()
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	require.Equal(t, "card", tracked[0].ID())
	require.InDelta(t, 1000.0, responder.OffsetTop[*dom.Node](doc, tracked[0]), 1e-9)
	require.InDelta(t, 300.0, doc.ScrollY(), 1e-9)
	require.InDelta(t, 2200.0, doc.MaxScrollY(), 1e-9)
}

func TestSnapshotDocumentNoElements(t *testing.T) {
	t.Parallel()

	snap := sampleSnapshot()
	snap.Tracked = nil
	_, _, err := snap.Document()
	require.True(t, errors.Is(err, ErrNoElements))
}

func TestSnapshotApplyKeepsIdentity(t *testing.T) {
	t.Parallel()

	doc, tracked, err := sampleSnapshot().Document()
	require.NoError(t, err)
	card := tracked[0]

	resized := sampleSnapshot()
	resized.ViewportHeight = 600
	resized.Nodes = []NodeInfo{
		{ID: "card", Parent: "wrapper", Top: 10, Height: 300},
		{ID: "section", Parent: "", Top: 900, Height: 700},
		{ID: "wrapper", Parent: "section", Top: 50, Height: 400},
	}
	require.NoError(t, resized.Apply(doc))

	same, ok := doc.Node("card")
	require.True(t, ok)
	require.Same(t, card, same)
	require.InDelta(t, 960.0, responder.OffsetTop[*dom.Node](doc, card), 1e-9)
	require.InDelta(t, 300.0, doc.ClientHeight(card), 1e-9)
	require.InDelta(t, 600.0, doc.ViewportHeight(), 1e-9)
}

func TestSnapshotApplyUnknownParent(t *testing.T) {
	t.Parallel()

	doc := dom.New(800)
	snap := Snapshot{
		ViewportHeight: 800,
		Nodes:          []NodeInfo{{ID: "a", Parent: "ghost", Top: 0, Height: 10}},
	}
	require.ErrorIs(t, snap.Apply(doc), dom.ErrUnknownParent)
}

func TestSnapshotLayout(t *testing.T) {
	t.Parallel()

	layout := sampleSnapshot().Layout()
	require.Equal(t, 800.0, layout.ViewportHeight)
	require.Len(t, layout.Elements, 2)
	require.Equal(t, "section", layout.Elements[0].Parent)
}
