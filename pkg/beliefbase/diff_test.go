package beliefbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

// Diffing a snapshot against itself over its full scope yields no events.
func TestDiffOfEqualSnapshotsIsEmpty(t *testing.T) {
	bs := Default()
	net := networkNode("Net", "")
	doc := docNode(net.Bid, "Doc")
	apply(t, bs,
		belief.NodeUpdate{Node: net.TOML(), Origin: belief.OriginRemote},
		belief.NodeUpdate{Node: doc.TOML(), Origin: belief.OriginRemote},
		belief.RelationInsert{
			Source: belief.BidKey(doc.Bid),
			Sink:   belief.BidKey(net.Bid),
			Kind:   belief.Section,
			Weight: sectionWeight(0, "doc.md"),
			Origin: belief.OriginRemote,
		},
	)

	other := FromGraph(bs.Snapshot())
	scope := map[belief.Bid]struct{}{}
	for bid := range bs.States() {
		scope[bid] = struct{}{}
	}

	events := ComputeDiff(bs, other, scope)
	assert.Empty(t, events)
}

// Replaying a diff on the old base reproduces the new base on the parsed
// scope.
func TestDiffReplayConverges(t *testing.T) {
	old := Default()
	net := networkNode("Net", "")
	docA := docNode(net.Bid, "A")
	apply(t, old,
		belief.NodeUpdate{Node: net.TOML(), Origin: belief.OriginRemote},
		belief.NodeUpdate{Node: docA.TOML(), Origin: belief.OriginRemote},
		belief.RelationInsert{
			Source: belief.BidKey(docA.Bid),
			Sink:   belief.BidKey(net.Bid),
			Kind:   belief.Section,
			Weight: sectionWeight(0, "a.md"),
			Origin: belief.OriginRemote,
		},
	)

	// The new snapshot retitles A and adds a sibling document.
	updated := FromGraph(old.Snapshot())
	docA2 := docA.Clone()
	docA2.Title = "A Revised"
	docB := docNode(net.Bid, "B")
	apply(t, updated,
		belief.NodeUpdate{Node: docA2.TOML(), Origin: belief.OriginRemote},
		belief.NodeUpdate{Node: docB.TOML(), Origin: belief.OriginRemote},
		belief.RelationInsert{
			Source: belief.BidKey(docB.Bid),
			Sink:   belief.BidKey(net.Bid),
			Kind:   belief.Section,
			Weight: sectionWeight(1, "b.md"),
			Origin: belief.OriginRemote,
		},
	)

	scope := map[belief.Bid]struct{}{
		docA.Bid: {},
		docB.Bid: {},
	}
	events := ComputeDiff(old, updated, scope)
	require.NotEmpty(t, events)

	for _, ev := range events {
		_, err := old.ProcessEvent(ev)
		require.NoError(t, err)
	}

	// Node content converged on the scope.
	replayedA, ok := old.Get(belief.BidKey(docA.Bid))
	require.True(t, ok)
	assert.Equal(t, "A Revised", replayedA.Title)
	_, ok = old.Get(belief.BidKey(docB.Bid))
	assert.True(t, ok)

	oldSnapshot := old.Snapshot()
	newSnapshot := updated.Snapshot()
	ws, ok := oldSnapshot.Relations.FindEdge(docB.Bid, net.Bid)
	require.True(t, ok)
	want, _ := newSnapshot.Relations.FindEdge(docB.Bid, net.Bid)
	assert.True(t, ws.Equal(want))

	// A second diff over the same scope is empty.
	assert.Empty(t, ComputeDiff(old, updated, scope))
}

// Nodes reachable in old but absent from new are removed.
func TestDiffRemovesVanishedNodes(t *testing.T) {
	old := Default()
	net := networkNode("Net", "")
	doc := docNode(net.Bid, "Doc")
	section := belief.BeliefNode{
		Bid:   belief.NewBid(doc.Bid),
		Kind:  belief.Kinds(belief.KindSymbol),
		Title: "Dropped Section",
	}
	apply(t, old,
		belief.NodeUpdate{Node: net.TOML(), Origin: belief.OriginRemote},
		belief.NodeUpdate{Node: doc.TOML(), Origin: belief.OriginRemote},
		belief.NodeUpdate{Node: section.TOML(), Origin: belief.OriginRemote},
		belief.RelationInsert{
			Source: belief.BidKey(doc.Bid),
			Sink:   belief.BidKey(net.Bid),
			Kind:   belief.Section,
			Weight: sectionWeight(0, "doc.md"),
			Origin: belief.OriginRemote,
		},
		belief.RelationInsert{
			Source: belief.BidKey(section.Bid),
			Sink:   belief.BidKey(doc.Bid),
			Kind:   belief.Section,
			Weight: sectionWeight(0, ""),
			Origin: belief.OriginRemote,
		},
	)

	// The new parse of doc no longer contains the section.
	updated := FromGraph(old.Snapshot())
	apply(t, updated, belief.NodesRemoved{
		Bids:   []belief.Bid{section.Bid},
		Origin: belief.OriginRemote,
	})

	scope := map[belief.Bid]struct{}{doc.Bid: {}}
	events := ComputeDiff(old, updated, scope)
	require.NotEmpty(t, events)

	removed, ok := events[0].(belief.NodesRemoved)
	require.True(t, ok, "removals come first")
	assert.Equal(t, []belief.Bid{section.Bid}, removed.Bids)
}
