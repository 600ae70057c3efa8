package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTOMLRoundTrip(t *testing.T) {
	node := BeliefNode{
		Bid:    NewBid(NilBid()),
		Kind:   Kinds(KindDocument),
		Title:  "A Document",
		Schema: "doc",
		ID:     "a-document",
		Payload: map[string]any{
			"count":  int64(3),
			"ratio":  1.5,
			"tags":   []any{"x", "y"},
			"truthy": true,
		},
	}
	parsed, err := ParseNode(node.TOML())
	require.NoError(t, err)
	assert.True(t, node.Equal(parsed), "round trip should preserve the node")
}

func TestNodeTOMLDeterministic(t *testing.T) {
	node := BeliefNode{
		Bid:   NewBid(NilBid()),
		Kind:  Kinds(KindSymbol),
		Title: "S",
		Payload: map[string]any{
			"b": int64(2),
			"a": int64(1),
			"c": int64(3),
		},
	}
	assert.Equal(t, node.TOML(), node.TOML())
}

func TestParseNodeRejectsGarbage(t *testing.T) {
	_, err := ParseNode("= not toml =")
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = ParseNode("bid = \"nope\"")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestNodeMerge(t *testing.T) {
	base := BeliefNode{
		Bid:     NewBid(NilBid()),
		Kind:    Kinds(KindSymbol, KindTrace),
		Title:   "Old",
		Payload: map[string]any{"keep": "lhs", "shared": "lhs"},
	}
	rhs := BeliefNode{
		Bid:     base.Bid,
		Kind:    Kinds(KindSymbol),
		Title:   "New",
		Payload: map[string]any{"shared": "rhs", "extra": "rhs"},
	}

	changed := base.Merge(rhs)
	assert.True(t, changed)
	assert.Equal(t, "New", base.Title)
	// A complete side clears the Trace flag.
	assert.True(t, base.Kind.IsComplete())
	assert.Equal(t, "lhs", base.Payload["keep"])
	assert.Equal(t, "rhs", base.Payload["shared"])
	assert.Equal(t, "rhs", base.Payload["extra"])

	// Merging an identical copy is a no-op.
	assert.False(t, base.Merge(base.Clone()))
}

func TestKindSetPredicates(t *testing.T) {
	assert.True(t, Kinds(KindSymbol).IsAnchor())
	assert.False(t, Kinds(KindDocument).IsAnchor())
	assert.True(t, Kinds(KindNetwork).IsNetwork())
	assert.True(t, Kinds(KindAPI).IsNetwork())
	assert.False(t, Kinds(KindDocument, KindTrace).IsComplete())

	set, err := ParseKindSet([]string{"Document", "Trace"})
	require.NoError(t, err)
	assert.Equal(t, Kinds(KindDocument, KindTrace), set)
	_, err = ParseKindSet([]string{"Bogus"})
	assert.Error(t, err)
}

func TestReservedNodes(t *testing.T) {
	api := APIState()
	assert.True(t, api.Kind.Contains(KindAPI))
	assert.True(t, api.Kind.Contains(KindTrace))
	assert.Equal(t, BuildonomyNamespace(), api.Bid)

	href := HrefNetwork()
	assert.True(t, href.Kind.IsNetwork())
	assert.Equal(t, HrefNamespace(), href.Bid)
}
