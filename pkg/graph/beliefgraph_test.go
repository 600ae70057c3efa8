package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

func docNode(title string) belief.BeliefNode {
	return belief.BeliefNode{
		Bid:   belief.NewBid(belief.NilBid()),
		Kind:  belief.Kinds(belief.KindDocument),
		Title: title,
	}
}

func TestUnionIdempotent(t *testing.T) {
	a := docNode("A")
	b := docNode("B")

	lhs := NewBeliefGraph()
	lhs.States[a.Bid] = a

	rhs := NewBeliefGraph()
	rhs.States[a.Bid] = a.Clone()
	rhs.States[b.Bid] = b
	rhs.Relations.AddEdge(a.Bid, b.Bid, epistemicWeight(0))

	lhs.UnionMut(&rhs)
	first := lhs.Clone()
	lhs.UnionMut(&rhs)

	assert.True(t, first.SameStates(&lhs))
	assert.Equal(t, first.Relations.EdgeCount(), lhs.Relations.EdgeCount())
}

func TestUnionUpgradesTraceNodes(t *testing.T) {
	a := docNode("A")
	trace := a.Clone()
	trace.Kind = trace.Kind.With(belief.KindTrace)

	lhs := NewBeliefGraph()
	lhs.States[a.Bid] = trace

	rhs := NewBeliefGraph()
	rhs.States[a.Bid] = a

	lhs.UnionMut(&rhs)
	assert.True(t, lhs.States[a.Bid].Kind.IsComplete())

	// Plain union refuses Trace-only states from the right.
	c := docNode("C")
	cTrace := c.Clone()
	cTrace.Kind = cTrace.Kind.With(belief.KindTrace)
	rhs2 := NewBeliefGraph()
	rhs2.States[c.Bid] = cTrace
	lhs.UnionMut(&rhs2)
	_, ok := lhs.States[c.Bid]
	assert.False(t, ok)

	// The trace-accepting variant takes them.
	lhs.UnionMutWithTrace(&rhs2)
	_, ok = lhs.States[c.Bid]
	assert.True(t, ok)
}

func TestUnionDropsSelfEdges(t *testing.T) {
	a := docNode("A")
	rhs := NewBeliefGraph()
	rhs.States[a.Bid] = a
	rhs.Relations.AddEdge(a.Bid, a.Bid, epistemicWeight(0))

	lhs := NewBeliefGraph()
	lhs.UnionMut(&rhs)
	assert.Equal(t, 0, lhs.Relations.EdgeCount())
}

func TestIntersectionAndDifference(t *testing.T) {
	a := docNode("A")
	b := docNode("B")
	c := docNode("C")

	lhs := NewBeliefGraph()
	lhs.States[a.Bid] = a
	lhs.States[b.Bid] = b

	rhs := NewBeliefGraph()
	rhs.States[b.Bid] = b.Clone()
	rhs.States[c.Bid] = c

	inter := lhs.Intersection(&rhs)
	assert.True(t, inter.SameStates(&BeliefGraph{States: map[belief.Bid]belief.BeliefNode{b.Bid: b}}))

	diff := lhs.Difference(&rhs)
	assert.True(t, diff.SameStates(&BeliefGraph{States: map[belief.Bid]belief.BeliefNode{a.Bid: a}}))

	sym := lhs.SymmetricDifference(&rhs)
	assert.Len(t, sym.States, 2)
	_, hasA := sym.States[a.Bid]
	_, hasC := sym.States[c.Bid]
	assert.True(t, hasA && hasC)
}

func TestFindOrphanedEdges(t *testing.T) {
	a := docNode("A")
	missing := belief.NewBid(belief.NilBid())

	bg := NewBeliefGraph()
	bg.States[a.Bid] = a
	bg.Relations.AddEdge(missing, a.Bid, sectionWeight(0))

	orphans := bg.FindOrphanedEdges()
	require.Len(t, orphans, 1)
	assert.Equal(t, missing, orphans[0])
}

func TestBalanceExprBuilders(t *testing.T) {
	a := docNode("A")
	b := docNode("B")
	bg := NewBeliefGraph()
	bg.States[a.Bid] = a
	bg.States[b.Bid] = b
	bg.Relations.AddEdge(a.Bid, b.Bid, sectionWeight(0))

	// b lacks outgoing edges, a lacks incoming ones.
	assert.NotNil(t, bg.BuildDownstreamExpr(nil))
	assert.NotNil(t, bg.BuildUpstreamExpr(nil))
	assert.NotNil(t, bg.BuildBalanceExpr())

	empty := NewBeliefGraph()
	assert.Nil(t, empty.BuildBalanceExpr())
}

func TestBeliefGraphJSONRoundTrip(t *testing.T) {
	a := docNode("A")
	b := docNode("B")
	a.Payload = map[string]any{"note": "n", "rank": int64(2)}

	bg := NewBeliefGraph()
	bg.States[a.Bid] = a
	bg.States[b.Bid] = b
	ws := sectionWeight(1)
	sec, _ := ws.Get(belief.Section)
	sec.SetDocPaths([]string{"a.md"})
	ws.Set(belief.Section, sec)
	bg.Relations.AddEdge(a.Bid, b.Bid, ws)

	data, err := json.Marshal(bg)
	require.NoError(t, err)

	var restored BeliefGraph
	require.NoError(t, json.Unmarshal(data, &restored))

	require.Len(t, restored.States, 2)
	assert.True(t, restored.States[a.Bid].Equal(a))
	require.Equal(t, 1, restored.Relations.EdgeCount())
	got, ok := restored.Relations.FindEdge(a.Bid, b.Bid)
	require.True(t, ok)
	assert.True(t, got.Equal(ws))
}

func TestPaginate(t *testing.T) {
	bg := NewBeliefGraph()
	var nodes []belief.BeliefNode
	for i := 0; i < 5; i++ {
		n := docNode("N")
		bg.States[n.Bid] = n
		nodes = append(nodes, n)
	}
	for i := 1; i < 5; i++ {
		bg.Relations.AddEdge(nodes[i].Bid, nodes[0].Bid, epistemicWeight(uint16(i-1)))
	}

	page := bg.Paginate(2, 0)
	assert.Equal(t, 5, page.Count)
	assert.Len(t, page.Results.States, 2)

	rest := bg.Paginate(10, 2)
	assert.Len(t, rest.Results.States, 3)

	all := bg.Paginate(0, 0)
	assert.Len(t, all.Results.States, 5)
	assert.Equal(t, 4, all.Results.Relations.EdgeCount())
}
