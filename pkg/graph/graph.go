// Package graph provides the relation containers for belief bases:
//
//   - BidGraph: a typed multi-edge directed graph with Bid-keyed nodes and
//     WeightSet-valued edges, at most one edge per ordered pair.
//   - SubGraph: a single-kind projection whose edges carry (sort key, doc
//     paths), used for ordering, path generation and cycle checks.
//   - BeliefGraph: combined states and relations, the serializable snapshot
//     and query-result form, with set algebra over whole graphs.
//
// Nodes live in maps keyed by Bid and edges in adjacency maps referring to
// Bids, so endpoint lookup always goes through the map and no dangling
// reference can outlive a node: removal sweeps incident edges.
//
// All iteration orders are deterministic (bytewise Bid order), which keeps
// derivative event streams and serialized output stable.
package graph

import (
	"sort"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

// Direction selects an edge orientation relative to a node.
type Direction int

const (
	// Outgoing selects edges leaving a node.
	Outgoing Direction = iota
	// Incoming selects edges arriving at a node.
	Incoming
)

// EdgePred filters edges by endpoints and weights.
type EdgePred func(source, sink belief.Bid, ws belief.WeightSet) bool

// BidGraph is the edge store of a belief base. The zero value is not usable;
// construct with NewBidGraph or FromRelations.
type BidGraph struct {
	nodes map[belief.Bid]struct{}
	out   map[belief.Bid]map[belief.Bid]belief.WeightSet
	in    map[belief.Bid]map[belief.Bid]struct{}
}

// NewBidGraph returns an empty graph.
func NewBidGraph() *BidGraph {
	return &BidGraph{
		nodes: map[belief.Bid]struct{}{},
		out:   map[belief.Bid]map[belief.Bid]belief.WeightSet{},
		in:    map[belief.Bid]map[belief.Bid]struct{}{},
	}
}

// FromRelations builds a graph from an edge list. Later duplicates of an
// ordered pair overwrite earlier ones.
func FromRelations(relations []belief.BeliefRelation) *BidGraph {
	g := NewBidGraph()
	for _, rel := range relations {
		g.AddEdge(rel.Source, rel.Sink, rel.Weights)
	}
	return g
}

// Clone deep-copies the graph.
func (g *BidGraph) Clone() *BidGraph {
	out := NewBidGraph()
	for bid := range g.nodes {
		out.AddNode(bid)
	}
	for src, sinks := range g.out {
		for sink, ws := range sinks {
			out.AddEdge(src, sink, ws.Clone())
		}
	}
	return out
}

// AddNode inserts a node without edges.
func (g *BidGraph) AddNode(bid belief.Bid) {
	g.nodes[bid] = struct{}{}
}

// HasNode reports node membership.
func (g *BidGraph) HasNode(bid belief.Bid) bool {
	_, ok := g.nodes[bid]
	return ok
}

// RemoveNode deletes a node and sweeps its incident edges.
func (g *BidGraph) RemoveNode(bid belief.Bid) {
	for sink := range g.out[bid] {
		delete(g.in[sink], bid)
	}
	for src := range g.in[bid] {
		delete(g.out[src], bid)
	}
	delete(g.out, bid)
	delete(g.in, bid)
	delete(g.nodes, bid)
}

// NodeCount returns the number of nodes.
func (g *BidGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *BidGraph) EdgeCount() int {
	count := 0
	for _, sinks := range g.out {
		count += len(sinks)
	}
	return count
}

// Nodes returns all node bids in deterministic order.
func (g *BidGraph) Nodes() []belief.Bid {
	bids := make([]belief.Bid, 0, len(g.nodes))
	for bid := range g.nodes {
		bids = append(bids, bid)
	}
	return belief.SortBids(bids)
}

// AddEdge inserts or replaces the edge source -> sink. Both endpoints are
// added as nodes if absent.
func (g *BidGraph) AddEdge(source, sink belief.Bid, ws belief.WeightSet) {
	g.AddNode(source)
	g.AddNode(sink)
	if g.out[source] == nil {
		g.out[source] = map[belief.Bid]belief.WeightSet{}
	}
	if g.in[sink] == nil {
		g.in[sink] = map[belief.Bid]struct{}{}
	}
	g.out[source][sink] = ws
	g.in[sink][source] = struct{}{}
}

// UpdateEdgeWeight replaces the weight of an existing edge, inserting the
// edge if absent.
func (g *BidGraph) UpdateEdgeWeight(source, sink belief.Bid, ws belief.WeightSet) {
	g.AddEdge(source, sink, ws)
}

// FindEdge returns the weight set of the source -> sink edge.
func (g *BidGraph) FindEdge(source, sink belief.Bid) (belief.WeightSet, bool) {
	ws, ok := g.out[source][sink]
	return ws, ok
}

// RemoveEdge deletes the source -> sink edge, reporting whether it existed.
func (g *BidGraph) RemoveEdge(source, sink belief.Bid) bool {
	if _, ok := g.out[source][sink]; !ok {
		return false
	}
	delete(g.out[source], sink)
	delete(g.in[sink], source)
	return true
}

// Edges returns every edge, sorted by sink then source.
func (g *BidGraph) Edges() []belief.BeliefRelation {
	edges := make([]belief.BeliefRelation, 0, g.EdgeCount())
	for src, sinks := range g.out {
		for sink, ws := range sinks {
			edges = append(edges, belief.BeliefRelation{Source: src, Sink: sink, Weights: ws})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Sink != edges[j].Sink {
			return edges[i].Sink.Less(edges[j].Sink)
		}
		return edges[i].Source.Less(edges[j].Source)
	})
	return edges
}

// EdgesDirected returns the edges incident to bid in the given direction,
// sorted by the opposite endpoint.
func (g *BidGraph) EdgesDirected(bid belief.Bid, dir Direction) []belief.BeliefRelation {
	var edges []belief.BeliefRelation
	if dir == Outgoing {
		for sink, ws := range g.out[bid] {
			edges = append(edges, belief.BeliefRelation{Source: bid, Sink: sink, Weights: ws})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Sink.Less(edges[j].Sink) })
	} else {
		for src := range g.in[bid] {
			edges = append(edges, belief.BeliefRelation{Source: src, Sink: bid, Weights: g.out[src][bid]})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Source.Less(edges[j].Source) })
	}
	return edges
}

// Externals returns nodes lacking edges in the given direction.
func (g *BidGraph) Externals(dir Direction) []belief.Bid {
	var bids []belief.Bid
	for bid := range g.nodes {
		if dir == Outgoing && len(g.out[bid]) == 0 {
			bids = append(bids, bid)
		} else if dir == Incoming && len(g.in[bid]) == 0 {
			bids = append(bids, bid)
		}
	}
	return belief.SortBids(bids)
}

// Filter returns a new graph holding only the edges matching pred (or, with
// invert, only those that do not). Weight sets are shared, not copied.
func (g *BidGraph) Filter(pred EdgePred, invert bool) *BidGraph {
	out := NewBidGraph()
	for src, sinks := range g.out {
		for sink, ws := range sinks {
			if pred(src, sink, ws) != invert {
				out.AddEdge(src, sink, ws)
			}
		}
	}
	return out
}

// Retain drops, in place, every edge for which pred returns false.
func (g *BidGraph) Retain(pred EdgePred) {
	for src, sinks := range g.out {
		for sink, ws := range sinks {
			if !pred(src, sink, ws) {
				delete(sinks, sink)
				delete(g.in[sink], src)
			}
		}
	}
}

// AsSubgraph projects the graph onto a single kind. Edges lacking the kind
// are dropped; the projection edge carries the kind's sort key and declared
// doc paths. With reverse, edge direction is inverted.
func (g *BidGraph) AsSubgraph(kind belief.WeightKind, reverse bool) *SubGraph {
	sub := NewSubGraph()
	for src, sinks := range g.out {
		for sink, ws := range sinks {
			w, ok := ws.Get(kind)
			if !ok {
				continue
			}
			sortKey, _ := w.SortKey()
			edge := SubEdge{SortKey: sortKey, DocPaths: w.DocPaths()}
			if reverse {
				sub.AddEdge(sink, src, edge)
			} else {
				sub.AddEdge(src, sink, edge)
			}
		}
	}
	return sub
}

// SinkSubgraph returns the set of nodes reachable downstream from start via
// kind edges (start included when present).
func (g *BidGraph) SinkSubgraph(start belief.Bid, kind belief.WeightKind) map[belief.Bid]struct{} {
	return g.reachable(start, kind, false)
}

// SourceSubgraph returns the set of nodes reachable upstream from start via
// kind edges (start included when present).
func (g *BidGraph) SourceSubgraph(start belief.Bid, kind belief.WeightKind) map[belief.Bid]struct{} {
	return g.reachable(start, kind, true)
}

func (g *BidGraph) reachable(start belief.Bid, kind belief.WeightKind, reverse bool) map[belief.Bid]struct{} {
	sub := g.AsSubgraph(kind, reverse)
	nodes := map[belief.Bid]struct{}{}
	if !sub.HasNode(start) {
		return nodes
	}
	sub.DepthFirstSearch([]belief.Bid{start}, func(ev DfsEventType, u, _ belief.Bid) DfsControl {
		if ev == DfsDiscover {
			nodes[u] = struct{}{}
		}
		return DfsContinue
	})
	return nodes
}
