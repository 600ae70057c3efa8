package graph

import (
	"sort"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

// SubEdge is the edge payload of a single-kind projection.
type SubEdge struct {
	SortKey  uint16
	DocPaths []string
}

// ExplicitPath returns the first declared doc path, if any.
func (e SubEdge) ExplicitPath() string {
	if len(e.DocPaths) == 0 {
		return ""
	}
	return e.DocPaths[0]
}

// SubGraph is a simple directed graph over Bids with SubEdge payloads.
type SubGraph struct {
	nodes map[belief.Bid]struct{}
	out   map[belief.Bid]map[belief.Bid]SubEdge
}

// NewSubGraph returns an empty projection.
func NewSubGraph() *SubGraph {
	return &SubGraph{
		nodes: map[belief.Bid]struct{}{},
		out:   map[belief.Bid]map[belief.Bid]SubEdge{},
	}
}

// AddEdge inserts or replaces an edge, adding both endpoints.
func (g *SubGraph) AddEdge(from, to belief.Bid, edge SubEdge) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	if g.out[from] == nil {
		g.out[from] = map[belief.Bid]SubEdge{}
	}
	g.out[from][to] = edge
}

// HasNode reports membership.
func (g *SubGraph) HasNode(bid belief.Bid) bool {
	_, ok := g.nodes[bid]
	return ok
}

// EdgeWeight returns the payload of the from -> to edge.
func (g *SubGraph) EdgeWeight(from, to belief.Bid) (SubEdge, bool) {
	e, ok := g.out[from][to]
	return e, ok
}

// Neighbors returns the successors of bid in deterministic order.
func (g *SubGraph) Neighbors(bid belief.Bid) []belief.Bid {
	out := make([]belief.Bid, 0, len(g.out[bid]))
	for to := range g.out[bid] {
		out = append(out, to)
	}
	return belief.SortBids(out)
}

// Nodes returns all nodes in deterministic order.
func (g *SubGraph) Nodes() []belief.Bid {
	out := make([]belief.Bid, 0, len(g.nodes))
	for bid := range g.nodes {
		out = append(out, bid)
	}
	return belief.SortBids(out)
}

// DfsEventType classifies depth-first search callbacks.
type DfsEventType int

const (
	// DfsDiscover fires the first time a node is reached.
	DfsDiscover DfsEventType = iota
	// DfsTreeEdge fires for an edge leading to an undiscovered node.
	DfsTreeEdge
	// DfsBackEdge fires for an edge into a node whose search is still in
	// progress, i.e. a cycle.
	DfsBackEdge
	// DfsCrossForwardEdge fires for an edge into an already finished node.
	DfsCrossForwardEdge
	// DfsFinish fires once all of a node's edges have been processed.
	DfsFinish
)

// DfsControl steers the traversal from a visitor callback.
type DfsControl int

const (
	// DfsContinue proceeds normally.
	DfsContinue DfsControl = iota
	// DfsPrune skips the subtree behind the current event: a pruned tree
	// edge is recorded but not followed, a pruned discover skips the node's
	// edges entirely.
	DfsPrune
)

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// DepthFirstSearch runs an event-driven DFS from the given start nodes in
// order. Neighbor iteration is deterministic, so a fixed graph always
// produces a fixed event sequence. For Discover and Finish events only the
// first Bid argument is meaningful; edge events carry (from, to).
func (g *SubGraph) DepthFirstSearch(starts []belief.Bid, visit func(ev DfsEventType, u, v belief.Bid) DfsControl) {
	colors := map[belief.Bid]int{}
	var walk func(u belief.Bid)
	walk = func(u belief.Bid) {
		colors[u] = colorGray
		if visit(DfsDiscover, u, u) == DfsPrune {
			colors[u] = colorBlack
			return
		}
		for _, v := range g.Neighbors(u) {
			switch colors[v] {
			case colorWhite:
				if visit(DfsTreeEdge, u, v) == DfsPrune {
					continue
				}
				walk(v)
			case colorGray:
				visit(DfsBackEdge, u, v)
			default:
				visit(DfsCrossForwardEdge, u, v)
			}
		}
		colors[u] = colorBlack
		visit(DfsFinish, u, u)
	}
	for _, start := range starts {
		if !g.HasNode(start) {
			continue
		}
		if colors[start] == colorWhite {
			walk(start)
		}
	}
}

// StronglyConnectedComponents returns the SCCs of the projection, each
// sorted internally, ordered by their smallest member. Components with a
// single node and no self loop are included; callers interested in cycles
// filter for len > 1.
func (g *SubGraph) StronglyConnectedComponents() [][]belief.Bid {
	index := 0
	indices := map[belief.Bid]int{}
	low := map[belief.Bid]int{}
	onStack := map[belief.Bid]bool{}
	var stack []belief.Bid
	var components [][]belief.Bid

	var strongConnect func(v belief.Bid)
	strongConnect = func(v belief.Bid) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Neighbors(v) {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && indices[w] < low[v] {
				low[v] = indices[w]
			}
		}

		if low[v] == indices[v] {
			var comp []belief.Bid
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			components = append(components, belief.SortBids(comp))
		}
	}

	for _, v := range g.Nodes() {
		if _, seen := indices[v]; !seen {
			strongConnect(v)
		}
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0].Less(components[j][0])
	})
	return components
}
