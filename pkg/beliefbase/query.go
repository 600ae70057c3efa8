package beliefbase

import (
	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
	"github.com/buildonomy/beliefdb/pkg/paths"
	"github.com/buildonomy/beliefdb/pkg/query"
)

// FilterStates returns the states matching a predicate. Indexed predicates
// (paths, ids, titles) resolve through the path index and ignore invert;
// matcher predicates filter node by node.
func (bs *BeliefBase) FilterStates(pred query.StatePred, invert bool) map[belief.Bid]belief.BeliefNode {
	out := map[belief.Bid]belief.BeliefNode{}
	grab := func(bid belief.Bid, ok bool) {
		if !ok {
			return
		}
		if node, present := bs.states[bid]; present {
			out[bid] = node.Clone()
		}
	}

	switch p := pred.(type) {
	case query.PathIn:
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			api := pmm.APIMap()
			for _, path := range p {
				_, bid, ok := api.Get(path, pmm)
				grab(bid, ok)
			}
		})
	case query.NetPath:
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			if net, ok := pmm.NetByBref(p.Net); ok {
				_, bid, ok := pmm.NetGetFromPath(net, p.Path)
				grab(bid, ok)
			}
		})
	case query.NetPathIn:
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			net, ok := pmm.NetByBref(p.Net)
			if !ok {
				return
			}
			pm, ok := pmm.GetMap(net)
			if !ok {
				return
			}
			for _, bid := range netMembers(pm, pmm, map[belief.Bid]struct{}{}) {
				grab(bid, true)
			}
		})
	case query.TitleMatch:
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			if net, ok := pmm.NetByBref(p.Net); ok {
				_, bid, ok := pmm.NetGetFromTitleRegex(net, p.Regex)
				grab(bid, ok)
			}
		})
	case query.IDIs:
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			if net, ok := pmm.NetByBref(p.Net); ok {
				_, bid, ok := pmm.NetGetFromID(net, p.ID)
				grab(bid, ok)
			}
		})
	default:
		matcher, ok := pred.(query.Matcher)
		if !ok {
			return out
		}
		for bid, node := range bs.states {
			if matcher.MatchState(node) != invert {
				out[bid] = node.Clone()
			}
		}
	}
	return out
}

// netMembers collects the bids registered under a network's path map,
// crossing subnet mounts.
func netMembers(pm *paths.PathMap, pmm *paths.PathMapMap, visited map[belief.Bid]struct{}) []belief.Bid {
	if _, seen := visited[pm.Net()]; seen {
		return nil
	}
	visited[pm.Net()] = struct{}{}
	var out []belief.Bid
	for _, row := range pm.Map() {
		out = append(out, row.Bid)
	}
	for _, sub := range pm.Subnets() {
		if subPm, ok := pmm.GetMap(sub); ok {
			out = append(out, netMembers(subPm, pmm, visited)...)
		}
	}
	return out
}

// EvaluateExpression evaluates a query expression into an owned result
// graph. State selections include every incident edge; endpoints that were
// not directly matched are added as Trace copies, signalling their relation
// set is not guaranteed complete.
func (bs *BeliefBase) EvaluateExpression(expr query.Expression) graph.BeliefGraph {
	bs.indexSync(false)
	switch e := expr.(type) {
	case query.StateIn:
		return bs.stateResult(bs.FilterStates(e.Pred, false))
	case query.StateNotIn:
		return bs.stateResult(bs.FilterStates(e.Pred, true))
	case query.RelationIn:
		return bs.relationResult(e.Pred, false)
	case query.RelationNotIn:
		return bs.relationResult(e.Pred, true)
	case query.Dyad:
		lhs := bs.EvaluateExpression(e.L)
		rhs := bs.EvaluateExpression(e.R)
		return applyDyad(lhs, rhs, e.Op)
	}
	return graph.NewBeliefGraph()
}

func applyDyad(lhs, rhs graph.BeliefGraph, op query.SetOp) graph.BeliefGraph {
	switch op {
	case query.Union:
		lhs.UnionMut(&rhs)
		return lhs
	case query.Intersection:
		return lhs.Intersection(&rhs)
	case query.Difference:
		return lhs.Difference(&rhs)
	default:
		return lhs.SymmetricDifference(&rhs)
	}
}

func (bs *BeliefBase) stateResult(states map[belief.Bid]belief.BeliefNode) graph.BeliefGraph {
	out := graph.BeliefGraph{States: states, Relations: graph.NewBidGraph()}
	bs.relMu.RLock()
	defer bs.relMu.RUnlock()
	filtered := bs.relations.Filter(func(source, sink belief.Bid, _ belief.WeightSet) bool {
		_, a := states[source]
		_, b := states[sink]
		return a || b
	}, false)
	for _, edge := range filtered.Edges() {
		out.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
		bs.addTraceEndpoint(&out, edge.Source)
		bs.addTraceEndpoint(&out, edge.Sink)
	}
	return out
}

// addTraceEndpoint pulls a referenced endpoint into the result as a Trace
// copy when it was not directly matched.
func (bs *BeliefBase) addTraceEndpoint(out *graph.BeliefGraph, bid belief.Bid) {
	if _, ok := out.States[bid]; ok {
		return
	}
	node, ok := bs.states[bid]
	if !ok {
		return
	}
	trace := node.Clone()
	trace.Kind = trace.Kind.With(belief.KindTrace)
	out.States[bid] = trace
}

func (bs *BeliefBase) relationResult(pred query.RelationPred, invert bool) graph.BeliefGraph {
	out := graph.NewBeliefGraph()
	bs.relMu.RLock()
	defer bs.relMu.RUnlock()
	for _, edge := range bs.relations.Edges() {
		if pred.MatchRelation(edge) == invert {
			continue
		}
		out.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
		bs.addTraceEndpoint(&out, edge.Source)
		bs.addTraceEndpoint(&out, edge.Sink)
	}
	return out
}

// EvaluateExpressionAsTrace is the restricted variant used by the balancing
// loop: directly matched nodes are tagged Trace, and only edges whose
// weight set intersects the filter are returned, which walks structure
// outward without pulling in the full graph.
func (bs *BeliefBase) EvaluateExpressionAsTrace(expr query.Expression, weightFilter belief.WeightSet) graph.BeliefGraph {
	bs.indexSync(false)
	switch e := expr.(type) {
	case query.StateIn, query.StateNotIn:
		invert := false
		var pred query.StatePred
		if in, ok := e.(query.StateIn); ok {
			pred = in.Pred
		} else {
			pred = e.(query.StateNotIn).Pred
			invert = true
		}
		states := bs.FilterStates(pred, invert)
		for bid, node := range states {
			node.Kind = node.Kind.With(belief.KindTrace)
			states[bid] = node
		}
		out := graph.BeliefGraph{States: states, Relations: graph.NewBidGraph()}
		bs.relMu.RLock()
		defer bs.relMu.RUnlock()
		filtered := bs.relations.Filter(func(source, _ belief.Bid, ws belief.WeightSet) bool {
			if _, ok := states[source]; !ok {
				return false
			}
			return !ws.Intersection(weightFilter).IsEmpty()
		}, false)
		for _, edge := range filtered.Edges() {
			out.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
			bs.addTraceEndpoint(&out, edge.Sink)
		}
		return out
	case query.RelationIn, query.RelationNotIn:
		return bs.EvaluateExpression(expr)
	case query.Dyad:
		lhs := bs.EvaluateExpressionAsTrace(e.L, weightFilter)
		rhs := bs.EvaluateExpressionAsTrace(e.R, weightFilter)
		return applyDyad(lhs, rhs, e.Op)
	}
	return graph.NewBeliefGraph()
}
