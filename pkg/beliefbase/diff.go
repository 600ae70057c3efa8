package beliefbase

import (
	"sort"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
)

type edgeKey struct {
	source belief.Bid
	sink   belief.Bid
}

func sortedEdgeKeys(m map[edgeKey]belief.WeightSet) []edgeKey {
	keys := make([]edgeKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sink != keys[j].sink {
			return keys[i].sink.Less(keys[j].sink)
		}
		return keys[i].source.Less(keys[j].source)
	})
	return keys
}

// scopedEdges restricts a relation graph to the edges owned by the parsed
// scope. The owner of an edge follows its owned_by weight: source-owned
// edges belong to their source, the rest to their sink. Section edges are
// carried whenever either endpoint is in scope, because parsing assigns
// their ownership to the sink except under API nodes.
func scopedEdges(relations *graph.BidGraph, scope map[belief.Bid]struct{}, alsoOwned map[belief.Bid]struct{}) map[edgeKey]belief.WeightSet {
	out := map[edgeKey]belief.WeightSet{}
	inScope := func(bid belief.Bid) bool {
		if _, ok := scope[bid]; ok {
			return true
		}
		_, ok := alsoOwned[bid]
		return ok
	}
	for _, edge := range relations.Edges() {
		if !inScope(edge.Source) && !inScope(edge.Sink) {
			continue
		}
		ws := belief.NewWeightSet()
		for _, kind := range edge.Weights.Kinds() {
			w, _ := edge.Weights.Get(kind)
			owner := edge.Sink
			if w.OwnedBySource() {
				owner = edge.Source
			}
			if kind == belief.Section || inScope(owner) {
				ws.Set(kind, w.Clone())
			}
		}
		if !ws.IsEmpty() {
			out[edgeKey{source: edge.Source, sink: edge.Sink}] = ws
		}
	}
	return out
}

// ComputeDiff compares two snapshots of a subgraph and returns the minimal
// ordered event stream that transforms old into updated, restricted to the
// parsed scope. Replaying the stream through ProcessEvent on old yields a
// graph equal to new on that scope.
//
// Emission order:
//
//  1. NodesRemoved for nodes reachable in old but absent from new
//  2. NodeUpdate for new or changed nodes in scope
//  3. RelationRemoved for edges gone from the scope
//  4. RelationUpdate for entirely new edges
//  5. RelationChange per kind whose weight changed on shared edges
func ComputeDiff(old, updated *BeliefBase, parsedContent map[belief.Bid]struct{}) []belief.BeliefEvent {
	var events []belief.BeliefEvent
	old.indexSync(false)
	updated.indexSync(false)

	// Phase 1: removed nodes. Walk old's Section projection upstream from
	// the parsed scope; anything that no longer exists in the update goes.
	starts := make([]belief.Bid, 0, len(parsedContent))
	for bid := range parsedContent {
		starts = append(starts, bid)
	}
	belief.SortBids(starts)

	oldContent := map[belief.Bid]struct{}{}
	old.relMu.RLock()
	oldStructure := old.relations.AsSubgraph(belief.Section, true)
	old.relMu.RUnlock()
	oldStructure.DepthFirstSearch(starts, func(ev graph.DfsEventType, u, _ belief.Bid) graph.DfsControl {
		if ev != graph.DfsDiscover {
			return graph.DfsContinue
		}
		if _, ok := updated.states[u]; !ok {
			oldContent[u] = struct{}{}
			return graph.DfsContinue
		}
		if _, parsed := parsedContent[u]; parsed {
			// The parsed frontier itself is walked so its vanished
			// children surface; surviving nodes below it are not.
			return graph.DfsContinue
		}
		return graph.DfsPrune
	})
	removed := map[belief.Bid]struct{}{}
	var removedList []belief.Bid
	for bid := range oldContent {
		if _, parsed := parsedContent[bid]; !parsed {
			removed[bid] = struct{}{}
			removedList = append(removedList, bid)
		}
	}
	if len(removedList) > 0 {
		events = append(events, belief.NodesRemoved{
			Bids:   belief.SortBids(removedList),
			Origin: belief.OriginRemote,
		})
	}

	// Phase 2: updated nodes, compared on their serialized form.
	for _, bid := range starts {
		newNode, ok := updated.states[bid]
		if !ok {
			continue
		}
		if oldNode, ok := old.states[bid]; ok && oldNode.TOML() == newNode.TOML() {
			continue
		}
		events = append(events, belief.NodeUpdate{
			Keys:   []belief.NodeKey{belief.BidKey(bid)},
			Node:   newNode.TOML(),
			Origin: belief.OriginRemote,
		})
	}

	// Phase 3 preparation: edges owned by the scope on each side.
	updated.relMu.RLock()
	parsedEdges := scopedEdges(updated.relations, parsedContent, nil)
	updated.relMu.RUnlock()
	old.relMu.RLock()
	oldParsedEdges := scopedEdges(old.relations, parsedContent, removed)
	old.relMu.RUnlock()

	// Phase 3: removed edges.
	for _, key := range sortedEdgeKeys(oldParsedEdges) {
		if _, ok := parsedEdges[key]; !ok {
			events = append(events, belief.RelationRemoved{
				Source: key.source,
				Sink:   key.sink,
				Origin: belief.OriginRemote,
			})
		}
	}

	// Phase 4: new edges carry their full weight set.
	for _, key := range sortedEdgeKeys(parsedEdges) {
		if _, ok := oldParsedEdges[key]; !ok {
			events = append(events, belief.RelationUpdate{
				Source:  key.source,
				Sink:    key.sink,
				Weights: parsedEdges[key],
				Origin:  belief.OriginRemote,
			})
		}
	}

	// Phase 5: shared edges diff kind by kind.
	for _, key := range sortedEdgeKeys(parsedEdges) {
		oldWeights, ok := oldParsedEdges[key]
		if !ok {
			continue
		}
		newWeights := parsedEdges[key]
		for _, kind := range newWeights.Kinds() {
			newWeight, _ := newWeights.Get(kind)
			if oldWeight, ok := oldWeights.Get(kind); ok && oldWeight.Equal(newWeight) {
				continue
			}
			w := newWeight.Clone()
			events = append(events, belief.RelationChange{
				Source: key.source,
				Sink:   key.sink,
				Kind:   kind,
				Weight: &w,
				Origin: belief.OriginRemote,
			})
		}
	}

	return events
}
