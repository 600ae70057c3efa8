package beliefbase

import (
	"github.com/buildonomy/beliefdb/pkg/belief"
)

// ProcessEvent is the primary entry point for all state changes.
//
// Origin handling:
//   - OriginLocal: the event was generated by this base; the state is
//     already consistent, so the engine only validates and returns no
//     derivatives.
//   - OriginRemote: the event comes from an external producer and is
//     applied, returning the derivative events it caused. Derivatives are
//     emitted in a deterministic order: state mutations first, then
//     relation mutations, then sink reindexing, then path events.
//
// Events referencing missing nodes are logged and skipped rather than
// rejected, keeping reconciliation streams idempotent under partial
// application.
func (bs *BeliefBase) ProcessEvent(event belief.BeliefEvent) ([]belief.BeliefEvent, error) {
	if origin, ok := belief.OriginOf(event); ok && origin == belief.OriginLocal {
		if err := bs.validateLocalEvent(event); err != nil {
			log.Warnf("local event validation failed: %v", err)
		}
		return nil, nil
	}

	var derivatives []belief.BeliefEvent
	switch e := event.(type) {
	case belief.NodeUpdate:
		node, err := belief.ParseNode(e.Node)
		if err != nil {
			return nil, err
		}
		derivatives = append(derivatives, bs.insertState(node, e.Keys)...)
		derivatives = append(derivatives, bs.mountNetwork(node)...)

	case belief.NodesRemoved:
		set := map[belief.Bid]struct{}{}
		for _, bid := range e.Bids {
			set[bid] = struct{}{}
		}
		derivatives = append(derivatives, bs.removeNodes(set)...)

	case belief.NodeRenamed:
		// Handled atomically by NodeUpdate's merge path; a raw rename is a
		// no-op at the state level.

	case belief.PathAdded, belief.PathUpdate, belief.PathsRemoved:
		// Path events are derivative only; they are emitted for
		// subscribers, never accepted as input.

	case belief.RelationInsert:
		lowered, extra, ok := bs.lowerRelationInsert(e)
		derivatives = append(derivatives, extra...)
		if ok {
			derivatives = append(derivatives, bs.applyRelationChange(lowered)...)
		}

	case belief.RelationChange:
		derivatives = append(derivatives, bs.applyRelationChange(e)...)

	case belief.RelationUpdate:
		derivatives = append(derivatives, bs.updateRelation(e.Source, e.Sink, e.Weights)...)

	case belief.RelationRemoved:
		// An empty weight set triggers removal plus reindexing of the
		// remaining edges on the sink.
		derivatives = append(derivatives, bs.updateRelation(e.Source, e.Sink, belief.NewWeightSet())...)

	case belief.FileParsed:
		// Metadata only; tracked by external transaction layers.

	case belief.BalanceCheck:
		bs.indexSync(false)

	case belief.BuiltInTest:
		bs.indexSync(true)
	}

	// Lock order: relations before the path index.
	queue := append([]belief.BeliefEvent{event}, derivatives...)
	bs.relMu.RLock()
	bs.pathsMu.Lock()
	pathEvents := bs.paths.ProcessEventQueue(queue, bs.relations)
	bs.pathsMu.Unlock()
	bs.relMu.RUnlock()
	derivatives = append(derivatives, pathEvents...)

	return derivatives, nil
}

// applyRelationChange folds a single-kind change through the edge merge
// semantics and, when anything changed, emits the concrete RelationUpdate
// and applies it.
func (bs *BeliefBase) applyRelationChange(e belief.RelationChange) []belief.BeliefEvent {
	update, changed := bs.generateEdgeUpdate(e)
	if !changed {
		return nil
	}
	var derivatives []belief.BeliefEvent
	reindex := bs.updateRelation(update.Source, update.Sink, update.Weights)
	derivatives = append(derivatives, update)
	derivatives = append(derivatives, reindex...)
	return derivatives
}

// mountNetwork links a freshly introduced Network node under the API
// anchor when it carries no Section connection to any API node yet, so
// every network's content stays reachable from an API root.
func (bs *BeliefBase) mountNetwork(node belief.BeliefNode) []belief.BeliefEvent {
	if !node.Kind.IsNetwork() || node.Kind.Contains(belief.KindAPI) || node.Bid == bs.api.Bid {
		return nil
	}
	bs.indexSync(false)
	bs.relMu.RLock()
	mounted := false
	for _, edge := range bs.relations.EdgesDirected(node.Bid, graphOutgoing) {
		if _, ok := edge.Weights.Get(belief.Section); !ok {
			continue
		}
		if sink, ok := bs.states[edge.Sink]; ok && sink.Kind.Contains(belief.KindAPI) {
			mounted = true
			break
		}
	}
	bs.relMu.RUnlock()
	if mounted {
		return nil
	}
	w := belief.NewWeight()
	w.Set(belief.WeightOwnedBy, "source")
	return bs.applyRelationChange(belief.RelationChange{
		Source: node.Bid,
		Sink:   bs.api.Bid,
		Kind:   belief.Section,
		Weight: &w,
		Origin: belief.OriginLocal,
	})
}

// lowerRelationInsert resolves the NodeKey endpoints of a RelationInsert,
// synthesizing external placeholder nodes for unresolved href/asset
// references, and lowers the event to a RelationChange over Bids.
func (bs *BeliefBase) lowerRelationInsert(e belief.RelationInsert) (belief.RelationChange, []belief.BeliefEvent, bool) {
	var derivatives []belief.BeliefEvent
	source, sourceEvents, ok := bs.ensureNode(e.Source)
	derivatives = append(derivatives, sourceEvents...)
	if !ok {
		log.Warnf("skipping %s: source %s does not resolve", e, e.Source)
		return belief.RelationChange{}, derivatives, false
	}
	sink, sinkEvents, ok := bs.ensureNode(e.Sink)
	derivatives = append(derivatives, sinkEvents...)
	if !ok {
		log.Warnf("skipping %s: sink %s does not resolve", e, e.Sink)
		return belief.RelationChange{}, derivatives, false
	}
	weight := e.Weight
	if weight == nil {
		// An insert without payload still declares the kind.
		w := belief.NewWeight()
		weight = &w
	}
	// Path-keyed Section declarations carry their document path into the
	// edge payload, so the path index reproduces the source's file name.
	if e.Kind == belief.Section && e.Source.Scheme == belief.SchemePath && e.Source.Value != "" {
		var w belief.Weight
		if weight != nil {
			w = weight.Clone()
		} else {
			w = belief.NewWeight()
		}
		merged := append(w.DocPaths(), e.Source.Value)
		w.SetDocPaths(merged)
		weight = &w
	}
	return belief.RelationChange{
		Source: source,
		Sink:   sink,
		Kind:   e.Kind,
		Weight: weight,
		Origin: e.Origin,
	}, derivatives, true
}

// ensureNode resolves a key to a loaded node. Id references under the href
// or asset namespaces that fail lookup synthesize an External|Trace
// placeholder Section-linked to the owning reserved network, so subsequent
// references to the same value converge on one node.
func (bs *BeliefBase) ensureNode(key belief.NodeKey) (belief.Bid, []belief.BeliefEvent, bool) {
	if node, ok := bs.Get(key); ok {
		return node.Bid, nil, true
	}
	if key.Scheme != belief.SchemeID {
		return belief.NilBid(), nil, false
	}
	var root belief.Bid
	switch key.Net {
	case belief.HrefNamespace().Bref():
		root = belief.HrefNamespace()
	case belief.AssetNamespace().Bref():
		root = belief.AssetNamespace()
	default:
		return belief.NilBid(), nil, false
	}

	node := belief.BeliefNode{
		Bid:   belief.NewBid(root),
		Kind:  belief.Kinds(belief.KindExternal, belief.KindTrace),
		Title: key.Value,
		ID:    key.Value,
	}
	bs.relMu.Lock()
	bs.states[node.Bid] = node
	bs.brefs[node.Bid.Bref()] = node.Bid
	bs.relMu.Unlock()
	bs.indexDirty.Store(true)

	derivatives := []belief.BeliefEvent{
		belief.NodeUpdate{
			Keys:   []belief.NodeKey{belief.BidKey(node.Bid), key},
			Node:   node.TOML(),
			Origin: belief.OriginLocal,
		},
	}
	derivatives = append(derivatives, bs.applyRelationChange(belief.RelationChange{
		Source: node.Bid,
		Sink:   root,
		Kind:   belief.Section,
		Weight: func() *belief.Weight { w := belief.NewWeight(); return &w }(),
		Origin: belief.OriginLocal,
	})...)
	return node.Bid, derivatives, true
}

// insertState inserts or replaces a state while preserving key uniqueness.
// An existing node matching any merge key under a different Bid is renamed
// onto the new identity: its edges move over (weight sets unioned on
// conflict) and a NodeRenamed plus NodesRemoved derivative stream is
// returned.
func (bs *BeliefBase) insertState(node belief.BeliefNode, merge []belief.NodeKey) []belief.BeliefEvent {
	var events []belief.BeliefEvent
	toReplace := map[belief.Bid]struct{}{}
	for _, key := range merge {
		if existing, ok := bs.Get(key); ok {
			toReplace[existing.Bid] = struct{}{}
		}
	}
	delete(toReplace, node.Bid)
	if len(toReplace) > 0 {
		log.Debugf("insert_state: node %s (id=%q) will replace %d nodes", node.Bid, node.ID, len(toReplace))
	}

	updated := false
	if existing, ok := bs.states[node.Bid]; !ok || !existing.Equal(node) {
		updated = true
	}
	if updated {
		bs.relMu.Lock()
		bs.states[node.Bid] = node.Clone()
		bs.brefs[node.Bid.Bref()] = node.Bid
		bs.relMu.Unlock()
	}

	replaced := make([]belief.Bid, 0, len(toReplace))
	for bid := range toReplace {
		replaced = append(replaced, bid)
	}
	belief.SortBids(replaced)
	var relationEvents []belief.BeliefEvent
	for _, old := range replaced {
		// Edges transfer before the state disappears so the rename carries
		// the full relation set.
		events = append(events, belief.NodeRenamed{From: old, To: node.Bid, Origin: belief.OriginLocal})
		relationEvents = append(relationEvents, bs.replaceBid(old, node.Bid)...)
		bs.relMu.Lock()
		delete(bs.states, old)
		delete(bs.brefs, old.Bref())
		bs.relMu.Unlock()
	}

	if updated || len(replaced) > 0 {
		bs.indexDirty.Store(true)
	}
	if len(replaced) > 0 {
		events = append(events, belief.NodesRemoved{Bids: replaced, Origin: belief.OriginLocal})
	}
	return append(events, relationEvents...)
}

// removeNodes drops states and their incident edges, then reindexes the
// ordering of every sink the removed nodes pointed at.
func (bs *BeliefBase) removeNodes(bids map[belief.Bid]struct{}) []belief.BeliefEvent {
	if len(bids) == 0 {
		return nil
	}
	bs.indexSync(false)

	sinkKinds := map[belief.Bid]map[belief.WeightKind]struct{}{}
	bs.relMu.RLock()
	for bid := range bids {
		for _, edge := range bs.relations.EdgesDirected(bid, graphOutgoing) {
			kinds := sinkKinds[edge.Sink]
			if kinds == nil {
				kinds = map[belief.WeightKind]struct{}{}
				sinkKinds[edge.Sink] = kinds
			}
			for _, kind := range edge.Weights.Kinds() {
				kinds[kind] = struct{}{}
			}
		}
	}
	bs.relMu.RUnlock()

	bs.relMu.Lock()
	for bid := range bids {
		if _, ok := bs.states[bid]; ok {
			delete(bs.states, bid)
			delete(bs.brefs, bid.Bref())
		}
		bs.relations.RemoveNode(bid)
	}
	bs.relMu.Unlock()
	bs.indexDirty.Store(true)

	var derivatives []belief.BeliefEvent
	sinks := make([]belief.Bid, 0, len(sinkKinds))
	for sink := range sinkKinds {
		sinks = append(sinks, sink)
	}
	belief.SortBids(sinks)
	for _, sink := range sinks {
		derivatives = append(derivatives, bs.reindexSinkEdges(sink, sinkKinds[sink])...)
	}
	return derivatives
}

// generateEdgeUpdate computes the effective weight set a RelationChange
// produces: doc paths union, other keys overwrite on change, fresh edges
// get the next free sort key for their kind. Returns false when nothing
// would change.
func (bs *BeliefBase) generateEdgeUpdate(e belief.RelationChange) (belief.RelationUpdate, bool) {
	bs.indexSync(false)
	bs.relMu.RLock()
	defer bs.relMu.RUnlock()

	present, hadEdge := bs.relations.FindEdge(e.Source, e.Sink)
	newWeights := belief.NewWeightSet()
	if hadEdge {
		newWeights = present.Clone()
	}
	changed := false

	if e.Weight == nil {
		changed = newWeights.Remove(e.Kind)
		if !changed {
			return belief.RelationUpdate{}, false
		}
		return belief.RelationUpdate{Source: e.Source, Sink: e.Sink, Weights: newWeights, Origin: e.Origin}, true
	}

	target, hadKind := newWeights.Get(e.Kind)
	if !hadKind {
		target = e.Weight.Clone()
		// Normalize the deprecated single-path spelling on fresh edges.
		if single, ok := target.GetString(belief.WeightDocPath); ok {
			delete(target.Payload, belief.WeightDocPath)
			target.SetDocPaths([]string{single})
		}
		changed = true
	} else {
		target = target.Clone()
		for key, incoming := range e.Weight.Payload {
			if key == belief.WeightDocPaths || key == belief.WeightDocPath {
				existing := target.DocPaths()
				merged := map[string]struct{}{}
				for _, p := range existing {
					merged[p] = struct{}{}
				}
				before := len(merged)
				incomingWeight := belief.Weight{Payload: map[string]any{key: incoming}}
				for _, p := range incomingWeight.DocPaths() {
					merged[p] = struct{}{}
				}
				if len(merged) != before {
					list := make([]string, 0, len(merged))
					for p := range merged {
						list = append(list, p)
					}
					target.SetDocPaths(list)
					changed = true
				}
				continue
			}
			cmp := belief.Weight{Payload: map[string]any{key: target.Payload[key]}}
			in := belief.Weight{Payload: map[string]any{key: incoming}}
			if !target.Contains(key) || !cmp.Equal(in) {
				target.Set(key, incoming)
				changed = true
			}
		}
	}
	if !hadEdge {
		changed = true
	}

	if _, ok := target.SortKey(); !ok {
		next := uint16(0)
		assigned := false
		for _, edge := range bs.relations.EdgesDirected(e.Sink, graphIncoming) {
			if edge.Source == e.Source {
				continue
			}
			if w, ok := edge.Weights.Get(e.Kind); ok {
				if idx, ok := w.SortKey(); ok && (!assigned || idx >= next) {
					next = idx + 1
					assigned = true
				}
			}
		}
		target.SetSortKey(next)
		changed = true
	}

	if !changed {
		return belief.RelationUpdate{}, false
	}
	newWeights.Set(e.Kind, target)
	return belief.RelationUpdate{Source: e.Source, Sink: e.Sink, Weights: newWeights, Origin: e.Origin}, true
}

// updateRelation replaces, inserts or removes an edge and reindexes every
// kind whose ordering on the sink may have become non-contiguous.
func (bs *BeliefBase) updateRelation(source, sink belief.Bid, newWeights belief.WeightSet) []belief.BeliefEvent {
	if source == sink {
		log.Warnf("dropping self-connection on %s", source)
		return nil
	}
	bs.indexSync(false)

	bs.relMu.Lock()
	if !bs.relations.HasNode(source) || !bs.relations.HasNode(sink) {
		bs.relMu.Unlock()
		log.Warnf("skipping relation update %s -> %s: endpoint missing", source, sink)
		return nil
	}
	old, _ := bs.relations.FindEdge(source, sink)
	affected := map[belief.WeightKind]struct{}{}
	for _, kind := range old.Difference(newWeights).Kinds() {
		affected[kind] = struct{}{}
	}
	if newWeights.IsEmpty() {
		bs.relations.RemoveEdge(source, sink)
	} else {
		bs.relations.AddEdge(source, sink, newWeights.Clone())
	}
	bs.relMu.Unlock()

	return bs.reindexSinkEdges(sink, affected)
}

// reindexSinkEdges restores [0, N) sort contiguity for the given kinds on a
// sink, emitting a RelationUpdate derivative for every edge whose key
// moved.
func (bs *BeliefBase) reindexSinkEdges(sink belief.Bid, kinds map[belief.WeightKind]struct{}) []belief.BeliefEvent {
	var derivatives []belief.BeliefEvent
	if len(kinds) == 0 {
		return derivatives
	}

	bs.relMu.Lock()
	defer bs.relMu.Unlock()
	if !bs.relations.HasNode(sink) {
		log.Warnf("cannot reindex sink edges: %s is not in the graph", sink)
		return derivatives
	}

	incoming := bs.relations.EdgesDirected(sink, graphIncoming)
	changed := map[belief.Bid]map[belief.WeightKind]uint16{}
	for _, kind := range belief.AllWeightKinds() {
		if _, affected := kinds[kind]; !affected {
			continue
		}
		type kindEdge struct {
			source belief.Bid
			oldIdx uint16
		}
		var kindSet []kindEdge
		for _, edge := range incoming {
			if w, ok := edge.Weights.Get(kind); ok {
				if idx, ok := w.SortKey(); ok {
					kindSet = append(kindSet, kindEdge{source: edge.Source, oldIdx: idx})
				}
			}
		}
		// Stable on the source order EdgesDirected already provides.
		for i := 1; i < len(kindSet); i++ {
			for j := i; j > 0 && kindSet[j].oldIdx < kindSet[j-1].oldIdx; j-- {
				kindSet[j], kindSet[j-1] = kindSet[j-1], kindSet[j]
			}
		}
		for newIdx, entry := range kindSet {
			if uint16(newIdx) != entry.oldIdx {
				if changed[entry.source] == nil {
					changed[entry.source] = map[belief.WeightKind]uint16{}
				}
				changed[entry.source][kind] = uint16(newIdx)
			}
		}
	}

	sources := make([]belief.Bid, 0, len(changed))
	for source := range changed {
		sources = append(sources, source)
	}
	belief.SortBids(sources)
	for _, source := range sources {
		ws, ok := bs.relations.FindEdge(source, sink)
		if !ok {
			continue
		}
		ws = ws.Clone()
		for kind, newIdx := range changed[source] {
			w, _ := ws.Get(kind)
			w = w.Clone()
			w.SetSortKey(newIdx)
			ws.Set(kind, w)
		}
		bs.relations.AddEdge(source, sink, ws)
		derivatives = append(derivatives, belief.RelationUpdate{
			Source:  source,
			Sink:    sink,
			Weights: ws.Clone(),
			Origin:  belief.OriginLocal,
		})
	}
	return derivatives
}

// replaceBid moves every edge of replaced onto newBid, unioning weight sets
// when both endpoints already shared an edge. Section weights move too, so
// the renamed path rows stay backed by Section edges.
func (bs *BeliefBase) replaceBid(replaced, newBid belief.Bid) []belief.BeliefEvent {
	var derivatives []belief.BeliefEvent
	bs.indexSync(false)

	bs.relMu.Lock()
	defer bs.relMu.Unlock()
	if !bs.relations.HasNode(replaced) {
		return derivatives
	}
	bs.relations.AddNode(newBid)

	for _, edge := range bs.relations.EdgesDirected(replaced, graphOutgoing) {
		weights := edge.Weights.Clone()
		bs.relations.RemoveEdge(replaced, edge.Sink)
		derivatives = append(derivatives, belief.RelationRemoved{Source: replaced, Sink: edge.Sink, Origin: belief.OriginLocal})
		if existing, ok := bs.relations.FindEdge(newBid, edge.Sink); ok {
			bs.relations.AddEdge(newBid, edge.Sink, existing.Union(weights))
		} else if !weights.IsEmpty() {
			bs.relations.AddEdge(newBid, edge.Sink, weights)
		}
	}

	for _, edge := range bs.relations.EdgesDirected(replaced, graphIncoming) {
		weights := edge.Weights.Clone()
		bs.relations.RemoveEdge(edge.Source, replaced)
		derivatives = append(derivatives, belief.RelationRemoved{Source: edge.Source, Sink: replaced, Origin: belief.OriginLocal})
		if existing, ok := bs.relations.FindEdge(edge.Source, newBid); ok {
			bs.relations.AddEdge(edge.Source, newBid, existing.Union(weights))
		} else if !weights.IsEmpty() {
			bs.relations.AddEdge(edge.Source, newBid, weights)
		}
	}

	bs.relations.RemoveNode(replaced)
	bs.indexDirty.Store(true)
	return derivatives
}

// validateLocalEvent asserts consistency between a Local event and the
// internal state. Violations are logged, never fatal.
func (bs *BeliefBase) validateLocalEvent(event belief.BeliefEvent) error {
	switch e := event.(type) {
	case belief.RelationUpdate:
		bs.indexSync(false)
		bs.relMu.RLock()
		defer bs.relMu.RUnlock()
		actual, ok := bs.relations.FindEdge(e.Source, e.Sink)
		if !ok {
			return belief.NotFoundf("RelationUpdate references non-existent edge %s -> %s", e.Source, e.Sink)
		}
		if !actual.Equal(e.Weights) {
			return belief.Serializationf("RelationUpdate mismatch on %s -> %s", e.Source, e.Sink)
		}
	case belief.NodesRemoved:
		for _, bid := range e.Bids {
			if _, ok := bs.states[bid]; ok {
				return belief.Serializationf("NodesRemoved claims %s was removed but it still exists", bid)
			}
		}
	case belief.NodeUpdate:
		node, err := belief.ParseNode(e.Node)
		if err != nil {
			return err
		}
		existing, ok := bs.states[node.Bid]
		if !ok {
			return belief.NotFoundf("NodeUpdate claims %s exists but it is not in states", node.Bid)
		}
		if !existing.Equal(node) {
			return belief.Serializationf("NodeUpdate mismatch for %s", node.Bid)
		}
	}
	return nil
}
