// Package beliefbase implements the belief graph engine: a structured
// collection of belief states and their relations that can be queried and
// mutated while preserving a global graph structure.
//
// Static invariants for a balanced base (checked by BuiltInTestErrors):
//
//  0. Each WeightKind sub-graph forms a directed acyclic graph.
//  1. All nodes within the relation hypergraph have a corresponding state
//     and a path to an API node via Section edges.
//  2. For every sink and kind, incoming sort keys form the contiguous range
//     [0, N). Trace sinks only require uniqueness.
//
// Operational rules:
//
//  1. The holder of a link is the sink; the resource it accesses is the
//     source. Parent == sink, child == source: the parent indexes its child
//     relationships, consuming data from the child nodes.
//  2. PathMaps identify how to acquire a source starting from known network
//     locations.
//
// All mutation flows through ProcessEvent. Remote events are applied and
// produce derivative events; Local events describe state the engine already
// holds and only validate. Reads share access behind read-write locks; a
// single writer is exclusive. Lock order, when several are needed, is
// relations, then the path index, then the error log.
package beliefbase

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
	"github.com/buildonomy/beliefdb/pkg/paths"
)

var log = logrus.WithField("component", "beliefbase")

const (
	graphOutgoing = graph.Outgoing
	graphIncoming = graph.Incoming
)

// BeliefBase owns the states, the relation graph, and the derived indices
// of one belief graph store.
type BeliefBase struct {
	states map[belief.Bid]belief.BeliefNode
	brefs  map[belief.Bref]belief.Bid
	api    belief.BeliefNode

	relMu     sync.RWMutex
	relations *graph.BidGraph

	pathsMu sync.RWMutex
	paths   *paths.PathMapMap

	indexDirty atomic.Bool

	errMu  sync.Mutex
	errors []string
}

// Empty returns a base with no states, no relations and an unindexed path
// map. Most callers want New, which injects the anchor nodes.
func Empty() *BeliefBase {
	return &BeliefBase{
		states:    map[belief.Bid]belief.BeliefNode{},
		brefs:     map[belief.Bref]belief.Bid{},
		api:       belief.APIState(),
		relations: graph.NewBidGraph(),
		paths:     paths.EmptyPathMapMap(),
	}
}

// NewUnbalanced constructs a base from raw states and relations without
// invariant recovery. With injectAPI the anchor nodes and their Section
// links are added.
func NewUnbalanced(states map[belief.Bid]belief.BeliefNode, relations *graph.BidGraph, injectAPI bool) *BeliefBase {
	bs := Empty()
	if relations != nil {
		bs.relations = relations
	}
	for bid, node := range states {
		bs.states[bid] = node
		if !bid.IsNil() {
			bs.brefs[bid.Bref()] = bid
		}
	}
	if injectAPI {
		bs.injectAnchors()
	}
	bs.indexDirty.Store(true)
	bs.indexSync(false)
	bs.paths = paths.NewPathMapMap(bs.states, bs.relations)
	return bs
}

// New constructs a base holding the API anchor, the href tracking network
// and the asset network, rebuilds the indices, and reports initial
// invariant state through IsBalanced.
func New(states map[belief.Bid]belief.BeliefNode, relations *graph.BidGraph) (*BeliefBase, error) {
	bs := NewUnbalanced(states, relations, true)
	bs.indexSync(true)
	return bs, nil
}

// Default returns an empty balanced base holding only the anchor nodes.
func Default() *BeliefBase {
	bs, err := New(map[belief.Bid]belief.BeliefNode{}, graph.NewBidGraph())
	if err != nil {
		panic(err)
	}
	return bs
}

// FromGraph rebuilds a base from a snapshot.
func FromGraph(bg graph.BeliefGraph) *BeliefBase {
	return NewUnbalanced(bg.States, bg.Relations, false)
}

// injectAnchors inserts the API node plus the reserved href and asset
// networks, Section-linked under the API so every anchor has a path.
func (bs *BeliefBase) injectAnchors() {
	api := bs.api.Clone()
	bs.states[api.Bid] = api
	bs.brefs[api.Bid.Bref()] = api.Bid

	for i, node := range []belief.BeliefNode{belief.HrefNetwork(), belief.AssetNetwork()} {
		if _, ok := bs.states[node.Bid]; !ok {
			bs.states[node.Bid] = node
			bs.brefs[node.Bid.Bref()] = node.Bid
		}
		if _, ok := bs.relations.FindEdge(node.Bid, api.Bid); !ok {
			w := belief.NewWeight()
			w.SetSortKey(uint16(i))
			w.Set(belief.WeightOwnedBy, "source")
			ws := belief.NewWeightSet()
			ws.Set(belief.Section, w)
			bs.relations.AddEdge(node.Bid, api.Bid, ws)
		}
	}
}

// API returns the node anchoring this base's schema version.
func (bs *BeliefBase) API() belief.BeliefNode { return bs.api }

// States exposes the state map. Callers must not mutate it.
func (bs *BeliefBase) States() map[belief.Bid]belief.BeliefNode { return bs.states }

// Brefs exposes the compact-reference index. Callers must not mutate it.
func (bs *BeliefBase) Brefs() map[belief.Bref]belief.Bid { return bs.brefs }

// Errors returns a copy of the accumulated invariant violations.
func (bs *BeliefBase) Errors() []string {
	bs.errMu.Lock()
	defer bs.errMu.Unlock()
	return append([]string(nil), bs.errors...)
}

// IsBalanced returns nil iff the error log is empty. The log is refreshed
// by New and by BuiltInTest events.
func (bs *BeliefBase) IsBalanced() error {
	bs.errMu.Lock()
	defer bs.errMu.Unlock()
	if len(bs.errors) > 0 {
		return belief.ErrUnbalanced
	}
	return nil
}

// IsEmpty reports whether the base holds no content beyond the injected
// anchor nodes.
func (bs *BeliefBase) IsEmpty() bool {
	count := len(bs.states)
	for _, anchor := range []belief.Bid{bs.api.Bid, belief.HrefNamespace(), belief.AssetNamespace()} {
		if _, ok := bs.states[anchor]; ok {
			count--
		}
	}
	return count == 0
}

// indexSync reconciles the relation graph with the state map when the dirty
// flag is set: every state gains a graph node so lookups and path walks see
// it. With bit set it additionally refreshes the error log with a full
// invariant check and compares the event-driven path index against a
// rebuilt one.
func (bs *BeliefBase) indexSync(bit bool) {
	if bs.indexDirty.Load() {
		bs.relMu.Lock()
		for bid := range bs.states {
			if !bs.relations.HasNode(bid) {
				bs.relations.AddNode(bid)
			}
		}
		bs.relMu.Unlock()
		bs.indexDirty.Store(false)
	}

	if !bit {
		return
	}

	errors := bs.BuiltInTestErrors(true)

	bs.relMu.RLock()
	constructed := paths.NewPathMapMap(bs.states, bs.relations)
	bs.relMu.RUnlock()
	constructorPaths := constructed.PathSet()
	bs.pathsMu.RLock()
	eventPaths := bs.paths.PathSet()
	bs.pathsMu.RUnlock()
	if !samePathSet(eventPaths, constructorPaths) {
		errors = append(errors, pathDivergenceError(eventPaths, constructorPaths))
	}

	bs.errMu.Lock()
	bs.errors = errors
	bs.errMu.Unlock()
	if len(errors) > 0 {
		log.Debugf("base is not balanced:\n- %v", errors)
	}
}

// WithPaths runs fn under a shared lock on the path index.
func (bs *BeliefBase) WithPaths(fn func(pmm *paths.PathMapMap)) {
	bs.indexSync(false)
	bs.pathsMu.RLock()
	defer bs.pathsMu.RUnlock()
	fn(bs.paths)
}

// WithRelations runs fn under a shared lock on the relation graph.
func (bs *BeliefBase) WithRelations(fn func(g *graph.BidGraph)) {
	bs.indexSync(false)
	bs.relMu.RLock()
	defer bs.relMu.RUnlock()
	fn(bs.relations)
}

// Get resolves a node by any key variant through the indices, returning a
// copy.
func (bs *BeliefBase) Get(key belief.NodeKey) (belief.BeliefNode, bool) {
	bs.indexSync(false)
	switch key.Scheme {
	case belief.SchemeBid:
		if node, ok := bs.states[key.Bid]; ok {
			return node.Clone(), true
		}
	case belief.SchemeBref:
		if bid, ok := bs.brefs[key.Bref]; ok {
			if node, ok := bs.states[bid]; ok {
				return node.Clone(), true
			}
		}
	case belief.SchemeID:
		var found belief.Bid
		ok := false
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			if net, resolved := pmm.NetByBref(key.Net); resolved {
				_, found, ok = pmm.NetGetFromID(net, key.Value)
			}
		})
		if ok {
			if node, present := bs.states[found]; present {
				return node.Clone(), true
			}
		}
	case belief.SchemePath:
		var found belief.Bid
		ok := false
		bs.WithPaths(func(pmm *paths.PathMapMap) {
			if net, resolved := pmm.NetByBref(key.Net); resolved {
				_, found, ok = pmm.NetGetFromPath(net, key.Value)
			}
		})
		if ok {
			if node, present := bs.states[found]; present {
				return node.Clone(), true
			}
		}
	}
	return belief.BeliefNode{}, false
}

// ParseKeyWithCache parses a textual NodeKey, resolving unresolved network
// references against this base (Bref match first, then semantic id).
func (bs *BeliefBase) ParseKeyWithCache(s string) (belief.NodeKey, error) {
	key, err := belief.ParseNodeKey(s)
	if err == nil {
		return key, nil
	}
	unresolved, ok := err.(*belief.UnresolvedNetworkError)
	if !ok {
		return belief.NodeKey{}, err
	}
	net, resolveErr := bs.resolveNetworkRef(unresolved.NetworkRef)
	if resolveErr != nil {
		return belief.NodeKey{}, resolveErr
	}
	switch unresolved.KeyType {
	case "id":
		return belief.IDKey(net.Bref(), unresolved.Value), nil
	case "path":
		return belief.PathKey(net.Bref(), unresolved.Value), nil
	}
	return belief.NodeKey{}, belief.Serializationf("unknown key type %q", unresolved.KeyType)
}

func (bs *BeliefBase) resolveNetworkRef(ref string) (belief.Bid, error) {
	if bref, err := belief.ParseBref(ref); err == nil {
		if bid, ok := bs.brefs[bref]; ok {
			return bid, nil
		}
	}
	for _, bid := range belief.SortBids(bs.stateBids()) {
		if bs.states[bid].ID == ref {
			return bid, nil
		}
	}
	return belief.NilBid(), belief.NotFoundf("network reference %q not found in cache", ref)
}

// RegularizeKey converts a relative key to an absolute one against the
// path of its owning node within rootNet.
func (bs *BeliefBase) RegularizeKey(key belief.NodeKey, keyOwner, rootNet belief.Bid) (belief.NodeKey, error) {
	ownerPath := ""
	found := false
	bs.WithPaths(func(pmm *paths.PathMapMap) {
		if pm, ok := pmm.GetMap(rootNet); ok {
			if _, path, _, ok := pm.Path(keyOwner, pmm); ok {
				ownerPath, found = path, true
				return
			}
		}
		if _, path, ok := pmm.Path(keyOwner); ok {
			ownerPath, found = path, true
		}
	})
	if !found {
		return belief.NodeKey{}, belief.NotFoundf("could not determine home network/path for nodekey owner %s", keyOwner)
	}
	return key.Regularize(rootNet, ownerPath), nil
}

// NodeKeys enumerates every key the node answers to: bid, bref, semantic
// id, title (for anchors) and known paths.
func (bs *BeliefBase) NodeKeys(node belief.BeliefNode, ns belief.Bid, parent *belief.Bid) []belief.NodeKey {
	var keys []belief.NodeKey
	if !node.Bid.IsNil() {
		keys = append(keys, belief.BidKey(node.Bid), belief.BrefKey(node.Bid.Bref()))
	}
	if node.ID != "" {
		keys = append(keys, belief.IDKey(ns.Bref(), node.ID))
	}
	bs.WithPaths(func(pmm *paths.PathMapMap) {
		pm, ok := pmm.GetMap(ns)
		if !ok {
			return
		}
		if !node.Bid.IsNil() {
			if _, path, _, ok := pm.Path(node.Bid, pmm); ok {
				keys = append(keys, belief.PathKey(ns.Bref(), path))
			}
		}
		if parent != nil && node.Title != "" && !node.Kind.IsDocument() {
			if _, parentPath, _, ok := pm.Path(*parent, pmm); ok {
				keys = append(keys, belief.PathKey(ns.Bref(),
					belief.PathJoin(parentPath, belief.ToAnchor(node.Title), true)))
			}
		}
	})
	return keys
}

func (bs *BeliefBase) stateBids() []belief.Bid {
	bids := make([]belief.Bid, 0, len(bs.states))
	for bid := range bs.states {
		bids = append(bids, bid)
	}
	return bids
}

// Consume destructively extracts the current snapshot, leaving the base
// empty.
func (bs *BeliefBase) Consume() graph.BeliefGraph {
	bs.relMu.Lock()
	states := bs.states
	relations := bs.relations
	bs.states = map[belief.Bid]belief.BeliefNode{}
	bs.brefs = map[belief.Bref]belief.Bid{}
	bs.relations = graph.NewBidGraph()
	bs.relMu.Unlock()

	bs.pathsMu.Lock()
	bs.paths = paths.EmptyPathMapMap()
	bs.pathsMu.Unlock()

	bs.errMu.Lock()
	bs.errors = nil
	bs.errMu.Unlock()
	bs.indexDirty.Store(false)

	return graph.BeliefGraph{States: states, Relations: relations}
}

// Snapshot returns an owned copy of the current state without draining the
// base.
func (bs *BeliefBase) Snapshot() graph.BeliefGraph {
	bs.indexSync(false)
	bs.relMu.RLock()
	defer bs.relMu.RUnlock()
	out := graph.NewBeliefGraph()
	for bid, node := range bs.states {
		out.States[bid] = node.Clone()
	}
	out.Relations = bs.relations.Clone()
	return out
}

// IntoState collapses a single-content base into its node. Returns false
// when no non-anchor node is present; extra nodes are reported and
// discarded.
func (bs *BeliefBase) IntoState() (belief.BeliefNode, bool) {
	snapshot := bs.Consume()
	var found belief.BeliefNode
	ok := false
	rest := 0
	for _, bid := range snapshot.StateBids() {
		node := snapshot.States[bid]
		if node.Bid == bs.api.Bid || node.Bid == belief.HrefNamespace() || node.Bid == belief.AssetNamespace() {
			continue
		}
		if !ok {
			found = node
			ok = true
			continue
		}
		rest++
	}
	if rest > 0 {
		log.Warnf("converted a multi-node base into a single node, discarding %d others", rest)
	}
	return found, ok
}

// adopt takes over another base's data fields, leaving this base's locks in
// place.
func (bs *BeliefBase) adopt(other *BeliefBase) {
	bs.states = other.states
	bs.brefs = other.brefs
	bs.api = other.api
	bs.relations = other.relations
	bs.paths = other.paths
	bs.errors = other.Errors()
	bs.indexDirty.Store(other.indexDirty.Load())
}

// Merge folds a snapshot into the base and rebuilds the indices.
func (bs *BeliefBase) Merge(rhs *graph.BeliefGraph) {
	lhs := bs.Consume()
	lhs.UnionMut(rhs)
	bs.adopt(FromGraph(lhs))
}

// SetMerge drains another base into this one.
func (bs *BeliefBase) SetMerge(rhs *BeliefBase) {
	lhs := bs.Consume()
	other := rhs.Consume()
	lhs.UnionMut(&other)
	bs.adopt(FromGraph(lhs))
}

// Trim removes every relation with an endpoint outside the retained set
// (default: the loaded states).
func (bs *BeliefBase) Trim(retain map[belief.Bid]struct{}) {
	bs.relMu.Lock()
	defer bs.relMu.Unlock()
	if retain == nil {
		retain = map[belief.Bid]struct{}{}
		for bid := range bs.states {
			retain[bid] = struct{}{}
		}
	}
	bs.relations.Retain(func(source, sink belief.Bid, _ belief.WeightSet) bool {
		_, keepSource := retain[source]
		_, keepSink := retain[sink]
		return keepSource && keepSink
	})
}

func samePathSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			return false
		}
	}
	return true
}
