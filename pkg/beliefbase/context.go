package beliefbase

import (
	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/paths"
)

// ExtendedRelation tracks relation information with respect to a node.
// Other is the far endpoint; the near node is held by the structure that
// produced the relation.
type ExtendedRelation struct {
	Other    belief.BeliefNode
	HomeNet  belief.Bid
	RootPath string
	Weights  belief.WeightSet
}

// LinkRef renders the relation target as compact link markup.
func (r ExtendedRelation) LinkRef() string {
	if r.Other.Title == "" {
		return r.Other.Bid.Bref().String()
	}
	return r.Other.Bid.Bref().String() + ":" + r.Other.Title
}

// newExtendedRelation resolves the far endpoint's path, checking the
// reserved constant namespaces before the root network. Relations to nodes
// without paths keep an empty path so viewers can decide how to render
// them.
func (bs *BeliefBase) newExtendedRelation(otherBid, rootNet belief.Bid, weights belief.WeightSet) (ExtendedRelation, bool) {
	other, ok := bs.states[otherBid]
	if !ok {
		log.Infof("could not find relation endpoint %s", otherBid)
		return ExtendedRelation{}, false
	}
	rel := ExtendedRelation{Other: other.Clone(), Weights: weights.Clone()}

	resolved := false
	bs.pathsMu.RLock()
	pmm := bs.paths
	for _, constNet := range []belief.Bid{belief.AssetNamespace(), belief.HrefNamespace()} {
		if pm, ok := pmm.GetMap(constNet); ok {
			if _, path, _, ok := pm.Path(otherBid, pmm); ok {
				rel.HomeNet = constNet
				rel.RootPath = path
				resolved = true
				break
			}
		}
	}
	if !resolved {
		if pm, ok := pmm.GetMap(rootNet); ok {
			if homeNet, path, _, ok := pm.Path(otherBid, pmm); ok {
				rel.HomeNet = homeNet
				rel.RootPath = path
				resolved = true
			}
		}
	}
	bs.pathsMu.RUnlock()
	if !resolved {
		rel.HomeNet = rootNet
		rel.RootPath = ""
	}
	return rel, true
}

// BeliefContext is a read-only view bundling one node with its position in
// a network and a shared lock on the relation graph. Callers must Close the
// context to release the lock; a live context blocks writers.
type BeliefContext struct {
	Node     belief.BeliefNode
	RootPath string
	RootNet  belief.Bid
	HomeNet  belief.Bid

	set    *BeliefBase
	closed bool
}

// GetContext returns the node plus its relative path under relativeToNet,
// pinned to a shared read lock on the relation graph.
func (bs *BeliefBase) GetContext(relativeToNet, bid belief.Bid) (*BeliefContext, bool) {
	bs.indexSync(false)
	node, ok := bs.states[bid]
	if !ok {
		log.Debugf("get_context: node %s is not loaded", bid)
		return nil, false
	}

	var homeNet belief.Bid
	var relativePath string
	found := false
	bs.WithPaths(func(pmm *paths.PathMapMap) {
		pm, ok := pmm.GetMap(relativeToNet)
		if !ok {
			log.Debugf("get_context: network %s is not loaded", relativeToNet)
			return
		}
		homeNet, relativePath, _, found = pm.Path(bid, pmm)
	})
	if !found {
		return nil, false
	}

	bs.relMu.RLock()
	return &BeliefContext{
		Node:     node.Clone(),
		RootPath: relativePath,
		RootNet:  relativeToNet,
		HomeNet:  homeNet,
		set:      bs,
	}, true
}

// Close releases the pinned read lock. Safe to call more than once.
func (ctx *BeliefContext) Close() {
	if ctx.closed {
		return
	}
	ctx.closed = true
	ctx.set.relMu.RUnlock()
}

// Sources computes the relations feeding this node.
func (ctx *BeliefContext) Sources() []ExtendedRelation {
	var out []ExtendedRelation
	for _, edge := range ctx.set.relations.EdgesDirected(ctx.Node.Bid, graphIncoming) {
		if rel, ok := ctx.set.newExtendedRelation(edge.Source, ctx.RootNet, edge.Weights); ok {
			out = append(out, rel)
		}
	}
	return out
}

// Sinks computes the relations this node feeds.
func (ctx *BeliefContext) Sinks() []ExtendedRelation {
	var out []ExtendedRelation
	for _, edge := range ctx.set.relations.EdgesDirected(ctx.Node.Bid, graphOutgoing) {
		if rel, ok := ctx.set.newExtendedRelation(edge.Sink, ctx.RootNet, edge.Weights); ok {
			out = append(out, rel)
		}
	}
	return out
}
