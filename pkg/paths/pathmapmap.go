package paths

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
)

// PathMapMap manages one PathMap per network root. Each Network node is
// similar to a separate drive; the map is responsible for presenting one
// logical drive based on how the networks are mounted onto each other.
//
// Responsibilities:
//
//  1. Network aggregation: one PathMap per known network, created as
//     Network nodes appear.
//  2. Path resolution: lookups by bid, path, semantic id and title, within
//     one network or across all of them, crossing subnet mounts.
//  3. Event maintenance: ProcessEventQueue consumes the engine's event
//     stream and emits derivative path events for subscribers.
type PathMapMap struct {
	maps    map[belief.Bid]*PathMap
	root    belief.Bid
	nets    map[belief.Bid]struct{}
	docs    map[belief.Bid]struct{}
	apis    map[belief.Bid]struct{}
	anchors map[belief.Bid]string
	ids     map[belief.Bid]string
}

// NewPathMapMap indexes the given states and relations from scratch. The
// API network is always present.
func NewPathMapMap(states map[belief.Bid]belief.BeliefNode, relations *graph.BidGraph) *PathMapMap {
	pmm := &PathMapMap{
		maps:    map[belief.Bid]*PathMap{},
		root:    belief.APIState().Bid,
		nets:    map[belief.Bid]struct{}{},
		docs:    map[belief.Bid]struct{}{},
		apis:    map[belief.Bid]struct{}{},
		anchors: map[belief.Bid]string{},
		ids:     map[belief.Bid]string{},
	}
	for bid, node := range states {
		pmm.anchors[bid] = belief.ToAnchor(node.Title)
		if node.ID != "" {
			pmm.ids[bid] = node.ID
		}
		if node.Kind.Contains(belief.KindAPI) {
			pmm.apis[bid] = struct{}{}
		}
		if node.Kind.IsNetwork() {
			pmm.nets[bid] = struct{}{}
		}
		if node.Kind.IsDocument() {
			pmm.docs[bid] = struct{}{}
		}
	}
	pmm.nets[pmm.root] = struct{}{}
	for _, net := range pmm.NetBids() {
		pmm.maps[net] = NewPathMap(belief.Section, net, pmm, relations)
	}
	return pmm
}

// EmptyPathMapMap returns a map holding only the API network.
func EmptyPathMapMap() *PathMapMap {
	return NewPathMapMap(map[belief.Bid]belief.BeliefNode{}, graph.NewBidGraph())
}

// Clone deep-copies the index.
func (pmm *PathMapMap) Clone() *PathMapMap {
	out := &PathMapMap{
		maps:    map[belief.Bid]*PathMap{},
		root:    pmm.root,
		nets:    map[belief.Bid]struct{}{},
		docs:    map[belief.Bid]struct{}{},
		apis:    map[belief.Bid]struct{}{},
		anchors: map[belief.Bid]string{},
		ids:     map[belief.Bid]string{},
	}
	for net, pm := range pmm.maps {
		out.maps[net] = pm.Clone()
	}
	for bid := range pmm.nets {
		out.nets[bid] = struct{}{}
	}
	for bid := range pmm.docs {
		out.docs[bid] = struct{}{}
	}
	for bid := range pmm.apis {
		out.apis[bid] = struct{}{}
	}
	for bid, anchor := range pmm.anchors {
		out.anchors[bid] = anchor
	}
	for bid, id := range pmm.ids {
		out.ids[bid] = id
	}
	return out
}

// API returns the root API network bid.
func (pmm *PathMapMap) API() belief.Bid { return pmm.root }

// NetBids returns every known network root in deterministic order.
func (pmm *PathMapMap) NetBids() []belief.Bid {
	out := make([]belief.Bid, 0, len(pmm.nets))
	for bid := range pmm.nets {
		out = append(out, bid)
	}
	return belief.SortBids(out)
}

// mapBids returns the networks that actually carry maps, sorted.
func (pmm *PathMapMap) mapBids() []belief.Bid {
	out := make([]belief.Bid, 0, len(pmm.maps))
	for bid := range pmm.maps {
		out = append(out, bid)
	}
	return belief.SortBids(out)
}

func (pmm *PathMapMap) isNet(bid belief.Bid) bool {
	_, ok := pmm.nets[bid]
	return ok
}

func (pmm *PathMapMap) isAPI(bid belief.Bid) bool {
	_, ok := pmm.apis[bid]
	return ok
}

// IsAnchor reports whether bid renders as an anchor inside another document
// rather than as a document of its own.
func (pmm *PathMapMap) IsAnchor(bid belief.Bid) bool {
	_, doc := pmm.docs[bid]
	return !doc
}

func (pmm *PathMapMap) normalizeNet(net belief.Bid) belief.Bid {
	if net.IsNil() {
		return pmm.root
	}
	return net
}

func (pmm *PathMapMap) getMap(net belief.Bid) *PathMap {
	return pmm.maps[pmm.normalizeNet(net)]
}

// GetMap returns the PathMap rooted at net, normalizing the nil network to
// the API root.
func (pmm *PathMapMap) GetMap(net belief.Bid) (*PathMap, bool) {
	pm := pmm.getMap(net)
	return pm, pm != nil
}

// APIMap returns the map rooted at the API network.
func (pmm *PathMapMap) APIMap() *PathMap {
	if pm, ok := pmm.maps[pmm.root]; ok {
		return pm
	}
	log.Warn("api map requested from an empty path index")
	return NewPathMap(belief.Section, pmm.root, pmm, graph.NewBidGraph())
}

// NetByBref resolves a compact network reference to its root bid.
func (pmm *PathMapMap) NetByBref(bref belief.Bref) (belief.Bid, bool) {
	if bref.IsDefault() {
		return pmm.root, true
	}
	for _, net := range pmm.mapBids() {
		if net.Bref() == bref {
			return net, true
		}
	}
	return belief.NilBid(), false
}

// Path returns (home network, path) for bid, searching every map.
func (pmm *PathMapMap) Path(bid belief.Bid) (belief.Bid, string, bool) {
	net, path, _, ok := pmm.IndexedPath(bid)
	return net, path, ok
}

// IndexedPath returns (home network, path, order) for bid.
func (pmm *PathMapMap) IndexedPath(bid belief.Bid) (belief.Bid, string, []uint16, bool) {
	for _, net := range pmm.mapBids() {
		if homeNet, path, order, ok := pmm.maps[net].Path(bid, pmm); ok {
			return homeNet, path, order, true
		}
	}
	return belief.NilBid(), "", nil, false
}

// NetPath returns bid's path within a specific network.
func (pmm *PathMapMap) NetPath(net, bid belief.Bid) (belief.Bid, string, bool) {
	home, path, _, ok := pmm.NetIndexedPath(net, bid)
	return home, path, ok
}

// NetIndexedPath returns bid's path and order within a specific network.
func (pmm *PathMapMap) NetIndexedPath(net, bid belief.Bid) (belief.Bid, string, []uint16, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return belief.NilBid(), "", nil, false
	}
	return pm.Path(bid, pmm)
}

// Get resolves a path against every map.
func (pmm *PathMapMap) Get(path string) (belief.Bid, belief.Bid, bool) {
	for _, net := range pmm.mapBids() {
		if homeNet, bid, ok := pmm.maps[net].Get(path, pmm); ok {
			return homeNet, bid, true
		}
	}
	return belief.NilBid(), belief.NilBid(), false
}

// NetGetFromPath resolves a path within a network.
func (pmm *PathMapMap) NetGetFromPath(net belief.Bid, path string) (belief.Bid, belief.Bid, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return belief.NilBid(), belief.NilBid(), false
	}
	return pm.Get(path, pmm)
}

// NetGetFromID resolves a semantic id within a network.
func (pmm *PathMapMap) NetGetFromID(net belief.Bid, id string) (belief.Bid, belief.Bid, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return belief.NilBid(), belief.NilBid(), false
	}
	return pm.GetFromID(id, pmm)
}

// NetGetFromTitle resolves an anchored title within a network.
func (pmm *PathMapMap) NetGetFromTitle(net belief.Bid, title string) (belief.Bid, belief.Bid, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return belief.NilBid(), belief.NilBid(), false
	}
	return pm.GetFromTitle(title, pmm)
}

// NetGetFromTitleRegex resolves a title pattern within a network.
func (pmm *PathMapMap) NetGetFromTitleRegex(net belief.Bid, re *regexp.Regexp) (belief.Bid, belief.Bid, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return belief.NilBid(), belief.NilBid(), false
	}
	return pm.GetFromTitleRegex(re, pmm)
}

// NetGetDoc returns the document row containing node's path within net.
func (pmm *PathMapMap) NetGetDoc(net, node belief.Bid) (string, belief.Bid, []uint16, bool) {
	pm := pmm.getMap(net)
	if pm == nil {
		return "", belief.NilBid(), nil, false
	}
	return pm.GetDocFromID(node, pmm)
}

// GetDoc returns the document row containing node's path in any network.
func (pmm *PathMapMap) GetDoc(node belief.Bid) (string, belief.Bid, []uint16, bool) {
	for _, net := range pmm.mapBids() {
		if path, bid, order, ok := pmm.maps[net].GetDocFromID(node, pmm); ok {
			return path, bid, order, true
		}
	}
	return "", belief.NilBid(), nil, false
}

// AllLocalPaths returns every (net, paths) pair where bid carries local
// rows.
func (pmm *PathMapMap) AllLocalPaths(bid belief.Bid) map[belief.Bid][]string {
	out := map[belief.Bid][]string{}
	for _, net := range pmm.mapBids() {
		if paths, ok := pmm.maps[net].AllLocalPaths(bid); ok {
			out[net] = paths
		}
	}
	return out
}

// AllPaths returns, per network, the full path row set. Used by the
// self-test to compare the event-driven index against a rebuilt one.
func (pmm *PathMapMap) AllPaths() map[belief.Bid][]Entry {
	out := map[belief.Bid][]Entry{}
	for _, net := range pmm.mapBids() {
		rows := pmm.maps[net].Map()
		cloned := make([]Entry, len(rows))
		for i, row := range rows {
			cloned[i] = Entry{Path: row.Path, Bid: row.Bid, Order: cloneOrder(row.Order)}
		}
		out[net] = cloned
	}
	return out
}

// PathSet flattens the index into its set of path strings.
func (pmm *PathMapMap) PathSet() map[string]struct{} {
	out := map[string]struct{}{}
	for _, rows := range pmm.AllPaths() {
		for _, row := range rows {
			out[row.Path] = struct{}{}
		}
	}
	return out
}

// ProcessEventQueue applies a queue of engine events (the original plus its
// derivatives) and returns the path mutation events they caused.
func (pmm *PathMapMap) ProcessEventQueue(events []belief.BeliefEvent, relations *graph.BidGraph) []belief.BeliefEvent {
	var pathEvents []belief.BeliefEvent
	for _, event := range events {
		switch e := event.(type) {
		case belief.NodeUpdate:
			if node, err := belief.ParseNode(e.Node); err == nil {
				pmm.processNodeUpdate(node, relations)
			}
		case belief.NodesRemoved:
			pmm.processNodesRemoved(e.Bids)
		case belief.NodeRenamed:
			pmm.processNodeRenamed(e.From, e.To)
			for _, net := range pmm.mapBids() {
				pathEvents = append(pathEvents, pmm.maps[net].ProcessEvent(event, pmm)...)
			}
		case belief.RelationUpdate, belief.RelationRemoved:
			for _, net := range pmm.mapBids() {
				pathEvents = append(pathEvents, pmm.maps[net].ProcessEvent(event, pmm)...)
			}
			// RelationInsert produces a derivative RelationUpdate when it
			// materially changes the relation set, so only the update is
			// handled here. Path events are derivative only.
		}
	}
	return pathEvents
}

// processNodeUpdate synchronizes the net, doc, api, anchor and id indices
// with a node's current state. Fresh Network nodes get their own PathMap.
func (pmm *PathMapMap) processNodeUpdate(node belief.BeliefNode, relations *graph.BidGraph) {
	pmm.anchors[node.Bid] = belief.ToAnchor(node.Title)
	if node.ID != "" {
		pmm.ids[node.Bid] = node.ID
	}
	if node.Kind.Contains(belief.KindAPI) {
		pmm.apis[node.Bid] = struct{}{}
	}
	if node.Kind.IsNetwork() {
		pmm.nets[node.Bid] = struct{}{}
		pmm.maps[node.Bid] = NewPathMap(belief.Section, node.Bid, pmm, relations)
	}
	if node.Kind.IsDocument() {
		pmm.docs[node.Bid] = struct{}{}
	}
}

func (pmm *PathMapMap) processNodesRemoved(bids []belief.Bid) {
	for _, bid := range bids {
		delete(pmm.nets, bid)
		delete(pmm.ids, bid)
		delete(pmm.docs, bid)
		delete(pmm.anchors, bid)
		delete(pmm.maps, bid)
	}
}

func (pmm *PathMapMap) processNodeRenamed(from, to belief.Bid) {
	if _, ok := pmm.nets[from]; ok {
		delete(pmm.nets, from)
		pmm.nets[to] = struct{}{}
	}
	if id, ok := pmm.ids[from]; ok {
		delete(pmm.ids, from)
		pmm.ids[to] = id
	}
	if _, ok := pmm.docs[from]; ok {
		delete(pmm.docs, from)
		pmm.docs[to] = struct{}{}
	}
	if anchor, ok := pmm.anchors[from]; ok {
		delete(pmm.anchors, from)
		pmm.anchors[to] = anchor
	}
	if pm, ok := pmm.maps[from]; ok {
		delete(pmm.maps, from)
		pmm.maps[to] = pm
	}
}

// String summarizes the mounted networks and the API-anchored path table.
func (pmm *PathMapMap) String() string {
	var b strings.Builder
	b.WriteString("nets:\n")
	for _, net := range pmm.mapBids() {
		pm := pmm.maps[net]
		subs := make([]string, 0, len(pm.subnets))
		for _, sub := range pm.Subnets() {
			subs = append(subs, sub.String())
		}
		fmt.Fprintf(&b, "%s: subs: %s\n", pm.net, strings.Join(subs, ", "))
	}
	b.WriteString("api_net anchored paths:\n - ")
	b.WriteString(strings.Join(pmm.APIMap().AllPaths(pmm, map[belief.Bid]struct{}{}), "\n - "))
	return b.String()
}
