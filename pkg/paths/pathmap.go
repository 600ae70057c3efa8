// Package paths generates and maintains stable relative paths between
// belief nodes, even while the relations between them are changing.
//
// A PathMap assigns every node reachable from one network root a unique
// relative path derived from the Section projection of the relation
// hypergraph. PathMapMap aggregates one PathMap per network and resolves
// lookups across subnet mounts, acting like a logical drive assembled from
// separately mounted networks.
//
// Paths update incrementally: PathMap.ProcessEvent consumes the same belief
// events the engine applies and emits derivative PathAdded / PathUpdate /
// PathsRemoved events for subscribers.
package paths

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/graph"
)

var log = logrus.WithField("component", "paths")

// Entry is one row of a PathMap: the relative path of a node under the
// map's network and its order vector. Sorting rows by order (lexicographic
// over the per-depth sort keys) yields a depth-first walk of the Section
// tree.
type Entry struct {
	Path  string
	Bid   belief.Bid
	Order []uint16
}

func cloneOrder(order []uint16) []uint16 {
	return append([]uint16(nil), order...)
}

func orderEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func orderStartsWith(order, prefix []uint16) bool {
	if len(order) < len(prefix) {
		return false
	}
	for i := range prefix {
		if order[i] != prefix[i] {
			return false
		}
	}
	return true
}

func entryLess(a, b Entry) bool {
	for i := 0; i < len(a.Order) && i < len(b.Order); i++ {
		if a.Order[i] != b.Order[i] {
			return a.Order[i] < b.Order[i]
		}
	}
	return len(a.Order) < len(b.Order)
}

// PathMap maintains the ordered path rows for a single network root over
// the Section projection. Subnets (network nodes below the root) are kept
// as single mount entries; their contents resolve through their own maps.
type PathMap struct {
	entries  []Entry
	bidMap   map[belief.Bid][]int
	pathMap  map[string]int
	idMap    IdMap
	titleMap IdMap
	kind     belief.WeightKind
	net      belief.Bid
	subnets  map[belief.Bid]struct{}
	loops    map[[2]belief.Bid]struct{}
}

// generateTerminalPath produces the terminal path segment for a relation:
// network nodes mounted on an API use their bid, else the explicit doc path,
// else the source's title anchor, else the sink-relative ordinal.
func generateTerminalPath(source, sink belief.Bid, explicit string, index uint16, nets *PathMapMap) string {
	if nets.isAPI(sink) && nets.isNet(source) {
		return source.String()
	}
	if explicit != "" {
		return explicit
	}
	if anchor := nets.anchors[source]; anchor != "" {
		return anchor
	}
	return fmt.Sprintf("%d", index)
}

// generatePathName joins a terminal segment onto the sink's path. A collision
// with a different bid's existing row prepends the sink ordinal, which makes
// the second attempt unique.
func generatePathName(source, sink belief.Bid, sinkPath, explicit string, index uint16, nets *PathMapMap, existing []Entry) string {
	terminal := generateTerminalPath(source, sink, explicit, index, nets)
	full := belief.PathJoin(sinkPath, terminal, nets.IsAnchor(source))
	for _, row := range existing {
		if row.Path == full && row.Bid != source {
			terminal = fmt.Sprintf("%d-%s", index, terminal)
			full = belief.PathJoin(sinkPath, terminal, nets.IsAnchor(source))
			break
		}
	}
	return full
}

type stackEntry struct {
	sinks    map[belief.Bid]struct{}
	subPaths map[belief.Bid]Entry // keyed by descendant bid; Path/Order relative to this node
}

func newStackEntry() *stackEntry {
	return &stackEntry{
		sinks:    map[belief.Bid]struct{}{},
		subPaths: map[belief.Bid]Entry{},
	}
}

// NewPathMap builds the path rows for net by walking the reversed kind
// projection depth first, composing child paths onto their parents on
// finish. Back edges are recorded as loops so composition terminates;
// subnets are pruned from traversal but kept as mount entries.
func NewPathMap(kind belief.WeightKind, net belief.Bid, nets *PathMapMap, relations *graph.BidGraph) *PathMap {
	// The projection is reversed because child edges sort on the sink's
	// weights: a sink without sinks is the root of its abstraction, so the
	// walk starts there and sorts child stacks before folding them in.
	tree := relations.AsSubgraph(kind, true)
	stack := map[belief.Bid]*stackEntry{}
	loops := map[[2]belief.Bid]struct{}{}
	subnets := map[belief.Bid]struct{}{}

	tree.DepthFirstSearch([]belief.Bid{net}, func(ev graph.DfsEventType, sink, source belief.Bid) graph.DfsControl {
		switch ev {
		case graph.DfsDiscover:
			if stack[sink] == nil {
				stack[sink] = newStackEntry()
			}
			return graph.DfsContinue
		case graph.DfsTreeEdge, graph.DfsBackEdge, graph.DfsCrossForwardEdge:
			if ev == graph.DfsBackEdge {
				loops[[2]belief.Bid{sink, source}] = struct{}{}
			}
			edge, _ := tree.EdgeWeight(sink, source)
			subPath := generateTerminalPath(source, sink, edge.ExplicitPath(), edge.SortKey, nets)
			stack[sink].subPaths[source] = Entry{
				Path:  subPath,
				Bid:   source,
				Order: []uint16{edge.SortKey},
			}
			if stack[source] == nil {
				stack[source] = newStackEntry()
			}
			stack[source].sinks[sink] = struct{}{}

			if nets.isNet(source) && source != net {
				// Prune subnet traversal; the mount entry recorded above is
				// enough, its contents live in the subnet's own map.
				delete(stack, source)
				return graph.DfsPrune
			}
			return graph.DfsContinue
		case graph.DfsFinish:
			if sink == net {
				return graph.DfsContinue
			}
			source := sink
			entry := stack[source]
			delete(stack, source)
			if entry == nil {
				return graph.DfsContinue
			}
			sinks := make([]belief.Bid, 0, len(entry.sinks))
			for s := range entry.sinks {
				sinks = append(sinks, s)
			}
			belief.SortBids(sinks)
			for _, up := range sinks {
				if _, looped := loops[[2]belief.Bid{up, source}]; looped {
					log.Infof("avoiding infinite paths: not folding sub-paths of %s into %s", source, up)
					continue
				}
				sinkEntry := stack[up]
				if sinkEntry == nil {
					continue
				}
				base := sinkEntry.subPaths[source]
				subBids := make([]belief.Bid, 0, len(entry.subPaths))
				for bid := range entry.subPaths {
					subBids = append(subBids, bid)
				}
				belief.SortBids(subBids)
				for _, bid := range subBids {
					sub := entry.subPaths[bid]
					order := cloneOrder(base.Order)
					order = append(order, sub.Order...)
					sinkEntry.subPaths[bid] = Entry{
						Path:  belief.PathJoin(base.Path, sub.Path, nets.IsAnchor(bid)),
						Bid:   bid,
						Order: order,
					}
				}
			}
			return graph.DfsContinue
		}
		return graph.DfsContinue
	})

	entries := []Entry{{Path: "", Bid: net, Order: nil}}
	if rootEntry := stack[net]; rootEntry != nil {
		subBids := make([]belief.Bid, 0, len(rootEntry.subPaths))
		for bid := range rootEntry.subPaths {
			subBids = append(subBids, bid)
		}
		belief.SortBids(subBids)
		for _, bid := range subBids {
			if nets.isNet(bid) && bid != net {
				subnets[bid] = struct{}{}
			}
			entries = append(entries, rootEntry.subPaths[bid])
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entryLess(entries[i], entries[j]) })

	pm := &PathMap{
		entries: entries,
		kind:    kind,
		net:     net,
		subnets: subnets,
		loops:   loops,
		idMap:   NewIdMap(),
		titleMap: NewIdMap(),
	}
	pm.rebuildIndices()
	for _, row := range pm.entries {
		if title, ok := nets.anchors[row.Bid]; ok && title != "" && !nets.IsAnchor(row.Bid) {
			pm.titleMap.Insert(title, row.Bid)
		}
		if id, ok := nets.ids[row.Bid]; ok {
			pm.idMap.Insert(id, row.Bid)
		}
	}
	return pm
}

func (pm *PathMap) rebuildIndices() {
	pm.bidMap = map[belief.Bid][]int{}
	pm.pathMap = map[string]int{}
	for idx, row := range pm.entries {
		pm.bidMap[row.Bid] = append(pm.bidMap[row.Bid], idx)
		pm.pathMap[row.Path] = idx
	}
}

// Clone deep-copies the map.
func (pm *PathMap) Clone() *PathMap {
	out := &PathMap{
		entries:  make([]Entry, len(pm.entries)),
		kind:     pm.kind,
		net:      pm.net,
		subnets:  map[belief.Bid]struct{}{},
		loops:    map[[2]belief.Bid]struct{}{},
		idMap:    pm.idMap.Clone(),
		titleMap: pm.titleMap.Clone(),
	}
	for i, row := range pm.entries {
		out.entries[i] = Entry{Path: row.Path, Bid: row.Bid, Order: cloneOrder(row.Order)}
	}
	for bid := range pm.subnets {
		out.subnets[bid] = struct{}{}
	}
	for loop := range pm.loops {
		out.loops[loop] = struct{}{}
	}
	out.rebuildIndices()
	return out
}

// Net returns the network root this map serves.
func (pm *PathMap) Net() belief.Bid { return pm.net }

// Map returns the path rows in depth-first order.
func (pm *PathMap) Map() []Entry { return pm.entries }

// Subnets returns the mounted subnet roots in deterministic order.
func (pm *PathMap) Subnets() []belief.Bid {
	out := make([]belief.Bid, 0, len(pm.subnets))
	for bid := range pm.subnets {
		out = append(out, bid)
	}
	return belief.SortBids(out)
}

// Path returns the home network, full path and order vector for bid,
// descending into mounted subnets when the bid is not local.
func (pm *PathMap) Path(bid belief.Bid, nets *PathMapMap) (belief.Bid, string, []uint16, bool) {
	for _, row := range pm.entries {
		if row.Bid == bid {
			return pm.net, row.Path, cloneOrder(row.Order), true
		}
	}
	for _, subnetBid := range pm.Subnets() {
		idxs := pm.bidMap[subnetBid]
		if len(idxs) == 0 {
			continue
		}
		mount := pm.entries[idxs[0]]
		sub := nets.getMap(subnetBid)
		if sub == nil {
			continue
		}
		if homeNet, homePath, homeOrder, ok := sub.Path(bid, nets); ok {
			order := cloneOrder(mount.Order)
			order = append(order, homeOrder...)
			return homeNet, belief.PathJoin(mount.Path, homePath, false), order, true
		}
	}
	return belief.NilBid(), "", nil, false
}

// HomePath resolves the network that owns bid and bid's path within it.
// Network nodes short-circuit to themselves with an empty path.
func (pm *PathMap) HomePath(bid belief.Bid, nets *PathMapMap) (belief.Bid, string, bool) {
	if nets.isNet(bid) {
		return bid, "", true
	}
	for _, row := range pm.entries {
		if row.Bid == bid {
			return pm.net, row.Path, true
		}
	}
	for _, subnetBid := range pm.Subnets() {
		sub := nets.getMap(subnetBid)
		if sub == nil {
			continue
		}
		if net, path, ok := sub.HomePath(bid, nets); ok {
			return net, path, ok
		}
	}
	return belief.NilBid(), "", false
}

// IndexedGet resolves a path to its node, descending into subnets by
// stripping their mount prefix.
func (pm *PathMap) IndexedGet(path string, nets *PathMapMap) (belief.Bid, belief.Bid, []uint16, bool) {
	if idx, ok := pm.pathMap[path]; ok && idx < len(pm.entries) {
		row := pm.entries[idx]
		return pm.net, row.Bid, cloneOrder(row.Order), true
	}
	for _, row := range pm.entries {
		if row.Path == path {
			return pm.net, row.Bid, cloneOrder(row.Order), true
		}
	}
	for _, subnetBid := range pm.Subnets() {
		idxs := pm.bidMap[subnetBid]
		if len(idxs) == 0 {
			continue
		}
		mount := pm.entries[idxs[0]]
		subPath, err := belief.RelativePath(path, mount.Path)
		if err != nil {
			continue
		}
		sub := nets.getMap(subnetBid)
		if sub == nil {
			continue
		}
		if homeNet, bid, homeOrder, ok := sub.IndexedGet(subPath, nets); ok {
			order := cloneOrder(mount.Order)
			order = append(order, homeOrder...)
			return homeNet, bid, order, true
		}
	}
	return belief.NilBid(), belief.NilBid(), nil, false
}

// Get resolves a path to (home network, bid).
func (pm *PathMap) Get(path string, nets *PathMapMap) (belief.Bid, belief.Bid, bool) {
	net, bid, _, ok := pm.IndexedGet(path, nets)
	return net, bid, ok
}

// GetDoc returns the document row containing the input path.
func (pm *PathMap) GetDoc(path string, nets *PathMapMap) (string, belief.Bid, bool) {
	docPath := belief.GetDocPath(path)
	if _, bid, ok := pm.Get(docPath, nets); ok {
		return docPath, bid, true
	}
	return "", belief.NilBid(), false
}

// GetDocFromID returns the document row containing the node's path.
func (pm *PathMap) GetDocFromID(bid belief.Bid, nets *PathMapMap) (string, belief.Bid, []uint16, bool) {
	_, path, _, ok := pm.Path(bid, nets)
	if !ok {
		return "", belief.NilBid(), nil, false
	}
	docPath := belief.GetDocPath(path)
	_, docBid, order, ok := pm.IndexedGet(docPath, nets)
	if !ok {
		return "", belief.NilBid(), nil, false
	}
	return docPath, docBid, order, true
}

// GetFromTitle resolves an anchored title to (home network, bid), searching
// subnets on miss.
func (pm *PathMap) GetFromTitle(title string, nets *PathMapMap) (belief.Bid, belief.Bid, bool) {
	anchored := belief.ToAnchor(title)
	if bid, ok := pm.titleMap.GetBid(anchored); ok {
		return pm.net, bid, true
	}
	for _, subnetBid := range pm.Subnets() {
		if sub := nets.getMap(subnetBid); sub != nil {
			if net, bid, ok := sub.GetFromTitle(anchored, nets); ok {
				return net, bid, true
			}
		}
	}
	return belief.NilBid(), belief.NilBid(), false
}

// GetFromTitleRegex resolves the first title matching the pattern.
func (pm *PathMap) GetFromTitleRegex(re *regexp.Regexp, nets *PathMapMap) (belief.Bid, belief.Bid, bool) {
	if re == nil {
		return belief.NilBid(), belief.NilBid(), false
	}
	if bid, ok := pm.titleMap.GetBidRegex(re); ok {
		return pm.net, bid, true
	}
	for _, subnetBid := range pm.Subnets() {
		if sub := nets.getMap(subnetBid); sub != nil {
			if net, bid, ok := sub.GetFromTitleRegex(re, nets); ok {
				return net, bid, true
			}
		}
	}
	return belief.NilBid(), belief.NilBid(), false
}

// GetFromID resolves a semantic id to (home network, bid).
func (pm *PathMap) GetFromID(id string, nets *PathMapMap) (belief.Bid, belief.Bid, bool) {
	if bid, ok := pm.idMap.GetBid(id); ok {
		return pm.net, bid, true
	}
	for _, subnetBid := range pm.Subnets() {
		if sub := nets.getMap(subnetBid); sub != nil {
			if net, bid, ok := sub.GetFromID(id, nets); ok {
				return net, bid, true
			}
		}
	}
	return belief.NilBid(), belief.NilBid(), false
}

// AllLocalPaths returns every local path registered for bid.
func (pm *PathMap) AllLocalPaths(bid belief.Bid) ([]string, bool) {
	var out []string
	for _, row := range pm.entries {
		if row.Bid == bid {
			out = append(out, row.Path)
		}
	}
	return out, len(out) > 0
}

// AllPaths lists every path connected to this map, crossing subnet mounts.
// visited guards against mount cycles.
func (pm *PathMap) AllPaths(nets *PathMapMap, visited map[belief.Bid]struct{}) []string {
	var out []string
	if _, seen := visited[pm.net]; seen {
		return out
	}
	visited[pm.net] = struct{}{}
	for _, row := range pm.entries {
		if nets.isNet(row.Bid) && row.Bid != pm.net {
			if _, seen := visited[row.Bid]; !seen {
				if sub := nets.getMap(row.Bid); sub != nil {
					for _, subPath := range sub.AllPaths(nets, visited) {
						out = append(out, belief.TrimPathSep(row.Path)+"/"+belief.TrimPathSep(subPath))
					}
					continue
				}
			}
		}
		out = append(out, row.Path)
	}
	return out
}

// subIndices pairs a row index with the indices of all rows ordered beneath
// it.
type subIndices struct {
	start int
	subs  []int
}

// sourceSubIndices returns, for every row holding source, the row index and
// the indices of all rows ordered beneath it. Assumes entries are sorted.
func (pm *PathMap) sourceSubIndices(source belief.Bid) []subIndices {
	var out []subIndices
	starts, ok := pm.bidMap[source]
	if !ok {
		return out
	}
	for _, start := range starts {
		base := pm.entries[start].Order
		var subs []int
		for idx := start; idx < len(pm.entries); idx++ {
			order := pm.entries[idx].Order
			if !orderStartsWith(order, base) {
				break
			}
			if orderEqual(order, base) {
				continue
			}
			subs = append(subs, idx)
		}
		out = append(out, subIndices{start: start, subs: subs})
	}
	return out
}

// ProcessEvent applies a belief event to the map, returning derivative path
// events describing the rows it changed.
func (pm *PathMap) ProcessEvent(event belief.BeliefEvent, nets *PathMapMap) []belief.BeliefEvent {
	switch e := event.(type) {
	case belief.NodeRenamed:
		return pm.processRenamed(e.From, e.To)
	case belief.RelationUpdate:
		return pm.processRelationUpdate(e.Source, e.Sink, e.Weights, nets)
	case belief.RelationRemoved:
		return pm.processRelationUpdate(e.Source, e.Sink, belief.NewWeightSet(), nets)
	}
	return nil
}

func (pm *PathMap) processRenamed(from, to belief.Bid) []belief.BeliefEvent {
	var derivatives []belief.BeliefEvent
	for idx := range pm.entries {
		if pm.entries[idx].Bid == from {
			pm.entries[idx].Bid = to
			derivatives = append(derivatives, belief.PathUpdate{
				Net:    pm.net,
				Path:   pm.entries[idx].Path,
				Bid:    to,
				Order:  cloneOrder(pm.entries[idx].Order),
				Origin: belief.OriginLocal,
			})
		}
	}
	if idxs, ok := pm.bidMap[from]; ok {
		delete(pm.bidMap, from)
		pm.bidMap[to] = idxs
	}
	if id, ok := pm.idMap.Remove(from); ok {
		pm.idMap.Insert(id, to)
	}
	if title, ok := pm.titleMap.Remove(from); ok {
		pm.titleMap.Insert(title, to)
	}
	if _, ok := pm.subnets[from]; ok {
		delete(pm.subnets, from)
		pm.subnets[to] = struct{}{}
	}
	newLoops := map[[2]belief.Bid]struct{}{}
	for loop := range pm.loops {
		if loop[0] == from {
			loop[0] = to
		}
		if loop[1] == from {
			loop[1] = to
		}
		newLoops[loop] = struct{}{}
	}
	pm.loops = newLoops
	return derivatives
}

func (pm *PathMap) processRelationUpdate(source, sink belief.Bid, ws belief.WeightSet, nets *PathMapMap) []belief.BeliefEvent {
	var derivatives []belief.BeliefEvent
	sinkSubIndices := pm.sourceSubIndices(sink)
	if len(sinkSubIndices) == 0 {
		return derivatives
	}
	if nets.isNet(sink) && pm.net != sink {
		// The sink roots another network; its own map owns this relation.
		return derivatives
	}

	newWeight, hasKind := ws.Get(pm.kind)
	if !hasKind {
		// To this map the event is a removal: drop the source row plus every
		// row whose path depends on the removed relation.
		var removed []string
		for i := len(sinkSubIndices) - 1; i >= 0; i-- {
			subs := sinkSubIndices[i].subs
			var sourceOrder []uint16
			found := false
			for _, idx := range subs {
				if pm.entries[idx].Bid == source {
					sourceOrder = cloneOrder(pm.entries[idx].Order)
					found = true
					break
				}
			}
			if !found {
				continue
			}
			for j := len(subs) - 1; j >= 0; j-- {
				idx := subs[j]
				if orderStartsWith(pm.entries[idx].Order, sourceOrder) {
					removed = append(removed, pm.entries[idx].Path)
					pm.entries = append(pm.entries[:idx], pm.entries[idx+1:]...)
				}
			}
		}
		if len(removed) > 0 {
			derivatives = append(derivatives, belief.PathsRemoved{
				Net:    pm.net,
				Paths:  removed,
				Origin: belief.OriginLocal,
			})
			pm.rebuildIndices()
		}
		return derivatives
	}

	newIdx, hasSort := newWeight.SortKey()
	if !hasSort {
		log.Errorf("relation updates must carry a %s entry in their edge payload; ignoring edge", belief.WeightSortKey)
		return derivatives
	}

	explicit := ""
	if paths := newWeight.DocPaths(); len(paths) > 0 {
		explicit = paths[0]
	}

	// Walk back to front so index manipulation doesn't invalidate the
	// collected positions.
	for i := len(sinkSubIndices) - 1; i >= 0; i-- {
		sinkIndex := sinkSubIndices[i].start
		subs := sinkSubIndices[i].subs
		sinkRow := pm.entries[sinkIndex]
		newOrder := cloneOrder(sinkRow.Order)
		newOrder = append(newOrder, newIdx)
		newPath := generatePathName(source, sink, sinkRow.Path, explicit, newIdx, nets, pm.entries)
		newEntry := Entry{Path: newPath, Bid: source, Order: newOrder}

		var sourceIdx = -1
		for j := len(subs) - 1; j >= 0; j-- {
			if pm.entries[subs[j]].Bid == source {
				sourceIdx = subs[j]
				break
			}
		}

		if sourceIdx < 0 {
			lastEntryIdx := sinkIndex
			if len(subs) > 0 {
				lastEntryIdx = subs[len(subs)-1]
				lastOrder := pm.entries[lastEntryIdx].Order
				if depth := len(newOrder) - 1; depth < len(lastOrder) && newIdx != lastOrder[depth]+1 {
					log.Warnf("edge index is %d, expected one greater than the last index %d", newIdx, lastOrder[depth])
				}
			} else if newIdx != 0 {
				log.Warnf("edge index is %d, expected 0", newIdx)
			}
			derivatives = append(derivatives, belief.PathAdded{
				Net:    pm.net,
				Path:   newEntry.Path,
				Bid:    source,
				Order:  cloneOrder(newEntry.Order),
				Origin: belief.OriginLocal,
			})
			pm.entries = append(pm.entries[:lastEntryIdx+1], append([]Entry{newEntry}, pm.entries[lastEntryIdx+1:]...)...)
		} else {
			oldOrder := cloneOrder(pm.entries[sourceIdx].Order)
			if orderEqual(oldOrder, newEntry.Order) && pm.entries[sourceIdx].Path == newEntry.Path {
				// Row already current; replayed updates stay silent.
				continue
			}
			if !orderEqual(oldOrder, newEntry.Order) {
				for nextIdx := sourceIdx + 1; nextIdx < len(pm.entries); nextIdx++ {
					next := pm.entries[nextIdx].Order
					if !orderStartsWith(next, oldOrder) {
						break
					}
					copy(next[:len(newEntry.Order)], newEntry.Order)
				}
			}
			derivatives = append(derivatives, belief.PathUpdate{
				Net:    pm.net,
				Path:   newEntry.Path,
				Bid:    source,
				Order:  cloneOrder(newEntry.Order),
				Origin: belief.OriginLocal,
			})
			pm.entries[sourceIdx] = newEntry
		}
	}

	if len(derivatives) > 0 {
		pm.rebuildIndices()
		if nets.isNet(source) && pm.net != source {
			pm.subnets[source] = struct{}{}
		}
		added := false
		for _, ev := range derivatives {
			if _, ok := ev.(belief.PathAdded); ok {
				added = true
				break
			}
		}
		if added {
			if title, ok := nets.anchors[source]; ok && title != "" && !nets.IsAnchor(source) {
				pm.titleMap.Insert(title, source)
			}
			if id, ok := nets.ids[source]; ok {
				pm.idMap.Insert(id, source)
			}
		}
	}
	return derivatives
}
