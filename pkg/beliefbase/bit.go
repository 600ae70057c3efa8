package beliefbase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/paths"
)

// checkPathInvariants verifies node/edge closure: every relation node has a
// state, and every node resolves in some PathMap rooted at an API node (or
// is itself one).
func (bs *BeliefBase) checkPathInvariants() []string {
	var errors []string

	var apiNets []belief.Bid
	for bid, node := range bs.states {
		if node.Kind.Contains(belief.KindAPI) {
			apiNets = append(apiNets, bid)
		}
	}
	belief.SortBids(apiNets)

	var stateless, pathless []belief.Bid
	bs.relMu.RLock()
	nodes := bs.relations.Nodes()
	bs.relMu.RUnlock()

	bs.pathsMu.RLock()
	pmm := bs.paths
	var apiMaps []*paths.PathMap
	for _, api := range apiNets {
		if pm, ok := pmm.GetMap(api); ok {
			apiMaps = append(apiMaps, pm)
		}
	}
	for _, bid := range nodes {
		if _, ok := bs.states[bid]; !ok {
			stateless = append(stateless, bid)
		}
		hasAPIPath := false
		for _, pm := range apiMaps {
			if _, _, _, ok := pm.Path(bid, pmm); ok {
				hasAPIPath = true
				break
			}
		}
		if !hasAPIPath {
			pathless = append(pathless, bid)
		}
	}
	bs.pathsMu.RUnlock()

	if len(stateless) > 0 {
		errors = append(errors, fmt.Sprintf(
			"[built_in_test: invariant 1.0] relation nodes must map to a belief node; states missing for:\n\t%s",
			joinBids(stateless)))
	}
	if len(pathless) > 0 {
		errors = append(errors, fmt.Sprintf(
			"[built_in_test: invariant 1.1] relation nodes must have a path to an API node (or be one); paths missing for:\n\t%s",
			joinBids(pathless)))
	}
	return errors
}

func joinBids(bids []belief.Bid) string {
	out := make([]string, len(bids))
	for i, bid := range bids {
		out[i] = bid.String()
	}
	return strings.Join(out, "\n\t")
}

// BuiltInTestErrors verifies the static invariants and returns the
// human-readable violations. With full, cycle and sort-contiguity checks
// run as well. This is not cheap in computation or memory.
func (bs *BeliefBase) BuiltInTestErrors(full bool) []string {
	errors := bs.checkPathInvariants()
	if !full {
		return errors
	}

	bs.relMu.RLock()
	defer bs.relMu.RUnlock()

	for _, kind := range belief.AllWeightKinds() {
		for _, scc := range bs.relations.AsSubgraph(kind, false).StronglyConnectedComponents() {
			if len(scc) > 1 {
				errors = append(errors, fmt.Sprintf(
					"[built_in_test: invariant 0] %s edges contain cycle: %s", kind, joinBids(scc)))
			}
		}
	}

	for _, bid := range belief.SortBids(bs.stateBids()) {
		node := bs.states[bid]
		kindKeys := map[belief.WeightKind][]uint16{}
		for _, edge := range bs.relations.EdgesDirected(bid, graphIncoming) {
			for _, kind := range edge.Weights.Kinds() {
				w, _ := edge.Weights.Get(kind)
				idx, _ := w.SortKey()
				kindKeys[kind] = append(kindKeys[kind], idx)
			}
		}
		for _, kind := range belief.AllWeightKinds() {
			indices, ok := kindKeys[kind]
			if !ok {
				continue
			}
			sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
			if node.Kind.Contains(belief.KindTrace) {
				// Trace sinks only promise uniqueness.
				for i := 1; i < len(indices); i++ {
					if indices[i] == indices[i-1] {
						errors = append(errors, fmt.Sprintf(
							"[built_in_test: invariant 2] %s (tagged as trace) %s edges contain duplicate indices: %v",
							bid, kind, indices))
						break
					}
				}
				continue
			}
			contiguous := true
			for i, idx := range indices {
				if idx != uint16(i) {
					contiguous = false
					break
				}
			}
			if !contiguous {
				errors = append(errors, fmt.Sprintf(
					"[built_in_test: invariant 2] %s %s edges are not correctly sorted, received %v, expected [0..%d)",
					bid, kind, indices, len(indices)))
			}
		}
	}
	return errors
}

// pathDivergenceError formats the mismatch between the event-driven path
// index and a freshly rebuilt one.
func pathDivergenceError(eventPaths, constructorPaths map[string]struct{}) string {
	return fmt.Sprintf(
		"- event-driven and constructor path indexes should hold identical paths\n\tevent_paths:\n\t- %s\n\tconstructor_paths:\n\t- %s",
		strings.Join(sortedPathList(eventPaths), "\n\t- "),
		strings.Join(sortedPathList(constructorPaths), "\n\t- "))
}

func sortedPathList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
