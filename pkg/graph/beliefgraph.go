package graph

import (
	"encoding/json"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/query"
)

var log = logrus.WithField("component", "graph")

// DefaultLimit caps unpaginated query results.
const DefaultLimit = 100

// BeliefGraph is the owned snapshot form of a belief base: states keyed by
// Bid plus the relation graph. It is the canonical interchange structure for
// serialization, query results, diffing and merging.
type BeliefGraph struct {
	States    map[belief.Bid]belief.BeliefNode
	Relations *BidGraph
}

// NewBeliefGraph returns an empty snapshot.
func NewBeliefGraph() BeliefGraph {
	return BeliefGraph{
		States:    map[belief.Bid]belief.BeliefNode{},
		Relations: NewBidGraph(),
	}
}

// IsEmpty reports whether the snapshot holds no states and no relation
// nodes.
func (bg BeliefGraph) IsEmpty() bool {
	return len(bg.States) == 0 && bg.Relations.NodeCount() == 0
}

// Clone deep-copies the snapshot.
func (bg BeliefGraph) Clone() BeliefGraph {
	out := NewBeliefGraph()
	for bid, node := range bg.States {
		out.States[bid] = node.Clone()
	}
	out.Relations = bg.Relations.Clone()
	return out
}

// StateBids returns the state keys in deterministic order.
func (bg BeliefGraph) StateBids() []belief.Bid {
	bids := make([]belief.Bid, 0, len(bg.States))
	for bid := range bg.States {
		bids = append(bids, bid)
	}
	return belief.SortBids(bids)
}

// addRelations merges rhs relations into the snapshot. States reachable from
// the already-known node set (in either direction) are pulled in first, then
// every rhs edge whose endpoints survive in the merged state map is added,
// right-biased. Self edges are dropped with a warning.
func (bg *BeliefGraph) addRelations(rhs *BeliefGraph) {
	// Pull in rhs states connected to our own, walking both directions.
	seeds := make([]belief.Bid, 0)
	for _, bid := range rhs.Relations.Nodes() {
		if _, ok := bg.States[bid]; ok {
			seeds = append(seeds, bid)
		}
	}
	visited := map[belief.Bid]struct{}{}
	queue := append([]belief.Bid(nil), seeds...)
	for len(queue) > 0 {
		bid := queue[0]
		queue = queue[1:]
		if _, seen := visited[bid]; seen {
			continue
		}
		visited[bid] = struct{}{}
		if node, ok := rhs.States[bid]; ok {
			if _, present := bg.States[bid]; !present {
				bg.States[bid] = node.Clone()
			}
		}
		for _, edge := range rhs.Relations.EdgesDirected(bid, Outgoing) {
			queue = append(queue, edge.Sink)
		}
		for _, edge := range rhs.Relations.EdgesDirected(bid, Incoming) {
			queue = append(queue, edge.Source)
		}
	}

	for _, edge := range rhs.Relations.Edges() {
		if edge.Source == edge.Sink {
			log.Warnf("ignoring self-connection on %s with weights %v", edge.Source, edge.Weights.Kinds())
			continue
		}
		_, haveSource := bg.States[edge.Source]
		_, haveSink := bg.States[edge.Sink]
		if !haveSource && !haveSink {
			continue
		}
		for _, endpoint := range []belief.Bid{edge.Source, edge.Sink} {
			if _, ok := bg.States[endpoint]; ok {
				continue
			}
			if node, ok := rhs.States[endpoint]; ok {
				bg.States[endpoint] = node.Clone()
			}
		}
		// Discard edges whose endpoints did not make it into the merged
		// state map.
		if _, ok := bg.States[edge.Source]; !ok {
			log.Warnf("neither side holds a state for edge source %s; dropping edge", edge.Source)
			continue
		}
		if _, ok := bg.States[edge.Sink]; !ok {
			log.Warnf("neither side holds a state for edge sink %s; dropping edge", edge.Sink)
			continue
		}
		bg.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
	}
}

// UnionMut folds rhs into the snapshot. Complete rhs states are accepted; a
// complete copy upgrades a Trace copy by clearing the flag. Relations are
// right-biased per edge.
func (bg *BeliefGraph) UnionMut(rhs *BeliefGraph) {
	for _, bid := range rhs.StateBids() {
		node := rhs.States[bid]
		if !node.Kind.IsComplete() {
			continue
		}
		bg.acceptState(node)
	}
	bg.addRelations(rhs)
}

// UnionMutWithTrace is UnionMut accepting Trace states from rhs as well;
// used while accumulating multi-pass traversal results.
func (bg *BeliefGraph) UnionMutWithTrace(rhs *BeliefGraph) {
	for _, bid := range rhs.StateBids() {
		bg.acceptState(rhs.States[bid])
	}
	bg.addRelations(rhs)
}

func (bg *BeliefGraph) acceptState(node belief.BeliefNode) {
	existing, ok := bg.States[node.Bid]
	if !ok {
		bg.States[node.Bid] = node.Clone()
		return
	}
	if !existing.Kind.IsComplete() && node.Kind.IsComplete() {
		// rhs asserts it holds all relations for this node.
		existing.Kind = existing.Kind.Without(belief.KindTrace)
		bg.States[node.Bid] = existing
	}
}

// Union returns the snapshot union without mutating either side.
func (bg BeliefGraph) Union(rhs *BeliefGraph) BeliefGraph {
	out := bg.Clone()
	out.UnionMut(rhs)
	return out
}

// Intersection keeps complete states present in both sides, then all
// relations from both sides whose endpoints survive.
func (bg BeliefGraph) Intersection(rhs *BeliefGraph) BeliefGraph {
	out := NewBeliefGraph()
	for bid, node := range bg.States {
		if !node.Kind.IsComplete() {
			continue
		}
		if other, ok := rhs.States[bid]; ok && other.Kind.IsComplete() {
			out.States[bid] = node.Clone()
		}
	}
	out.addSurvivingRelations(&bg, rhs)
	return out
}

// Difference keeps complete states present on the left but not the right,
// then all relations from both sides whose endpoints survive.
func (bg BeliefGraph) Difference(rhs *BeliefGraph) BeliefGraph {
	out := NewBeliefGraph()
	for bid, node := range bg.States {
		if !node.Kind.IsComplete() {
			continue
		}
		if other, ok := rhs.States[bid]; ok && other.Kind.IsComplete() {
			continue
		}
		out.States[bid] = node.Clone()
	}
	out.addSurvivingRelations(&bg, rhs)
	return out
}

// addSurvivingRelations copies the edges of each side whose endpoints both
// hold a state in bg, later sides overwriting earlier ones per edge.
func (bg *BeliefGraph) addSurvivingRelations(sides ...*BeliefGraph) {
	for _, side := range sides {
		for _, edge := range side.Relations.Edges() {
			_, haveSource := bg.States[edge.Source]
			_, haveSink := bg.States[edge.Sink]
			if haveSource && haveSink {
				bg.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
			}
		}
	}
}

// SymmetricDifference returns difference(a, b) union difference(b, a).
func (bg BeliefGraph) SymmetricDifference(rhs *BeliefGraph) BeliefGraph {
	left := bg.Difference(rhs)
	right := rhs.Difference(&bg)
	return left.Union(&right)
}

// FindOrphanedEdges returns the Bids referenced by relations but absent from
// states, sorted and deduplicated.
func (bg BeliefGraph) FindOrphanedEdges() []belief.Bid {
	seen := map[belief.Bid]struct{}{}
	for _, edge := range bg.Relations.Edges() {
		for _, endpoint := range []belief.Bid{edge.Source, edge.Sink} {
			if _, ok := bg.States[endpoint]; !ok {
				seen[endpoint] = struct{}{}
			}
		}
	}
	out := make([]belief.Bid, 0, len(seen))
	for bid := range seen {
		out = append(out, bid)
	}
	return belief.SortBids(out)
}

// findExternals returns the nodes lacking edges in dir on the kind-filtered
// relation graph, excluding fully orphaned nodes (external in both
// directions).
func (bg BeliefGraph) findExternals(weights *belief.WeightSet, dir Direction) []belief.Bid {
	filter := belief.FullWeightSet()
	if weights != nil {
		filter = *weights
	}
	filtered := bg.Relations.Filter(func(_, _ belief.Bid, ws belief.WeightSet) bool {
		return !ws.Intersection(filter).IsEmpty()
	}, false)
	otherDir := Incoming
	if dir == Incoming {
		otherDir = Outgoing
	}
	orphans := map[belief.Bid]struct{}{}
	for _, bid := range filtered.Externals(otherDir) {
		orphans[bid] = struct{}{}
	}
	var out []belief.Bid
	for _, bid := range filtered.Externals(dir) {
		if _, orphaned := orphans[bid]; orphaned {
			continue
		}
		out = append(out, bid)
	}
	return out
}

// BuildUpstreamExpr constructs the query selecting nodes without incoming
// edges on the filtered relation graph, for multi-pass upstream loading.
// Returns nil when the frontier is empty.
func (bg BeliefGraph) BuildUpstreamExpr(weights *belief.WeightSet) query.Expression {
	bids := bg.findExternals(weights, Incoming)
	if len(bids) == 0 {
		return nil
	}
	return query.StateIn{Pred: query.BidIn(bids)}
}

// BuildDownstreamExpr constructs the query selecting nodes without outgoing
// edges on the filtered relation graph. Returns nil when the frontier is
// empty.
func (bg BeliefGraph) BuildDownstreamExpr(weights *belief.WeightSet) query.Expression {
	bids := bg.findExternals(weights, Outgoing)
	if len(bids) == 0 {
		return nil
	}
	return query.StateIn{Pred: query.BidIn(bids)}
}

// BuildBalanceExpr constructs the follow-up query pulling in unloaded
// Section sinks, used by the balancing loop.
func (bg BeliefGraph) BuildBalanceExpr() query.Expression {
	ws := belief.WeightSetOf(belief.Section)
	return bg.BuildDownstreamExpr(&ws)
}

// ResultsPage is a paginated query result.
type ResultsPage struct {
	Count   int
	Start   int
	Results BeliefGraph
}

// Paginate slices the snapshot's states (in deterministic order) and keeps
// the relations internal to the page.
func (bg BeliefGraph) Paginate(limit, offset int) ResultsPage {
	count := len(bg.States)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	bids := bg.StateBids()
	page := NewBeliefGraph()
	end := offset + limit
	if end > len(bids) {
		end = len(bids)
	}
	if offset < len(bids) {
		for _, bid := range bids[offset:end] {
			page.States[bid] = bg.States[bid].Clone()
		}
	}
	for _, edge := range bg.Relations.Edges() {
		if _, ok := page.States[edge.Source]; !ok {
			continue
		}
		if _, ok := page.States[edge.Sink]; !ok {
			continue
		}
		page.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights.Clone())
	}
	return ResultsPage{Count: count, Start: offset, Results: page}
}

type beliefGraphJSON struct {
	States    map[belief.Bid]belief.BeliefNode `json:"states"`
	Relations []belief.BeliefRelation         `json:"relations"`
}

// MarshalJSON renders the documented two-field wire form: states keyed by
// Bid, relations as an edge list.
func (bg BeliefGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(beliefGraphJSON{
		States:    bg.States,
		Relations: bg.Relations.Edges(),
	})
}

// UnmarshalJSON restores the wire form.
func (bg *BeliefGraph) UnmarshalJSON(data []byte) error {
	var wire beliefGraphJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*bg = NewBeliefGraph()
	for bid, node := range wire.States {
		bg.States[bid] = node
	}
	for _, edge := range wire.Relations {
		bg.Relations.AddEdge(edge.Source, edge.Sink, edge.Weights)
	}
	return nil
}

// SameStates reports whether both snapshots hold exactly the same state
// keys.
func (bg BeliefGraph) SameStates(rhs *BeliefGraph) bool {
	if len(bg.States) != len(rhs.States) {
		return false
	}
	for bid := range bg.States {
		if _, ok := rhs.States[bid]; !ok {
			return false
		}
	}
	return true
}

// SortedRelations returns the edge list sorted for display and diffing.
func (bg BeliefGraph) SortedRelations() []belief.BeliefRelation {
	edges := bg.Relations.Edges()
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Sink != edges[j].Sink {
			return edges[i].Sink.Less(edges[j].Sink)
		}
		return edges[i].Source.Less(edges[j].Source)
	})
	return edges
}
