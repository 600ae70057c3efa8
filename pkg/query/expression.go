// Package query defines the expression language evaluated against a belief
// base: state and relation predicates composed with set-algebra dyads.
//
// Expressions are data, not behavior. Predicates that can be answered from a
// node or edge alone expose Match methods; predicates that need the path
// index (paths, titles, semantic ids) are resolved by the evaluating engine.
//
// Example Usage:
//
//	// All documents in a network, minus one excluded node
//	expr := query.Dyad{
//		L:  query.StateIn{Pred: query.NetPathIn{Net: netBref}},
//		Op: query.Difference,
//		R:  query.StateIn{Pred: query.BidIn{excluded}},
//	}
//	result := base.EvaluateExpression(expr)
package query

import (
	"regexp"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

// SetOp combines two sub-results.
type SetOp int

const (
	// Union keeps states from both sides; on collisions the left copy is
	// kept, losing its Trace flag when the right copy is complete.
	Union SetOp = iota
	// Intersection keeps complete states present in both sides.
	Intersection
	// Difference keeps complete states only present on the left.
	Difference
	// SymmetricDifference keeps complete states present on exactly one side.
	SymmetricDifference
)

// Expression is the recursive query sum.
type Expression interface{ isExpression() }

// StateIn selects nodes matching a state predicate, plus their incident
// edges with Trace copies of the far endpoints.
type StateIn struct{ Pred StatePred }

// StateNotIn selects nodes not matching a state predicate.
type StateNotIn struct{ Pred StatePred }

// RelationIn selects edges matching a relation predicate, with both
// endpoints returned as Trace copies.
type RelationIn struct{ Pred RelationPred }

// RelationNotIn selects edges not matching a relation predicate.
type RelationNotIn struct{ Pred RelationPred }

// Dyad combines two sub-expressions with a set operation.
type Dyad struct {
	L  Expression
	Op SetOp
	R  Expression
}

func (StateIn) isExpression()       {}
func (StateNotIn) isExpression()    {}
func (RelationIn) isExpression()    {}
func (RelationNotIn) isExpression() {}
func (Dyad) isExpression()          {}

// StatePred filters nodes. Implementations either answer MatchState directly
// or are resolved through the path index by the engine (see Indexed).
type StatePred interface{ isStatePred() }

// Matcher is implemented by predicates that can be answered from the node
// alone.
type Matcher interface {
	MatchState(node belief.BeliefNode) bool
}

// BidIn matches nodes whose Bid is in the list.
type BidIn []belief.Bid

// BrefIn matches nodes whose canonical Bref is in the list.
type BrefIn []belief.Bref

// IDIs matches the node carrying a semantic id within a network.
type IDIs struct {
	Net belief.Bref
	ID  string
}

// PathIn matches nodes at the given paths under the API network.
type PathIn []string

// NetPath matches the node at a path within a specific network.
type NetPath struct {
	Net  belief.Bref
	Path string
}

// NetPathIn matches every node with a path under a network.
type NetPathIn struct{ Net belief.Bref }

// TitleMatch matches the node whose anchored title matches the pattern within
// a network. Only the first match is selected: titles are tried in lexical
// order, and subnets are searched only when the network's own titles hold no
// match.
type TitleMatch struct {
	Net   belief.Bref
	Regex *regexp.Regexp
}

// KindIn matches nodes whose kind set intersects the given flags.
type KindIn belief.KindSet

// AttrEq matches nodes whose payload holds the given key (and, when Value is
// non-nil, the given value).
type AttrEq struct {
	Key   string
	Value any
}

func (BidIn) isStatePred()      {}
func (BrefIn) isStatePred()     {}
func (IDIs) isStatePred()       {}
func (PathIn) isStatePred()     {}
func (NetPath) isStatePred()    {}
func (NetPathIn) isStatePred()  {}
func (TitleMatch) isStatePred() {}
func (KindIn) isStatePred()     {}
func (AttrEq) isStatePred()     {}

// MatchState reports Bid membership.
func (p BidIn) MatchState(node belief.BeliefNode) bool {
	for _, bid := range p {
		if bid == node.Bid {
			return true
		}
	}
	return false
}

// MatchState reports Bref membership.
func (p BrefIn) MatchState(node belief.BeliefNode) bool {
	bref := node.Bid.Bref()
	for _, r := range p {
		if r == bref {
			return true
		}
	}
	return false
}

// MatchState reports kind intersection.
func (p KindIn) MatchState(node belief.BeliefNode) bool {
	return node.Kind.Intersects(belief.KindSet(p))
}

// MatchState reports payload attribute presence/equality.
func (p AttrEq) MatchState(node belief.BeliefNode) bool {
	val, ok := node.Payload[p.Key]
	if !ok {
		return false
	}
	return p.Value == nil || val == p.Value
}

// Indexed reports whether the predicate must be resolved through the path
// index rather than by per-node matching.
func Indexed(pred StatePred) bool {
	switch pred.(type) {
	case IDIs, PathIn, NetPath, NetPathIn, TitleMatch:
		return true
	}
	return false
}

// RelationPred filters edges.
type RelationPred interface {
	MatchRelation(rel belief.BeliefRelation) bool
}

// RelKind matches edges whose weight set intersects the filter set.
type RelKind struct{ Weights belief.WeightSet }

// MatchRelation reports kind intersection.
func (p RelKind) MatchRelation(rel belief.BeliefRelation) bool {
	return !rel.Weights.Intersection(p.Weights).IsEmpty()
}

// SourceIn matches edges whose source is in the list.
type SourceIn []belief.Bid

// MatchRelation reports source membership.
func (p SourceIn) MatchRelation(rel belief.BeliefRelation) bool {
	for _, bid := range p {
		if bid == rel.Source {
			return true
		}
	}
	return false
}

// SinkIn matches edges whose sink is in the list.
type SinkIn []belief.Bid

// MatchRelation reports sink membership.
func (p SinkIn) MatchRelation(rel belief.BeliefRelation) bool {
	for _, bid := range p {
		if bid == rel.Sink {
			return true
		}
	}
	return false
}

// NodeIn matches edges with either endpoint in the list.
type NodeIn []belief.Bid

// MatchRelation reports endpoint membership.
func (p NodeIn) MatchRelation(rel belief.BeliefRelation) bool {
	for _, bid := range p {
		if bid == rel.Source || bid == rel.Sink {
			return true
		}
	}
	return false
}

// FromNodeKey maps a node key onto the expression selecting it.
func FromNodeKey(key belief.NodeKey) Expression {
	switch key.Scheme {
	case belief.SchemeBid:
		return StateIn{Pred: BidIn{key.Bid}}
	case belief.SchemeBref:
		return StateIn{Pred: BrefIn{key.Bref}}
	case belief.SchemeID:
		return StateIn{Pred: IDIs{Net: key.Net, ID: key.Value}}
	default:
		return StateIn{Pred: NetPath{Net: key.Net, Path: key.Value}}
	}
}
