package belief

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pelletier/go-toml/v2"
)

// Version is the core API version stamped into the injected API node.
const Version = "0.1.0"

// BeliefNode is a node of a belief network: identity, kind flags, title,
// optional semantic id, optional schema tag, and an open payload table.
type BeliefNode struct {
	Bid     Bid            `json:"bid"`
	Kind    KindSet        `json:"kind"`
	Title   string         `json:"title"`
	Schema  string         `json:"schema,omitempty"`
	ID      string         `json:"id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// UnknownNode returns a placeholder node for a bid whose state has not been
// loaded.
func UnknownNode(bid Bid) BeliefNode {
	return BeliefNode{Bid: bid, Kind: Kinds(KindSymbol)}
}

// APIState returns the node anchoring this core library's API version.
// Relating a Network node to the API node denotes the API format that
// network implements. The API node is always also a Trace, as a base can
// never assume it holds all api relations.
func APIState() BeliefNode {
	return BeliefNode{
		Bid:    BuildonomyNamespace(),
		Kind:   Kinds(KindAPI, KindTrace),
		Title:  fmt.Sprintf("Buildonomy API v%s", Version),
		Schema: "api",
		ID:     "buildonomy_api",
		Payload: map[string]any{
			"package":    "beliefdb",
			"version":    Version,
			"repository": "https://github.com/buildonomy/beliefdb",
		},
	}
}

// HrefNetwork returns the reserved network node that tracks external links.
func HrefNetwork() BeliefNode {
	return BeliefNode{
		Bid:    HrefNamespace(),
		Kind:   Kinds(KindNetwork, KindTrace),
		Title:  fmt.Sprintf("Buildonomy href tracking network v%s", Version),
		Schema: "api",
		ID:     "buildonomy_href_network",
		Payload: map[string]any{
			"api": BuildonomyNamespace().String(),
		},
	}
}

// AssetNetwork returns the reserved network node for non-codec assets.
func AssetNetwork() BeliefNode {
	return BeliefNode{
		Bid:    AssetNamespace(),
		Kind:   Kinds(KindNetwork, KindTrace),
		Title:  fmt.Sprintf("Buildonomy asset tracking network v%s", Version),
		Schema: "api",
		ID:     "buildonomy_asset_network",
		Payload: map[string]any{
			"api": BuildonomyNamespace().String(),
		},
	}
}

// Clone deep-copies the node.
func (n BeliefNode) Clone() BeliefNode {
	out := n
	out.Payload = cloneTable(n.Payload)
	return out
}

// Equal deep-compares all node fields.
func (n BeliefNode) Equal(other BeliefNode) bool {
	return n.Bid == other.Bid &&
		n.Kind == other.Kind &&
		n.Title == other.Title &&
		n.Schema == other.Schema &&
		n.ID == other.ID &&
		reflect.DeepEqual(normalizeTable(n.Payload), normalizeTable(other.Payload))
}

// DisplayTitle falls back to the bid when the title is empty.
func (n BeliefNode) DisplayTitle() string {
	if n.Title == "" {
		return n.Bid.String()
	}
	return n.Title
}

// Merge folds rhs into the node, reporting whether anything changed. Kind
// flags union, but Trace is removed when either side asserts a complete
// relation set. Payload keys merge with rhs overwriting on difference.
func (n *BeliefNode) Merge(rhs BeliefNode) bool {
	changed := false
	if n.Bid != rhs.Bid {
		n.Bid = rhs.Bid
		changed = true
	}
	if n.Title != rhs.Title {
		n.Title = rhs.Title
		changed = true
	}
	merged := n.Kind.Union(rhs.Kind)
	if !merged.IsComplete() && (n.Kind.IsComplete() || rhs.Kind.IsComplete()) {
		merged = merged.Without(KindTrace)
	}
	if merged != n.Kind {
		n.Kind = merged
		changed = true
	}
	if n.Schema != rhs.Schema {
		n.Schema = rhs.Schema
		changed = true
	}
	for key, rhsVal := range rhs.Payload {
		if cur, ok := n.Payload[key]; !ok || !reflect.DeepEqual(normalizeValue(cur), normalizeValue(rhsVal)) {
			if n.Payload == nil {
				n.Payload = map[string]any{}
			}
			n.Payload[key] = cloneValue(rhsVal)
			changed = true
		}
	}
	return changed
}

// UnmarshalJSON restores a node from the wire form, keeping integral
// payload values integral.
func (n *BeliefNode) UnmarshalJSON(data []byte) error {
	type wireNode struct {
		Bid     Bid             `json:"bid"`
		Kind    KindSet         `json:"kind"`
		Title   string          `json:"title"`
		Schema  string          `json:"schema,omitempty"`
		ID      string          `json:"id,omitempty"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	var wire wireNode
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*n = BeliefNode{
		Bid:    wire.Bid,
		Kind:   wire.Kind,
		Title:  wire.Title,
		Schema: wire.Schema,
		ID:     wire.ID,
	}
	if len(wire.Payload) > 0 {
		payload, err := decodeJSONTable(wire.Payload)
		if err != nil {
			return err
		}
		n.Payload = payload
	}
	return nil
}

// nodeTOML is the serialized node body used by NodeUpdate events and the
// document codecs.
type nodeTOML struct {
	Bid     string         `toml:"bid"`
	Kind    []string       `toml:"kind"`
	Title   string         `toml:"title"`
	Schema  string         `toml:"schema,omitempty"`
	ID      string         `toml:"id,omitempty"`
	Payload map[string]any `toml:"payload,omitempty"`
}

// TOML renders the canonical serialized form of the node.
func (n BeliefNode) TOML() string {
	doc := nodeTOML{
		Bid:    n.Bid.String(),
		Kind:   n.Kind.Names(),
		Title:  n.Title,
		Schema: n.Schema,
		ID:     n.ID,
	}
	if len(n.Payload) > 0 {
		doc.Payload = normalizeTable(n.Payload)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		// The node body is built from TOML value types only.
		panic(err)
	}
	return string(out)
}

// ParseNode decodes a serialized node body.
func ParseNode(body string) (BeliefNode, error) {
	var doc nodeTOML
	if err := toml.Unmarshal([]byte(body), &doc); err != nil {
		return BeliefNode{}, Serializationf("invalid node body: %v", err)
	}
	node := BeliefNode{
		Title:  doc.Title,
		Schema: doc.Schema,
		ID:     doc.ID,
	}
	if doc.Bid != "" {
		bid, err := ParseBid(doc.Bid)
		if err != nil {
			return BeliefNode{}, err
		}
		node.Bid = bid
	}
	kind, err := ParseKindSet(doc.Kind)
	if err != nil {
		return BeliefNode{}, err
	}
	node.Kind = kind
	if len(doc.Payload) > 0 {
		node.Payload = normalizeTable(doc.Payload)
	}
	return node, nil
}

// BeliefRelation is an edge rendered as a standalone record, suitable for
// serialization.
type BeliefRelation struct {
	Source  Bid       `json:"source"`
	Sink    Bid       `json:"sink"`
	Weights WeightSet `json:"weights"`
}
