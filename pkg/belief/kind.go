package belief

import (
	"encoding/json"
	"sort"
	"strings"
)

// BeliefKind enumerates the node roles available at this core API version.
// Each BeliefNode carries a set of these flags to designate its functionality
// within a belief base. Nodes change role by toggling flags; there is no type
// hierarchy.
type BeliefKind uint32

const (
	// KindAPI anchors a specific schema version. All nodes in a valid
	// subgraph must have a Section path to at least one API node.
	KindAPI BeliefKind = 1 << iota
	// KindNetwork marks a repository/directory of beliefs.
	KindNetwork
	// KindAction marks a method to manipulate perceived context.
	KindAction
	// KindCore marks a method to abstractly measure driving intentions.
	KindCore
	// KindSymbol names a perceptible recurring phenomenon.
	KindSymbol
	// KindDocument handles source material that encodes one or more beliefs.
	KindDocument
	// KindExternal wraps a reference to a source without native read/write
	// access.
	KindExternal
	// KindTrace marks a node whose relations are only partially loaded. Trace
	// nodes can be referenced and appear in paths and queries, but their
	// relation set may be incomplete for the current scope, which exempts
	// them from sort-contiguity checks. Union removes Trace when a complete
	// relation set for the node is merged in.
	KindTrace
)

var kindNames = map[BeliefKind]string{
	KindAPI:      "API",
	KindNetwork:  "Network",
	KindAction:   "Action",
	KindCore:     "Core",
	KindSymbol:   "Symbol",
	KindDocument: "Document",
	KindExternal: "External",
	KindTrace:    "Trace",
}

var kindValues = func() map[string]BeliefKind {
	m := make(map[string]BeliefKind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (k BeliefKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseBeliefKind maps a kind name back to its flag.
func ParseBeliefKind(s string) (BeliefKind, error) {
	if k, ok := kindValues[s]; ok {
		return k, nil
	}
	return 0, Serializationf("unknown belief kind %q", s)
}

// KindSet is a flag set of BeliefKinds.
type KindSet uint32

// Kinds builds a KindSet from individual flags.
func Kinds(kinds ...BeliefKind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= KindSet(k)
	}
	return s
}

// Contains reports whether every flag in k is present.
func (s KindSet) Contains(k BeliefKind) bool { return s&KindSet(k) != 0 }

// With returns the set with k added.
func (s KindSet) With(k BeliefKind) KindSet { return s | KindSet(k) }

// Without returns the set with k removed.
func (s KindSet) Without(k BeliefKind) KindSet { return s &^ KindSet(k) }

// Union returns the flag union of both sets.
func (s KindSet) Union(other KindSet) KindSet { return s | other }

// Intersects reports whether the sets share any flag.
func (s KindSet) Intersects(other KindSet) bool { return s&other != 0 }

// IsAnchor reports whether the node renders as part of another document
// rather than as a standalone one.
func (s KindSet) IsAnchor() bool {
	return !s.Intersects(Kinds(KindAPI, KindNetwork, KindDocument))
}

// IsDocument reports whether the node is document-like (API, Network or
// Document).
func (s KindSet) IsDocument() bool { return !s.IsAnchor() }

// IsNetwork reports whether the node roots a network (API or Network).
func (s KindSet) IsNetwork() bool {
	return s.Intersects(Kinds(KindAPI, KindNetwork))
}

// IsComplete reports whether the node's full content and relations are
// loaded (no Trace flag).
func (s KindSet) IsComplete() bool { return !s.Contains(KindTrace) }

// Names returns the sorted list of flag names, the serialized list form.
func (s KindSet) Names() []string {
	names := make([]string, 0, 4)
	for k, name := range kindNames {
		if s.Contains(k) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ParseKindSet rebuilds a KindSet from its serialized name list.
func ParseKindSet(names []string) (KindSet, error) {
	var s KindSet
	for _, name := range names {
		k, err := ParseBeliefKind(name)
		if err != nil {
			return 0, err
		}
		s = s.With(k)
	}
	return s, nil
}

func (s KindSet) String() string {
	return strings.Join(s.Names(), "|")
}

// MarshalJSON serializes the set as a list of kind names.
func (s KindSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts the list form.
func (s *KindSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseKindSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
