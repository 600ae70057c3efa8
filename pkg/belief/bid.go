// Package belief provides the basic building blocks for assembling and
// manipulating belief bases: stable identifiers (Bid, Bref), node kinds,
// relation weights, belief nodes, node keys, and the mutation event model.
//
// Identity Model:
//   - Bid: 128-bit time-ordered identifier whose low 48 bits encode the
//     parent namespace, so derived symbols carry a structural reference to
//     their generating parent.
//   - Bref: 12-hex-char compact form of a Bid's derived namespace, used as a
//     human-legible network identifier in paths and links.
//
// Example Usage:
//
//	net := belief.NewBid(belief.NilBid())
//	doc := belief.NewBid(net)
//
//	// doc carries net's namespace in its low 48 bits
//	if !net.IsParentOf(doc) {
//		log.Fatal("expected doc to be derived from net")
//	}
//
//	// Compact reference for links
//	fmt.Println(doc.Bref())
package belief

import (
	"encoding/hex"
	"sort"

	"github.com/google/uuid"
)

// NamespaceBuildonomy is the Buildonomy namespace UUID. It anchors the API
// node within every belief base and seeds all namespace derivation.
var NamespaceBuildonomy = uuid.UUID{
	0x6b, 0x3d, 0x21, 0x54, 0xc0, 0xa9, 0x43, 0x7b,
	0x93, 0x24, 0x5f, 0x62, 0xad, 0xeb, 0x9a, 0x44,
}

// NamespaceHref is the href namespace UUID. It provides a universal network
// location for tracking external http/https links found in source documents.
var NamespaceHref = uuid.UUID{
	0x5b, 0x3d, 0x21, 0x54, 0xc0, 0xa9, 0x43, 0x7b,
	0x93, 0x24, 0x5f, 0x62, 0xad, 0xeb, 0x9a, 0x44,
}

// NamespaceAsset is the asset namespace UUID. Paths with extensions no codec
// claims are rerouted here.
var NamespaceAsset = uuid.UUID{
	0x4b, 0x3d, 0x21, 0x54, 0xc0, 0xa9, 0x43, 0x7b,
	0x93, 0x24, 0x5f, 0x62, 0xad, 0xeb, 0x9a, 0x44,
}

// BuildonomyNamespace returns the reserved Bid anchoring the core API.
func BuildonomyNamespace() Bid { return Bid(NamespaceBuildonomy) }

// HrefNamespace returns the reserved Bid of the external-link tracking network.
func HrefNamespace() Bid { return Bid(NamespaceHref) }

// AssetNamespace returns the reserved Bid of the asset network.
func AssetNamespace() Bid { return Bid(NamespaceAsset) }

// Bid is a belief identifier: a UUIDv7 whose node bytes (octets 10-15) are
// replaced with the namespace derived from a parent Bid. Bids therefore sort
// chronologically by generation time within the producing process, then by
// parent namespace.
type Bid uuid.UUID

// NilBid returns the uninitialized Bid. Use it when generating temporary
// identifiers that have no known source context yet.
func NilBid() Bid { return Bid(uuid.Nil) }

// NewBid generates a fresh time-ordered Bid under parent's namespace.
func NewBid(parent Bid) Bid {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does, which crypto/rand
		// treats as unrecoverable.
		panic(err)
	}
	b := Bid(u)
	ns := parent.NamespaceBytes()
	copy(b[10:16], ns[:])
	return b
}

// deriveNamespace hashes a Bid into the Buildonomy namespace (UUIDv5).
func deriveNamespace(b Bid) uuid.UUID {
	return uuid.NewSHA1(NamespaceBuildonomy, b[:])
}

// NamespaceBytes returns the 6 bytes identifying this Bid as a parent, for
// use as the source context when generating child Bids.
func (b Bid) NamespaceBytes() [6]byte {
	derived := deriveNamespace(b)
	var out [6]byte
	copy(out[:], derived[10:16])
	return out
}

// ParentNamespaceBytes returns the low 6 bytes of the Bid itself, which key
// the identity of the generating parent.
func (b Bid) ParentNamespaceBytes() [6]byte {
	var out [6]byte
	copy(out[:], b[10:16])
	return out
}

// Bref returns the canonical compact reference for this Bid. The nil Bid maps
// to the default (empty) Bref.
func (b Bid) Bref() Bref {
	if b.IsNil() {
		return DefaultBref
	}
	ns := b.NamespaceBytes()
	return Bref(hex.EncodeToString(ns[:]))
}

// ParentBref returns the Bref encoding of the parent namespace carried in the
// Bid's low bytes.
func (b Bid) ParentBref() Bref {
	ns := b.ParentNamespaceBytes()
	return Bref(hex.EncodeToString(ns[:]))
}

// Initialized reports whether the Bid carries a non-nil parent namespace.
func (b Bid) Initialized() bool {
	return b.ParentNamespaceBytes() != [6]byte{}
}

// IsNil reports whether the Bid is entirely unset.
func (b Bid) IsNil() bool { return b == Bid(uuid.Nil) }

// AdoptInto rewrites the Bid's namespace bytes to match parent, turning an
// uninitialized Bid into one rooted at parent.
func (b Bid) AdoptInto(parent Bid) Bid {
	ns := parent.NamespaceBytes()
	copy(b[10:16], ns[:])
	return b
}

// IsParentOf reports whether child's parent namespace matches this Bid's
// derived namespace.
func (b Bid) IsParentOf(child Bid) bool {
	return b.NamespaceBytes() == child.ParentNamespaceBytes()
}

// Less orders Bids bytewise, which for V7 Bids is creation order.
func (b Bid) Less(other Bid) bool {
	for i := range b {
		if b[i] != other[i] {
			return b[i] < other[i]
		}
	}
	return false
}

func (b Bid) String() string { return uuid.UUID(b).String() }

// ParseBid parses the canonical hyphenated UUID form.
func ParseBid(s string) (Bid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilBid(), Serializationf("invalid bid %q: %v", s, err)
	}
	return Bid(u), nil
}

// MarshalText implements encoding.TextMarshaler so Bids can key JSON maps.
func (b Bid) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bid) UnmarshalText(text []byte) error {
	parsed, err := ParseBid(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// DefaultBref denotes "no network specified". Keys carrying it resolve
// against the API network.
const DefaultBref = Bref("")

// Bref is a belief reference: the low 6 bytes of a Bid's derived namespace
// encoded as 12 lowercase hex characters.
type Bref string

// ParseBref validates and normalizes a 12-hex-character reference.
func ParseBref(s string) (Bref, error) {
	if len(s) != 12 {
		return DefaultBref, Serializationf("invalid bref %q: must be 12 hex chars", s)
	}
	lower := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			lower[i] = c
		case c >= 'A' && c <= 'F':
			lower[i] = c + ('a' - 'A')
		default:
			return DefaultBref, Serializationf("invalid bref %q: non-hex character", s)
		}
	}
	return Bref(lower), nil
}

// IsDefault reports whether the Bref denotes the default network.
func (r Bref) IsDefault() bool { return r == DefaultBref }

func (r Bref) String() string { return string(r) }

// SortBids orders a Bid slice bytewise in place and returns it.
func SortBids(bids []Bid) []Bid {
	sort.Slice(bids, func(i, j int) bool { return bids[i].Less(bids[j]) })
	return bids
}
