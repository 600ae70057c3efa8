package belief

import (
	"strings"
)

// codecExtensions lists the file extensions the document codecs claim. Paths
// with any other extension are rerouted to the asset namespace.
var codecExtensions = map[string]bool{
	"md":   true,
	"toml": true,
}

// KeyScheme tags the reference variant a NodeKey holds.
type KeyScheme uint8

const (
	// SchemePath references a node by its relative document path within a
	// network. The default for bare strings with path indicators.
	SchemePath KeyScheme = iota
	// SchemeBid references a node by its belief identifier.
	SchemeBid
	// SchemeBref references a node by its compact namespace form.
	SchemeBref
	// SchemeID references a node by its semantic id within a network.
	SchemeID
)

func schemeFromString(s string) KeyScheme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid":
		return SchemeBid
	case "bref":
		return SchemeBref
	case "id":
		return SchemeID
	default:
		return SchemePath
	}
}

// NodeKey specifies the join logic between (sets of) BeliefNodes: a
// reference by Bid, Bref, semantic id, or network-relative path, parseable
// from the URL-like textual forms bid://…, bref://…, id://net/…,
// path://net/….
type NodeKey struct {
	Scheme KeyScheme
	Bid    Bid
	Bref   Bref
	// Net scopes id and path references; DefaultBref resolves against the
	// API network.
	Net   Bref
	Value string
}

// BidKey references a node by Bid.
func BidKey(bid Bid) NodeKey { return NodeKey{Scheme: SchemeBid, Bid: bid} }

// BrefKey references a node by Bref.
func BrefKey(bref Bref) NodeKey { return NodeKey{Scheme: SchemeBref, Bref: bref} }

// IDKey references a node by semantic id within net.
func IDKey(net Bref, id string) NodeKey {
	return NodeKey{Scheme: SchemeID, Net: net, Value: id}
}

// PathKey references a node by relative path within net.
func PathKey(net Bref, path string) NodeKey {
	return NodeKey{Scheme: SchemePath, Net: net, Value: path}
}

func (k NodeKey) String() string {
	switch k.Scheme {
	case SchemeBid:
		return "bid://" + k.Bid.String()
	case SchemeBref:
		return "bref://" + k.Bref.String()
	case SchemeID:
		if k.Net.IsDefault() {
			return "id://" + k.Value
		}
		return "id://" + k.Net.String() + "/" + k.Value
	default:
		if k.Net.IsDefault() {
			return "path://" + k.Value
		}
		return "path://" + k.Net.String() + "/" + k.Value
	}
}

// Regularize resolves relative path and id references to absolute ones
// within the supplied network, against the owning node's path. This is the
// lower-level variant that performs no cache lookup.
func (k NodeKey) Regularize(baseNet Bid, ownerPath string) NodeKey {
	switch k.Scheme {
	case SchemePath:
		linkAP := NewAnchorPath(k.Value)
		normalized := linkAP.Normalize()
		if !k.Net.IsDefault() {
			return PathKey(k.Net, normalized)
		}
		if linkAP.IsAbsolute() {
			log.Warnf("path key %q is absolute but has no anchoring network; assuming the root of %s", normalized, baseNet)
			return PathKey(baseNet.Bref(), normalized)
		}
		joined := NewAnchorPath(ownerPath).Join(normalized)
		if strings.HasPrefix(joined, "../") {
			log.Warnf("regularized path %q escapes the relative boundary of %q", joined, ownerPath)
		}
		return PathKey(baseNet.Bref(), joined)
	case SchemeID:
		if k.Net.IsDefault() {
			return IDKey(baseNet.Bref(), k.Value)
		}
		return k
	default:
		return k
	}
}

// HrefToNodeKey converts link markup into a NodeKey, falling back to an
// unanchored id reference when the link cannot be parsed.
func HrefToNodeKey(link string) NodeKey {
	key, err := ParseNodeKey(link)
	if err != nil {
		return IDKey(DefaultBref, link)
	}
	return key
}

// ParseNodeKey parses the URL-like textual form of a NodeKey.
//
// Rules:
//   - bid://<uuid> and bref://<12hex> accept and ignore a leading network
//     component.
//   - id:// and path:// accept an optional network parseable as Bid or Bref;
//     an id:// network that parses as neither surfaces an
//     UnresolvedNetworkError the caller may resolve against a cache.
//   - Non-path schemes (http: and friends) become id references under the
//     href namespace, carrying the full URL.
//   - Bare strings parse as Bid or Bref when the whole string matches, as
//     Path when they carry '/', '#' or '.', and as anchored ids otherwise.
//   - path:// values with extensions no codec claims reroute to the asset
//     namespace.
func ParseNodeKey(s string) (NodeKey, error) {
	schemeStop := strings.Index(s, ":")
	schemeStr := ""
	if schemeStop >= 0 {
		schemeStr = s[:schemeStop]
	}
	scheme := schemeFromString(schemeStr)

	pathStart := 0
	if schemeStop >= 0 {
		pathStart = schemeStop + 1
	}
	for pathStart < len(s) && s[pathStart] == '/' {
		pathStart++
	}

	remainder := s[pathStart:]
	if remainder == "" {
		return NodeKey{}, Serializationf("cannot construct a NodeKey from an empty value, received %q", s)
	}
	firstSlash := strings.Index(remainder, "/")
	potentialNetwork := remainder
	if firstSlash >= 0 {
		potentialNetwork = remainder[:firstSlash]
	}

	// Bare strings: whole-string Bid/Bref parses win, then strings without
	// path indicators become anchored ids.
	if schemeStr == "" {
		if bid, err := ParseBid(remainder); err == nil {
			return BidKey(bid), nil
		}
		if bref, err := ParseBref(remainder); err == nil {
			return BrefKey(bref), nil
		}
		if !strings.ContainsAny(remainder, "/#.") {
			return IDKey(DefaultBref, ToAnchor(remainder)), nil
		}
	}

	// For bid:// and bref:// without a slash, the entire remainder is the
	// value; skip network parsing.
	skipNetwork := (scheme == SchemeBid || scheme == SchemeBref) && firstSlash < 0

	net := DefaultBref
	networkParsed := false
	if !skipNetwork && potentialNetwork != "" {
		if bid, err := ParseBid(potentialNetwork); err == nil {
			net = bid.Bref()
			networkParsed = true
		} else if bref, err := ParseBref(potentialNetwork); err == nil {
			net = bref
			networkParsed = true
		}
		if networkParsed {
			pathStart += len(potentialNetwork)
			for pathStart < len(s) && s[pathStart] == '/' {
				pathStart++
			}
		} else if firstSlash >= 0 && scheme == SchemeID {
			// Leave the unparseable network out of the value so the caller
			// can retry with a resolved network.
			pathStart += len(potentialNetwork)
			for pathStart < len(s) && s[pathStart] == '/' {
				pathStart++
			}
		}
	}

	raw := s[pathStart:]
	if raw == "" {
		return NodeKey{}, Serializationf("cannot generate a NodeKey from %q: remaining path is empty after scheme and network", s)
	}

	switch scheme {
	case SchemeBid:
		bid, err := ParseBid(raw)
		if err != nil {
			return NodeKey{}, err
		}
		return BidKey(bid), nil
	case SchemeBref:
		bref, err := ParseBref(raw)
		if err != nil {
			return NodeKey{}, err
		}
		return BrefKey(bref), nil
	case SchemeID:
		if schemeStr != "" && firstSlash >= 0 && !networkParsed && potentialNetwork != "" {
			return NodeKey{}, &UnresolvedNetworkError{
				NetworkRef: potentialNetwork,
				KeyType:    "id",
				Value:      raw,
			}
		}
		return IDKey(net, ToAnchor(raw)), nil
	default:
		// External URLs (any scheme other than path) become id references
		// under the href namespace.
		if lower := strings.ToLower(schemeStr); lower != "" && lower != "path" {
			return IDKey(HrefNamespace().Bref(), s), nil
		}
		ap := NewAnchorPath(raw)
		pathNet := net
		if ext := ap.Ext(); ext != "" && !codecExtensions[ext] {
			pathNet = AssetNamespace().Bref()
		}
		return PathKey(pathNet, ap.Normalize()), nil
	}
}
