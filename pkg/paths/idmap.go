package paths

import (
	"regexp"
	"sort"

	"github.com/buildonomy/beliefdb/pkg/belief"
)

// IdMap tracks the bidirectional mapping between semantic identifiers (or
// title anchors) and Bids within a network.
type IdMap struct {
	idToBid map[string]belief.Bid
	bidToID map[belief.Bid]string
}

// NewIdMap returns an empty map.
func NewIdMap() IdMap {
	return IdMap{
		idToBid: map[string]belief.Bid{},
		bidToID: map[belief.Bid]string{},
	}
}

// Clone deep-copies the map.
func (m IdMap) Clone() IdMap {
	out := NewIdMap()
	for id, bid := range m.idToBid {
		out.idToBid[id] = bid
	}
	for bid, id := range m.bidToID {
		out.bidToID[bid] = id
	}
	return out
}

// Insert records an id for a bid, evicting stale mappings on either side.
func (m *IdMap) Insert(id string, bid belief.Bid) {
	if old, ok := m.bidToID[bid]; ok && old != id {
		delete(m.idToBid, old)
	}
	if oldBid, ok := m.idToBid[id]; ok && oldBid != bid {
		delete(m.bidToID, oldBid)
	}
	m.idToBid[id] = bid
	m.bidToID[bid] = id
}

// GetBid returns the Bid registered under id.
func (m IdMap) GetBid(id string) (belief.Bid, bool) {
	bid, ok := m.idToBid[id]
	return bid, ok
}

// GetBidRegex returns the Bid of the first id (in lexical order) matching
// the pattern.
func (m IdMap) GetBidRegex(re *regexp.Regexp) (belief.Bid, bool) {
	ids := make([]string, 0, len(m.idToBid))
	for id := range m.idToBid {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if re.MatchString(id) {
			return m.idToBid[id], true
		}
	}
	return belief.NilBid(), false
}

// GetID returns the id registered for bid.
func (m IdMap) GetID(bid belief.Bid) (string, bool) {
	id, ok := m.bidToID[bid]
	return id, ok
}

// Remove drops the mapping for bid, returning the id it held.
func (m *IdMap) Remove(bid belief.Bid) (string, bool) {
	id, ok := m.bidToID[bid]
	if !ok {
		return "", false
	}
	delete(m.bidToID, bid)
	delete(m.idToBid, id)
	return id, true
}
