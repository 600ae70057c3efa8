package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidCreationAndAdoption(t *testing.T) {
	parent := NewBid(NilBid())
	child := NewBid(NilBid())

	assert.NotEqual(t, parent.NamespaceBytes(), child.ParentNamespaceBytes())

	child = child.AdoptInto(parent)
	assert.Equal(t, parent.NamespaceBytes(), child.ParentNamespaceBytes())
	assert.True(t, parent.IsParentOf(child))
}

func TestBidOrdering(t *testing.T) {
	// V7 bids embed a timestamp, so creation order is byte order.
	a := NewBid(NilBid())
	b := NewBid(a)
	assert.True(t, a.Less(b) || b.Less(a))
	assert.False(t, a.Less(a))
}

func TestBidRoundTrip(t *testing.T) {
	bid := NewBid(NilBid())
	parsed, err := ParseBid(bid.String())
	require.NoError(t, err)
	assert.Equal(t, bid, parsed)

	_, err = ParseBid("not-a-uuid")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestBref(t *testing.T) {
	bid := NewBid(NilBid())
	bref := bid.Bref()
	require.Len(t, bref.String(), 12)

	parsed, err := ParseBref(bref.String())
	require.NoError(t, err)
	assert.Equal(t, bref, parsed)

	upper, err := ParseBref("ABCDEF012345")
	require.NoError(t, err)
	assert.Equal(t, Bref("abcdef012345"), upper)

	_, err = ParseBref("abc")
	assert.ErrorIs(t, err, ErrSerialization)
	_, err = ParseBref("zzzzzzzzzzzz")
	assert.ErrorIs(t, err, ErrSerialization)

	// The nil bid maps to the default reference.
	assert.True(t, NilBid().Bref().IsDefault())
	assert.False(t, bid.Bref().IsDefault())
}

func TestBrefStableAcrossCalls(t *testing.T) {
	bid := NewBid(NilBid())
	assert.Equal(t, bid.Bref(), bid.Bref())

	other := NewBid(NilBid())
	assert.NotEqual(t, bid.Bref(), other.Bref())
}
