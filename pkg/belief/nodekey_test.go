package belief

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKeyURLParsing(t *testing.T) {
	networkBid := NewBid(NilBid())
	networkBref := networkBid.Bref()
	testBid := NewBid(NilBid())
	testBref := testBid.Bref()

	t.Run("bid scheme", func(t *testing.T) {
		key, err := ParseNodeKey(fmt.Sprintf("bid://%s", testBid))
		require.NoError(t, err)
		assert.Equal(t, BidKey(testBid), key)

		// A leading network component is accepted and ignored.
		key, err = ParseNodeKey(fmt.Sprintf("bid://%s/%s", networkBid, testBid))
		require.NoError(t, err)
		assert.Equal(t, BidKey(testBid), key)

		// Extra slashes are harmless.
		key, err = ParseNodeKey(fmt.Sprintf("bid://///%s", testBid))
		require.NoError(t, err)
		assert.Equal(t, BidKey(testBid), key)
	})

	t.Run("bref scheme", func(t *testing.T) {
		key, err := ParseNodeKey(fmt.Sprintf("bref:///%s", testBref))
		require.NoError(t, err)
		assert.Equal(t, BrefKey(testBref), key)

		key, err = ParseNodeKey(fmt.Sprintf("bref://%s/%s", networkBref, testBref))
		require.NoError(t, err)
		assert.Equal(t, BrefKey(testBref), key)

		_, err = ParseNodeKey(fmt.Sprintf("bref://%s/%s321", networkBref, testBref))
		assert.Error(t, err)
	})

	t.Run("id scheme", func(t *testing.T) {
		key, err := ParseNodeKey("id://supremum")
		require.NoError(t, err)
		assert.Equal(t, IDKey(DefaultBref, "supremum"), key)

		key, err = ParseNodeKey(fmt.Sprintf("id://%s/supremum", networkBid))
		require.NoError(t, err)
		assert.Equal(t, IDKey(networkBref, "supremum"), key)

		key, err = ParseNodeKey(fmt.Sprintf("id://%s/supremum", networkBref))
		require.NoError(t, err)
		assert.Equal(t, IDKey(networkBref, "supremum"), key)
	})

	t.Run("path scheme", func(t *testing.T) {
		key, err := ParseNodeKey(fmt.Sprintf("path://%s/docs/council/README.md", networkBid))
		require.NoError(t, err)
		assert.Equal(t, PathKey(networkBref, "docs/council/README.md"), key)

		key, err = ParseNodeKey("path://docs/README.md")
		require.NoError(t, err)
		assert.Equal(t, PathKey(DefaultBref, "docs/README.md"), key)
	})

	t.Run("external urls", func(t *testing.T) {
		key, err := ParseNodeKey("https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, IDKey(HrefNamespace().Bref(), "https://example.com/page"), key)
	})
}

func TestNodeKeyUnresolvedNetwork(t *testing.T) {
	_, err := ParseNodeKey("id://my-network-id/supremum")
	var unresolved *UnresolvedNetworkError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "my-network-id", unresolved.NetworkRef)
	assert.Equal(t, "id", unresolved.KeyType)
	assert.Equal(t, "supremum", unresolved.Value)

	networkBid := NewBid(NilBid())
	_, err = ParseNodeKey(fmt.Sprintf("id://%s/supremum", networkBid))
	assert.NoError(t, err)
}

func TestNodeKeyBareStrings(t *testing.T) {
	testBid := NewBid(NilBid())
	testBref := testBid.Bref()
	netBref := NewBid(NilBid()).Bref()

	key, err := ParseNodeKey(testBid.String())
	require.NoError(t, err)
	assert.Equal(t, BidKey(testBid), key)

	key, err = ParseNodeKey(testBref.String())
	require.NoError(t, err)
	assert.Equal(t, BrefKey(testBref), key)

	// Relative paths
	key, err = ParseNodeKey("./README.md")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "README.md"), key)

	key, err = ParseNodeKey("../docs/file.md")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "../docs/file.md"), key)

	// Anchors
	key, err = ParseNodeKey("#section")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "#section"), key)

	// Absolute paths lose their root
	key, err = ParseNodeKey("/docs/council/README.md")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "docs/council/README.md"), key)

	// Plain text without path indicators normalizes to an id
	key, err = ParseNodeKey(" My Node Title")
	require.NoError(t, err)
	assert.Equal(t, IDKey(DefaultBref, "my-node-title"), key)

	// Plain text with separators parses as a path
	key, err = ParseNodeKey("docs/my-node.md")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "docs/my-node.md"), key)

	key, err = ParseNodeKey("file.toml")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "file.toml"), key)

	// Paths with explicit networks
	key, err = ParseNodeKey(fmt.Sprintf("%s/file.toml", netBref))
	require.NoError(t, err)
	assert.Equal(t, PathKey(netBref, "file.toml"), key)

	_, err = ParseNodeKey("")
	assert.Error(t, err)
}

func TestNodeKeyAssetReroute(t *testing.T) {
	assetBref := AssetNamespace().Bref()
	netBref := NewBid(NilBid()).Bref()

	key, err := ParseNodeKey("net/dir/file.png")
	require.NoError(t, err)
	assert.Equal(t, PathKey(assetBref, "net/dir/file.png"), key)

	// Even an explicit network loses to the asset namespace.
	key, err = ParseNodeKey(fmt.Sprintf("%s/net/dir/file.png", netBref))
	require.NoError(t, err)
	assert.Equal(t, PathKey(assetBref, "net/dir/file.png"), key)

	// Codec extensions stay put.
	key, err = ParseNodeKey("net/dir/file.toml")
	require.NoError(t, err)
	assert.Equal(t, PathKey(DefaultBref, "net/dir/file.toml"), key)
}

func TestNodeKeyDisplayRoundTrip(t *testing.T) {
	netBref := NewBid(NilBid()).Bref()
	for _, key := range []NodeKey{
		BidKey(NewBid(NilBid())),
		BrefKey(netBref),
		IDKey(DefaultBref, "supremum"),
		IDKey(netBref, "supremum"),
		PathKey(netBref, "docs/file.md"),
	} {
		parsed, err := ParseNodeKey(key.String())
		require.NoError(t, err, key.String())
		assert.Equal(t, key, parsed, key.String())
	}
}

func TestNodeKeyRegularize(t *testing.T) {
	net := NewBid(NilBid())

	// Relative paths resolve against the owner's directory.
	key := PathKey(DefaultBref, "../common/file.md")
	regular := key.Regularize(net, "docs/owner.md")
	assert.Equal(t, PathKey(net.Bref(), "common/file.md"), regular)

	// Ids adopt the base network.
	id := IDKey(DefaultBref, "some-id")
	assert.Equal(t, IDKey(net.Bref(), "some-id"), id.Regularize(net, "docs/owner.md"))

	// Keys with explicit networks pass through.
	other := NewBid(NilBid()).Bref()
	anchored := PathKey(other, "./a.md")
	assert.Equal(t, PathKey(other, "a.md"), anchored.Regularize(net, "docs/owner.md"))
}
