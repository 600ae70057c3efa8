package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAnchor(t *testing.T) {
	assert.Equal(t, "hello-world", ToAnchor("Hello World"))
	assert.Equal(t, "leading-spaces", ToAnchor("  leading spaces"))
	assert.Equal(t, "trailing-spaces", ToAnchor("trailing spaces  "))
	assert.Equal(t, "capitals", ToAnchor("CAPITALS"))

	// Punctuation drops for HTML/URL compatibility.
	assert.Equal(t, "api--reference", ToAnchor("API & Reference"))
	assert.Equal(t, "section-21-overview", ToAnchor("Section 2.1: Overview"))
	assert.Equal(t, "step-1-install", ToAnchor("Step 1: Install"))
	assert.Equal(t, "whats-this", ToAnchor("What's this?"))
	assert.Equal(t, "hello-world", ToAnchor("Hello, World!"))

	// Identifier characters survive.
	assert.Equal(t, "my-id-123", ToAnchor("my-id-123"))
	assert.Equal(t, "asp_sarah_embodiment_rest", ToAnchor("asp_sarah_embodiment_rest"))
}

func TestToAnchorIdempotent(t *testing.T) {
	for _, s := range []string{"Hello World", "API & Reference", "my-id-123", ""} {
		once := ToAnchor(s)
		assert.Equal(t, once, ToAnchor(once))
	}
}

func TestAnchorPathNormalize(t *testing.T) {
	assert.Equal(t, "README.md", NewAnchorPath("./README.md").Normalize())
	assert.Equal(t, "../docs/file.md", NewAnchorPath("../docs/file.md").Normalize())
	assert.Equal(t, "docs/council/README.md", NewAnchorPath("/docs/council/README.md").Normalize())
	assert.Equal(t, "net/.dir#achor", NewAnchorPath("net/.dir/#achor").Normalize())
	assert.Equal(t, "#section", NewAnchorPath("#section").Normalize())
	assert.Equal(t, "b", NewAnchorPath("a/../b").Normalize())
}

func TestAnchorPathExt(t *testing.T) {
	assert.Equal(t, "md", NewAnchorPath("docs/file.md").Ext())
	assert.Equal(t, "png", NewAnchorPath("net/dir/file.png").Ext())
	assert.Equal(t, "", NewAnchorPath(".dir").Ext())
	assert.Equal(t, "", NewAnchorPath("net/dir").Ext())
	assert.Equal(t, "md", NewAnchorPath("file.md#frag").Ext())
}

func TestPathJoin(t *testing.T) {
	// Anchor children attach as fragments of the sink's document.
	assert.Equal(t, "a.md#intro", PathJoin("a.md", "intro", true))
	assert.Equal(t, "a.md#sub", PathJoin("a.md#intro", "sub", true))

	// Document children join with a separator.
	assert.Equal(t, "dir/a.md", PathJoin("dir", "a.md", false))
	assert.Equal(t, "a.md", PathJoin("", "a.md", false))

	// Empty ends fall back to the base.
	assert.Equal(t, "dir", PathJoin("dir", "", false))
	assert.Equal(t, "dir", PathJoin("dir/", "#", false))
}

func TestRelativePath(t *testing.T) {
	rel, err := RelativePath("a/b/c.md", "a")
	require.NoError(t, err)
	assert.Equal(t, "b/c.md", rel)

	rel, err = RelativePath("/a/b", "a/")
	require.NoError(t, err)
	assert.Equal(t, "b", rel)

	rel, err = RelativePath("a/b", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "", rel)

	rel, err = RelativePath("a/b", "")
	require.NoError(t, err)
	assert.Equal(t, "a/b", rel)

	_, err = RelativePath("other/b", "a")
	assert.Error(t, err)
	_, err = RelativePath("ab/c", "a")
	assert.Error(t, err)
}
