package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightSetOperations(t *testing.T) {
	ws1 := NewWeightSet()
	w1 := NewWeight()
	w1.SetSortKey(1)
	ws1.Set(Epistemic, w1)
	w2 := NewWeight()
	w2.SetSortKey(2)
	w2.SetDocPaths([]string{"path1"})
	ws1.Set(Section, w2)

	ws2 := NewWeightSet()
	w3 := NewWeight()
	w3.SetSortKey(3)
	ws2.Set(Epistemic, w3)
	w4 := NewWeight()
	w4.SetSortKey(4)
	ws2.Set(Pragmatic, w4)

	t.Run("union is right biased", func(t *testing.T) {
		union := ws1.Union(ws2)
		assert.Len(t, union.Weights, 3)
		epi, _ := union.Get(Epistemic)
		key, ok := epi.SortKey()
		require.True(t, ok)
		assert.Equal(t, uint16(3), key)
		sec, _ := union.Get(Section)
		key, _ = sec.SortKey()
		assert.Equal(t, uint16(2), key)
	})

	t.Run("intersection keeps left weights", func(t *testing.T) {
		inter := ws1.Intersection(ws2)
		assert.Len(t, inter.Weights, 1)
		epi, ok := inter.Get(Epistemic)
		require.True(t, ok)
		key, _ := epi.SortKey()
		assert.Equal(t, uint16(1), key)
	})

	t.Run("difference keeps left-only kinds", func(t *testing.T) {
		diff := ws1.Difference(ws2)
		assert.Len(t, diff.Weights, 1)
		sec, ok := diff.Get(Section)
		require.True(t, ok)
		assert.Equal(t, []string{"path1"}, sec.DocPaths())
	})

	t.Run("emptiness", func(t *testing.T) {
		assert.True(t, NewWeightSet().IsEmpty())
		assert.False(t, ws1.IsEmpty())
	})
}

func TestWeightDocPaths(t *testing.T) {
	w := NewWeight()
	assert.Empty(t, w.DocPaths())

	// Deprecated single-path spelling still reads.
	w.Set(WeightDocPath, "a.md")
	assert.Equal(t, []string{"a.md"}, w.DocPaths())

	// The list form wins and normalizes.
	w.SetDocPaths([]string{"b.md", "a.md"})
	assert.Equal(t, []string{"a.md", "b.md"}, w.DocPaths())
	assert.False(t, w.Contains(WeightDocPath))
}

func TestWeightEqual(t *testing.T) {
	a := NewWeight()
	a.SetSortKey(1)
	a.Set("note", "x")

	b := NewWeight()
	b.Set("note", "x")
	b.SetSortKey(1)

	assert.True(t, a.Equal(b))

	b.Set("note", "y")
	assert.False(t, a.Equal(b))

	// Integral representations normalize before comparison.
	c := Weight{Payload: map[string]any{WeightSortKey: 1}}
	d := Weight{Payload: map[string]any{WeightSortKey: int64(1)}}
	assert.True(t, c.Equal(d))
}

func TestWeightKindParsing(t *testing.T) {
	for input, want := range map[string]WeightKind{
		"epistemic":  Epistemic,
		"Subsection": Section,
		"section":    Section,
		"PRAGMATIC":  Pragmatic,
	} {
		kind, err := ParseWeightKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, kind)
	}
	_, err := ParseWeightKind("unknown")
	assert.Error(t, err)
}
