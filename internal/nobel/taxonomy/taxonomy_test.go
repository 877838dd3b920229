package taxonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	// Deterministic stand-in: length-based vector, good enough to exercise
	// loading and dedup logic without a real embedding model.
	return []float32{float32(len(text))}, nil
}

const sampleYAML = `
justice:
  - justice
  - fairness
  - equality
memory:
  - memory
  - justice
  - remembrance
`

func TestLoadAssignsFirstThemeToDuplicateTerm(t *testing.T) {
	tax, err := loadFromBytes(context.Background(), []byte(sampleYAML), stubEmbedder{})
	require.NoError(t, err)

	// "justice" declared under both themes; alphabetically "justice" theme
	// sorts before "memory", so it should win.
	require.Contains(t, tax.byTheme["justice"], Term{Theme: "justice", Term: "justice", Embedding: []float32{7}})
	for _, term := range tax.byTheme["memory"] {
		require.NotEqual(t, "justice", term.Term)
	}
}

func TestThemesMatchingSubstringCaseInsensitive(t *testing.T) {
	tax, err := loadFromBytes(context.Background(), []byte(sampleYAML), stubEmbedder{})
	require.NoError(t, err)

	themes := tax.ThemesMatching("How do laureates think about JUSTICE and equality?")
	require.Contains(t, themes, "justice")
}

func TestLoadIdempotentUnderEqualInputBytes(t *testing.T) {
	first, err := loadFromBytes(context.Background(), []byte(sampleYAML), stubEmbedder{})
	require.NoError(t, err)
	second, err := loadFromBytes(context.Background(), []byte(sampleYAML), stubEmbedder{})
	require.NoError(t, err)

	require.Equal(t, len(first.Terms()), len(second.Terms()))
	require.Equal(t, first.terms, second.terms)
}
