package expand

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/taxonomy"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

func buildTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	yaml := []byte("justice:\n  - justice\n  - fairness\nmemory:\n  - memory\n  - remembrance\n")
	tax, err := taxonomy.Load(context.Background(), writeTempFile(t, yaml), stubTermEmbedder{})
	require.NoError(t, err)
	return tax
}

type stubTermEmbedder struct{}

func (stubTermEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch text {
	case "justice":
		return []float32{1, 0}, nil
	case "fairness":
		return []float32{0.9, 0.1}, nil
	case "memory":
		return []float32{0, 1}, nil
	case "remembrance":
		return []float32{0.1, 0.9}, nil
	default:
		return []float32{0.5, 0.5}, nil
	}
}

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestExpandIncludesTextualSeedsAndSimilarTerms(t *testing.T) {
	tax := buildTaxonomy(t)
	res := Expand(context.Background(), "how do laureates think about justice", tax, fixedEmbedder{vec: []float32{1, 0}}, Options{})
	require.Contains(t, res.Terms, "justice")
	require.Contains(t, res.Terms, "fairness")
	require.NotContains(t, res.Terms, "memory")
}

func TestExpandDowngradesToSeedsOnEmbeddingFailure(t *testing.T) {
	tax := buildTaxonomy(t)
	res := Expand(context.Background(), "how do laureates think about justice", tax, fixedEmbedder{err: assertErr}, Options{})
	require.Equal(t, []string{"fairness", "justice"}, res.Terms)
}

func TestExpandCapsAtMaxTerms(t *testing.T) {
	tax := buildTaxonomy(t)
	res := Expand(context.Background(), "justice", tax, fixedEmbedder{vec: []float32{1, 0}}, Options{MaxTerms: 1})
	require.Len(t, res.Terms, 1)
}

func TestExpandIsIdempotentGivenSameQueryEmbedding(t *testing.T) {
	tax := buildTaxonomy(t)
	first := Expand(context.Background(), "justice", tax, fixedEmbedder{vec: []float32{1, 0}}, Options{})
	second := Expand(context.Background(), "justice", tax, fixedEmbedder{vec: []float32{1, 0}}, Options{})
	require.Equal(t, first.Terms, second.Terms)
}

var assertErr = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
