// Package expand implements the keyword expander (C6): expanding a thematic
// query into a ranked set of related terms via the keyword taxonomy and
// embedding-space similarity, per spec.md §4.6.
package expand

import (
	"context"
	"math"
	"sort"
	"strings"

	"manifold/internal/nobel/taxonomy"
)

const (
	defaultSimilarityThreshold = 0.35
	defaultMaxTerms            = 10
)

// Embedder is the minimal embedding contract expansion needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is the expander's output: the ranked term set and each term's
// similarity to the query embedding (seed terms carry similarity 1.0, since
// they matched textually rather than by cosine similarity).
type Result struct {
	Terms        []string
	Similarities map[string]float64
}

// Options overrides the expander's defaults; a zero Options uses the
// spec.md §4.6 defaults.
type Options struct {
	SimilarityThreshold float64
	MaxTerms            int
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = defaultSimilarityThreshold
	}
	if o.MaxTerms == 0 {
		o.MaxTerms = defaultMaxTerms
	}
	return o
}

// Expand runs the four-step algorithm from spec.md §4.6. If embedding the
// query fails, expansion downgrades to step 2 only (seed terms from
// textually-matched themes), per the spec's determinism note.
func Expand(ctx context.Context, query string, tax *taxonomy.Taxonomy, embedder Embedder, opt Options) Result {
	opt = opt.withDefaults()

	seeds := map[string]bool{}
	for _, theme := range tax.ThemesMatching(query) {
		for _, term := range tax.TermsInTheme(theme) {
			seeds[term.Term] = true
		}
	}

	similarities := map[string]float64{}
	for term := range seeds {
		similarities[term] = 1.0
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err == nil {
		for _, term := range tax.Terms() {
			sim := cosine(queryVec, term.Embedding)
			if sim >= opt.SimilarityThreshold {
				if existing, ok := similarities[term.Term]; !ok || sim > existing {
					similarities[term.Term] = sim
				}
			}
		}
	}

	terms := make([]string, 0, len(similarities))
	for t := range similarities {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if similarities[terms[i]] != similarities[terms[j]] {
			return similarities[terms[i]] > similarities[terms[j]]
		}
		return strings.ToLower(terms[i]) < strings.ToLower(terms[j])
	})
	if len(terms) > opt.MaxTerms {
		terms = terms[:opt.MaxTerms]
	}

	out := make(map[string]float64, len(terms))
	for _, t := range terms {
		out[t] = similarities[t]
	}
	return Result{Terms: terms, Similarities: out}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
