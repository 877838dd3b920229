// Package retrieve implements the retriever set (C7): a plain retriever and
// a thematic (multi-query) retriever, sharing a common interface. Grounded
// structurally on the teacher's internal/rag/retrieve package — the
// concurrent per-source fan-out of candidates.go and the merge-by-id
// pattern of fusion.go — generalized from two fixed sources (full-text +
// vector) to N dynamic per-term vector searches, per spec.md §4.7.
package retrieve

import (
	"context"
	"sort"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/intent"
)

// Request is the common input both retrievers accept.
type Request struct {
	Query          string
	TopK           int
	ScoreThreshold float64
	Filters        map[string]string
	MinReturn      int
	MaxReturn      int
}

// Retriever is the shared contract: retrieve(query, top_k, score_threshold,
// filters, min_return, max_return) -> [Chunk], per spec.md §4.7.
type Retriever interface {
	Retrieve(ctx context.Context, req Request) ([]corpus.ScoredChunk, error)
}

// SizingProfile bundles the top_k/min_return/max_return triple spec.md
// §4.7 assigns per subtype.
type SizingProfile struct {
	TopK      int
	MinReturn int
	MaxReturn int
}

// SizingProfileFor returns the sizing profile for a thematic subtype.
func SizingProfileFor(subtype intent.Subtype) SizingProfile {
	switch subtype {
	case intent.SubtypeSynthesis:
		return SizingProfile{TopK: 15, MinReturn: 5, MaxReturn: 12}
	case intent.SubtypeEnumerative:
		return SizingProfile{TopK: 20, MinReturn: 8, MaxReturn: 16}
	case intent.SubtypeAnalytical:
		return SizingProfile{TopK: 20, MinReturn: 8, MaxReturn: 14}
	case intent.SubtypeExploratory:
		return SizingProfile{TopK: 12, MinReturn: 4, MaxReturn: 10}
	default:
		return FactualRAGFallbackProfile
	}
}

// FactualRAGFallbackProfile is used when a factual-intent query falls
// through to RAG because no metadata rule matched.
var FactualRAGFallbackProfile = SizingProfile{TopK: 5, MinReturn: 3, MaxReturn: 5}

// sortAndCap applies the deterministic ranking spec.md §5 requires (score
// descending, chunk id ascending) and caps at maxReturn.
func sortAndCap(chunks []corpus.ScoredChunk, maxReturn int) []corpus.ScoredChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.ID < chunks[j].Chunk.ID
	})
	for i := range chunks {
		chunks[i].Rank = i
	}
	if maxReturn > 0 && len(chunks) > maxReturn {
		chunks = chunks[:maxReturn]
	}
	return chunks
}
