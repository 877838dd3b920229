// Package vectorstore implements the vector store client (C2): k-NN search
// with payload filters and a score threshold. Grounded on the teacher's
// internal/persistence/databases package (qdrant_vector.go for the gRPC
// client, memory_vector.go for the in-process test double).
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/nobelerr"
)

// AllowedFilterFields is the conjunctive equality predicate set spec.md
// §4.2 allows. Any other filter key is rejected with ErrInvalidFilter.
var AllowedFilterFields = map[string]bool{
	"laureate":    true,
	"country":     true,
	"gender":      true,
	"year":        true,
	"source_type": true,
	"category":    true,
}

// Store is the vector search contract. score_threshold must be in [0,1];
// filters is a conjunction of equality predicates over indexed payload
// fields.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filters map[string]string) ([]corpus.ScoredChunk, error)
}

// ValidateFilters rejects any filter key not in AllowedFilterFields.
func ValidateFilters(filters map[string]string) error {
	for k := range filters {
		if !AllowedFilterFields[k] {
			return nobelerr.Wrap("vectorstore", fmt.Errorf("%w: unsupported filter field %q", nobelerr.ErrInvalidFilter, k))
		}
	}
	return nil
}

// sortByScoreThenID applies the deterministic tie-break spec.md §4.2 and
// §5 require: score descending, chunk id ascending.
func sortByScoreThenID(chunks []corpus.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.ID < chunks[j].Chunk.ID
	})
	for i := range chunks {
		chunks[i].Rank = i
	}
}
