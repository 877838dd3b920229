package retrieve

import (
	"context"
	"fmt"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/embed"
	"manifold/internal/nobel/nobelerr"
	"manifold/internal/nobel/vectorstore"
)

// thresholdBackoff is the single-step threshold relaxation spec.md §4.7
// describes when too few results pass the initial score_threshold.
const thresholdBackoff = 0.75

// PlainRetriever embeds the query once, searches once, and enforces
// min_return by relaxing the threshold exactly one step, per spec.md §4.7
// "Plain retriever".
type PlainRetriever struct {
	Embedder embed.Client
	Store    vectorstore.Store
}

func (p *PlainRetriever) Retrieve(ctx context.Context, req Request) ([]corpus.ScoredChunk, error) {
	vec, err := p.Embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, nobelerr.Wrap("retrieve", fmt.Errorf("%w: %v", nobelerr.ErrEmbeddingFailure, err))
	}

	chunks, err := p.Store.Search(ctx, vec, req.TopK, req.ScoreThreshold, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(chunks) < req.MinReturn {
		relaxed := req.ScoreThreshold * thresholdBackoff
		retried, err := p.Store.Search(ctx, vec, req.TopK, relaxed, req.Filters)
		if err != nil {
			return nil, err
		}
		if len(retried) > len(chunks) {
			chunks = retried
		}
	}
	return sortAndCap(chunks, req.MaxReturn), nil
}
