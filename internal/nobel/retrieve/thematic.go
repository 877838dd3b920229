package retrieve

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/embed"
	"manifold/internal/nobel/nobelerr"
	"manifold/internal/nobel/vectorstore"
)

// fanOutLimit bounds per-query concurrency, per spec.md §5's default F=8.
const fanOutLimit = 8

// ThematicRetriever issues one k-NN search per term in an expanded term
// set (plus the original query), merging results by chunk id and keeping
// the maximum score across sources, per spec.md §4.7 "Thematic retriever".
type ThematicRetriever struct {
	Embedder embed.Client
	Store    vectorstore.Store
}

// Terms is the expanded term set (C6 output) union the original query;
// callers build this once per query and pass it alongside Request.
type Terms struct {
	Query string
	Extra []string
}

func (terms Terms) all() []string {
	out := make([]string, 0, len(terms.Extra)+1)
	seen := map[string]bool{terms.Query: true}
	out = append(out, terms.Query)
	for _, t := range terms.Extra {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// merged tracks, per chunk id, the best score seen so far and which term
// produced it.
type merged struct {
	chunk      corpus.Chunk
	bestScore  float64
	bestSource string
}

func (r *ThematicRetriever) RetrieveExpanded(ctx context.Context, req Request, terms Terms) ([]corpus.ScoredChunk, error) {
	queries := terms.all()

	perQueryK := int(math.Ceil(float64(req.TopK)*1.5/float64(len(queries)))) + 2

	vectors, err := r.embedAll(ctx, queries)
	if err != nil {
		return nil, nobelerr.Wrap("retrieve", fmt.Errorf("%w: %v", nobelerr.ErrEmbeddingFailure, err))
	}

	type termResult struct {
		term   string
		chunks []corpus.ScoredChunk
	}
	results := make([]termResult, len(queries))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(fanOutLimit)
	for i, term := range queries {
		i, term := i, term
		vec := vectors[i]
		group.Go(func() error {
			chunks, err := r.Store.Search(gctx, vec, perQueryK, req.ScoreThreshold, req.Filters)
			if err != nil {
				return err
			}
			results[i] = termResult{term: term, chunks: chunks}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	byID := map[string]*merged{}
	var order []string
	for _, r := range results {
		for _, sc := range r.chunks {
			existing, ok := byID[sc.Chunk.ID]
			if !ok {
				byID[sc.Chunk.ID] = &merged{chunk: sc.Chunk, bestScore: sc.Score, bestSource: r.term}
				order = append(order, sc.Chunk.ID)
				continue
			}
			if sc.Score > existing.bestScore {
				existing.bestScore = sc.Score
				existing.bestSource = r.term
			}
		}
	}

	out := make([]corpus.ScoredChunk, 0, len(order))
	for _, id := range order {
		m := byID[id]
		if m.bestScore < req.ScoreThreshold {
			continue
		}
		out = append(out, corpus.ScoredChunk{Chunk: m.chunk, Score: m.bestScore, SourceTerm: m.bestSource})
	}

	if len(out) < req.MinReturn {
		relaxed := req.ScoreThreshold * thresholdBackoff
		var retried []corpus.ScoredChunk
		for _, id := range order {
			m := byID[id]
			if m.bestScore >= relaxed {
				retried = append(retried, corpus.ScoredChunk{Chunk: m.chunk, Score: m.bestScore, SourceTerm: m.bestSource})
			}
		}
		if len(retried) > len(out) {
			out = retried
		}
	}

	return sortAndCap(out, req.MaxReturn), nil
}

func (r *ThematicRetriever) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= 50 {
		return r.Embedder.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := r.Embedder.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
