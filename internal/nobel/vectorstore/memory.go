package vectorstore

import (
	"context"
	"math"
	"strconv"
	"sync"

	"manifold/internal/nobel/corpus"
)

type memoryPoint struct {
	chunk  corpus.Chunk
	vector []float32
}

// memoryStore is an in-process linear-scan vector store, mirroring the
// teacher's memory_vector.go. Used in tests; cmd/nobelquery always
// connects to Qdrant.
type memoryStore struct {
	mu     sync.RWMutex
	points []memoryPoint
}

// NewMemory builds an empty in-process vector store.
func NewMemory() *memoryStoreHandle {
	return &memoryStoreHandle{store: &memoryStore{}}
}

// memoryStoreHandle exposes both the Store interface and the Seed method
// test setup needs, without putting Seed on the Store contract itself.
type memoryStoreHandle struct {
	store *memoryStore
}

// Seed adds a chunk and its vector to the store.
func (h *memoryStoreHandle) Seed(chunk corpus.Chunk, vector []float32) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	vec := make([]float32, len(vector))
	copy(vec, vector)
	h.store.points = append(h.store.points, memoryPoint{chunk: chunk, vector: vec})
}

// Search implements Store.
func (h *memoryStoreHandle) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filters map[string]string) ([]corpus.ScoredChunk, error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}
	var out []corpus.ScoredChunk
	for _, p := range h.store.points {
		if !matchesFilters(p.chunk, filters) {
			continue
		}
		score := cosine(vector, p.vector)
		if score < scoreThreshold {
			continue
		}
		out = append(out, corpus.ScoredChunk{Chunk: p.chunk, Score: score})
	}
	sortByScoreThenID(out)
	if len(out) > topK {
		out = out[:topK]
		for i := range out {
			out[i].Rank = i
		}
	}
	return out, nil
}

func matchesFilters(c corpus.Chunk, filters map[string]string) bool {
	for k, v := range filters {
		var field string
		switch k {
		case "laureate":
			field = c.LaureateName
		case "country":
			field = c.Country
		case "gender":
			field = c.Gender
		case "year":
			field = strconv.Itoa(c.Year)
		case "source_type":
			field = string(c.SourceType)
		case "category":
			field = c.Category
		}
		if field != v {
			return false
		}
	}
	return true
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
