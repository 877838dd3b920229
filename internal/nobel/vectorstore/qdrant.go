package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/nobelerr"
)

// chunkIDNamespace roots the UUID-v5 derivation spec.md §3 requires: "the
// point id is a deterministic function of chunk id (UUID-v5 over chunk
// id)". Grounded on the teacher's qdrant_vector.go, which uses the same
// uuid.NewSHA1(uuid.NameSpaceOID, ...) derivation for ids that aren't
// already UUIDs; here it is the primary id scheme, not a fallback.
var chunkIDNamespace = uuid.NameSpaceOID

// PointID derives the deterministic Qdrant point id for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(chunkID)).String()
}

const originalIDField = "_chunk_id"

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrant connects to a Qdrant instance over its gRPC API (port 6334 by
// default) and ensures the configured collection exists, creating it with
// the requested distance metric if not. DSN accepts an optional api_key
// query parameter, matching the teacher's DSN convention.
func NewQdrant(dsn, collection string, dimension int, metric string) (Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorstore: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: invalid port in dsn: %w", err)
	}
	qcfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		qcfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		qcfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create client: %w", err)
	}
	store := &qdrantStore{client: client, collection: collection, dimension: dimension}
	if err := store.ensureCollection(context.Background(), metric); err != nil {
		client.Close()
		return nil, fmt.Errorf("vectorstore: ensure collection: %w", err)
	}
	return store, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context, metric string) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

// Upsert stores one chunk's vector and payload under its deterministic
// point id.
func (q *qdrantStore) Upsert(ctx context.Context, chunk corpus.Chunk, vector []float32) error {
	payload := qdrant.NewValueMap(map[string]any{
		originalIDField: chunk.ID,
		"laureate":      chunk.LaureateName,
		"country":       chunk.Country,
		"gender":        chunk.Gender,
		"year":          strconv.Itoa(chunk.Year),
		"source_type":   string(chunk.SourceType),
		"category":      chunk.Category,
		"text":          chunk.Text,
		"chunk_index":   strconv.Itoa(chunk.Index),
	})
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(chunk.ID)),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		}},
	})
	return err
}

func (q *qdrantStore) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filters map[string]string) ([]corpus.ScoredChunk, error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	var queryFilter *qdrant.Filter
	if len(filters) > 0 {
		must := make([]*qdrant.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(topK)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, nobelerr.Wrap("vectorstore", fmt.Errorf("%w: %v", nobelerr.ErrStoreUnavailable, err))
	}

	out := make([]corpus.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		score := float64(hit.Score)
		if score < scoreThreshold {
			continue
		}
		chunk := chunkFromPayload(hit.Id.GetUuid(), hit.Payload)
		out = append(out, corpus.ScoredChunk{Chunk: chunk, Score: score})
	}
	sortByScoreThenID(out)
	return out, nil
}

func chunkFromPayload(pointUUID string, payload map[string]*qdrant.Value) corpus.Chunk {
	get := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	id := get(originalIDField)
	if id == "" {
		id = pointUUID
	}
	year, _ := strconv.Atoi(get("year"))
	idx, _ := strconv.Atoi(get("chunk_index"))
	return corpus.Chunk{
		ID:           id,
		SourceType:   corpus.SourceType(get("source_type")),
		Index:        idx,
		Text:         get("text"),
		LaureateName: get("laureate"),
		Year:         year,
		Country:      get("country"),
		Gender:       get("gender"),
		Category:     get("category"),
	}
}

// Close releases the underlying gRPC connection.
func (q *qdrantStore) Close() error {
	return q.client.Close()
}
