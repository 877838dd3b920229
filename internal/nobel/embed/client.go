// Package embed implements the embedding client (C1): single and batch
// text-to-vector calls against a remote embedder service, with a
// deterministic local fallback. Grounded on the teacher's
// internal/embedding/client.go (OpenAI-compatible wire shape) and
// internal/rag/embedder/embedder.go (deterministic fallback, batch caps).
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"manifold/internal/nobel/nobelerr"
)

// maxBatchSize is the hard cap spec.md §4.1/§8 places on one batch call.
const maxBatchSize = 50

// Client is the embedding contract every caller depends on. All outputs are
// L2-normalized within 1e-4 of unit length.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Warmup(ctx context.Context) error
}

// httpClient calls a remote embedder service over HTTP using the OpenAI
// embeddings wire shape, matching the teacher's internal/embedding client.
type httpClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewHTTPClient builds a remote embedding client. baseURL should include the
// scheme and host; requests are POSTed to baseURL + "/embed_batch".
func NewHTTPClient(baseURL, apiKey, model string, dimension int, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &httpClient{baseURL: baseURL, apiKey: apiKey, model: model, dimension: dimension, httpClient: hc}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *httpClient) Dimension() int { return c.dimension }

func (c *httpClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *httpClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nobelerr.Wrap("embed", fmt.Errorf("%w: no input texts", nobelerr.ErrInvalidRequest))
	}
	if len(texts) > maxBatchSize {
		return nil, nobelerr.Wrap("embed", fmt.Errorf("%w: batch of %d exceeds max %d", nobelerr.ErrInvalidRequest, len(texts), maxBatchSize))
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, nobelerr.Wrap("embed", ctx.Err())
			}
		}
		out, retriable, err := c.doEmbedBatch(ctx, texts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retriable {
			break
		}
	}
	return nil, nobelerr.Wrap("embed", fmt.Errorf("%w: %v", nobelerr.ErrEmbeddingFailure, lastErr))
}

// doEmbedBatch performs a single attempt. The bool return indicates whether
// the failure is worth retrying (network error or 5xx).
func (c *httpClient) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, bool, error) {
	body, _ := json.Marshal(embedReq{Model: c.model, Input: texts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed_batch", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 5 {
		b, _ := io.ReadAll(resp.Body)
		return nil, true, fmt.Errorf("embedder 5xx: %s: %s", resp.Status, string(b))
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("embedder error: %s: %s", resp.Status, string(b))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	var er embedResp
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, false, fmt.Errorf("parse embedder response: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, false, fmt.Errorf("unexpected embedding count: got %d, want %d", len(er.Data), len(texts))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = normalize(er.Data[i].Embedding)
	}
	return out, false, nil
}

func (c *httpClient) Warmup(ctx context.Context) error {
	_, err := c.Embed(ctx, "ping")
	return err
}

// normalize rescales v to unit length, matching spec.md §4.1's ‖v‖≈1.0
// tolerance requirement. A zero vector is returned unchanged.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// deterministicClient hashes byte trigrams into a fixed-size vector and
// normalizes it, mirroring the teacher's embedder.NewDeterministic fallback
// used for tests and the EMBEDDER_URL-unset case.
type deterministicClient struct {
	dimension int
	seed      uint64
}

// NewDeterministic builds a local, reproducible embedding client requiring
// no network access. Used when EMBEDDER_URL is unset and in tests.
func NewDeterministic(dimension int, seed uint64) Client {
	return &deterministicClient{dimension: dimension, seed: seed}
}

func (d *deterministicClient) Dimension() int { return d.dimension }

func (d *deterministicClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, d.dimension)
	grams := trigrams(text)
	if len(grams) == 0 {
		grams = []string{text}
	}
	for _, g := range grams {
		h := fnv.New64a()
		_, _ = h.Write([]byte(g))
		sum := h.Sum64() ^ d.seed
		idx := int(sum % uint64(d.dimension))
		r := rand.New(rand.NewSource(int64(sum)))
		vec[idx] += float32(r.NormFloat64())
	}
	return normalize(vec), nil
}

func (d *deterministicClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > maxBatchSize {
		return nil, nobelerr.Wrap("embed", fmt.Errorf("%w: batch of %d exceeds max %d", nobelerr.ErrInvalidRequest, len(texts), maxBatchSize))
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := d.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (d *deterministicClient) Warmup(_ context.Context) error { return nil }

func trigrams(s string) []string {
	if len(s) < 3 {
		return nil
	}
	grams := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		grams = append(grams, s[i:i+3])
	}
	return grams
}
