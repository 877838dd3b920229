package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/audit"
	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/embed"
	"manifold/internal/nobel/llmclient"
	"manifold/internal/nobel/metadata"
	"manifold/internal/nobel/metrics"
	"manifold/internal/nobel/taxonomy"
	"manifold/internal/nobel/vectorstore"
)

const sampleMetadataJSON = `[
	{"year_awarded": 1993, "category": "Literature", "laureates": [
		{"full_name": "Toni Morrison", "last_name": "Morrison", "gender": "female", "country": "United States", "prize_motivation": "who in novels characterized by visionary force"}
	]},
	{"year_awarded": 2017, "category": "Literature", "laureates": [
		{"full_name": "Kazuo Ishiguro", "last_name": "Ishiguro", "gender": "male", "country": "United Kingdom", "prize_motivation": "who has uncovered the abyss beneath our illusory sense of connection"}
	]},
	{"year_awarded": 1901, "category": "Literature", "laureates": [
		{"full_name": "Sully Prudhomme", "last_name": "Prudhomme", "gender": "male", "country": "France", "prize_motivation": "in special recognition of his poetic composition"}
	]}
]`

const sampleTaxonomyYAML = `
justice:
  - justice
  - fairness
memory:
  - memory
  - remembrance
`

func buildStore(t *testing.T) *metadata.Store {
	t.Helper()
	store, err := metadata.LoadBytes([]byte(sampleMetadataJSON))
	require.NoError(t, err)
	return store
}

func buildTaxonomy(t *testing.T, embedder taxonomy.Embedder) *taxonomy.Taxonomy {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTaxonomyYAML), 0o644))
	tax, err := taxonomy.Load(context.Background(), path, embedder)
	require.NoError(t, err)
	return tax
}

func buildService(t *testing.T, seedChunks bool) (*Service, string) {
	t.Helper()
	embedder := embed.NewDeterministic(8, 7)
	store := buildStore(t)
	tax := buildTaxonomy(t, embedder)
	mem := vectorstore.NewMemory()

	if seedChunks {
		ctx := context.Background()
		seed := func(id, laureate string, year int, text string) {
			vec, err := embedder.Embed(ctx, text)
			require.NoError(t, err)
			mem.Seed(corpus.Chunk{
				ID:           id,
				SourceType:   corpus.SourceNobelLecture,
				Text:         text,
				LaureateName: laureate,
				Year:         year,
			}, vec)
		}
		seed("c1", "Toni Morrison", 1993, "Justice and memory intertwine in the laureate's reflection on language and power.")
		seed("c2", "Kazuo Ishiguro", 2017, "The laureate explores how memory shapes identity across a fading empire.")
	}

	auditDir := t.TempDir()
	auditLogger := audit.New(audit.Options{Dir: auditDir, Environment: "test"})
	t.Cleanup(func() { _ = auditLogger.Close() })

	stub := &llmclient.StubProvider{Response: "Here is what the laureates say about justice."}

	svc := New(store, tax, embedder, mem, stub, auditLogger)
	return svc, auditDir
}

func TestQueryFactualMetadataHitSkipsRAG(t *testing.T) {
	svc, _ := buildService(t, false)
	resp, err := svc.Query(context.Background(), Request{Query: "Who won the Nobel Prize in Literature in 1993?"})
	require.NoError(t, err)
	require.Equal(t, "metadata", resp.AnswerType)
	require.Contains(t, resp.Answer, "Toni Morrison")
	require.Empty(t, resp.Sources)
}

func TestQueryFactualAwardYear(t *testing.T) {
	svc, _ := buildService(t, false)
	resp, err := svc.Query(context.Background(), Request{Query: "What year did Kazuo Ishiguro win?"})
	require.NoError(t, err)
	require.Equal(t, "metadata", resp.AnswerType)
	require.Contains(t, resp.Answer, "2017")
}

func TestQueryAmbiguousProducesNoRetrievalNoLLM(t *testing.T) {
	svc, _ := buildService(t, false)
	resp, err := svc.Query(context.Background(), Request{Query: "Tell me about the Nobel Prize."})
	require.NoError(t, err)
	require.Equal(t, "ambiguous", resp.AnswerType)
}

func TestQueryEmptyIsInvalidRequest(t *testing.T) {
	svc, _ := buildService(t, false)
	_, err := svc.Query(context.Background(), Request{Query: "   "})
	require.Error(t, err)
}

func TestQueryThematicSynthesisRunsRAG(t *testing.T) {
	svc, _ := buildService(t, true)
	resp, err := svc.Query(context.Background(), Request{Query: "How do laureates think about justice and memory?", ScoreThreshold: 0.01})
	require.NoError(t, err)
	require.Equal(t, "rag", resp.AnswerType)
	require.Equal(t, "thematic", resp.Intent)
	require.GreaterOrEqual(t, len(resp.Sources), 1)
}

func TestQueryNoEvidenceSkipsLLM(t *testing.T) {
	svc, _ := buildService(t, false) // no chunks seeded
	resp, err := svc.Query(context.Background(), Request{Query: "How do laureates think about justice?"})
	require.NoError(t, err)
	require.Equal(t, "no_evidence", resp.AnswerType)
}

func TestQueryWithNilMetricsRecorderDoesNotPanic(t *testing.T) {
	svc, _ := buildService(t, false)
	require.Nil(t, svc.Metrics)
	require.NotPanics(t, func() {
		_, err := svc.Query(context.Background(), Request{Query: "What year did Kazuo Ishiguro win?"})
		require.NoError(t, err)
	})
}

func TestQueryRecordsMetricsWhenAttached(t *testing.T) {
	svc, _ := buildService(t, false)
	reg := prometheus.NewRegistry()
	svc.Metrics = metrics.New(reg)

	_, err := svc.Query(context.Background(), Request{Query: "What year did Kazuo Ishiguro win?"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "nobel_queries_total" {
			found = true
		}
	}
	require.True(t, found)
}

func TestQueryProducesExactlyOneAuditLine(t *testing.T) {
	svc, auditDir := buildService(t, false)
	resp, err := svc.Query(context.Background(), Request{Query: "What year did Kazuo Ishiguro win?"})
	require.NoError(t, err)

	paths, err := filepath.Glob(filepath.Join(auditDir, "audit_log_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()

	var lines []audit.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e audit.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 1)
	require.Equal(t, resp.QueryID, lines[0].QueryID)
	require.Equal(t, "metadata", lines[0].AnswerType)
}
