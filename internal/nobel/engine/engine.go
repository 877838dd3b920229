// Package engine implements the query engine (C10): the orchestrator that
// wires C1-C9 together per spec.md §4.10's numbered procedure and state
// machine. Grounded structurally on the teacher's internal/rag/service
// package: a Service struct holding backend handles plus injected
// Logger/Metrics/Clock, a functional-options constructor, and stage
// timing recorded around each external call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"manifold/internal/nobel/audit"
	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/embed"
	"manifold/internal/nobel/expand"
	"manifold/internal/nobel/factual"
	"manifold/internal/nobel/intent"
	"manifold/internal/nobel/llmclient"
	"manifold/internal/nobel/metadata"
	"manifold/internal/nobel/metrics"
	"manifold/internal/nobel/nobelerr"
	"manifold/internal/nobel/prompt"
	"manifold/internal/nobel/retrieve"
	"manifold/internal/nobel/taxonomy"
	"manifold/internal/nobel/vectorstore"
)

// Request is the inbound Query API shape from spec.md §6.
type Request struct {
	Query          string
	ModelID        string
	TopK           int
	ScoreThreshold float64
	Filters        map[string]string
	Source         string // api, cli, web; defaults to "api"
}

// MetadataAnswer is the structured metadata payload spec.md §6 describes.
type MetadataAnswer struct {
	Laureate        string `json:"laureate,omitempty"`
	YearAwarded     int    `json:"year_awarded,omitempty"`
	Country         string `json:"country,omitempty"`
	Category        string `json:"category,omitempty"`
	PrizeMotivation string `json:"prize_motivation,omitempty"`
}

// Source is one cited passage in a RAG response.
type Source struct {
	Laureate    string  `json:"laureate"`
	YearAwarded int     `json:"year_awarded"`
	SourceType  string  `json:"source_type"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
	ChunkID     string  `json:"chunk_id"`
}

// Response is the outbound shape, covering both metadata and RAG answer
// types plus the ambiguous/empty/error cases, per spec.md §6 and §7.
type Response struct {
	AnswerType     string          `json:"answer_type"`
	Answer         string          `json:"answer"`
	MetadataAnswer *MetadataAnswer `json:"metadata_answer,omitempty"`
	Sources        []Source        `json:"sources"`
	Intent         string          `json:"intent,omitempty"`
	Trace          []string        `json:"trace,omitempty"`
	QueryID        string          `json:"query_id"`
}

// Clock abstracts time for deterministic stage-timing tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts query id generation for deterministic tests.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator implements IDGenerator using google/uuid v4.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

const (
	defaultPromptTokenBudget = 3000
	defaultQueryDeadline     = 30 * time.Second
	embedTimeout             = 10 * time.Second
	vectorSearchTimeout      = 10 * time.Second
	llmTimeout               = 25 * time.Second
)

var punctuationOnly = regexp.MustCompile(`^[\s[:punct:]]*$`)

// Service orchestrates every component into the single Query entry point.
type Service struct {
	Laureates *metadata.Store
	Taxonomy  *taxonomy.Taxonomy
	Embedder  embed.Client
	Store     vectorstore.Store
	LLM       llmclient.Provider

	LLMModel       string
	LLMTemperature float64
	PromptBudget   int
	QueryDeadline  time.Duration

	Audit   *audit.Logger
	Metrics *metrics.Recorder
	Clock   Clock
	IDs     IDGenerator
}

// Option configures a Service during construction.
type Option func(*Service)

// WithClock overrides the clock used for stage timing.
func WithClock(c Clock) Option { return func(s *Service) { s.Clock = c } }

// WithIDGenerator overrides query id generation.
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.IDs = g } }

// WithPromptBudget overrides the default prompt token budget.
func WithPromptBudget(n int) Option { return func(s *Service) { s.PromptBudget = n } }

// WithQueryDeadline overrides the default per-query deadline.
func WithQueryDeadline(d time.Duration) Option { return func(s *Service) { s.QueryDeadline = d } }

// WithMetrics attaches a Prometheus recorder. Omitting this option leaves
// Metrics nil, and every Recorder method is a no-op on a nil receiver.
func WithMetrics(m *metrics.Recorder) Option { return func(s *Service) { s.Metrics = m } }

// New builds a Service from its required collaborators.
func New(laureates *metadata.Store, tax *taxonomy.Taxonomy, embedder embed.Client, store vectorstore.Store, llm llmclient.Provider, auditLogger *audit.Logger, opts ...Option) *Service {
	s := &Service{
		Laureates:      laureates,
		Taxonomy:       tax,
		Embedder:       embedder,
		Store:          store,
		LLM:            llm,
		LLMModel:       "claude-3-7-sonnet-latest",
		LLMTemperature: 0.2,
		PromptBudget:   defaultPromptTokenBudget,
		QueryDeadline:  defaultQueryDeadline,
		Audit:          auditLogger,
		Clock:          SystemClock{},
		IDs:            UUIDGenerator{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Query runs the full numbered procedure from spec.md §4.10.
func (s *Service) Query(ctx context.Context, req Request) (Response, error) {
	queryID := s.IDs.NewID()
	source := req.Source
	if source == "" {
		source = "api"
	}

	ctx, cancel := context.WithTimeout(ctx, s.QueryDeadline)
	defer cancel()

	totalStart := s.Clock.Now()
	s.Audit.Start(queryID, req.Query, source)

	resp, err := s.run(ctx, queryID, req)

	errType := ""
	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.TotalProcessingTimeMs = float64(s.Clock.Now().Sub(totalStart).Milliseconds())
		if err != nil {
			e.ErrorOccurred = true
			e.ErrorMessage = err.Error()
			e.ErrorType = errorType(err)
			errType = e.ErrorType
		}
	})
	s.Audit.Complete(queryID)
	s.Metrics.ObserveStage("total", totalStart)
	s.Metrics.ObserveQuery(resp.AnswerType, errType, len(resp.Sources), 0)

	resp.QueryID = queryID
	return resp, err
}

func (s *Service) run(ctx context.Context, queryID string, req Request) (Response, error) {
	trimmed := strings.TrimSpace(req.Query)
	if trimmed == "" {
		return Response{}, nobelerr.Wrap("classify", nobelerr.ErrInvalidRequest)
	}
	if punctuationOnly.MatchString(trimmed) {
		resp := ambiguousResponse()
		s.Audit.Mutate(queryID, func(e *audit.Entry) { e.AnswerType = resp.AnswerType })
		return resp, nil
	}

	classifyResult, err := intent.Classify(req.Query, s.Laureates.All())
	if err != nil {
		if errors.Is(err, nobelerr.ErrAmbiguousIntent) {
			resp := ambiguousResponse()
			s.Audit.Mutate(queryID, func(e *audit.Entry) {
				e.AnswerType = resp.AnswerType
				e.DecisionTrace = []string{"classifier raised AmbiguousIntent"}
			})
			return resp, nil
		}
		return Response{}, err
	}

	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.Intent = string(classifyResult.Intent)
		e.Confidence = classifyResult.Confidence
		e.MatchedTerms = classifyResult.MatchedTerms
		e.ScopedEntity = classifyResult.ScopedEntity
		e.DecisionTrace = classifyResult.Trace
	})

	if classifyResult.Intent == intent.IntentFactual {
		if result := factual.Handle(req.Query, s.Laureates.All()); result != nil {
			resp := metadataResponse(*result)
			s.Audit.Mutate(queryID, func(e *audit.Entry) {
				e.AnswerType = resp.AnswerType
				e.FinalAnswer = resp.Answer
			})
			return resp, nil
		}
	}

	// A scoped entity narrows retrieval to that laureate's chunks unless the
	// caller already set a laureate filter.
	if classifyResult.ScopedEntity != "" {
		if _, set := req.Filters["laureate"]; !set {
			filters := map[string]string{"laureate": classifyResult.ScopedEntity}
			for k, v := range req.Filters {
				filters[k] = v
			}
			req.Filters = filters
		}
	}

	var (
		chunks        []corpus.ScoredChunk
		subtype       intent.Subtype
		expansion     expand.Result
		retrievalMode string
	)

	switch classifyResult.Intent {
	case intent.IntentThematic:
		subtypeResult := intent.DetectSubtype(req.Query)
		subtype = subtypeResult.Subtype
		s.Audit.Mutate(queryID, func(e *audit.Entry) {
			e.ThematicSubtype = string(subtype)
			e.SubtypeCues = subtypeResult.Cues
		})

		expCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		expansion = expand.Expand(expCtx, req.Query, s.Taxonomy, s.Embedder, expand.Options{})
		cancel()
		s.Audit.Mutate(queryID, func(e *audit.Entry) {
			e.ExpandedTerms = expansion.Terms
			e.TermSimilarities = expansion.Similarities
			e.ExpansionMethod = "thematic"
		})

		profile := retrieve.SizingProfileFor(subtype)
		retrieveReq := applyOverrides(profile, req)
		thematic := &retrieve.ThematicRetriever{Embedder: s.Embedder, Store: s.Store}
		retCtx, cancel := context.WithTimeout(ctx, vectorSearchTimeout)
		chunks, err = thematic.RetrieveExpanded(retCtx, retrieveReq, retrieve.Terms{Query: req.Query, Extra: expansion.Terms})
		cancel()
		retrievalMode = "thematic"

	default:
		profile := retrieve.FactualRAGFallbackProfile
		retrieveReq := applyOverrides(profile, req)
		plain := &retrieve.PlainRetriever{Embedder: s.Embedder, Store: s.Store}
		retCtx, cancel := context.WithTimeout(ctx, vectorSearchTimeout)
		chunks, err = plain.Retrieve(retCtx, retrieveReq)
		cancel()
		retrievalMode = "plain"
	}

	if err != nil {
		return Response{}, err
	}

	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.RetrievalMethod = retrievalMode
		e.FiltersApplied = req.Filters
		e.ChunkCount = len(chunks)
		e.RetrievalScores = scores(chunks)
		e.ChunksRetrieved = chunkRefs(chunks)
	})

	if len(chunks) == 0 {
		resp := noEvidenceResponse()
		s.Audit.Mutate(queryID, func(e *audit.Entry) {
			e.AnswerType = resp.AnswerType
			e.FinalAnswer = resp.Answer
		})
		return resp, nil
	}

	built := prompt.Build(req.Query, classifyResult.Intent, subtype, chunks, s.PromptBudget)
	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.PromptTemplate = built.TemplateName
		e.FinalPrompt = built.RenderedPrompt
		e.ContextLength = built.ContextCharLength
	})

	model := req.ModelID
	if model == "" {
		model = s.LLMModel
	}

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	completion, err := s.LLM.Complete(llmCtx, built.RenderedPrompt, model, s.LLMTemperature)
	cancel()
	if err != nil {
		return Response{}, err
	}

	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.LLMModel = model
		e.LLMTemperature = s.LLMTemperature
		e.PromptTokens = completion.PromptTokens
		e.CompletionTokens = completion.CompletionTokens
		e.TotalTokens = completion.TotalTokens
		e.EstimatedCostUSD = completion.CostUSD
		e.LLMResponse = completion.Text
	})

	resp := Response{
		AnswerType: "rag",
		Answer:     completion.Text,
		Sources:    toSources(chunks),
		Intent:     string(classifyResult.Intent),
		Trace:      classifyResult.Trace,
	}
	s.Audit.Mutate(queryID, func(e *audit.Entry) {
		e.AnswerType = resp.AnswerType
		e.FinalAnswer = resp.Answer
		e.SourcesUsed = chunkRefs(chunks)
	})
	return resp, nil
}

// defaultScoreThreshold is the source's fixed score_threshold (spec.md
// §9's Open Question), used whenever the caller leaves it unset.
// SizingProfile carries no threshold, so every subtype shares this value.
const defaultScoreThreshold = 0.25

func applyOverrides(profile retrieve.SizingProfile, req Request) retrieve.Request {
	out := retrieve.Request{
		Query:          req.Query,
		TopK:           profile.TopK,
		ScoreThreshold: defaultScoreThreshold,
		Filters:        req.Filters,
		MinReturn:      profile.MinReturn,
		MaxReturn:      profile.MaxReturn,
	}
	if req.TopK > 0 {
		out.TopK = req.TopK
	}
	if req.ScoreThreshold > 0 {
		out.ScoreThreshold = req.ScoreThreshold
	}
	return out
}

func metadataResponse(result factual.Result) Response {
	return Response{
		AnswerType: "metadata",
		Answer:     result.Answer,
		Sources:    []Source{},
		Intent:     string(intent.IntentFactual),
		Trace:      []string{fmt.Sprintf("matched factual rule %q", result.RuleName)},
	}
}

func ambiguousResponse() Response {
	return Response{
		AnswerType: "ambiguous",
		Answer:     "I'm not sure what you're asking. Could you rephrase your question about a Nobel laureate, prize year, or theme?",
		Sources:    []Source{},
	}
}

func noEvidenceResponse() Response {
	return Response{
		AnswerType: "no_evidence",
		Answer:     "I couldn't find supporting passages for that question. Try rephrasing or narrowing it to a specific laureate or theme.",
		Sources:    []Source{},
	}
}

func toSources(chunks []corpus.ScoredChunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, sc := range chunks {
		out = append(out, Source{
			Laureate:    sc.Chunk.LaureateName,
			YearAwarded: sc.Chunk.Year,
			SourceType:  string(sc.Chunk.SourceType),
			TextSnippet: snippet(sc.Chunk.Text, 280),
			Score:       sc.Score,
			ChunkID:     sc.Chunk.ID,
		})
	}
	return out
}

func chunkRefs(chunks []corpus.ScoredChunk) []audit.ChunkRef {
	out := make([]audit.ChunkRef, 0, len(chunks))
	for _, sc := range chunks {
		out = append(out, audit.ChunkRef{
			ChunkID:      sc.Chunk.ID,
			LaureateName: sc.Chunk.LaureateName,
			Year:         sc.Chunk.Year,
			SourceType:   string(sc.Chunk.SourceType),
		})
	}
	return out
}

func scores(chunks []corpus.ScoredChunk) []float64 {
	out := make([]float64, 0, len(chunks))
	for _, sc := range chunks {
		out = append(out, sc.Score)
	}
	return out
}

func snippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return strings.TrimSpace(text[:maxLen]) + "…"
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, nobelerr.ErrAmbiguousIntent):
		return "AmbiguousIntent"
	case errors.Is(err, nobelerr.ErrNoEvidence):
		return "NoEvidence"
	case errors.Is(err, nobelerr.ErrEmbeddingFailure):
		return "EmbeddingFailure"
	case errors.Is(err, nobelerr.ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, nobelerr.ErrLLMFailure):
		return "LLMFailure"
	case errors.Is(err, nobelerr.ErrInvalidFilter):
		return "InvalidFilter"
	case errors.Is(err, nobelerr.ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, nobelerr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	default:
		return "Internal"
	}
}
