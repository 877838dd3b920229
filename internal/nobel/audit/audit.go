// Package audit implements the per-query audit log (C11): one JSON line
// per completed query capturing the full pipeline trace, written through
// a file writer that rotates on size (via lumberjack) and onto a new
// audit_log_YYYY-MM-DD.jsonl file whenever the UTC date changes, per
// spec.md §4.11/§6. Grounded on original_source/utils/audit_logger.py's
// QueryAuditLog field inventory and staged-setter API; rotation uses
// lumberjack, the standard pairing for the teacher's zerolog-based
// logging (internal/observability/logging.go) since a query audit line
// is its own fixed schema rather than a leveled log event.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Entry mirrors QueryAuditLog's field inventory, translated to Go
// conventions (zero values instead of None, omitempty on optional
// fields so a line never claims more than one error_type or answer).
type Entry struct {
	QueryID   string `json:"query_id"`
	Timestamp string `json:"timestamp"`
	UserQuery string `json:"user_query"`
	Source    string `json:"source"`

	Intent        string   `json:"intent,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
	ScopedEntity  string   `json:"scoped_entity,omitempty"`
	DecisionTrace []string `json:"decision_trace,omitempty"`

	ThematicSubtype    string   `json:"thematic_subtype,omitempty"`
	SubtypeConfidence  float64  `json:"subtype_confidence,omitempty"`
	SubtypeCues        []string `json:"subtype_cues,omitempty"`

	ExpandedTerms    []string           `json:"expanded_terms,omitempty"`
	TermSimilarities map[string]float64 `json:"term_similarities,omitempty"`
	ExpansionMethod  string             `json:"expansion_method,omitempty"`

	RetrievalMethod string            `json:"retrieval_method,omitempty"`
	TopK            int               `json:"top_k,omitempty"`
	ScoreThreshold  float64           `json:"score_threshold,omitempty"`
	FiltersApplied  map[string]string `json:"filters_applied,omitempty"`
	ChunksRetrieved []ChunkRef        `json:"chunks_retrieved,omitempty"`
	RetrievalScores []float64         `json:"retrieval_scores,omitempty"`
	ChunkCount      int               `json:"chunk_count,omitempty"`
	RetrievalTimeMs float64           `json:"retrieval_time_ms,omitempty"`

	PromptTemplate string `json:"prompt_template,omitempty"`
	PromptLength   int    `json:"prompt_length,omitempty"`
	ContextLength  int    `json:"context_length,omitempty"`
	FinalPrompt    string `json:"final_prompt,omitempty"`

	LLMModel         string  `json:"llm_model,omitempty"`
	LLMTemperature   float64 `json:"llm_temperature,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
	LLMResponse      string  `json:"llm_response,omitempty"`
	LLMTimeMs        float64 `json:"llm_time_ms,omitempty"`

	AnswerType            string     `json:"answer_type,omitempty"`
	FinalAnswer           string     `json:"final_answer,omitempty"`
	AnswerLength          int        `json:"answer_length,omitempty"`
	SourcesUsed           []ChunkRef `json:"sources_used,omitempty"`
	TotalProcessingTimeMs float64    `json:"total_processing_time_ms,omitempty"`

	ErrorOccurred bool   `json:"error_occurred"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`

	Environment string `json:"environment,omitempty"`
	Version     string `json:"version"`
}

// ChunkRef is the minimal per-chunk provenance recorded in an audit line,
// distinct from the full corpus.Chunk to keep log lines bounded.
type ChunkRef struct {
	ChunkID      string `json:"chunk_id"`
	LaureateName string `json:"laureate_name,omitempty"`
	Year         int    `json:"year,omitempty"`
	SourceType   string `json:"source_type,omitempty"`
}

const schemaVersion = "1.0"

// nowFn is overridable in tests to keep timestamps deterministic.
var nowFn = time.Now

// Logger holds in-flight audit entries keyed by query id and writes
// completed entries through a rotating JSON-lines file. The underlying
// writer is swapped for a freshly named one whenever the UTC date
// changes, per spec.md §4.11/§6's audit_log_YYYY-MM-DD.jsonl naming.
type Logger struct {
	mu          sync.Mutex
	active      map[string]*Entry
	encoder     *json.Encoder
	writer      *lumberjack.Logger
	dir         string
	maxMB       int
	currentDate string
	environment string
}

// Options configures the rotating writer, per spec.md §9's 100 MiB / UTC
// date-change rotation default.
type Options struct {
	Dir          string
	MaxSizeBytes int64
	Environment  string
}

const defaultMaxSizeMB = 100

const dateFormat = "2006-01-02"

// filenameFor returns the dated audit log path spec.md §6 names,
// e.g. "<dir>/audit_log_2026-07-30.jsonl".
func filenameFor(dir, date string) string {
	return dir + "/audit_log_" + date + ".jsonl"
}

// New builds a Logger writing newline-delimited JSON under opt.Dir,
// rotating at opt.MaxSizeBytes (default 100 MiB) within a day, and onto
// a new dated file whenever the UTC date changes.
func New(opt Options) *Logger {
	maxMB := defaultMaxSizeMB
	if opt.MaxSizeBytes > 0 {
		maxMB = int(opt.MaxSizeBytes / (1024 * 1024))
		if maxMB == 0 {
			maxMB = 1
		}
	}
	date := nowFn().UTC().Format(dateFormat)
	w := &lumberjack.Logger{
		Filename:  filenameFor(opt.Dir, date),
		MaxSize:   maxMB,
		LocalTime: false,
		Compress:  false,
	}
	return &Logger{
		active:      map[string]*Entry{},
		encoder:     json.NewEncoder(w),
		writer:      w,
		dir:         opt.Dir,
		maxMB:       maxMB,
		currentDate: date,
		environment: opt.Environment,
	}
}

// rotateForDate swaps the writer onto a new dated file if the UTC date
// has advanced since the writer was opened. Caller must hold l.mu.
func (l *Logger) rotateForDate(now time.Time) {
	date := now.UTC().Format(dateFormat)
	if date == l.currentDate {
		return
	}
	_ = l.writer.Close()
	l.writer = &lumberjack.Logger{
		Filename:  filenameFor(l.dir, date),
		MaxSize:   l.maxMB,
		LocalTime: false,
		Compress:  false,
	}
	l.encoder = json.NewEncoder(l.writer)
	l.currentDate = date
}

// Start opens a new in-flight audit entry, per audit_logger.py's
// start_audit. queryID must be unique across concurrent in-flight queries.
func (l *Logger) Start(queryID, userQuery, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active[queryID] = &Entry{
		QueryID:     queryID,
		Timestamp:   nowFn().UTC().Format(time.RFC3339Nano),
		UserQuery:   userQuery,
		Source:      source,
		Environment: l.environment,
		Version:     schemaVersion,
	}
}

// Mutate applies fn to the in-flight entry for queryID, if one is open.
// Stage setters (intent, expansion, retrieval, prompt, llm, result, error)
// are all expressed as Mutate calls from the engine, mirroring the
// Python logger's one-method-per-stage API without repeating its
// boilerplate field list in Go.
func (l *Logger) Mutate(queryID string, fn func(*Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.active[queryID]
	if !ok {
		return
	}
	fn(e)
}

// Complete finalizes and writes the entry for queryID, then removes it
// from the in-flight set. Returns false if queryID was never started or
// was already completed.
func (l *Logger) Complete(queryID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.active[queryID]
	if !ok {
		return false
	}
	delete(l.active, queryID)

	e.AnswerLength = len(e.FinalAnswer)
	e.PromptLength = len(e.FinalPrompt)
	if e.ChunksRetrieved != nil {
		e.ChunkCount = len(e.ChunksRetrieved)
	}

	l.rotateForDate(nowFn())
	_ = l.encoder.Encode(e)
	return true
}

// Close flushes and closes the underlying rotating writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}
