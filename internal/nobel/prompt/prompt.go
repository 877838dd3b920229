// Package prompt implements the prompt builder (C8): template selection
// per (intent, subtype), token-budgeted context assembly, and rendering.
// Built fresh for this domain, in the teacher's template-driven
// configuration style (cf. config.CompletionsConfig), since the teacher
// carries no prompt-template package of its own to adapt.
package prompt

import (
	"strconv"
	"strings"
	"text/template"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/intent"
)

// defaultTokenBudget is B_prompt from spec.md §4.8.
const defaultTokenBudget = 3000

// wordsPerTokenRatio is the fixed heuristic spec.md §4.8 allows when no
// tokenizer is wired in: token count ~= words * 1.3.
const wordsPerTokenRatio = 1.3

// Built is C8's output shape, per spec.md §4.8.
type Built struct {
	TemplateName      string
	RenderedPrompt    string
	ContextCharLength int
}

// templateDef holds the static strings for one (intent, subtype) template.
type templateDef struct {
	name   string
	system string
	task   string
	style  string
}

var templates = map[string]templateDef{
	"generative": {
		name:   "generative",
		system: "You are assisting with Nobel Prize in Literature scholarship, writing in the voice of past laureates when asked.",
		task:   "Compose a response that fulfills the request below, drawing on the style and themes of the referenced laureate(s).",
		style:  "Write in a literary register befitting a Nobel lecture. Do not fabricate biographical facts.",
	},
	"thematic_synthesis": {
		name:   "thematic_synthesis",
		system: "You are a research assistant synthesizing how Nobel laureates have addressed a shared theme.",
		task:   "Using only the passages below, synthesize how laureates have approached the theme in the question.",
		style:  "Cite laureates by name. Avoid generic summary; ground every claim in the provided passages.",
	},
	"thematic_enumerative": {
		name:   "thematic_enumerative",
		task:   "List the laureates and passages below that relate to the theme in the question, with a one-line gloss for each.",
		system: "You are a research assistant enumerating relevant passages for a thematic question.",
		style:  "Prefer a clear list format. Do not omit a relevant passage present in the context.",
	},
	"thematic_analytical": {
		name:   "thematic_analytical",
		system: "You are a research assistant comparing how different laureates treated a theme.",
		task:   "Compare and contrast how the passages below address the theme in the question.",
		style:  "Be explicit about points of agreement and divergence between laureates.",
	},
	"thematic_exploratory": {
		name:   "thematic_exploratory",
		system: "You are a research assistant exploring a loosely scoped thematic question.",
		task:   "Using the passages below, explore the question and surface the most relevant angles.",
		style:  "It is acceptable to note open-ended or unresolved angles.",
	},
	"factual_rag": {
		name:   "factual_rag",
		system: "You are a research assistant answering a factual question about Nobel laureates using supporting passages.",
		task:   "Answer the question below using only the passages provided.",
		style:  "Be concise and precise; prefer direct quotation of names, years, and facts.",
	},
}

// TemplateNameFor resolves spec.md §4.10's routing: generative intent picks
// the generative template; thematic intent picks by subtype; anything else
// (factual-RAG fallback) uses factual_rag.
func TemplateNameFor(in intent.Intent, subtype intent.Subtype) string {
	switch in {
	case intent.IntentGenerative:
		return "generative"
	case intent.IntentThematic:
		switch subtype {
		case intent.SubtypeSynthesis:
			return "thematic_synthesis"
		case intent.SubtypeEnumerative:
			return "thematic_enumerative"
		case intent.SubtypeAnalytical:
			return "thematic_analytical"
		default:
			return "thematic_exploratory"
		}
	default:
		return "factual_rag"
	}
}

const promptTemplate = `{{.System}}

{{.Task}}

Context:
{{.Context}}

Question: {{.Query}}

{{.Style}}
`

var renderTemplate = template.Must(template.New("prompt").Parse(promptTemplate))

// Build assembles the final prompt: selects the template, formats the
// context block in rank order (deduplicating consecutive identical source
// headers), and trims lowest-ranked chunks until the token estimate fits
// the budget.
func Build(query string, in intent.Intent, subtype intent.Subtype, chunks []corpus.ScoredChunk, tokenBudget int) Built {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	name := TemplateNameFor(in, subtype)
	def := templates[name]

	working := make([]corpus.ScoredChunk, len(chunks))
	copy(working, chunks)

	var rendered string
	var contextBlock string
	for {
		contextBlock = formatContext(working)
		rendered = render(def, query, contextBlock)
		if estimateTokens(rendered) <= tokenBudget || len(working) == 0 {
			break
		}
		working = working[:len(working)-1]
	}

	return Built{
		TemplateName:      name,
		RenderedPrompt:    rendered,
		ContextCharLength: len(contextBlock),
	}
}

// formatContext emits, per chunk in rank order: speaker, year, source
// type, text. Consecutive identical source headers are deduplicated, per
// spec.md §4.8.
func formatContext(chunks []corpus.ScoredChunk) string {
	var b strings.Builder
	lastHeader := ""
	for _, sc := range chunks {
		header := headerFor(sc.Chunk)
		if header != lastHeader {
			b.WriteString(header)
			b.WriteString("\n")
			lastHeader = header
		}
		b.WriteString(sc.Chunk.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func headerFor(c corpus.Chunk) string {
	return c.LaureateName + " (" + itoaYear(c.Year) + ", " + string(c.SourceType) + "):"
}

func itoaYear(y int) string {
	if y == 0 {
		return "n.d."
	}
	return strconv.Itoa(y)
}

func render(def templateDef, query, context string) string {
	var b strings.Builder
	_ = renderTemplate.Execute(&b, struct {
		System, Task, Context, Query, Style string
	}{System: def.system, Task: def.task, Context: context, Query: query, Style: def.style})
	return b.String()
}

// estimateTokens applies the fixed words*1.3 heuristic spec.md §4.8 allows.
func estimateTokens(s string) int {
	words := len(strings.Fields(s))
	return int(float64(words) * wordsPerTokenRatio)
}
