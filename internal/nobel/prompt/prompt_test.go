package prompt

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/corpus"
	"manifold/internal/nobel/intent"
)

func sampleChunks(n int) []corpus.ScoredChunk {
	out := make([]corpus.ScoredChunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, corpus.ScoredChunk{
			Chunk: corpus.Chunk{
				ID:           "c" + strconv.Itoa(i),
				LaureateName: "Toni Morrison",
				Year:         1993,
				SourceType:   corpus.SourceNobelLecture,
				Text:         strings.Repeat("word ", 50),
			},
			Score: 1.0 - float64(i)*0.01,
			Rank:  i,
		})
	}
	return out
}

func TestTemplateNameForRoutesByIntentAndSubtype(t *testing.T) {
	require.Equal(t, "generative", TemplateNameFor(intent.IntentGenerative, intent.SubtypeExploratory))
	require.Equal(t, "thematic_synthesis", TemplateNameFor(intent.IntentThematic, intent.SubtypeSynthesis))
	require.Equal(t, "thematic_enumerative", TemplateNameFor(intent.IntentThematic, intent.SubtypeEnumerative))
	require.Equal(t, "thematic_analytical", TemplateNameFor(intent.IntentThematic, intent.SubtypeAnalytical))
	require.Equal(t, "thematic_exploratory", TemplateNameFor(intent.IntentThematic, intent.SubtypeExploratory))
	require.Equal(t, "factual_rag", TemplateNameFor(intent.IntentFactual, intent.SubtypeExploratory))
}

func TestBuildDedupesConsecutiveIdenticalHeaders(t *testing.T) {
	chunks := sampleChunks(2)
	built := Build("What did she write about justice?", intent.IntentThematic, intent.SubtypeSynthesis, chunks, 3000)
	require.Equal(t, "thematic_synthesis", built.TemplateName)
	require.Equal(t, 1, strings.Count(built.RenderedPrompt, "Toni Morrison (1993, nobel_lecture):"))
}

func TestBuildTrimsLowestRankedChunksUnderTightBudget(t *testing.T) {
	chunks := sampleChunks(20)
	built := Build("theme of justice", intent.IntentThematic, intent.SubtypeEnumerative, chunks, 50)
	require.Less(t, built.ContextCharLength, len(formatContext(chunks)))
}

func TestBuildHandlesEmptyContext(t *testing.T) {
	built := Build("no evidence query", intent.IntentFactual, intent.SubtypeExploratory, nil, 3000)
	require.Equal(t, "factual_rag", built.TemplateName)
	require.Equal(t, 0, built.ContextCharLength)
	require.Contains(t, built.RenderedPrompt, "no evidence query")
}
