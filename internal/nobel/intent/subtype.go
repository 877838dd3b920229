package intent

import (
	"strings"
)

// Subtype is one of the four closed thematic subtypes spec.md §4.5 names.
type Subtype string

const (
	SubtypeSynthesis   Subtype = "synthesis"
	SubtypeEnumerative Subtype = "enumerative"
	SubtypeAnalytical  Subtype = "analytical"
	SubtypeExploratory Subtype = "exploratory"
)

var enumerativeCues = []string{"list", "which", "show"}
var analyticalCues = []string{"compare", "contrast", "differ", "vs"}
var exploratoryCues = []string{"what", "how"}

// subtypePrecedence is the tie-break order spec.md §4.5 specifies: when
// more than one cue fires with equal confidence, synthesis wins, then
// enumerative, then analytical, then exploratory.
var subtypePrecedence = []Subtype{SubtypeSynthesis, SubtypeEnumerative, SubtypeAnalytical, SubtypeExploratory}

// SubtypeResult carries the chosen subtype and the cues that fired for it.
type SubtypeResult struct {
	Subtype Subtype
	Cues    []string
}

// DetectSubtype applies only when intent = thematic (spec.md §4.5). It
// picks the highest-confidence cue, resolving ties using subtypePrecedence.
func DetectSubtype(query string) SubtypeResult {
	lower := strings.ToLower(query)

	scores := map[Subtype]float64{}
	cues := map[Subtype][]string{}

	if MatchesSynthesisFrame(lower) {
		scores[SubtypeSynthesis] = 1.0
		cues[SubtypeSynthesis] = []string{"synthesis-frame"}
	}
	if m := matchAny(lower, enumerativeCues); len(m) > 0 {
		scores[SubtypeEnumerative] = 0.8
		cues[SubtypeEnumerative] = m
	}
	if m := matchAny(lower, analyticalCues); len(m) > 0 {
		scores[SubtypeAnalytical] = 0.8
		cues[SubtypeAnalytical] = m
	}
	if m := matchAny(lower, exploratoryCues); len(m) > 0 {
		scores[SubtypeExploratory] = 0.4
		cues[SubtypeExploratory] = m
	}

	if len(scores) == 0 {
		// No cue fired at all; default to exploratory, the catch-all
		// subtype spec.md §4.5 describes ("no other cue").
		return SubtypeResult{Subtype: SubtypeExploratory}
	}

	best := subtypePrecedence[len(subtypePrecedence)-1]
	bestScore := -1.0
	for _, candidate := range subtypePrecedence {
		if s, ok := scores[candidate]; ok && s > bestScore {
			best, bestScore = candidate, s
		}
	}
	return SubtypeResult{Subtype: best, Cues: cues[best]}
}
