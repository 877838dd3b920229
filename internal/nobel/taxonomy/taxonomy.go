// Package taxonomy loads the keyword taxonomy: a mapping from theme name to
// a set of related terms, each with a precomputed unit-norm embedding. The
// taxonomy is an external YAML artifact loaded by path (spec.md §9 Open
// Question, resolved: external file, canonical format is YAML matching the
// teacher's config convention of gopkg.in/yaml.v3 for auxiliary data).
package taxonomy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk shape: theme name -> list of terms.
type fileFormat map[string][]string

// Term is one taxonomy keyword with its theme and precomputed embedding.
type Term struct {
	Theme     string
	Term      string
	Embedding []float32
}

// Embedder is the minimal subset of the embedding client taxonomy loading
// needs, kept narrow so this package does not import internal/nobel/embed
// and create a dependency cycle.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Taxonomy holds every term, its theme, and its embedding. Immutable after
// Load and safe for concurrent read access (spec.md §3 Ownership).
type Taxonomy struct {
	terms    []Term
	byTheme  map[string][]Term
	termSeen map[string]bool // lowercased term -> already assigned to a theme
}

// Load reads the taxonomy YAML file, assigns each term to the first theme
// that claims it (duplicates across themes: first wins, per spec.md §3),
// and embeds every term once via embedder.
func Load(ctx context.Context, path string, embedder Embedder) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	return loadFromBytes(ctx, raw, embedder)
}

func loadFromBytes(ctx context.Context, raw []byte, embedder Embedder) (*Taxonomy, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("taxonomy: parse yaml: %w", err)
	}

	// Deterministic theme iteration order: sort keys lexically so the
	// "first theme wins a duplicate term" rule is reproducible across runs.
	themes := make([]string, 0, len(ff))
	for theme := range ff {
		themes = append(themes, theme)
	}
	sort.Strings(themes)

	tax := &Taxonomy{
		byTheme:  map[string][]Term{},
		termSeen: map[string]bool{},
	}
	for _, theme := range themes {
		for _, word := range ff[theme] {
			key := strings.ToLower(strings.TrimSpace(word))
			if key == "" || tax.termSeen[key] {
				continue
			}
			tax.termSeen[key] = true
			vec, err := embedder.Embed(ctx, word)
			if err != nil {
				return nil, fmt.Errorf("taxonomy: embed term %q: %w", word, err)
			}
			term := Term{Theme: theme, Term: word, Embedding: vec}
			tax.terms = append(tax.terms, term)
			tax.byTheme[theme] = append(tax.byTheme[theme], term)
		}
	}
	return tax, nil
}

// Terms returns every taxonomy term across all themes.
func (t *Taxonomy) Terms() []Term {
	return t.terms
}

// ThemesMatching returns the themes whose surface keywords textually appear in
// query (case-insensitive substring match), used by the keyword expander's
// seed step (spec.md §4.6 step 2).
func (t *Taxonomy) ThemesMatching(query string) []string {
	lower := strings.ToLower(query)
	var matched []string
	for theme, terms := range t.byTheme {
		for _, term := range terms {
			if strings.Contains(lower, strings.ToLower(term.Term)) {
				matched = append(matched, theme)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// TermsInTheme returns every term belonging to theme.
func (t *Taxonomy) TermsInTheme(theme string) []Term {
	return t.byTheme[theme]
}
