// Package factual implements the pattern-based registry that answers a
// query directly from laureate metadata, without invoking retrieval or the
// LLM. The eleven rules, their regexes, and their handler semantics are
// grounded verbatim on the reference implementation's metadata query
// registry: same rule names, same patterns, same first-match-wins ordering.
package factual

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"manifold/internal/nobel/metadata"
)

// Rule is a (name, pattern, handler) tuple. Pattern is a case-insensitive
// regex over the raw query; handler is a pure function of the match and the
// flat laureate list.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Handler func(match []string, laureates []metadata.Laureate) string
}

// Result is what a matched rule produces.
type Result struct {
	Answer     string
	RuleName   string
	AnswerType string // always "metadata"
}

// Registry is the ordered list of factual rules. Order determines
// precedence: the first rule whose pattern matches wins.
var Registry = []Rule{
	{
		Name:    "award_year_by_name",
		Pattern: regexp.MustCompile(`(?i)what year did (.+?) win`),
		Handler: handleAwardYear,
	},
	{
		Name:    "count_women_since_year",
		Pattern: regexp.MustCompile(`(?i)how many women won since (\d{4})`),
		Handler: handleCountWomenSince,
	},
	{
		Name:    "winner_in_year",
		Pattern: regexp.MustCompile(`(?i)who won (?:the )?nobel (?:prize )?(?:in literature )?in (\d{4})`),
		Handler: handleWinnerInYear,
	},
	{
		Name:    "most_awarded_country",
		Pattern: regexp.MustCompile(`(?i)which country has (?:won|received) the most`),
		Handler: handleMostAwardedCountry,
	},
	{
		Name:    "country_of_laureate",
		Pattern: regexp.MustCompile(`(?i)what country is ([\w .'-]+) from`),
		Handler: handleCountryOfLaureate,
	},
	{
		Name:    "first_last_gender_laureate",
		Pattern: regexp.MustCompile(`(?i)who was the (first|last) (male|female|woman|man) (?:winner|laureate)`),
		Handler: handleFirstLastGenderLaureate,
	},
	{
		Name:    "count_laureates_from_country",
		Pattern: regexp.MustCompile(`(?i)how many (?:laureates|winners) (?:are|were)? ?from ([\w .'-]+)`),
		Handler: handleCountLaureatesFromCountry,
	},
	{
		Name:    "prize_motivation_by_name",
		Pattern: regexp.MustCompile(`(?i)what (?:was|is) the (?:prize )?motivation for ([\w .'-]+)`),
		Handler: handlePrizeMotivation,
	},
	{
		Name:    "birth_death_date_by_name",
		Pattern: regexp.MustCompile(`(?i)when was ([\w .'-]+) (born|died)`),
		Handler: handleBirthDeathDate,
	},
	{
		Name:    "years_with_no_award",
		Pattern: regexp.MustCompile(`(?i)(?:which years|years) (?:was|were)? ?(?:the )?nobel prize in literature (?:not awarded|no award)`),
		Handler: handleYearsWithNoAward,
	},
	{
		Name:    "first_last_country_laureate",
		Pattern: regexp.MustCompile(`(?i)who was the (first|last) ([\w .'-]+) laureate`),
		Handler: handleFirstLastCountryLaureate,
	},
}

// Match scans the registry in order and returns the first rule whose
// pattern matches, along with the raw submatch slice. Returns false if no
// rule matches.
func Match(query string) (Rule, []string, bool) {
	for _, rule := range Registry {
		if m := rule.Pattern.FindStringSubmatch(query); m != nil {
			return rule, m, true
		}
	}
	return Rule{}, nil, false
}

// Handle runs the registry against query and the flat laureate list. It
// returns nil if no rule matches, signaling the caller should fall through
// to RAG.
func Handle(query string, laureates []metadata.Laureate) *Result {
	rule, match, ok := Match(query)
	if !ok {
		return nil
	}
	return &Result{
		Answer:     rule.Handler(match, laureates),
		RuleName:   rule.Name,
		AnswerType: "metadata",
	}
}

func handleAwardYear(match []string, laureates []metadata.Laureate) string {
	name := strings.ToLower(strings.TrimSpace(match[1]))
	for _, l := range laureates {
		if strings.Contains(strings.ToLower(l.FullName), name) {
			return fmt.Sprintf("%s won in %d.", l.FullName, l.YearAwarded)
		}
	}
	return fmt.Sprintf("No laureate found matching '%s'.", name)
}

func handleCountWomenSince(match []string, laureates []metadata.Laureate) string {
	since, _ := strconv.Atoi(match[1])
	count := 0
	for _, l := range laureates {
		if l.Gender == metadata.GenderFemale && l.YearAwarded >= since {
			count++
		}
	}
	return fmt.Sprintf("%d women have won the Nobel Prize in Literature since %d.", count, since)
}

func handleWinnerInYear(match []string, laureates []metadata.Laureate) string {
	year, _ := strconv.Atoi(match[1])
	var names []string
	for _, l := range laureates {
		if l.YearAwarded == year {
			names = append(names, l.FullName)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("No winners found for the year %d.", year)
	}
	verb := "was"
	if len(names) > 1 {
		verb = "were"
	}
	return fmt.Sprintf("The winner%s %s: %s.", pluralSuffix(len(names)), verb, strings.Join(names, ", "))
}

func pluralSuffix(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}

func handleMostAwardedCountry(_ []string, laureates []metadata.Laureate) string {
	counts := map[string]int{}
	for _, l := range laureates {
		if l.Country == "" {
			continue
		}
		counts[l.Country]++
	}
	if len(counts) == 0 {
		return "Could not determine the most awarded country."
	}
	var best string
	bestCount := -1
	// Deterministic tie-break: country name ascending, matching the
	// registry's general "ties resolved by name ascending" convention.
	countries := make([]string, 0, len(counts))
	for c := range counts {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	for _, c := range countries {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return fmt.Sprintf("%s has the most Nobel Prize in Literature winners with %d.", best, bestCount)
}

func handleCountryOfLaureate(match []string, laureates []metadata.Laureate) string {
	name := strings.ToLower(strings.TrimSpace(match[1]))
	for _, l := range laureates {
		if strings.Contains(strings.ToLower(l.FullName), name) {
			country := l.Country
			if country == "" {
				country = "Unknown"
			}
			return fmt.Sprintf("%s is from %s.", l.FullName, country)
		}
	}
	return fmt.Sprintf("No laureate found matching '%s'.", name)
}

func normalizeGender(raw string) metadata.Gender {
	switch strings.ToLower(raw) {
	case "woman", "female":
		return metadata.GenderFemale
	case "man", "male":
		return metadata.GenderMale
	default:
		return metadata.Gender(strings.ToLower(raw))
	}
}

func handleFirstLastGenderLaureate(match []string, laureates []metadata.Laureate) string {
	order := strings.ToLower(match[1])
	gender := normalizeGender(match[2])
	var filtered []metadata.Laureate
	for _, l := range laureates {
		if l.Gender == gender {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) == 0 {
		return fmt.Sprintf("No %s laureates found.", gender)
	}
	sortByYearThenName(filtered)
	chosen := filtered[0]
	if order == "last" {
		chosen = filtered[len(filtered)-1]
	}
	return fmt.Sprintf("The %s %s laureate was %s in %d.", order, gender, chosen.FullName, chosen.YearAwarded)
}

func handleCountLaureatesFromCountry(match []string, laureates []metadata.Laureate) string {
	country := strings.ToLower(strings.TrimSpace(match[1]))
	count := 0
	for _, l := range laureates {
		if strings.ToLower(l.Country) == country {
			count++
		}
	}
	return fmt.Sprintf("%d laureates are from %s.", count, strings.Title(country))
}

func handlePrizeMotivation(match []string, laureates []metadata.Laureate) string {
	name := strings.ToLower(strings.TrimSpace(match[1]))
	for _, l := range laureates {
		if strings.Contains(strings.ToLower(l.FullName), name) {
			motivation := l.PrizeMotivation
			if motivation == "" {
				motivation = "No motivation found."
			}
			return fmt.Sprintf("The prize motivation for %s was: %s", l.FullName, motivation)
		}
	}
	return fmt.Sprintf("No laureate found matching '%s'.", name)
}

func handleBirthDeathDate(match []string, laureates []metadata.Laureate) string {
	name := strings.ToLower(strings.TrimSpace(match[1]))
	event := strings.ToLower(match[2])
	for _, l := range laureates {
		if !strings.Contains(strings.ToLower(l.FullName), name) {
			continue
		}
		if event == "born" {
			date := l.DateOfBirth
			if date == "" {
				date = "Unknown"
			}
			return fmt.Sprintf("%s was born on %s.", l.FullName, date)
		}
		date := l.DateOfDeath
		if date == "" {
			date = "Unknown"
		}
		return fmt.Sprintf("%s died on %s.", l.FullName, date)
	}
	return fmt.Sprintf("No laureate found matching '%s'.", name)
}

func handleYearsWithNoAward(_ []string, laureates []metadata.Laureate) string {
	if len(laureates) == 0 {
		return "No data available."
	}
	awarded := map[int]bool{}
	minYear, maxYear := laureates[0].YearAwarded, laureates[0].YearAwarded
	for _, l := range laureates {
		awarded[l.YearAwarded] = true
		if l.YearAwarded < minYear {
			minYear = l.YearAwarded
		}
		if l.YearAwarded > maxYear {
			maxYear = l.YearAwarded
		}
	}
	var missing []string
	for y := minYear; y <= maxYear; y++ {
		if !awarded[y] {
			missing = append(missing, strconv.Itoa(y))
		}
	}
	if len(missing) == 0 {
		return "Every year in the dataset has at least one laureate."
	}
	return fmt.Sprintf("The Nobel Prize in Literature was not awarded in the following years: %s.", strings.Join(missing, ", "))
}

func handleFirstLastCountryLaureate(match []string, laureates []metadata.Laureate) string {
	order := strings.ToLower(match[1])
	country := strings.ToLower(strings.TrimSpace(match[2]))
	var filtered []metadata.Laureate
	for _, l := range laureates {
		if strings.ToLower(l.Country) == country {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) == 0 {
		return fmt.Sprintf("No laureates found from %s.", strings.Title(country))
	}
	sortByYearThenName(filtered)
	chosen := filtered[0]
	if order == "last" {
		chosen = filtered[len(filtered)-1]
	}
	return fmt.Sprintf("The %s laureate from %s was %s in %d.", order, strings.Title(country), chosen.FullName, chosen.YearAwarded)
}

// sortByYearThenName sorts ascending by year awarded, breaking ties by full
// name ascending, per spec.md §4.3 "first/last" semantics.
func sortByYearThenName(laureates []metadata.Laureate) {
	sort.SliceStable(laureates, func(i, j int) bool {
		if laureates[i].YearAwarded != laureates[j].YearAwarded {
			return laureates[i].YearAwarded < laureates[j].YearAwarded
		}
		return laureates[i].FullName < laureates[j].FullName
	})
}
