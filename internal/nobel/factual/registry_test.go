package factual

import (
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/metadata"
)

func sampleLaureates() []metadata.Laureate {
	return []metadata.Laureate{
		{FullName: "Toni Morrison", YearAwarded: 1993, Gender: metadata.GenderFemale, Country: "United States", PrizeMotivation: "visionary force and poetic import"},
		{FullName: "Kazuo Ishiguro", YearAwarded: 2017, Gender: metadata.GenderMale, Country: "United Kingdom"},
		{FullName: "Doris Lessing", YearAwarded: 2007, Gender: metadata.GenderFemale, Country: "United Kingdom"},
		{FullName: "Bob Dylan", YearAwarded: 2016, Gender: metadata.GenderMale, Country: "United States"},
	}
}

func TestAwardYearByName(t *testing.T) {
	res := Handle("What year did Kazuo Ishiguro win?", sampleLaureates())
	require.NotNil(t, res)
	require.Equal(t, "award_year_by_name", res.RuleName)
	require.Contains(t, res.Answer, "2017")
}

func TestWinnerInYear(t *testing.T) {
	res := Handle("Who won the Nobel Prize in Literature in 1993?", sampleLaureates())
	require.NotNil(t, res)
	require.Equal(t, "winner_in_year", res.RuleName)
	require.Contains(t, res.Answer, "Toni Morrison")
}

func TestCountWomenSince(t *testing.T) {
	res := Handle("How many women won since 1900?", sampleLaureates())
	require.NotNil(t, res)
	require.Equal(t, "count_women_since_year", res.RuleName)
	require.Contains(t, res.Answer, "2 women")
}

func TestFirstLastGenderLaureate(t *testing.T) {
	res := Handle("Who was the first female laureate?", sampleLaureates())
	require.NotNil(t, res)
	require.Contains(t, res.Answer, "Toni Morrison")

	res = Handle("Who was the last woman laureate?", sampleLaureates())
	require.NotNil(t, res)
	require.Contains(t, res.Answer, "Doris Lessing")
}

func TestYearsWithNoAward(t *testing.T) {
	res := Handle("Which years was the Nobel Prize in Literature not awarded?", sampleLaureates())
	require.NotNil(t, res)
	require.Equal(t, "years_with_no_award", res.RuleName)
	// 1993..2017 with only 1993,2007,2016,2017 present: missing years in between.
	require.Contains(t, res.Answer, "1994")
}

func TestFirstLastCountryLaureate(t *testing.T) {
	res := Handle("Who was the first United Kingdom laureate?", sampleLaureates())
	require.NotNil(t, res)
	require.Contains(t, res.Answer, "Doris Lessing")
}

func TestNoRuleMatches(t *testing.T) {
	res := Handle("Tell me about the Nobel Prize.", sampleLaureates())
	require.Nil(t, res)
}

func TestMatchIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	query := "What year did Kazuo Ishiguro win?"
	first := Handle(query, sampleLaureates())
	second := Handle(query, sampleLaureates())
	require.Equal(t, first, second)
}

func TestFirstMatchWinsOrderingPrecedence(t *testing.T) {
	// "who was the first female laureate" could, in principle, loosely
	// resemble other patterns; the registry must pick the earliest rule in
	// declared order that matches.
	rule, _, ok := Match("Who was the first female laureate?")
	require.True(t, ok)
	require.Equal(t, "first_last_gender_laureate", rule.Name)
}
