package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBugScore_When_AllTableEntries(t *testing.T) {
	t.Parallel()

	expected := map[string]map[string]int{
		"Level 0": {"high": 10, "medium": 10, "low": 10},
		"Level 1": {"high": 10, "medium": 10, "low": 10},
		"Level 2": {"high": 5, "medium": 4, "low": 3},
		"Level 3": {"high": 3, "medium": 2, "low": 1},
		"Level 4": {"high": 1, "medium": 1, "low": 1},
	}

	for impact, byPriority := range expected {
		for priority, base := range byPriority {
			for _, tickets := range []int{0, 7, -3} {
				name := fmt.Sprintf("%s/%s/%d", impact, priority, tickets)
				got := CalculateBugScore(ScoreInput{Impact: impact, Priority: priority, TicketCount: tickets})
				assert.Equal(t, base+tickets, got, name)
			}
		}
	}
}

func TestCalculateBugScore_When_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, CalculateBugScore(ScoreInput{}))
	assert.Equal(t, 3, CalculateBugScore(ScoreInput{Priority: "high"}))
	assert.Equal(t, 4, CalculateBugScore(ScoreInput{Impact: "Level 2"}))
}

func TestCalculateBugScore_When_UnknownKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4, CalculateBugScore(ScoreInput{Impact: "Unknown Level", Priority: "high", TicketCount: 2}))
	assert.Equal(t, 3, CalculateBugScore(ScoreInput{Impact: "Level 1", Priority: "unknown", TicketCount: 1}))
	assert.Equal(t, FallbackScore, CalculateBugScore(ScoreInput{Impact: "Level 9", Priority: "urgent"}))
}

func TestCalculateBugScore_When_NegativeTicketCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -5, CalculateBugScore(ScoreInput{Impact: "Level 4", Priority: "low", TicketCount: -6}))
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"level 2":       "LEVEL_2",
		"LEVEL_2":       "LEVEL_2",
		"  Level   2 ":  "LEVEL_2",
		"Level\t2":      "LEVEL_2",
		"High":          "HIGH",
		"":              "",
		"product  area": "PRODUCT_AREA",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "input %q", in)
	}
}

func TestCalculateBugScore_When_EquivalentSpellings(t *testing.T) {
	t.Parallel()

	a := CalculateBugScore(ScoreInput{Impact: "level 2", Priority: "High"})
	b := CalculateBugScore(ScoreInput{Impact: "LEVEL_2", Priority: "HIGH"})
	c := CalculateBugScore(ScoreInput{Impact: "  Level   2 ", Priority: " high "})

	assert.Equal(t, 5, a)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}
