// Package scoring derives a bug score from impact level, priority and ticket volume.
package scoring

import "strings"

const (
	// DefaultImpact is used when a task has no impact field.
	DefaultImpact = "LEVEL_3"
	// DefaultPriority is used when a task has no priority.
	DefaultPriority = "MEDIUM"
	// FallbackScore is the base score for any impact/priority pair missing from the table.
	FallbackScore = 2
)

// ScoreTable maps impact level to priority to base score. Never mutated.
var ScoreTable = map[string]map[string]int{
	"LEVEL_0": {"HIGH": 10, "MEDIUM": 10, "LOW": 10},
	"LEVEL_1": {"HIGH": 10, "MEDIUM": 10, "LOW": 10},
	"LEVEL_2": {"HIGH": 5, "MEDIUM": 4, "LOW": 3},
	"LEVEL_3": {"HIGH": 3, "MEDIUM": 2, "LOW": 1},
	"LEVEL_4": {"HIGH": 1, "MEDIUM": 1, "LOW": 1},
}

// ScoreInput holds the optional scoring inputs. Empty strings select the defaults.
type ScoreInput struct {
	Impact      string
	Priority    string
	TicketCount int
}

// NormalizeKey upper-cases s and joins its whitespace-separated words with "_",
// so "  Level   2 " becomes "LEVEL_2".
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "_")
}

// BaseScore looks up the table, returning FallbackScore for unknown keys.
func BaseScore(impact, priority string) int {
	if impact == "" {
		impact = DefaultImpact
	}
	if priority == "" {
		priority = DefaultPriority
	}
	byPriority, ok := ScoreTable[NormalizeKey(impact)]
	if !ok {
		return FallbackScore
	}
	score, ok := byPriority[NormalizeKey(priority)]
	if !ok {
		return FallbackScore
	}
	return score
}

// CalculateBugScore returns the base score plus the ticket count. Negative counts
// pass through unchanged.
func CalculateBugScore(in ScoreInput) int {
	return BaseScore(in.Impact, in.Priority) + in.TicketCount
}
