package domain

import "time"

// RunOutcome is how a report run ended.
type RunOutcome string

const (
	RunSucceeded RunOutcome = "SUCCEEDED"
	RunFailed    RunOutcome = "FAILED"
)

// RunRecord is an immutable history entry for one published or failed report run.
type RunRecord struct {
	ID             string
	Report         string
	Trigger        string
	Outcome        RunOutcome
	Stage          *string
	ErrorCode      *string
	Details        map[string]any
	Cutoff         time.Time
	Fetched        int
	Selected       int
	UnknownTickets int
	Published      bool
	StartedAt      time.Time
	Duration       time.Duration
	CreatedAt      time.Time
}
