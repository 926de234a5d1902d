package dto

import (
	"time"

	"github.com/bugdigest/bug-digest/internal/domain"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/service"
)

// RunReportRequest payload. An empty body runs and publishes.
type RunReportRequest struct {
	DryRun bool `json:"dry_run"`
}

// RunSummary response.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Report         string    `json:"report"`
	Title          string    `json:"title"`
	Cutoff         time.Time `json:"cutoff"`
	Fetched        int       `json:"fetched"`
	Selected       int       `json:"selected"`
	UnknownTickets int       `json:"unknown_tickets"`
	Published      bool      `json:"published"`
	DryRun         bool      `json:"dry_run"`
	DurationMS     int64     `json:"duration_ms"`
	Message        string    `json:"message,omitempty"`
}

// ReportInfo describes one available report.
type ReportInfo struct {
	Kind    string                 `json:"kind"`
	LastRun *observability.RunStat `json:"last_run,omitempty"`
}

// NewRunSummary converts a run result. The message is only included when asked for.
func NewRunSummary(res *service.RunResult, withMessage bool) RunSummary {
	out := RunSummary{
		RunID:          res.RunID,
		Report:         string(res.Report),
		Title:          res.Title,
		Cutoff:         res.Cutoff,
		Fetched:        res.Fetched,
		Selected:       res.Selected,
		UnknownTickets: res.UnknownTickets,
		Published:      res.Published,
		DryRun:         res.DryRun,
		DurationMS:     res.Duration.Milliseconds(),
	}
	if withMessage {
		out.Message = res.Message
	}
	return out
}

// RunRecord response.
type RunRecord struct {
	RunID          string         `json:"run_id"`
	Trigger        string         `json:"trigger"`
	Outcome        string         `json:"outcome"`
	Stage          *string        `json:"stage,omitempty"`
	ErrorCode      *string        `json:"error_code,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Cutoff         time.Time      `json:"cutoff"`
	Fetched        int            `json:"fetched"`
	Selected       int            `json:"selected"`
	UnknownTickets int            `json:"unknown_tickets"`
	Published      bool           `json:"published"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMS     int64          `json:"duration_ms"`
}

// NewRunRecord converts a stored run.
func NewRunRecord(run *domain.RunRecord) RunRecord {
	return RunRecord{
		RunID:          run.ID,
		Trigger:        run.Trigger,
		Outcome:        string(run.Outcome),
		Stage:          run.Stage,
		ErrorCode:      run.ErrorCode,
		Details:        run.Details,
		Cutoff:         run.Cutoff,
		Fetched:        run.Fetched,
		Selected:       run.Selected,
		UnknownTickets: run.UnknownTickets,
		Published:      run.Published,
		StartedAt:      run.StartedAt,
		DurationMS:     run.Duration.Milliseconds(),
	}
}
