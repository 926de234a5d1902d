package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRunStarted        EventType = "report_run_started"
	EventRunCompleted      EventType = "report_run_completed"
	EventRunFailed         EventType = "report_run_failed"
	EventTicketCountFailed EventType = "ticket_count_failed"
	EventReportPublished   EventType = "report_published"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
	TriggerPreview  Trigger = "preview"
	TriggerUnknown  Trigger = "unknown"
)

// Event is emitted by the report service over the life of a run.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Report    string    `json:"report"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, runID, report string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Report:    report,
		Timestamp: at,
		Payload:   payload,
	}
}

// RunStartedPayload payload.
type RunStartedPayload struct {
	Trigger Trigger   `json:"trigger"`
	DryRun  bool      `json:"dry_run"`
	Cutoff  time.Time `json:"cutoff"`
}

// RunCompletedPayload payload.
type RunCompletedPayload struct {
	Fetched        int           `json:"fetched"`
	Selected       int           `json:"selected"`
	UnknownTickets int           `json:"unknown_tickets"`
	Published      bool          `json:"published"`
	Duration       time.Duration `json:"duration"`
}

// RunFailedPayload payload.
type RunFailedPayload struct {
	Stage    string        `json:"stage"`
	Code     string        `json:"code"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

// TicketCountFailedPayload payload.
type TicketCountFailedPayload struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// ReportPublishedPayload payload.
type ReportPublishedPayload struct {
	Rows         int `json:"rows"`
	MessageBytes int `json:"message_bytes"`
}
