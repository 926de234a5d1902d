package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// TaskID identifies a task. The source API sends numbers; strings are accepted too.
type TaskID string

// UnmarshalJSON accepts a JSON number or string.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*id = TaskID(s)
	return nil
}

func (id TaskID) String() string { return string(id) }

// Priority is the task priority as reported by the source API.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = ""
)

// UnmarshalJSON maps null to PriorityNone.
func (p *Priority) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*p = Priority(s)
	return nil
}

// Task is the subset of a source task this system consumes.
type Task struct {
	ID               TaskID    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"createdAt"`
	Priority         Priority  `json:"priority"`
	HasLinkedTickets bool      `json:"hasDeskTickets"`
}

// TicketCount is the number of linked support tickets. Known is false when the lookup failed.
type TicketCount struct {
	Value int
	Known bool
}

// KnownTicketCount wraps a successful lookup result.
func KnownTicketCount(n int) TicketCount {
	return TicketCount{Value: n, Known: true}
}

// UnknownTicketCount marks a failed lookup. It is distinct from a known zero.
func UnknownTicketCount() TicketCount {
	return TicketCount{}
}

// OrZero returns the count, treating unknown as zero.
func (c TicketCount) OrZero() int {
	if !c.Known {
		return 0
	}
	return c.Value
}

// EnrichedTask is a Task with its resolved custom fields, ticket count and score.
// Built once per run and not mutated afterwards.
type EnrichedTask struct {
	Task
	CustomFields []FieldValue
	Impact       string
	ProductArea  string
	TicketCount  TicketCount
	BugScore     int
}

// decodeScalar turns a JSON string, number, bool or null into its text form.
func decodeScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return string(data), nil
}
