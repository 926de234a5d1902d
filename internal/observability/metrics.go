package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	runCount       map[string]int64
	eventCount     map[string]int64
	lastRun        map[string]RunStat
	ticketLookups  int64
	ticketFailures int64
}

// RunStat describes the most recent run of a report.
type RunStat struct {
	Outcome  string        `json:"outcome"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests       map[string]int64   `json:"requests"`
	Errors         map[string]int64   `json:"errors"`
	Runs           map[string]int64   `json:"runs"`
	Events         map[string]int64   `json:"events"`
	LastRun        map[string]RunStat `json:"last_run"`
	TicketLookups  int64              `json:"ticket_lookups"`
	TicketFailures int64              `json:"ticket_failures"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		runCount:     make(map[string]int64),
		eventCount:   make(map[string]int64),
		lastRun:      make(map[string]RunStat),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := pathKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRun counts a finished run and remembers it as the latest for the report.
func (m *Metrics) RecordRun(report, outcome string, rows int, duration time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCount[report+"|"+outcome]++
	m.lastRun[report] = RunStat{Outcome: outcome, Rows: rows, Duration: duration, At: at}
}

// RecordEvent counts a dispatched event by type.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// RecordTicketLookup counts a ticket count lookup.
func (m *Metrics) RecordTicketLookup(failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketLookups++
	if failed {
		m.ticketFailures++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:       copyCounts(m.requestCount),
		Errors:         copyCounts(m.errorCount),
		Runs:           copyCounts(m.runCount),
		Events:         copyCounts(m.eventCount),
		LastRun:        copyRuns(m.lastRun),
		TicketLookups:  m.ticketLookups,
		TicketFailures: m.ticketFailures,
	}
}

// Reports returns the reports with a recorded run, sorted.
func (s Snapshot) Reports() []string {
	names := make([]string, 0, len(s.LastRun))
	for name := range s.LastRun {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pathKey(path, method, suffix string) string {
	return path + "|" + method + "|" + suffix
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyRuns(src map[string]RunStat) map[string]RunStat {
	out := make(map[string]RunStat, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
