package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bugdigest/bug-digest/internal/domain"
)

// TaskHeaders are the columns of both reports.
var TaskHeaders = []string{
	"Name",
	"Date Created",
	"Product Area",
	"Impact",
	"Priority",
	"Desk Tickets",
	"Bug Score",
}

const (
	emptyCell  = "-"
	dateLayout = "02/01/2006"
)

// FormatPriority renders a priority with its chat emoji. Matching is case-sensitive;
// an unrecognized value renders empty.
func FormatPriority(p domain.Priority) string {
	switch p {
	case domain.PriorityNone:
		return "No Priority"
	case domain.PriorityHigh:
		return ":heart: High"
	case domain.PriorityMedium:
		return ":yellow_heart: Medium"
	case domain.PriorityLow:
		return ":green_heart: Low"
	default:
		return ""
	}
}

// FormatDate renders day/month/year in loc. A nil loc means UTC.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// DateInPast returns now shifted back by the given number of calendar days.
func DateInPast(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// Message wraps a rendered table in the chat announcement.
func Message(title, table string) string {
	return fmt.Sprintf(":radioactive_sign: @online here are the **%s:** \n \n \n %s", title, table)
}

// TaskRow renders enriched tasks as table rows linking back to the task source.
type TaskRow struct {
	BaseURL  string
	Location *time.Location
}

// Row returns the cells for one task. Zero or unknown ticket counts and zero scores
// render as "-".
func (r TaskRow) Row(task domain.EnrichedTask) []string {
	tickets := emptyCell
	if task.TicketCount.Known && task.TicketCount.Value != 0 {
		tickets = strconv.Itoa(task.TicketCount.Value)
	}
	score := emptyCell
	if task.BugScore != 0 {
		score = strconv.Itoa(task.BugScore)
	}
	return []string{
		fmt.Sprintf("[%s](%s/app/tasks/%s)", task.Name, r.BaseURL, task.ID),
		FormatDate(task.CreatedAt, r.Location),
		orDash(task.ProductArea),
		orDash(task.Impact),
		FormatPriority(task.Priority),
		tickets,
		score,
	}
}

// Table renders the tasks with TaskHeaders.
func (r TaskRow) Table(tasks []domain.EnrichedTask) string {
	return RenderRows(TaskHeaders, tasks, r.Row)
}

func orDash(s string) string {
	if s == "" {
		return emptyCell
	}
	return s
}
