// Package report holds the report variants and their markdown rendering.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/domain"
)

// Kind names a report variant.
type Kind string

const (
	KindStale Kind = "stale"
	KindTop   Kind = "top"
)

// SelectFunc applies a report's filter, order and cap to enriched tasks.
type SelectFunc func(tasks []domain.EnrichedTask, cutoff time.Time) []domain.EnrichedTask

// Definition describes one report variant.
type Definition struct {
	Kind       Kind
	Title      string
	MinAgeDays int
	PageSize   int
	WebhookURL string
	Select     SelectFunc
}

// Cutoff is the createdBefore bound for a run starting at now.
func (d Definition) Cutoff(now time.Time) time.Time {
	return DateInPast(now, d.MinAgeDays)
}

// Query builds the task source filter for a run starting at now.
func (d Definition) Query(now time.Time, teamID int) domain.TaskQuery {
	q := domain.DefaultTaskQuery(d.Cutoff(now), teamID)
	if d.PageSize > 0 {
		q.PageSize = d.PageSize
		q.Limit = d.PageSize
	}
	return q
}

// Catalog is the set of configured reports.
type Catalog map[Kind]Definition

// NewCatalog builds the stale and top report definitions.
func NewCatalog(reports config.ReportsConfig, hooks config.WebhookConfig) Catalog {
	return Catalog{
		KindStale: StaleDefinition(reports.StaleMinAgeDays, hooks.StaleReportURL),
		KindTop:   TopDefinition(reports.TopLimit, reports.TopPageSize, hooks.TopReportURL),
	}
}

// Lookup returns the definition for a kind.
func (c Catalog) Lookup(kind Kind) (Definition, bool) {
	d, ok := c[kind]
	return d, ok
}

// Kinds returns the configured kinds in a stable order.
func (c Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// StaleDefinition lists every task older than minAgeDays, oldest first.
func StaleDefinition(minAgeDays int, webhookURL string) Definition {
	return Definition{
		Kind:       KindStale,
		Title:      fmt.Sprintf("Tasks Over %d Days Old", minAgeDays),
		MinAgeDays: minAgeDays,
		WebhookURL: webhookURL,
		Select:     SelectStale,
	}
}

// TopDefinition lists the highest scoring open tasks.
func TopDefinition(limit, pageSize int, webhookURL string) Definition {
	title := "Top Ten Open Bugs"
	if limit != 10 {
		title = fmt.Sprintf("Top %d Open Bugs", limit)
	}
	return Definition{
		Kind:       KindTop,
		Title:      title,
		PageSize:   pageSize,
		WebhookURL: webhookURL,
		Select:     SelectTop(limit),
	}
}

// SelectStale keeps tasks created before the cutoff in ascending creation order.
func SelectStale(tasks []domain.EnrichedTask, cutoff time.Time) []domain.EnrichedTask {
	out := make([]domain.EnrichedTask, 0, len(tasks))
	for _, t := range tasks {
		if t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SelectTop orders by bug score descending and keeps the first limit tasks.
// Equal scores keep fetch order. A non-positive limit keeps everything.
func SelectTop(limit int) SelectFunc {
	return func(tasks []domain.EnrichedTask, _ time.Time) []domain.EnrichedTask {
		out := make([]domain.EnrichedTask, len(tasks))
		copy(out, tasks)
		sort.SliceStable(out, func(i, j int) bool { return out[i].BugScore > out[j].BugScore })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out
	}
}
