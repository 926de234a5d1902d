package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/domain"
	"github.com/bugdigest/bug-digest/internal/scoring"
)

// TaskSource fetches a page of tasks and their included side-tables.
type TaskSource interface {
	FetchTasks(ctx context.Context, taskListID string, query domain.TaskQuery) (*domain.TaskPage, error)
}

// Pipeline fetches tasks, joins custom fields, attaches ticket counts and scores them.
type Pipeline struct {
	source   TaskSource
	enricher *TicketEnricher
	logger   *zap.Logger
}

// NewPipeline wires the pipeline stages.
func NewPipeline(source TaskSource, enricher *TicketEnricher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{source: source, enricher: enricher, logger: logger}
}

// GetEnrichedTasks runs the whole pipeline. A fetch failure aborts with an error;
// ticket lookup failures only mark the affected tasks.
func (p *Pipeline) GetEnrichedTasks(ctx context.Context, taskListID string, query domain.TaskQuery) ([]domain.EnrichedTask, error) {
	page, err := p.source.FetchTasks(ctx, taskListID, query)
	if err != nil {
		return nil, err
	}

	fieldsByTask := GroupFieldsByTask(page.Included.CustomFields, page.Included.CustomFieldTasks)

	counted, err := p.enricher.Enrich(ctx, page.Tasks)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EnrichedTask, len(counted))
	for i, task := range counted {
		fields := fieldsByTask[task.ID]
		impact, _ := FieldValueByName(fields, FieldImpact)
		productArea, _ := FieldValueByName(fields, FieldProductArea)

		task.CustomFields = fields
		task.Impact = impact
		task.ProductArea = productArea
		task.BugScore = scoring.CalculateBugScore(scoring.ScoreInput{
			Impact:      impact,
			Priority:    string(task.Priority),
			TicketCount: task.TicketCount.OrZero(),
		})
		out[i] = task
	}

	p.logger.Info("tasks enriched",
		zap.String("task_list_id", taskListID),
		zap.Int("tasks", len(out)),
		zap.Int("field_assignments", len(page.Included.CustomFieldTasks)))
	return out, nil
}
