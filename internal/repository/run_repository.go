package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugdigest/bug-digest/internal/domain"
)

// RunRepository stores report run history.
type RunRepository interface {
	Create(ctx context.Context, run *domain.RunRecord) error
	ListByReport(ctx context.Context, report string, limit int) ([]domain.RunRecord, error)
}

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository builds repository.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Create(ctx context.Context, run *domain.RunRecord) error {
	const query = `
        INSERT INTO report_runs (id, report, trigger, outcome, stage, error_code, details, cutoff,
            fetched, selected, unknown_tickets, published, started_at, duration_ms)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		run.ID,
		run.Report,
		run.Trigger,
		run.Outcome,
		run.Stage,
		run.ErrorCode,
		run.Details,
		run.Cutoff,
		run.Fetched,
		run.Selected,
		run.UnknownTickets,
		run.Published,
		run.StartedAt,
		run.Duration.Milliseconds(),
	).Scan(&run.CreatedAt)
}

func (r *runRepository) ListByReport(ctx context.Context, report string, limit int) ([]domain.RunRecord, error) {
	const query = `
        SELECT id, report, trigger, outcome, stage, error_code, details, cutoff,
            fetched, selected, unknown_tickets, published, started_at, duration_ms, created_at
        FROM report_runs WHERE report=$1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, report, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var durationMS int64
		if err := rows.Scan(
			&run.ID,
			&run.Report,
			&run.Trigger,
			&run.Outcome,
			&run.Stage,
			&run.ErrorCode,
			&run.Details,
			&run.Cutoff,
			&run.Fetched,
			&run.Selected,
			&run.UnknownTickets,
			&run.Published,
			&run.StartedAt,
			&durationMS,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		result = append(result, run)
	}
	return result, rows.Err()
}

// memoryRunRepository keeps the last max runs per report in process memory.
type memoryRunRepository struct {
	mu   sync.Mutex
	max  int
	now  func() time.Time
	runs map[string][]domain.RunRecord
}

// NewMemoryRunRepository builds an in-process history holding at most max runs per
// report. A non-positive max keeps 50.
func NewMemoryRunRepository(max int) RunRepository {
	if max <= 0 {
		max = 50
	}
	return &memoryRunRepository{max: max, now: time.Now, runs: make(map[string][]domain.RunRecord)}
}

func (r *memoryRunRepository) Create(_ context.Context, run *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.CreatedAt = r.now()
	runs := append(r.runs[run.Report], *run)
	if len(runs) > r.max {
		runs = runs[len(runs)-r.max:]
	}
	r.runs[run.Report] = runs
	return nil
}

func (r *memoryRunRepository) ListByReport(_ context.Context, report string, limit int) ([]domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.RunRecord(nil), r.runs[report]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
