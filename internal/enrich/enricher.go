package enrich

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bugdigest/bug-digest/internal/domain"
)

// TicketCounter counts support tickets linked to a task.
type TicketCounter interface {
	CountTickets(ctx context.Context, taskID domain.TaskID) (int, error)
}

// FailureFunc is called once per task whose ticket lookup failed. It may be called
// from several goroutines at once.
type FailureFunc func(ctx context.Context, task domain.Task, err error)

// Throttle is the pacing policy for ticket lookups. Lookups run BatchSize at a time;
// Pause separates consecutive batches. A non-nil Limiter additionally gates every call
// through a token bucket.
type Throttle struct {
	BatchSize int
	Pause     time.Duration
	Limiter   *rate.Limiter
}

// DefaultThrottle is five concurrent lookups with a half-second gap between batches.
func DefaultThrottle() Throttle {
	return Throttle{BatchSize: 5, Pause: 500 * time.Millisecond}
}

// TicketEnricher attaches ticket counts to tasks.
type TicketEnricher struct {
	counter   TicketCounter
	throttle  Throttle
	logger    *zap.Logger
	sleep     func(context.Context, time.Duration) error
	onFailure FailureFunc
}

// EnricherOption customises a TicketEnricher.
type EnricherOption func(*TicketEnricher)

// WithSleeper replaces the pause between batches.
func WithSleeper(sleep func(context.Context, time.Duration) error) EnricherOption {
	return func(e *TicketEnricher) { e.sleep = sleep }
}

// WithFailureHook registers a callback for failed lookups.
func WithFailureHook(fn FailureFunc) EnricherOption {
	return func(e *TicketEnricher) { e.onFailure = fn }
}

// NewTicketEnricher builds an enricher. A non-positive batch size is treated as 1.
func NewTicketEnricher(counter TicketCounter, throttle Throttle, logger *zap.Logger, opts ...EnricherOption) *TicketEnricher {
	if throttle.BatchSize <= 0 {
		throttle.BatchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &TicketEnricher{
		counter:  counter,
		throttle: throttle,
		logger:   logger,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns one EnrichedTask per input task, in input order, with TicketCount set.
// Tasks without linked tickets get a known zero and no lookup. A failed lookup leaves
// that task's count unknown and does not affect the others.
func (e *TicketEnricher) Enrich(ctx context.Context, tasks []domain.Task) ([]domain.EnrichedTask, error) {
	out := make([]domain.EnrichedTask, 0, len(tasks))

	for start := 0; start < len(tasks); start += e.throttle.BatchSize {
		if start > 0 && e.throttle.Pause > 0 {
			if err := e.sleep(ctx, e.throttle.Pause); err != nil {
				return nil, err
			}
		}

		end := start + e.throttle.BatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]
		results := make([]domain.EnrichedTask, len(batch))

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = domain.EnrichedTask{
					Task:        batch[i],
					TicketCount: e.lookup(ctx, batch[i]),
				}
			}(i)
		}
		wg.Wait()

		out = append(out, results...)
	}
	return out, nil
}

func (e *TicketEnricher) lookup(ctx context.Context, task domain.Task) domain.TicketCount {
	if !task.HasLinkedTickets {
		return domain.KnownTicketCount(0)
	}

	if e.throttle.Limiter != nil {
		if err := e.throttle.Limiter.Wait(ctx); err != nil {
			e.fail(ctx, task, err)
			return domain.UnknownTicketCount()
		}
	}

	n, err := e.counter.CountTickets(ctx, task.ID)
	if err != nil {
		e.fail(ctx, task, err)
		return domain.UnknownTicketCount()
	}
	e.logger.Debug("ticket count", zap.String("task_id", task.ID.String()), zap.Int("count", n))
	return domain.KnownTicketCount(n)
}

func (e *TicketEnricher) fail(ctx context.Context, task domain.Task, err error) {
	e.logger.Warn("ticket count lookup failed", zap.String("task_id", task.ID.String()), zap.Error(err))
	if e.onFailure != nil {
		e.onFailure(ctx, task, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
