package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/domain"
	"github.com/bugdigest/bug-digest/internal/enrich"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/persistence"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/repository"
	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

// Run stages reported in failure events.
const (
	StageLock    = "lock"
	StageFetch   = "fetch"
	StagePublish = "publish"
)

// TaskLister returns scored tasks for a query.
type TaskLister interface {
	GetEnrichedTasks(ctx context.Context, taskListID string, query domain.TaskQuery) ([]domain.EnrichedTask, error)
}

// Publisher posts a message to a chat webhook.
type Publisher interface {
	Send(ctx context.Context, webhookURL, message string) error
}

// ReportService runs one report end to end.
type ReportService struct {
	catalog    report.Catalog
	tasks      TaskLister
	publisher  Publisher
	locker     persistence.RunLocker
	history    repository.RunRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	rows       report.TaskRow
	taskListID string
	teamID     int
	now        func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	Catalog    report.Catalog
	Tasks      TaskLister
	Publisher  Publisher
	Locker     persistence.RunLocker
	History    repository.RunRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Rows       report.TaskRow
	TaskListID string
	TeamID     int
	Now        func() time.Time
}

// RunOptions tunes a single run.
type RunOptions struct {
	DryRun  bool
	Trigger events.Trigger
}

// RunResult summarises a finished run.
type RunResult struct {
	RunID          string         `json:"run_id"`
	Report         report.Kind    `json:"report"`
	Trigger        events.Trigger `json:"trigger"`
	Title          string         `json:"title"`
	Cutoff         time.Time      `json:"cutoff"`
	Fetched        int            `json:"fetched"`
	Selected       int            `json:"selected"`
	UnknownTickets int            `json:"unknown_tickets"`
	Published      bool           `json:"published"`
	DryRun         bool           `json:"dry_run"`
	Duration       time.Duration  `json:"duration"`
	Message        string         `json:"message"`
}

// NewReportService constructs the service. A nil locker serializes nothing.
func NewReportService(deps ReportDependencies) *ReportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		catalog:    deps.Catalog,
		tasks:      deps.Tasks,
		publisher:  deps.Publisher,
		locker:     deps.Locker,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		rows:       deps.Rows,
		taskListID: deps.TaskListID,
		teamID:     deps.TeamID,
		now:        now,
	}
}

// Kinds lists the reports this service can run.
func (s *ReportService) Kinds() []report.Kind {
	return s.catalog.Kinds()
}

// Run fetches, scores, selects and renders the report, then publishes it unless DryRun
// is set. Dry runs skip the lock since they have no side effects. Any fetch or publish
// failure aborts the run and is returned.
func (s *ReportService) Run(ctx context.Context, kind report.Kind, opts RunOptions) (*RunResult, error) {
	def, ok := s.catalog.Lookup(kind)
	if !ok {
		return nil, apperrors.NewNotFound("report", map[string]any{"report": string(kind)})
	}
	if opts.Trigger == "" {
		opts.Trigger = events.TriggerUnknown
	}

	start := s.now()
	result := &RunResult{
		RunID:   uuid.NewString(),
		Report:  kind,
		Title:   def.Title,
		Trigger: opts.Trigger,
		Cutoff:  def.Cutoff(start),
		DryRun:  opts.DryRun,
	}
	logger := s.logger.With(
		zap.String("run_id", result.RunID),
		zap.String("report", string(kind)),
		zap.String("trigger", string(opts.Trigger)),
		zap.Bool("dry_run", opts.DryRun))

	if !opts.DryRun && s.locker != nil {
		lock, err := s.locker.TryAcquire(ctx, string(kind))
		if err != nil {
			if errors.Is(err, persistence.ErrLockHeld) {
				err = apperrors.NewRunInProgress(string(kind))
				logger.Warn("report already running")
				s.metrics.RecordRun(string(kind), observability.OutcomeSkipped, 0, 0, start)
				return nil, err
			}
			return nil, s.fail(ctx, logger, result, StageLock, start, apperrors.NewInternalError(err))
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release run lock failed", zap.Error(err))
			}
		}()
	}

	ctx = withRun(ctx, result.RunID, kind)
	s.publishEvent(ctx, events.New(events.EventRunStarted, result.RunID, string(kind), start, events.RunStartedPayload{
		Trigger: opts.Trigger,
		DryRun:  opts.DryRun,
		Cutoff:  result.Cutoff,
	}))
	logger.Info("report run started", zap.Time("cutoff", result.Cutoff))

	tasks, err := s.tasks.GetEnrichedTasks(ctx, s.taskListID, def.Query(start, s.teamID))
	if err != nil {
		return nil, s.fail(ctx, logger, result, StageFetch, start, err)
	}
	result.Fetched = len(tasks)
	s.recordLookups(tasks, result)

	selected := def.Select(tasks, result.Cutoff)
	result.Selected = len(selected)
	result.Message = report.Message(def.Title, s.rows.Table(selected))

	if !opts.DryRun {
		if err := s.publisher.Send(ctx, def.WebhookURL, result.Message); err != nil {
			return nil, s.fail(ctx, logger, result, StagePublish, start, err)
		}
		result.Published = true
		s.publishEvent(ctx, events.New(events.EventReportPublished, result.RunID, string(kind), s.now(), events.ReportPublishedPayload{
			Rows:         result.Selected,
			MessageBytes: len(result.Message),
		}))
	}

	result.Duration = s.now().Sub(start)
	s.metrics.RecordRun(string(kind), observability.OutcomeSuccess, result.Selected, result.Duration, start)
	s.publishEvent(ctx, events.New(events.EventRunCompleted, result.RunID, string(kind), s.now(), events.RunCompletedPayload{
		Fetched:        result.Fetched,
		Selected:       result.Selected,
		UnknownTickets: result.UnknownTickets,
		Published:      result.Published,
		Duration:       result.Duration,
	}))
	s.recordHistory(ctx, logger, result, start, domain.RunSucceeded, "", nil)
	logger.Info("report run completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("selected", result.Selected),
		zap.Int("unknown_tickets", result.UnknownTickets),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *ReportService) fail(ctx context.Context, logger *zap.Logger, result *RunResult, stage string, start time.Time, err error) error {
	duration := s.now().Sub(start)
	domainErr := apperrors.ToDomainError(err)
	s.metrics.RecordRun(string(result.Report), observability.OutcomeFailure, 0, duration, start)
	s.publishEvent(ctx, events.New(events.EventRunFailed, result.RunID, string(result.Report), s.now(), events.RunFailedPayload{
		Stage:    stage,
		Code:     domainErr.Code,
		Error:    err.Error(),
		Duration: duration,
	}))
	result.Duration = duration
	s.recordHistory(ctx, logger, result, start, domain.RunFailed, stage, domainErr)
	logger.Error("report run failed", zap.String("stage", stage), zap.Any("details", domainErr.Details), zap.Error(err))
	return err
}

// History returns the most recent runs of a report, newest first.
func (s *ReportService) History(ctx context.Context, kind report.Kind, limit int) ([]domain.RunRecord, error) {
	if _, ok := s.catalog.Lookup(kind); !ok {
		return nil, apperrors.NewNotFound("report", map[string]any{"report": string(kind)})
	}
	if s.history == nil {
		return []domain.RunRecord{}, nil
	}
	runs, err := s.history.ListByReport(ctx, string(kind), limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return runs, nil
}

// recordHistory stores runs that touched the chat destination. Dry runs are not kept.
func (s *ReportService) recordHistory(ctx context.Context, logger *zap.Logger, result *RunResult, start time.Time, outcome domain.RunOutcome, stage string, domainErr *apperrors.DomainError) {
	if s.history == nil || result.DryRun {
		return
	}
	record := &domain.RunRecord{
		ID:             result.RunID,
		Report:         string(result.Report),
		Trigger:        string(result.Trigger),
		Outcome:        outcome,
		Cutoff:         result.Cutoff,
		Fetched:        result.Fetched,
		Selected:       result.Selected,
		UnknownTickets: result.UnknownTickets,
		Published:      result.Published,
		StartedAt:      start,
		Duration:       result.Duration,
	}
	if domainErr != nil {
		record.Stage = &stage
		record.ErrorCode = &domainErr.Code
		record.Details = domainErr.Details
	}
	if err := s.history.Create(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("record run history failed", zap.Error(err))
	}
}

func (s *ReportService) recordLookups(tasks []domain.EnrichedTask, result *RunResult) {
	for _, task := range tasks {
		if !task.HasLinkedTickets {
			continue
		}
		failed := !task.TicketCount.Known
		if failed {
			result.UnknownTickets++
		}
		s.metrics.RecordTicketLookup(failed)
	}
}

func (s *ReportService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// TicketFailureHook turns failed ticket lookups into ticket_count_failed events carrying
// the run that caused them.
func TicketFailureHook(dispatcher events.Dispatcher, now func() time.Time) enrich.FailureFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, task domain.Task, err error) {
		if dispatcher == nil {
			return
		}
		run, _ := runFromContext(ctx)
		_ = dispatcher.Publish(ctx, events.New(events.EventTicketCountFailed, run.id, string(run.kind), now(), events.TicketCountFailedPayload{
			TaskID: string(task.ID),
			Error:  err.Error(),
		}))
	}
}

type runKey struct{}

type runInfo struct {
	id   string
	kind report.Kind
}

func withRun(ctx context.Context, id string, kind report.Kind) context.Context {
	return context.WithValue(ctx, runKey{}, runInfo{id: id, kind: kind})
}

func runFromContext(ctx context.Context) (runInfo, bool) {
	info, ok := ctx.Value(runKey{}).(runInfo)
	return info, ok
}
