package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/service"
	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

// ReportRunner runs a single report.
type ReportRunner interface {
	Run(ctx context.Context, kind report.Kind, opts service.RunOptions) (*service.RunResult, error)
}

// Scheduler fires reports on their cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	runner  ReportRunner
	logger  *zap.Logger
	timeout time.Duration
	entries map[report.Kind]cron.EntryID
}

// NewScheduler registers every report with a non-empty cron expression. Expressions use
// the standard five-field format in the configured timezone.
func NewScheduler(cfg config.ScheduleConfig, runner ReportRunner, logger *zap.Logger, timeout time.Duration) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		entries: make(map[report.Kind]cron.EntryID),
	}

	exprs := map[report.Kind]string{
		report.KindStale: cfg.StaleCron,
		report.KindTop:   cfg.TopCron,
	}
	for _, kind := range []report.Kind{report.KindStale, report.KindTop} {
		expr := exprs[kind]
		if expr == "" {
			continue
		}
		kind := kind
		id, err := s.cron.AddFunc(expr, func() { s.runReport(kind) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s report %q: %w", kind, expr, err)
		}
		s.entries[kind] = id
	}
	return s, nil
}

// Scheduled reports the kinds with a cron entry.
func (s *Scheduler) Scheduled() []report.Kind {
	kinds := make([]report.Kind, 0, len(s.entries))
	for _, kind := range []report.Kind{report.KindStale, report.KindTop} {
		if _, ok := s.entries[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Next returns the next fire time for a kind, or zero when it is not scheduled or the
// scheduler is stopped.
func (s *Scheduler) Next(kind report.Kind) time.Time {
	id, ok := s.entries[kind]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, kind := range s.Scheduled() {
		s.logger.Info("report scheduled", zap.String("report", string(kind)), zap.Time("next", s.Next(kind)))
	}
}

// Stop stops firing and waits for running reports to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runReport(kind report.Kind) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.runner.Run(ctx, kind, service.RunOptions{Trigger: events.TriggerSchedule})
	switch {
	case err == nil:
	case apperrors.HasCode(err, apperrors.CodeRunInProgress):
		s.logger.Info("cron: already running elsewhere", zap.String("report", string(kind)))
	default:
		s.logger.Error("cron: report failed", zap.String("report", string(kind)), zap.Error(err))
	}
}
