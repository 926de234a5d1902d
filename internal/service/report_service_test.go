package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/domain"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/persistence"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/repository"
	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

var runStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeLister struct {
	mu      sync.Mutex
	tasks   []domain.EnrichedTask
	err     error
	queries []domain.TaskQuery
	listIDs []string
	block   chan struct{}
}

func (f *fakeLister) GetEnrichedTasks(_ context.Context, listID string, q domain.TaskQuery) ([]domain.EnrichedTask, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.listIDs = append(f.listIDs, listID)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.tasks, f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	urls     []string
	messages []string
	err      error
}

func (f *fakePublisher) Send(_ context.Context, url, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.messages = append(f.messages, message)
	return f.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) subscribe(d events.Dispatcher) {
	for _, t := range []events.EventType{
		events.EventRunStarted, events.EventRunCompleted, events.EventRunFailed,
		events.EventTicketCountFailed, events.EventReportPublished,
	} {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc       *ReportService
	lister    *fakeLister
	publisher *fakePublisher
	recorder  *recorder
	metrics   *observability.Metrics
	logs      *observer.ObservedLogs
}

func newFixture(tasks []domain.EnrichedTask, locker persistence.RunLocker) *fixture {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	rec.subscribe(dispatcher)
	f := &fixture{
		lister:    &fakeLister{tasks: tasks},
		publisher: &fakePublisher{},
		recorder:  rec,
		metrics:   observability.NewMetrics(),
		logs:      logs,
	}
	f.svc = NewReportService(ReportDependencies{
		Catalog: report.NewCatalog(
			config.ReportsConfig{StaleMinAgeDays: 90, TopLimit: 10, TopPageSize: 100},
			config.WebhookConfig{StaleReportURL: "https://chat/stale", TopReportURL: "https://chat/top"},
		),
		Tasks:      f.lister,
		Publisher:  f.publisher,
		Locker:     locker,
		Dispatcher: dispatcher,
		Metrics:    f.metrics,
		Logger:     zap.New(core),
		Rows:       report.TaskRow{BaseURL: "https://tasks.example.com"},
		TaskListID: "42",
		TeamID:     9,
		Now:        func() time.Time { return runStart },
	})
	return f
}

func scored(id string, score int, age int) domain.EnrichedTask {
	return domain.EnrichedTask{
		Task: domain.Task{
			ID:        domain.TaskID(id),
			Name:      "Bug " + id,
			CreatedAt: runStart.AddDate(0, 0, -age),
			Priority:  domain.PriorityHigh,
		},
		TicketCount: domain.KnownTicketCount(0),
		BugScore:    score,
	}
}

func TestReportService_Run_Top(t *testing.T) {
	t.Parallel()

	f := newFixture([]domain.EnrichedTask{scored("a", 2, 5), scored("b", 15, 5), scored("c", 8, 5)}, persistence.NewMemoryLocker(time.Minute))

	res, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{Trigger: events.TriggerCLI})

	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 3, res.Selected)
	require.Len(t, f.publisher.messages, 1)
	assert.Equal(t, "https://chat/top", f.publisher.urls[0])

	msg := f.publisher.messages[0]
	assert.True(t, strings.HasPrefix(msg, ":radioactive_sign: @online here are the **Top Ten Open Bugs:** \n \n \n | Name |"))
	assert.Less(t, strings.Index(msg, "Bug b"), strings.Index(msg, "Bug c"))
	assert.Less(t, strings.Index(msg, "Bug c"), strings.Index(msg, "Bug a"))

	require.Len(t, f.lister.queries, 1)
	assert.Equal(t, "42", f.lister.listIDs[0])
	assert.Equal(t, runStart, f.lister.queries[0].CreatedBefore)
	assert.Equal(t, 100, f.lister.queries[0].PageSize)
	assert.Equal(t, []int{9}, f.lister.queries[0].AssigneeTeamIDs)

	assert.Equal(t, []events.EventType{events.EventRunStarted, events.EventReportPublished, events.EventRunCompleted}, f.recorder.types())
	assert.Equal(t, int64(1), f.metrics.Snapshot().Runs["top|success"])
}

func TestReportService_Run_Stale(t *testing.T) {
	t.Parallel()

	f := newFixture([]domain.EnrichedTask{scored("recent", 1, 30), scored("older", 1, 120), scored("oldest", 1, 200)}, nil)

	res, err := f.svc.Run(context.Background(), report.KindStale, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, runStart.AddDate(0, 0, -90), f.lister.queries[0].CreatedBefore)
	assert.Zero(t, f.lister.queries[0].PageSize)

	msg := f.publisher.messages[0]
	assert.Contains(t, msg, "**Tasks Over 90 Days Old:**")
	assert.NotContains(t, msg, "Bug recent")
	assert.Less(t, strings.Index(msg, "Bug oldest"), strings.Index(msg, "Bug older"))
	assert.Equal(t, "https://chat/stale", f.publisher.urls[0])
}

func TestReportService_Run_When_Empty(t *testing.T) {
	t.Parallel()

	f := newFixture(nil, nil)

	res, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})

	require.NoError(t, err)
	assert.Zero(t, res.Selected)
	require.Len(t, f.publisher.messages, 1)
	assert.True(t, strings.HasSuffix(f.publisher.messages[0], "| --- | --- | --- | --- | --- | --- | --- |"))
}

func TestReportService_Run_When_DryRun(t *testing.T) {
	t.Parallel()

	locker := persistence.NewMemoryLocker(time.Minute)
	held, err := locker.TryAcquire(context.Background(), "top")
	require.NoError(t, err)
	defer held.Release(context.Background()) //nolint:errcheck

	f := newFixture([]domain.EnrichedTask{scored("a", 4, 1)}, locker)

	res, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{DryRun: true, Trigger: events.TriggerPreview})

	require.NoError(t, err)
	assert.False(t, res.Published)
	assert.True(t, res.DryRun)
	assert.Contains(t, res.Message, "[Bug a](https://tasks.example.com/app/tasks/a)")
	assert.Empty(t, f.publisher.messages)
	assert.NotContains(t, f.recorder.types(), events.EventReportPublished)
}

func TestReportService_Run_When_FetchFails(t *testing.T) {
	t.Parallel()

	f := newFixture(nil, persistence.NewMemoryLocker(time.Minute))
	f.lister.err = apperrors.NewFetchFailed("https://tasks/x", 500, errors.New("unexpected status"))

	_, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFetchFailed))
	assert.Empty(t, f.publisher.messages)
	assert.Equal(t, []events.EventType{events.EventRunStarted, events.EventRunFailed}, f.recorder.types())
	assert.Equal(t, int64(1), f.metrics.Snapshot().Runs["top|failure"])

	entries := f.logs.FilterMessage("report run failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, StageFetch, entries[0].ContextMap()["stage"])

	_, err = f.svc.Run(context.Background(), report.KindTop, RunOptions{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFetchFailed), "lock released after failure")
}

func TestReportService_Run_When_PublishFails(t *testing.T) {
	t.Parallel()

	f := newFixture([]domain.EnrichedTask{scored("a", 4, 1)}, nil)
	f.publisher.err = apperrors.NewPublishFailed("https://chat/top", 500, "nope", errors.New("unexpected status"))

	_, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})

	assert.True(t, apperrors.HasCode(err, apperrors.CodePublishFailed))
	assert.Equal(t, []events.EventType{events.EventRunStarted, events.EventRunFailed}, f.recorder.types())
}

func TestReportService_Run_When_AlreadyRunning(t *testing.T) {
	t.Parallel()

	f := newFixture([]domain.EnrichedTask{scored("a", 4, 1)}, persistence.NewMemoryLocker(time.Minute))
	f.lister.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})
		done <- err
	}()
	require.Eventually(t, func() bool {
		f.lister.mu.Lock()
		defer f.lister.mu.Unlock()
		return len(f.lister.queries) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRunInProgress))

	close(f.lister.block)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Runs["top|skipped"])
}

func TestReportService_Run_When_UnknownReport(t *testing.T) {
	t.Parallel()

	f := newFixture(nil, nil)

	_, err := f.svc.Run(context.Background(), "weekly", RunOptions{})

	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Empty(t, f.lister.queries)
}

func TestReportService_Run_CountsUnknownTickets(t *testing.T) {
	t.Parallel()

	linkedOK := scored("a", 4, 1)
	linkedOK.HasLinkedTickets = true
	linkedOK.TicketCount = domain.KnownTicketCount(2)
	linkedFailed := scored("b", 4, 1)
	linkedFailed.HasLinkedTickets = true
	linkedFailed.TicketCount = domain.UnknownTicketCount()

	f := newFixture([]domain.EnrichedTask{linkedOK, linkedFailed, scored("c", 1, 1)}, nil)

	res, err := f.svc.Run(context.Background(), report.KindTop, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.UnknownTickets)
	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(2), snap.TicketLookups)
	assert.Equal(t, int64(1), snap.TicketFailures)
}

func TestTicketFailureHook(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	rec.subscribe(dispatcher)
	hook := TicketFailureHook(dispatcher, func() time.Time { return runStart })

	ctx := withRun(context.Background(), "run-1", report.KindTop)
	hook(ctx, domain.Task{ID: "77"}, errors.New("desk down"))

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, events.EventTicketCountFailed, e.Type)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, "top", e.Report)
	assert.Equal(t, events.TicketCountFailedPayload{TaskID: "77", Error: "desk down"}, e.Payload)
}

func TestNotificationService_RegisterHandlers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(dispatcher, zap.New(core), metrics).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventRunFailed, "r", "top", runStart, events.RunFailedPayload{Stage: StageFetch})))
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventReportPublished, "r", "top", runStart, nil)))

	assert.Equal(t, 1, logs.FilterMessage("RunFailed").Len())
	assert.Equal(t, 1, logs.FilterMessage("ReportPublished").Len())
	assert.Equal(t, int64(1), metrics.Snapshot().Events["report_run_failed"])
}

func TestReportService_History(t *testing.T) {
	t.Parallel()

	f := newFixture([]domain.EnrichedTask{scored("a", 4, 1)}, nil)
	f.svc.history = repository.NewMemoryRunRepository(10)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, report.KindTop, RunOptions{Trigger: events.TriggerCLI})
	require.NoError(t, err)
	_, err = f.svc.Run(ctx, report.KindTop, RunOptions{DryRun: true})
	require.NoError(t, err)
	f.publisher.err = apperrors.NewPublishFailed("https://chat/top", 500, "", errors.New("unexpected status"))
	_, err = f.svc.Run(ctx, report.KindTop, RunOptions{Trigger: events.TriggerSchedule})
	require.Error(t, err)

	runs, err := f.svc.History(ctx, report.KindTop, 10)

	require.NoError(t, err)
	require.Len(t, runs, 2, "dry runs are not recorded")
	outcomes := map[domain.RunOutcome]domain.RunRecord{}
	for _, run := range runs {
		outcomes[run.Outcome] = run
	}
	ok := outcomes[domain.RunSucceeded]
	assert.Equal(t, "cli", ok.Trigger)
	assert.True(t, ok.Published)
	assert.Nil(t, ok.Stage)
	failed := outcomes[domain.RunFailed]
	require.NotNil(t, failed.Stage)
	assert.Equal(t, StagePublish, *failed.Stage)
	assert.Equal(t, apperrors.CodePublishFailed, *failed.ErrorCode)
	assert.Equal(t, "https://chat/top", failed.Details["url"])

	_, err = f.svc.History(ctx, "weekly", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestReportService_History_When_NotConfigured(t *testing.T) {
	t.Parallel()

	runs, err := newFixture(nil, nil).svc.History(context.Background(), report.KindStale, 5)

	require.NoError(t, err)
	assert.Empty(t, runs)
}
