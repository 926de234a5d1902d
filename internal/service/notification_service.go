package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/observability"
)

// NotificationService logs run lifecycle events and counts them.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRunStarted, n.handleRunStarted)
	n.dispatcher.Subscribe(events.EventRunCompleted, n.handleRunCompleted)
	n.dispatcher.Subscribe(events.EventRunFailed, n.handleRunFailed)
	n.dispatcher.Subscribe(events.EventTicketCountFailed, n.handleTicketCountFailed)
	n.dispatcher.Subscribe(events.EventReportPublished, n.handleReportPublished)
}

func (n *NotificationService) handleRunStarted(_ context.Context, event events.Event) error {
	n.record(event)
	n.logger.Debug("RunStarted", eventFields(event)...)
	return nil
}

func (n *NotificationService) handleRunCompleted(_ context.Context, event events.Event) error {
	n.record(event)
	n.logger.Debug("RunCompleted", eventFields(event)...)
	return nil
}

func (n *NotificationService) handleRunFailed(_ context.Context, event events.Event) error {
	n.record(event)
	n.logger.Warn("RunFailed", eventFields(event)...)
	return nil
}

func (n *NotificationService) handleTicketCountFailed(_ context.Context, event events.Event) error {
	n.record(event)
	n.logger.Debug("TicketCountFailed", eventFields(event)...)
	return nil
}

func (n *NotificationService) handleReportPublished(_ context.Context, event events.Event) error {
	n.record(event)
	n.logger.Info("ReportPublished", eventFields(event)...)
	return nil
}

func (n *NotificationService) record(event events.Event) {
	n.metrics.RecordEvent(string(event.Type))
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("run_id", event.RunID),
		zap.String("report", event.Report),
		zap.Any("payload", event.Payload),
	}
}
