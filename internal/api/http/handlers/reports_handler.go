package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bugdigest/bug-digest/internal/api/dto"
	"github.com/bugdigest/bug-digest/internal/domain"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/service"
	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

// ReportRunner runs a single report.
type ReportRunner interface {
	Kinds() []report.Kind
	Run(ctx context.Context, kind report.Kind, opts service.RunOptions) (*service.RunResult, error)
	History(ctx context.Context, kind report.Kind, limit int) ([]domain.RunRecord, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ReportsHandler triggers and previews reports.
type ReportsHandler struct {
	runner  ReportRunner
	metrics *observability.Metrics
}

// NewReportsHandler constructs handler.
func NewReportsHandler(runner ReportRunner, metrics *observability.Metrics) *ReportsHandler {
	return &ReportsHandler{runner: runner, metrics: metrics}
}

// List GET /reports.
func (h *ReportsHandler) List(c *fiber.Ctx) error {
	snap := h.metrics.Snapshot()
	items := make([]dto.ReportInfo, 0)
	for _, kind := range h.runner.Kinds() {
		info := dto.ReportInfo{Kind: string(kind)}
		if stat, ok := snap.LastRun[string(kind)]; ok {
			info.LastRun = &stat
		}
		items = append(items, info)
	}
	return c.JSON(fiber.Map{"data": items})
}

// Run POST /reports/:kind/run.
func (h *ReportsHandler) Run(c *fiber.Ctx) error {
	var req dto.RunReportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	res, err := h.runner.Run(c.UserContext(), report.Kind(c.Params("kind")), service.RunOptions{
		DryRun:  req.DryRun,
		Trigger: events.TriggerAPI,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRunSummary(res, req.DryRun)})
}

// Preview GET /reports/:kind/preview. Renders without publishing; ?format=markdown
// returns the raw chat message.
func (h *ReportsHandler) Preview(c *fiber.Ctx) error {
	res, err := h.runner.Run(c.UserContext(), report.Kind(c.Params("kind")), service.RunOptions{
		DryRun:  true,
		Trigger: events.TriggerPreview,
	})
	if err != nil {
		return err
	}
	if c.Query("format") == "markdown" {
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		return c.SendString(res.Message)
	}
	return c.JSON(fiber.Map{"data": dto.NewRunSummary(res, true)})
}

// Runs GET /reports/:kind/runs.
func (h *ReportsHandler) Runs(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			return apperrors.NewValidationError("limit must be between 1 and 100", map[string]any{"limit": raw})
		}
		limit = parsed
	}

	runs, err := h.runner.History(c.UserContext(), report.Kind(c.Params("kind")), limit)
	if err != nil {
		return err
	}
	items := make([]dto.RunRecord, 0, len(runs))
	for i := range runs {
		items = append(items, dto.NewRunRecord(&runs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
