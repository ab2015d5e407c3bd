package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/errorutil"
)

// TimerLister reads timers by status.
type TimerLister interface {
	ListByStatus(ctx context.Context, status domain.SLAStatus, limit int) ([]domain.SLATimer, error)
}

// PassRunner runs one SLA evaluation pass.
type PassRunner interface {
	CheckAll(ctx context.Context) (string, error)
}

// SLAHandler exposes SLA timers and a manual pass trigger.
type SLAHandler struct {
	timers  TimerLister
	checker PassRunner
}

// NewSLAHandler constructs handler.
func NewSLAHandler(timers TimerLister, checker PassRunner) *SLAHandler {
	return &SLAHandler{timers: timers, checker: checker}
}

// ListTimers GET /api/sla/timers?status=ACTIVE&limit=100.
func (h *SLAHandler) ListTimers(c *fiber.Ctx) error {
	status, ok := domain.ParseSLAStatus(c.Query("status", string(domain.SLAStatusActive)))
	if !ok {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": c.Query("status")})
	}
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	timers, err := h.timers.ListByStatus(c.UserContext(), status, limit)
	if err != nil {
		return err
	}
	items := make([]dto.SLATimerResponse, 0, len(timers))
	for _, timer := range timers {
		items = append(items, dto.NewSLATimerResponse(timer))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RunCheck POST /api/sla/check.
func (h *SLAHandler) RunCheck(c *fiber.Ctx) error {
	summary, err := h.checker.CheckAll(c.UserContext())
	if err != nil {
		return apperrors.NewUnavailable("sla check failed", map[string]any{"reason": err.Error()})
	}
	return c.JSON(fiber.Map{"data": dto.SLACheckResponse{Summary: summary}})
}
