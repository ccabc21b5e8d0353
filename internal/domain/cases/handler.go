package cases

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orflow/orflow/internal/domain/readiness"
	"github.com/orflow/orflow/internal/platform/auth"
	"github.com/orflow/orflow/internal/platform/db"
	"github.com/orflow/orflow/pkg/pagination"
)

// VerdictCache stores the latest evaluation verdict on the case plan for
// display. The transition guard never reads it; only dashboards do.
type VerdictCache interface {
	CacheReadinessVerdict(ctx context.Context, caseID uuid.UUID, status string, ready bool) error
}

// Handler exposes case lifecycle endpoints.
type Handler struct {
	sm        *StateMachine
	evaluator *readiness.Evaluator
	verdicts  VerdictCache
}

func NewHandler(sm *StateMachine, evaluator *readiness.Evaluator, verdicts VerdictCache) *Handler {
	return &Handler{sm: sm, evaluator: evaluator, verdicts: verdicts}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	surgeon := auth.RequireRole("admin", "surgeon")
	staff := auth.RequireRole("admin", "surgeon", "nurse", "coordinator")

	api.POST("/cases", h.CreateCase, surgeon)
	api.GET("/cases", h.ListCases, staff)
	api.GET("/cases/:id", h.GetCase, staff)
	api.GET("/cases/:id/readiness", h.Readiness, staff)
	api.POST("/cases/:id/transition", h.Transition, staff)
}

func (h *Handler) CreateCase(c echo.Context) error {
	var sc SurgicalCase
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorIDFromContext(c.Request().Context())
	if sc.PrimarySurgeonID == "" {
		sc.PrimarySurgeonID = actor
	}
	if err := h.sm.CreateCase(c.Request().Context(), &sc, actor); err != nil {
		return caseError(err)
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := c.QueryParam("status")
	items, total, err := h.sm.ListCases(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return caseError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sc, err := h.sm.GetCase(c.Request().Context(), id)
	if err != nil {
		return caseError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

// Readiness serves the dashboard badge. It calls the same evaluator the
// transition guard uses.
func (h *Handler) Readiness(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if _, err := h.sm.GetCase(c.Request().Context(), id); err != nil {
		return caseError(err)
	}
	report, err := h.evaluator.Evaluate(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.verdicts != nil {
		// Refresh the display cache on the plan. Best effort: a case without
		// a plan has nowhere to cache, and a failed write must not break the
		// read.
		_ = h.verdicts.CacheReadinessVerdict(c.Request().Context(), id, report.StatusLabel(), report.IsReady)
	}
	return c.JSON(http.StatusOK, report)
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	actor := auth.ActorIDFromContext(c.Request().Context())
	sc, err := h.sm.Transition(c.Request().Context(), id, req.Target, actor)
	if err != nil {
		return caseError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func caseError(err error) error {
	var illegal *IllegalTransitionError
	var notReady *readiness.ValidationError
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	case errors.As(err, &illegal):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message": illegal.Error(),
			"from":    illegal.From,
			"to":      illegal.To,
		})
	case errors.As(err, &notReady):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":         notReady.Error(),
			"missing_items":   notReady.MissingItems,
			"completed_count": notReady.CompletedCount,
			"total_required":  notReady.TotalRequired,
		})
	case errors.Is(err, ErrNoActiveBooking):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message":   "concurrent modification, retry from fresh state",
			"retryable": true,
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
