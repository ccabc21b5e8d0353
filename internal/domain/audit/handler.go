package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orflow/orflow/internal/platform/auth"
	"github.com/orflow/orflow/pkg/pagination"
)

// Handler serves read-only audit trail queries.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "surgeon", "nurse", "coordinator"))
	read.GET("/audit/cases/:id", h.CaseTrail)
	read.GET("/audit/bookings/:id", h.BookingTrail)
	read.GET("/audit/actors/:actor_id", h.ActorTrail)
}

func (h *Handler) CaseTrail(c echo.Context) error {
	return h.targetTrail(c, TargetCase)
}

func (h *Handler) BookingTrail(c echo.Context) error {
	return h.targetTrail(c, TargetBooking)
}

func (h *Handler) targetTrail(c echo.Context, targetType string) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	events, total, err := h.svc.TrailForTarget(c.Request().Context(), targetType, id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}

func (h *Handler) ActorTrail(c echo.Context) error {
	actorID := c.Param("actor_id")
	if actorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor_id is required")
	}
	pg := pagination.FromContext(c)
	events, total, err := h.svc.TrailForActor(c.Request().Context(), actorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}
