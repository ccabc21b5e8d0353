package theater

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orflow/orflow/internal/platform/auth"
	"github.com/orflow/orflow/internal/platform/db"
	"github.com/orflow/orflow/pkg/pagination"
)

// Handler exposes theater administration and booking endpoints.
type Handler struct {
	sched        *Scheduler
	graceMinutes int
}

func NewHandler(sched *Scheduler, graceMinutes int) *Handler {
	return &Handler{sched: sched, graceMinutes: graceMinutes}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := auth.RequireRole("admin")
	clerk := auth.RequireRole("admin", "coordinator")
	staff := auth.RequireRole("admin", "surgeon", "nurse", "coordinator")

	api.POST("/theaters", h.CreateTheater, admin)
	api.GET("/theaters", h.ListTheaters, staff)
	api.GET("/theaters/:id", h.GetTheater, staff)
	api.PUT("/theaters/:id", h.UpdateTheater, admin)
	api.GET("/theaters/:id/bookings", h.RelevantBookings, staff)

	api.POST("/bookings", h.Book, clerk)
	api.GET("/bookings/:id", h.GetBooking, staff)
	api.POST("/bookings/:id/confirm", h.ConfirmBooking, clerk)
	api.POST("/bookings/:id/cancel", h.CancelBooking, clerk)
}

func (h *Handler) CreateTheater(c echo.Context) error {
	var t Theater
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.sched.CreateTheater(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTheaters(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	theaters, total, err := h.sched.ListTheaters(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(theaters, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetTheater(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.sched.GetTheater(c.Request().Context(), id)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTheater(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Theater
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.sched.UpdateTheater(c.Request().Context(), &t); err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// RelevantBookings serves the dashboard query. as_of defaults to now and
// grace_minutes to the configured window.
func (h *Handler) RelevantBookings(c echo.Context) error {
	theaterID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	asOf := time.Now().UTC()
	if raw := c.QueryParam("as_of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be RFC3339")
		}
	}
	grace := h.graceMinutes
	if raw := c.QueryParam("grace_minutes"); raw != "" {
		grace, err = strconv.Atoi(raw)
		if err != nil || grace < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "grace_minutes must be a non-negative integer")
		}
	}
	bookings, err := h.sched.ListRelevant(c.Request().Context(), theaterID, asOf, grace)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, bookings)
}

type bookRequest struct {
	CaseID    uuid.UUID `json:"case_id"`
	TheaterID uuid.UUID `json:"theater_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CaseID == uuid.Nil || req.TheaterID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "case_id and theater_id are required")
	}
	actor := auth.ActorIDFromContext(c.Request().Context())
	b, err := h.sched.Book(c.Request().Context(), req.TheaterID, req.CaseID, req.StartTime, req.EndTime, actor)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.sched.bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ConfirmBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorIDFromContext(c.Request().Context())
	b, err := h.sched.Confirm(c.Request().Context(), id, actor)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorIDFromContext(c.Request().Context())
	b, err := h.sched.Cancel(c.Request().Context(), id, actor)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func bookingError(err error) error {
	var conflict *ConflictError
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalidInterval):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message":                "booking conflict",
			"conflicting_booking_id": conflict.ConflictingBookingID,
		})
	case errors.Is(err, db.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message":   "concurrent modification, retry from fresh state",
			"retryable": true,
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
