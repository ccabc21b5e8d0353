package planning

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orflow/orflow/internal/platform/auth"
	"github.com/orflow/orflow/internal/platform/db"
)

// Handler exposes plan, consent, image and checklist endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	surgeon := auth.RequireRole("admin", "surgeon")
	nurse := auth.RequireRole("admin", "nurse")
	staff := auth.RequireRole("admin", "surgeon", "nurse", "coordinator")

	api.POST("/cases/:case_id/plan", h.CreatePlan, surgeon)
	api.GET("/cases/:case_id/plan", h.GetPlan, staff)
	api.PUT("/cases/:case_id/plan", h.UpdatePlan, surgeon)
	api.PATCH("/cases/:case_id/plan/notes", h.UpdateNurseNotes, nurse)

	api.POST("/plans/:plan_id/consents", h.CreateConsent, staff)
	api.GET("/plans/:plan_id/consents", h.ListConsents, staff)
	api.POST("/consents/:id/sign", h.SignConsent, staff)
	api.POST("/consents/:id/revoke", h.RevokeConsent, staff)

	api.POST("/plans/:plan_id/images", h.RegisterImage, staff)
	api.GET("/plans/:plan_id/images", h.ListImages, staff)
	api.DELETE("/images/:id", h.DeleteImage, staff)

	api.PUT("/cases/:case_id/checklist", h.SaveChecklist, nurse)
	api.GET("/cases/:case_id/checklist", h.GetChecklist, staff)
}

func (h *Handler) CreatePlan(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var p CasePlan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.CaseID = caseID
	actor := auth.ActorIDFromContext(c.Request().Context())
	if err := h.svc.CreatePlan(c.Request().Context(), &p, actor); err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPlan(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	p, err := h.svc.GetPlan(c.Request().Context(), caseID)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var in CasePlan
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePlan(c.Request().Context(), caseID, &in)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateNurseNotes(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var body struct {
		PreOpNotes string `json:"pre_op_notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateNurseNotes(c.Request().Context(), caseID, body.PreOpNotes)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateConsent(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan id")
	}
	var f ConsentForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.CasePlanID = planID
	if err := h.svc.CreateConsent(c.Request().Context(), &f); err != nil {
		if errors.Is(err, ErrConsentActive) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return planError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ListConsents(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan id")
	}
	forms, err := h.svc.ListConsents(c.Request().Context(), planID)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, forms)
}

func (h *Handler) SignConsent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		WitnessName string `json:"witness_name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.SignConsent(c.Request().Context(), id, c.RealIP(), body.WitnessName)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.RevokeConsent(c.Request().Context(), id)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) RegisterImage(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan id")
	}
	var img PatientImage
	if err := c.Bind(&img); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	img.CasePlanID = planID
	if err := h.svc.RegisterImage(c.Request().Context(), &img); err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusCreated, img)
}

func (h *Handler) ListImages(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan id")
	}
	images, err := h.svc.ListImages(c.Request().Context(), planID)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, images)
}

func (h *Handler) DeleteImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteImage(c.Request().Context(), id); err != nil {
		return planError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SaveChecklist(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var cl PreOpChecklist
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.CaseID = caseID
	actor := auth.ActorIDFromContext(c.Request().Context())
	if err := h.svc.SaveChecklist(c.Request().Context(), &cl, actor); err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) GetChecklist(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	cl, err := h.svc.GetChecklist(c.Request().Context(), caseID)
	if err != nil {
		return planError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func planError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrConsentActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
