package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/internal/platform/auth"
	"github.com/erms/erms/pkg/pagination"
)

// Handler exposes the patient lifecycle endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	staff.POST("/patients", h.Register)
	staff.GET("/patients", h.List)
	staff.GET("/patients/:id", h.Get)
	staff.PUT("/patients/:id", h.Update)
	staff.POST("/patients/:id/discharge", h.Discharge)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.Delete)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func actorFrom(c echo.Context) triage.Actor {
	var actor triage.Actor
	if raw := auth.UserIDFromContext(c.Request().Context()); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.UserID = &id
		}
	}
	if tenant, ok := c.Get("jwt_tenant_id").(string); ok && tenant != "" {
		if id, err := uuid.Parse(tenant); err == nil {
			actor.TenantID = &id
		}
	}
	return actor
}

func patientData(p *Patient) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"patientId":      p.PatientID,
		"name":           p.Name,
		"age":            p.Age,
		"gender":         p.Gender,
		"phone":          p.Phone,
		"bloodGroup":     p.BloodGroup,
		"address":        p.Address,
		"complaint":      p.Complaint,
		"history":        p.History,
		"status":         p.Status,
		"priority":       p.Priority,
		"priorityLabel":  p.PriorityLabel,
		"priorityColor":  p.PriorityColor,
		"departmentId":   p.DepartmentID,
		"bedId":          p.BedID,
		"admittedAt":     p.AdmittedAt,
		"dischargedAt":   p.DischargedAt,
		"dischargeNotes": p.DischargeNotes,
	}
}

func triageData(res *triage.Result) map[string]interface{} {
	return map[string]interface{}{
		"priority":            res.Priority,
		"priorityLabel":       res.PriorityLabel,
		"priorityColor":       res.PriorityColor,
		"reasoning":           res.Reasoning,
		"recommendations":     res.Recommendations,
		"suggestedDepartment": res.SuggestedDepartment,
		"estimatedWaitTime":   res.EstimatedWaitTime,
		"confidence":          res.Confidence,
	}
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Register(c.Request().Context(), in, actorFrom(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data := patientData(out.Patient)
	if out.Triage != nil {
		data["triage"] = triageData(out.Triage)
	}
	if out.Bed != nil {
		data["bed"] = map[string]interface{}{
			"id":        out.Bed.ID,
			"bedNumber": out.Bed.BedNumber,
		}
	}
	return c.JSON(http.StatusCreated, envelope(data))
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	}
	if raw := c.QueryParam("priority"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid priority")
		}
		f.Priority = &n
	}
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department id")
		}
		f.DepartmentID = &id
	}

	page := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list patients")
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, p := range items {
		out = append(out, patientData(p))
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"patients": out,
		"pagination": map[string]interface{}{
			"total":  total,
			"limit":  page.Limit,
			"offset": page.Offset,
		},
	}))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, envelope(patientData(p)))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Update(c.Request().Context(), id, in, actorFrom(c))
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	data := patientData(out.Patient)
	if out.Triage != nil {
		data["triage"] = triageData(out.Triage)
	}
	return c.JSON(http.StatusOK, envelope(data))
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Discharge(c.Request().Context(), id, req.Notes, actorFrom(c))
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"id":           p.ID,
		"status":       p.Status,
		"dischargedAt": p.DischargedAt,
	}))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete patient")
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{"deleted": true}))
}
