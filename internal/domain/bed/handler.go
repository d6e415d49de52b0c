package bed

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erms/erms/internal/platform/auth"
)

// Handler exposes department and bed management endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	staff.GET("/departments", h.ListDepartments)
	staff.GET("/beds", h.ListBeds)
	staff.GET("/beds/:id", h.GetBed)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/departments", h.CreateDepartment)
	admin.PUT("/departments/:id", h.UpdateDepartment)
	admin.POST("/beds", h.CreateBed)

	staff.PUT("/beds/:id/status", h.UpdateBedStatus)
	staff.POST("/beds/:id/assign", h.AssignBed)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func departmentData(d *Department) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"code":        d.Code,
		"description": d.Description,
		"floor":       d.Floor,
		"capacity":    d.Capacity,
		"isActive":    d.IsActive,
	}
}

func bedData(b *Bed, departmentName string) map[string]interface{} {
	return map[string]interface{}{
		"id":               b.ID,
		"bedNumber":        b.BedNumber,
		"department":       departmentName,
		"departmentId":     b.DepartmentID,
		"bedType":          b.BedType,
		"floor":            b.Floor,
		"wing":             b.Wing,
		"status":           b.Status,
		"features":         b.Features,
		"currentPatientId": b.CurrentPatientID,
		"assignedAt":       b.AssignedAt,
		"criticalCapable":  b.CriticalCapable(),
	}
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	var d Department
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateDepartment(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, envelope(departmentData(&d)))
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid department id")
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "department not found")
	}
	if err := c.Bind(d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d.ID = id
	if err := h.svc.UpdateDepartment(c.Request().Context(), d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(departmentData(d)))
}

func (h *Handler) ListDepartments(c echo.Context) error {
	depts, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list departments")
	}
	out := make([]map[string]interface{}, 0, len(depts))
	for _, d := range depts {
		out = append(out, departmentData(d))
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{"departments": out}))
}

func (h *Handler) CreateBed(c echo.Context) error {
	var b Bed
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateBed(c.Request().Context(), &b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, envelope(bedData(&b, h.departmentName(c, b.DepartmentID))))
}

func (h *Handler) ListBeds(c echo.Context) error {
	ctx := c.Request().Context()
	var departmentID *uuid.UUID
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department id")
		}
		departmentID = &id
	}
	beds, err := h.svc.ListBeds(ctx, departmentID, c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list beds")
	}

	names := map[uuid.UUID]string{}
	if depts, err := h.svc.ListDepartments(ctx); err == nil {
		for _, d := range depts {
			names[d.ID] = d.Name
		}
	}
	out := make([]map[string]interface{}, 0, len(beds))
	for _, b := range beds {
		out = append(out, bedData(b, names[b.DepartmentID]))
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{"beds": out, "total": len(out)}))
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	b, err := h.svc.GetBed(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bed not found")
	}
	return c.JSON(http.StatusOK, envelope(bedData(b, h.departmentName(c, b.DepartmentID))))
}

func (h *Handler) UpdateBedStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.UpdateBedStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(bedData(b, h.departmentName(c, b.DepartmentID))))
}

func (h *Handler) AssignBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	var req struct {
		PatientID uuid.UUID `json:"patientId"`
	}
	if err := c.Bind(&req); err != nil || req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}
	b, err := h.svc.Assign(c.Request().Context(), id, req.PatientID)
	if err != nil {
		if err == ErrBedOccupied {
			return echo.NewHTTPError(http.StatusConflict, "bed is not available")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(bedData(b, h.departmentName(c, b.DepartmentID))))
}

func (h *Handler) departmentName(c echo.Context, id uuid.UUID) string {
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return ""
	}
	return d.Name
}
