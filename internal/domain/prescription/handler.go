package prescription

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/internal/platform/auth"
)

// Handler exposes prescription and medication lookup endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	staff.GET("/patients/:id/prescriptions", h.ListByPatient)
	staff.GET("/medications/search", h.SearchMedications)
	staff.GET("/medications/:drugId/interactions", h.CheckInteractions)

	doctors := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctors.POST("/patients/:id/prescriptions", h.Create)
	doctors.PUT("/patients/:id/prescriptions/:rxId/discontinue", h.Discontinue)
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
	if raw, ok := c.Get("jwt_tenant_id").(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			actor.TenantID = &id
		}
	}
	return actor
}

func rxData(p *Prescription) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"medication":     p.MedicationName,
		"medicationCode": p.MedicationCode,
		"genericName":    p.GenericName,
		"dosage":         p.Dosage,
		"frequency":      p.Frequency,
		"duration":       p.Duration,
		"route":          p.Route,
		"instructions":   p.Instructions,
		"status":         p.Status,
		"prescribedAt":   p.PrescribedAt,
		"startDate":      p.StartDate,
		"endDate":        p.EndDate,
	}
}

type createRequest struct {
	MedicationName      string  `json:"medicationName"`
	MedicationCode      *string `json:"medicationCode"`
	MedicationForm      *string `json:"medicationForm"`
	GenericName         *string `json:"genericName"`
	Dosage              string  `json:"dosage"`
	DosageUnit          *string `json:"dosageUnit"`
	Frequency           string  `json:"frequency"`
	Route               *string `json:"route"`
	Duration            *string `json:"duration"`
	Quantity            *int    `json:"quantity"`
	Instructions        *string `json:"instructions"`
	SpecialInstructions *string `json:"specialInstructions"`
	StartDate           *string `json:"startDate"`
	EndDate             *string `json:"endDate"`
	FormularyDrugID     *string `json:"formularyDrugId"`
}

func (h *Handler) Create(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p := &Prescription{
		PatientID:           patientID,
		MedicationName:      req.MedicationName,
		MedicationCode:      req.MedicationCode,
		MedicationForm:      req.MedicationForm,
		GenericName:         req.GenericName,
		Dosage:              req.Dosage,
		DosageUnit:          req.DosageUnit,
		Frequency:           req.Frequency,
		Route:               req.Route,
		Duration:            req.Duration,
		Quantity:            req.Quantity,
		Instructions:        req.Instructions,
		SpecialInstructions: req.SpecialInstructions,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		FormularyDrugID:     req.FormularyDrugID,
	}

	res, err := h.svc.Create(c.Request().Context(), p, actorFrom(c))
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data := map[string]interface{}{
		"id":           res.Prescription.ID,
		"medication":   res.Prescription.MedicationName,
		"prescribedAt": res.Prescription.PrescribedAt,
	}
	if res.Triage != nil {
		data["triage"] = map[string]interface{}{
			"priority":          res.Triage.Priority,
			"priorityLabel":     res.Triage.PriorityLabel,
			"reasoning":         res.Triage.Reasoning,
			"recommendations":   res.Triage.Recommendations,
			"confidence":        res.Triage.Confidence,
			"estimatedWaitTime": res.Triage.EstimatedWaitTime,
		}
	}
	return c.JSON(http.StatusCreated, envelope(data))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.svc.List(c.Request().Context(), patientID, c.QueryParam("status"))
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, p := range items {
		out = append(out, rxData(p))
	}
	return c.JSON(http.StatusOK, envelope(out))
}

func (h *Handler) Discontinue(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	rxID, err := uuid.Parse(c.Param("rxId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Discontinue(c.Request().Context(), patientID, rxID, req.Reason, actorFrom(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to discontinue prescription")
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"id":             p.ID,
		"status":         p.Status,
		"discontinuedAt": p.DiscontinuedAt,
		"reason":         p.DiscontinueReason,
	}))
}

func (h *Handler) SearchMedications(c echo.Context) error {
	limit := 300
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results := h.svc.Formulary().Search(c.Request().Context(), c.QueryParam("q"), limit)
	return c.JSON(http.StatusOK, envelope(results))
}

func (h *Handler) CheckInteractions(c echo.Context) error {
	drugID := c.Param("drugId")
	var current []string
	if raw := c.QueryParam("current_medications"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				current = append(current, d)
			}
		}
	}
	interactions := h.svc.Formulary().Interactions(drugID, current)
	return c.JSON(http.StatusOK, envelope(interactions))
}
