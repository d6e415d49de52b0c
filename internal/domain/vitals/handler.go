package vitals

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/internal/platform/auth"
)

// Handler exposes vitals recording, history, and OCR endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	staff.GET("/vitals/:id", h.History)
	staff.POST("/vitals/:id", h.Record)
	staff.POST("/vitals/ocr", h.ExtractOCR)
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

func vitalsData(v *Vitals) map[string]interface{} {
	return map[string]interface{}{
		"hr":              v.HeartRate,
		"bp":              v.BloodPressure,
		"spo2":            v.SpO2,
		"temp":            v.Temperature,
		"respiratoryRate": v.RespiratoryRate,
		"bloodGlucose":    v.BloodGlucose,
		"painLevel":       v.PainLevel,
		"notes":           v.Notes,
		"recordedAt":      v.RecordedAt,
		"source":          v.Source,
	}
}

func (h *Handler) Record(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	out, err := h.svc.Record(c.Request().Context(), patientID, in, actorFrom(c))
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record vitals")
	}

	data := map[string]interface{}{
		"id":              out.Vitals.ID,
		"patientId":       patientID,
		"hr":              out.Vitals.HeartRate,
		"bp":              out.Vitals.BloodPressure,
		"spo2":            out.Vitals.SpO2,
		"temp":            out.Vitals.Temperature,
		"respiratoryRate": out.Vitals.RespiratoryRate,
		"notes":           out.Vitals.Notes,
		"recordedAt":      out.Vitals.RecordedAt,
		"alerts":          out.Alerts,
	}
	if out.Triage != nil {
		data["triage"] = map[string]interface{}{
			"priority":          out.Triage.Priority,
			"priorityLabel":     out.Triage.PriorityLabel,
			"reasoning":         out.Triage.Reasoning,
			"recommendations":   out.Triage.Recommendations,
			"confidence":        out.Triage.Confidence,
			"estimatedWaitTime": out.Triage.EstimatedWaitTime,
		}
	}
	return c.JSON(http.StatusCreated, envelope(data))
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	readings, err := h.svc.History(c.Request().Context(), patientID, limit)
	if err != nil {
		if errors.Is(err, triage.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load vitals")
	}

	var current map[string]interface{}
	history := make([]map[string]interface{}, 0)
	for i, v := range readings {
		if i == 0 {
			current = vitalsData(v)
			continue
		}
		history = append(history, vitalsData(v))
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"current": current,
		"history": history,
	}))
}

// ExtractOCR accepts a multipart image upload and returns the extracted
// vitals with per-field confidence.
func (h *Handler) ExtractOCR(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read file")
	}
	defer src.Close()
	contents, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read file")
	}

	extraction := h.svc.ExtractFromImage(c.Request().Context(), base64.StdEncoding.EncodeToString(contents))
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"extracted":  extraction.Extracted,
		"confidence": extraction.Confidence,
		"rawText":    extraction.RawText,
	}))
}
