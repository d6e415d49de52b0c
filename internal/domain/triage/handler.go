package triage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erms/erms/internal/platform/auth"
)

type Handler struct {
	trigger *Trigger
}

func NewHandler(trigger *Trigger) *Handler {
	return &Handler{trigger: trigger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.POST("/triage/quick", h.QuickTriage)
	g.POST("/patients/batch-triage", h.BatchTriage)
	g.POST("/patients/:id/triage", h.RunPatientTriage)
	g.GET("/patients/:id/triage-timeline", h.GetTimeline)
	g.POST("/patients/:id/shift-triage", h.ShiftTriage)
	g.POST("/patients/:id/recommend-triage-shift", h.RecommendShift)
}

// actorFrom extracts the acting user and tenant from the request context.
// Non-UUID tenant names (the dev default) are recorded as nil.
func actorFrom(c echo.Context) Actor {
	var actor Actor
	if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
		if id, err := uuid.Parse(userID); err == nil {
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

func resultData(res *Result) map[string]interface{} {
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

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

type quickRequest struct {
	Complaint string       `json:"complaint"`
	Age       *int         `json:"age"`
	Gender    string       `json:"gender"`
	Vitals    *VitalsInput `json:"vitals"`
	History   string       `json:"history"`
}

// QuickTriage evaluates ad-hoc input without a patient record. Used by the
// intake desk before registration.
func (h *Handler) QuickTriage(c echo.Context) error {
	var req quickRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Complaint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "complaint is required")
	}

	res, err := h.trigger.Quick(c.Request().Context(), Input{
		Complaint: req.Complaint,
		Age:       req.Age,
		Gender:    req.Gender,
		Vitals:    req.Vitals,
		History:   req.History,
	}, actorFrom(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(resultData(res)))
}

// RunPatientTriage runs or re-runs the engine for a patient, with optional
// request-body overrides for complaint/age/gender/vitals/history.
func (h *Handler) RunPatientTriage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var override *Input
	var req quickRequest
	if err := c.Bind(&req); err == nil {
		if req.Complaint != "" || req.Age != nil || req.Gender != "" || req.Vitals != nil || req.History != "" {
			override = &Input{
				Complaint: req.Complaint,
				Age:       req.Age,
				Gender:    req.Gender,
				Vitals:    req.Vitals,
				History:   req.History,
			}
		}
	}

	res, err := h.trigger.Run(c.Request().Context(), id, actorFrom(c), RunOptions{
		Override:    override,
		TriggeredBy: "manual_run",
	})
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := resultData(res)
	data["id"] = id
	data["message"] = "Patient triaged successfully."
	return c.JSON(http.StatusOK, envelope(data))
}

// BatchTriage sweeps patients that have no valid priority yet.
func (h *Handler) BatchTriage(c echo.Context) error {
	triaged, failed, err := h.trigger.Batch(c.Request().Context(), actorFrom(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"triagedCount": triaged,
		"failedCount":  failed,
		"message":      fmt.Sprintf("Successfully triaged %d patients.", triaged),
	}))
}

func (h *Handler) GetTimeline(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.trigger.Timeline(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{"timeline": entries}))
}

func (h *Handler) ShiftTriage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ShiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := h.trigger.Shift(c.Request().Context(), id, req, actorFrom(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPriority):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	from := "?"
	if out.FromPriority != nil {
		from = fmt.Sprintf("%d", *out.FromPriority)
	}
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"id":            out.PatientID,
		"fromPriority":  out.FromPriority,
		"toPriority":    out.ToPriority,
		"priorityLabel": out.PriorityLabel,
		"message":       fmt.Sprintf("Triage shifted from L%s to L%d successfully.", from, out.ToPriority),
	}))
}

func (h *Handler) RecommendShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var sc ShiftContext
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.trigger.RecommendShift(c.Request().Context(), id, sc)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope(rec))
}
