package triage

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidPriority is returned when a shift or evaluation carries a
// priority outside the L1-L4 scale. The stored priority is left untouched.
var ErrInvalidPriority = errors.New("invalid priority level (must be 1-4)")

// Labels and colors for the L1-L4 acuity scale.
var (
	PriorityLabels = map[int]string{
		1: "L1 - Critical",
		2: "L2 - Emergent",
		3: "L3 - Urgent",
		4: "L4 - Non-Urgent",
	}
	PriorityColors = map[int]string{
		1: "red",
		2: "orange",
		3: "yellow",
		4: "green",
	}
	priorityWaitTimes = [4]string{"Immediate", "10 minutes", "30-60 minutes", "1-2 hours"}
)

// ValidPriority reports whether p is on the L1-L4 scale.
func ValidPriority(p int) bool { return p >= 1 && p <= 4 }

// VitalsInput is the vitals snapshot fed to the engine and stored with each
// evaluation. Values are kept as strings because they arrive from monitors,
// OCR, and manual entry in mixed formats.
type VitalsInput struct {
	HR    *string `json:"hr,omitempty"`
	BP    *string `json:"bp,omitempty"`
	SpO2  *string `json:"spo2,omitempty"`
	Temp  *string `json:"temp,omitempty"`
	RR    *string `json:"rr,omitempty"`
}

// Input is everything the engine considers for one evaluation.
type Input struct {
	Complaint  string       `json:"complaint"`
	Age        *int         `json:"age,omitempty"`
	Gender     string       `json:"gender,omitempty"`
	Vitals     *VitalsInput `json:"vitals,omitempty"`
	History    string       `json:"history,omitempty"`
	Treatments []string     `json:"treatments,omitempty"`
}

// Result is the outcome of one engine run, including provenance.
type Result struct {
	Priority            int      `json:"priority"`
	PriorityLabel       string   `json:"priority_label"`
	PriorityColor       string   `json:"priority_color"`
	Reasoning           string   `json:"reasoning"`
	Recommendations     []string `json:"recommendations"`
	SuggestedDepartment string   `json:"suggested_department"`
	EstimatedWaitTime   string   `json:"estimated_wait_time"`
	Confidence          float64  `json:"confidence"`

	Model            string  `json:"model,omitempty"`
	RequestID        string  `json:"request_id,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	ProcessingTimeMs int     `json:"processing_time_ms,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
}

// Evaluation maps to the triage_evaluation table. Rows are append-only; the
// table is the audit trail behind the timeline endpoint.
type Evaluation struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  *uuid.UUID `db:"tenant_id" json:"tenant_id,omitempty"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`

	InputComplaint *string      `db:"input_complaint" json:"input_complaint,omitempty"`
	InputVitals    *VitalsInput `db:"input_vitals" json:"input_vitals,omitempty"`
	InputAge       *int         `db:"input_age" json:"input_age,omitempty"`
	InputGender    *string      `db:"input_gender" json:"input_gender,omitempty"`
	InputHistory   *string      `db:"input_history" json:"input_history,omitempty"`

	Priority            int      `db:"priority" json:"priority"`
	PriorityLabel       string   `db:"priority_label" json:"priority_label"`
	PriorityColor       string   `db:"priority_color" json:"priority_color"`
	Confidence          *float64 `db:"confidence" json:"confidence,omitempty"`
	Reasoning           *string  `db:"reasoning" json:"reasoning,omitempty"`
	Recommendations     []string `db:"recommendations" json:"recommendations,omitempty"`
	SuggestedDepartment *string  `db:"suggested_department" json:"suggested_department,omitempty"`
	EstimatedWaitTime   *string  `db:"estimated_wait_time" json:"estimated_wait_time,omitempty"`

	Model            *string  `db:"model" json:"model,omitempty"`
	RequestID        *string  `db:"request_id" json:"request_id,omitempty"`
	PromptTokens     *int     `db:"prompt_tokens" json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `db:"completion_tokens" json:"completion_tokens,omitempty"`
	TotalTokens      *int     `db:"total_tokens" json:"total_tokens,omitempty"`
	ProcessingTimeMs *int     `db:"processing_time_ms" json:"processing_time_ms,omitempty"`
	Temperature      *float64 `db:"temperature" json:"temperature,omitempty"`

	IsApplied bool       `db:"is_applied" json:"is_applied"`
	AppliedAt *string    `db:"applied_at" json:"applied_at,omitempty"`
	AppliedBy *uuid.UUID `db:"applied_by" json:"applied_by,omitempty"`
	CreatedAt *string    `db:"created_at" json:"created_at,omitempty"`
}

// Source classifies an evaluation for the timeline: rule-based fallback rows
// still come off the AI path, only shifts count as manual.
func (e *Evaluation) Source() string {
	if e.Model == nil || *e.Model == "" || *e.Model == "manual" {
		return "manual"
	}
	return "ai"
}
