package vitals

import (
	"github.com/google/uuid"
)

// Vitals sources.
const (
	SourceManual = "manual"
	SourceOCR    = "ocr"
	SourceDevice = "device"
)

// Vitals is a row in the patient_vitals table. Measurements are nullable
// since bedside readings rarely cover every channel. Timestamps are stored
// as text.
type Vitals struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`

	HeartRate              *int     `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSystolic  *int     `db:"blood_pressure_systolic" json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `db:"blood_pressure_diastolic" json:"blood_pressure_diastolic,omitempty"`
	BloodPressure          *string  `db:"blood_pressure" json:"blood_pressure,omitempty"`
	SpO2                   *float64 `db:"spo2" json:"spo2,omitempty"`
	Temperature            *float64 `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate        *int     `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	BloodGlucose           *float64 `db:"blood_glucose" json:"blood_glucose,omitempty"`
	PainLevel              *int     `db:"pain_level" json:"pain_level,omitempty"`
	Notes                  *string  `db:"notes" json:"notes,omitempty"`

	Source         string `db:"source" json:"source"`
	IsCritical     bool   `db:"is_critical" json:"is_critical"`
	AlertGenerated bool   `db:"alert_generated" json:"alert_generated"`

	RecordedBy *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	RecordedAt *string    `db:"recorded_at" json:"recorded_at,omitempty"`
	CreatedAt  *string    `db:"created_at" json:"created_at,omitempty"`
}

// RangeAlert flags a measurement outside its clinical band.
type RangeAlert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}
