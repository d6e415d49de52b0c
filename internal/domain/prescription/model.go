package prescription

import (
	"github.com/google/uuid"
)

// Prescription statuses.
const (
	StatusActive       = "active"
	StatusCompleted    = "completed"
	StatusDiscontinued = "discontinued"
	StatusOnHold       = "on_hold"
)

// Prescription is a row in the prescriptions table. Medication fields come
// from the formulary lookup at prescribe time, dosage fields from the
// prescriber. Timestamps are stored as text.
type Prescription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`

	MedicationName string  `db:"medication_name" json:"medication_name"`
	MedicationCode *string `db:"medication_code" json:"medication_code,omitempty"`
	MedicationForm *string `db:"medication_form" json:"medication_form,omitempty"`
	GenericName    *string `db:"generic_name" json:"generic_name,omitempty"`

	Dosage     string  `db:"dosage" json:"dosage"`
	DosageUnit *string `db:"dosage_unit" json:"dosage_unit,omitempty"`
	Frequency  string  `db:"frequency" json:"frequency"`
	Route      *string `db:"route" json:"route,omitempty"`
	Duration   *string `db:"duration" json:"duration,omitempty"`
	Quantity   *int    `db:"quantity" json:"quantity,omitempty"`
	Refills    int     `db:"refills" json:"refills"`

	Instructions        *string `db:"instructions" json:"instructions,omitempty"`
	SpecialInstructions *string `db:"special_instructions" json:"special_instructions,omitempty"`

	Status    string  `db:"status" json:"status"`
	StartDate *string `db:"start_date" json:"start_date,omitempty"`
	EndDate   *string `db:"end_date" json:"end_date,omitempty"`

	FormularyDrugID *string `db:"formulary_drug_id" json:"formulary_drug_id,omitempty"`

	PrescribedBy *uuid.UUID `db:"prescribed_by" json:"prescribed_by,omitempty"`
	PrescribedAt *string    `db:"prescribed_at" json:"prescribed_at,omitempty"`

	DiscontinuedBy    *uuid.UUID `db:"discontinued_by" json:"discontinued_by,omitempty"`
	DiscontinuedAt    *string    `db:"discontinued_at" json:"discontinued_at,omitempty"`
	DiscontinueReason *string    `db:"discontinue_reason" json:"discontinue_reason,omitempty"`
}

// Treatment renders the prescription as a single line for clinical context,
// in the form "name - dosage - frequency - via route".
func (p *Prescription) Treatment() string {
	line := p.MedicationName
	if p.Dosage != "" {
		line += " - " + p.Dosage
	}
	if p.Frequency != "" {
		line += " - " + p.Frequency
	}
	if p.Route != nil && *p.Route != "" {
		line += " - via " + *p.Route
	}
	return line
}

// Medication is a formulary entry used for prescribe-time lookup.
type Medication struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	GenericName  string   `json:"genericName"`
	Code         string   `json:"code"`
	Form         string   `json:"form"`
	Strengths    []string `json:"strengths"`
	Category     string   `json:"category"`
	Manufacturer string   `json:"manufacturer"`
}

// Interaction describes a known interaction between two formulary drugs.
type Interaction struct {
	Drug1          string `json:"drug1"`
	Drug2          string `json:"drug2"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}
