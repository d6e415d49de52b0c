package patient

import (
	"github.com/google/uuid"
)

// Patient statuses.
const (
	StatusPendingTriage = "pending_triage"
	StatusActive        = "active"
	StatusDischarged    = "discharged"
)

// Patient is a row in the patients table. PatientID is the human-facing
// sequence number (P00001), distinct from the row uuid. Timestamps are
// stored as text, DeletedAt soft-deletes.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  *uuid.UUID `db:"tenant_id" json:"tenant_id,omitempty"`
	PatientID string     `db:"patient_id" json:"patient_id"`

	Name                 string  `db:"name" json:"name"`
	Age                  *int    `db:"age" json:"age,omitempty"`
	Gender               *string `db:"gender" json:"gender,omitempty"`
	Phone                *string `db:"phone" json:"phone,omitempty"`
	EmergencyContact     *string `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyContactName *string `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	Address              *string `db:"address" json:"address,omitempty"`
	BloodGroup           *string `db:"blood_group" json:"blood_group,omitempty"`

	Complaint *string `db:"complaint" json:"complaint,omitempty"`
	History   *string `db:"history" json:"history,omitempty"`

	Status        string  `db:"status" json:"status"`
	Priority      *int    `db:"priority" json:"priority,omitempty"`
	PriorityLabel *string `db:"priority_label" json:"priority_label,omitempty"`
	PriorityColor *string `db:"priority_color" json:"priority_color,omitempty"`

	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	BedID        *uuid.UUID `db:"bed_id" json:"bed_id,omitempty"`

	AdmittedAt     *string    `db:"admitted_at" json:"admitted_at,omitempty"`
	AdmittedBy     *uuid.UUID `db:"admitted_by" json:"admitted_by,omitempty"`
	DischargedAt   *string    `db:"discharged_at" json:"discharged_at,omitempty"`
	DischargedBy   *uuid.UUID `db:"discharged_by" json:"discharged_by,omitempty"`
	DischargeNotes *string    `db:"discharge_notes" json:"discharge_notes,omitempty"`

	CreatedAt *string `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt *string `db:"updated_at" json:"updated_at,omitempty"`
	DeletedAt *string `db:"deleted_at" json:"deleted_at,omitempty"`
}
