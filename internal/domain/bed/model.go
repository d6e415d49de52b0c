package bed

import (
	"github.com/google/uuid"
)

// Bed statuses.
const (
	StatusAvailable   = "available"
	StatusOccupied    = "occupied"
	StatusCleaning    = "cleaning"
	StatusMaintenance = "maintenance"
	StatusReserved    = "reserved"
)

// Bed types considered capable of continuous monitoring, preferred for L1/L2
// patients during automatic assignment.
var criticalCapableTypes = map[string]bool{
	"icu":       true,
	"emergency": true,
}

// Department maps to the departments table.
type Department struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    *uuid.UUID `db:"tenant_id" json:"tenant_id,omitempty"`
	Name        string     `db:"name" json:"name"`
	Code        string     `db:"code" json:"code"`
	Description *string    `db:"description" json:"description,omitempty"`
	Floor       *string    `db:"floor" json:"floor,omitempty"`
	Capacity    *int       `db:"capacity" json:"capacity,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
}

// Bed maps to the beds table.
type Bed struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         *uuid.UUID `db:"tenant_id" json:"tenant_id,omitempty"`
	BedNumber        string     `db:"bed_number" json:"bed_number"`
	DepartmentID     uuid.UUID  `db:"department_id" json:"department_id"`
	BedType          *string    `db:"bed_type" json:"bed_type,omitempty"`
	Floor            *string    `db:"floor" json:"floor,omitempty"`
	Wing             *string    `db:"wing" json:"wing,omitempty"`
	Status           string     `db:"status" json:"status"`
	Features         []string   `db:"features" json:"features,omitempty"`
	CurrentPatientID *uuid.UUID `db:"current_patient_id" json:"current_patient_id,omitempty"`
	AssignedAt       *string    `db:"assigned_at" json:"assigned_at,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
}

// CriticalCapable reports whether the bed suits an L1/L2 patient: an ICU or
// emergency bed, or one carrying a monitoring feature.
func (b *Bed) CriticalCapable() bool {
	if b.BedType != nil && criticalCapableTypes[*b.BedType] {
		return true
	}
	for _, f := range b.Features {
		if f == "monitored" || f == "monitoring" || f == "cardiac_monitor" {
			return true
		}
	}
	return false
}
