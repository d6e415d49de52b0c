package alert

import (
	"github.com/google/uuid"
)

// Alert statuses.
const (
	StatusUnread       = "unread"
	StatusRead         = "read"
	StatusAcknowledged = "acknowledged"
)

// Alert priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Alert maps to the alerts table. Rows are produced by clinical write paths
// (vitals, triage changes, registration, discharge) and surfaced to staff by
// role.
type Alert struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	TenantID *uuid.UUID `db:"tenant_id" json:"tenant_id,omitempty"`

	Title    string `db:"title" json:"title"`
	Message  string `db:"message" json:"message"`
	Priority string `db:"priority" json:"priority"`
	Category string `db:"category" json:"category"`
	Status   string `db:"status" json:"status"`

	ForRoles    []string   `db:"for_roles" json:"for_roles,omitempty"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	TriggeredBy *string    `db:"triggered_by" json:"triggered_by,omitempty"`

	ReadAt         *string    `db:"read_at" json:"read_at,omitempty"`
	ReadBy         *uuid.UUID `db:"read_by" json:"read_by,omitempty"`
	AcknowledgedAt *string    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *uuid.UUID `db:"acknowledged_by" json:"acknowledged_by,omitempty"`

	CreatedAt *string `db:"created_at" json:"created_at,omitempty"`
}
