package vitals

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists vitals readings. Ordering is done in the service layer
// because recorded_at is stored as text in mixed formats.
type Repository interface {
	Create(ctx context.Context, v *Vitals) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Vitals, error)
}
