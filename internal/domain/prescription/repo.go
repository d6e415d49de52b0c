package prescription

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists prescriptions.
type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, patientID, id uuid.UUID) (*Prescription, error)
	// ListByPatient returns prescriptions newest first, optionally filtered
	// by status (empty status matches all).
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string) ([]*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
}
