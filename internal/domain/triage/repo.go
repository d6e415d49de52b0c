package triage

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only evaluation store. There is deliberately no
// update or delete: the table is an audit log.
type Repository interface {
	Create(ctx context.Context, e *Evaluation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Evaluation, error)
}
