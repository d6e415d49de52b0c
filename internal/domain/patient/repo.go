package patient

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows patient listings. Empty fields match everything.
type Filter struct {
	Status       string
	Priority     *int
	DepartmentID *uuid.UUID
	// Search matches against name, patient_id, and phone.
	Search string
}

// Repository persists patient rows. Soft-deleted patients are invisible to
// every method except Count, which covers all rows ever created so the
// P-number sequence never repeats.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt string) error
	Count(ctx context.Context) (int, error)
	// ListUntriaged returns non-discharged patients with no valid priority.
	ListUntriaged(ctx context.Context) ([]*Patient, error)
}
