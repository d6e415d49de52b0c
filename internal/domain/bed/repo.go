package bed

import (
	"context"

	"github.com/google/uuid"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	List(ctx context.Context) ([]*Department, error)
	Update(ctx context.Context, d *Department) error
}

type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	// List filters by department and status when set; only active beds.
	List(ctx context.Context, departmentID *uuid.UUID, status string) ([]*Bed, error)
	Update(ctx context.Context, b *Bed) error
	FindByPatient(ctx context.Context, patientID uuid.UUID) (*Bed, error)
	ListAvailableByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*Bed, error)
}
