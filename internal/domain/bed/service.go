package bed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/erms/erms/pkg/clinicaltime"
)

var (
	// ErrNoBedAvailable is returned when a department has no free bed to assign.
	ErrNoBedAvailable = errors.New("no available bed in department")
	// ErrBedOccupied is returned when a manual assignment targets a non-available bed.
	ErrBedOccupied = errors.New("bed is not available")
)

// Service manages departments and bed occupancy.
type Service struct {
	departments DepartmentRepository
	beds        BedRepository
	logger      zerolog.Logger
}

func NewService(departments DepartmentRepository, beds BedRepository, logger zerolog.Logger) *Service {
	return &Service{
		departments: departments,
		beds:        beds,
		logger:      logger.With().Str("component", "beds").Logger(),
	}
}

// =========== Departments ===========

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	if d.Name == "" {
		return fmt.Errorf("department name is required")
	}
	if d.Capacity != nil && *d.Capacity < 0 {
		return fmt.Errorf("department capacity must not be negative")
	}
	d.IsActive = true
	return s.departments.Create(ctx, d)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

func (s *Service) UpdateDepartment(ctx context.Context, d *Department) error {
	if d.Name == "" {
		return fmt.Errorf("department name is required")
	}
	return s.departments.Update(ctx, d)
}

// FindDepartmentByName returns the active department whose name matches,
// case-sensitively first and falling back to the first department when the
// suggested name is unknown.
func (s *Service) FindDepartmentByName(ctx context.Context, name string) (*Department, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return nil, pgx.ErrNoRows
	}
	for _, d := range depts {
		if d.Name == name {
			return d, nil
		}
	}
	return depts[0], nil
}

// =========== Beds ===========

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.BedNumber == "" {
		return fmt.Errorf("bed number is required")
	}
	if b.DepartmentID == uuid.Nil {
		return fmt.Errorf("department is required")
	}
	if b.Status == "" {
		b.Status = StatusAvailable
	}
	b.IsActive = true
	return s.beds.Create(ctx, b)
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.beds.GetByID(ctx, id)
}

func (s *Service) ListBeds(ctx context.Context, departmentID *uuid.UUID, status string) ([]*Bed, error) {
	if status == "all" {
		status = ""
	}
	return s.beds.List(ctx, departmentID, status)
}

// UpdateBedStatus moves a bed through its housekeeping lifecycle. Clearing to
// available also clears any stale patient link.
func (s *Service) UpdateBedStatus(ctx context.Context, id uuid.UUID, status string) (*Bed, error) {
	switch status {
	case StatusAvailable, StatusOccupied, StatusCleaning, StatusMaintenance, StatusReserved:
	default:
		return nil, fmt.Errorf("invalid bed status %q", status)
	}
	b, err := s.beds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Status = status
	if status == StatusAvailable {
		b.CurrentPatientID = nil
		b.AssignedAt = nil
	}
	if err := s.beds.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Assign places a patient in a specific bed. The bed must be available.
func (s *Service) Assign(ctx context.Context, bedID, patientID uuid.UUID) (*Bed, error) {
	b, err := s.beds.GetByID(ctx, bedID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusAvailable {
		return nil, ErrBedOccupied
	}
	return s.occupy(ctx, b, patientID)
}

// AssignForPriority auto-assigns a bed within a department. Critical and
// emergent patients get a critical-capable bed when one is free, everyone
// else takes the first available bed by bed number.
func (s *Service) AssignForPriority(ctx context.Context, departmentID, patientID uuid.UUID, priority int) (*Bed, error) {
	free, err := s.beds.ListAvailableByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return nil, ErrNoBedAvailable
	}
	chosen := free[0]
	if priority >= 1 && priority <= 2 {
		for _, b := range free {
			if b.CriticalCapable() {
				chosen = b
				break
			}
		}
	}
	return s.occupy(ctx, chosen, patientID)
}

func (s *Service) occupy(ctx context.Context, b *Bed, patientID uuid.UUID) (*Bed, error) {
	now := clinicaltime.Format(clinicaltime.Now())
	b.Status = StatusOccupied
	b.CurrentPatientID = &patientID
	b.AssignedAt = &now
	if err := s.beds.Update(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("bed_id", b.ID.String()).
		Str("bed_number", b.BedNumber).
		Str("patient_id", patientID.String()).
		Msg("bed assigned")
	return b, nil
}

// ReleaseForPatient frees the bed currently holding the patient and marks it
// for cleaning. Missing assignments are not an error.
func (s *Service) ReleaseForPatient(ctx context.Context, patientID uuid.UUID) (*Bed, error) {
	b, err := s.beds.FindByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.Status = StatusCleaning
	b.CurrentPatientID = nil
	b.AssignedAt = nil
	if err := s.beds.Update(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("bed_id", b.ID.String()).
		Str("patient_id", patientID.String()).
		Msg("bed released for cleaning")
	return b, nil
}
