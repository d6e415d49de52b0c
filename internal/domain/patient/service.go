package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/alert"
	"github.com/erms/erms/internal/domain/bed"
	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/internal/domain/vitals"
	"github.com/erms/erms/pkg/clinicaltime"
)

// TriageRunner drives evaluations for a patient. Satisfied by the triage
// trigger; set after construction because the trigger needs this service as
// its patient source.
type TriageRunner interface {
	Run(ctx context.Context, patientID uuid.UUID, actor triage.Actor, opts triage.RunOptions) (*triage.Result, error)
	Retriage(ctx context.Context, patientID uuid.UUID, actor triage.Actor, triggeredBy string) *triage.Result
}

// Notifier delivers staff alerts. Satisfied by the alert service.
type Notifier interface {
	Create(ctx context.Context, a *alert.Alert) error
}

// Service owns the patient lifecycle from registration through discharge.
// Registration runs the full intake pipeline: initial vitals, triage, bed
// assignment, and the staff alert.
type Service struct {
	repo       Repository
	vitalsRepo vitals.Repository
	beds       *bed.Service
	notifier   Notifier
	triage     TriageRunner
	logger     zerolog.Logger
}

func NewService(repo Repository, vitalsRepo vitals.Repository, beds *bed.Service,
	notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		vitalsRepo: vitalsRepo,
		beds:       beds,
		notifier:   notifier,
		logger:     logger.With().Str("component", "patients").Logger(),
	}
}

// SetTriage wires the triage trigger once both sides exist.
func (s *Service) SetTriage(t TriageRunner) { s.triage = t }

// =========== triage.PatientSource ===========

func (s *Service) TriageInfo(ctx context.Context, id uuid.UUID) (*triage.PatientInfo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}
	return patientInfo(p), nil
}

func (s *Service) ApplyTriage(ctx context.Context, id uuid.UUID, priority int, label, color string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return triage.ErrPatientNotFound
	}
	p.Priority = &priority
	p.PriorityLabel = &label
	p.PriorityColor = &color
	if p.Status == StatusPendingTriage {
		p.Status = StatusActive
	}
	now := clinicaltime.Format(clinicaltime.Now())
	p.UpdatedAt = &now
	return s.repo.Update(ctx, p)
}

func (s *Service) ListUntriaged(ctx context.Context) ([]*triage.PatientInfo, error) {
	rows, err := s.repo.ListUntriaged(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]*triage.PatientInfo, 0, len(rows))
	for _, p := range rows {
		infos = append(infos, patientInfo(p))
	}
	return infos, nil
}

func patientInfo(p *Patient) *triage.PatientInfo {
	return &triage.PatientInfo{
		ID:        p.ID,
		Name:      p.Name,
		Complaint: p.Complaint,
		Age:       p.Age,
		Gender:    p.Gender,
		History:   p.History,
		Priority:  p.Priority,
	}
}

// =========== Registration ===========

// RegisterInput is the intake form.
type RegisterInput struct {
	Name                 string              `json:"name"`
	Age                  *int                `json:"age"`
	Gender               *string             `json:"gender"`
	Phone                *string             `json:"phone"`
	EmergencyContact     *string             `json:"emergencyContact"`
	EmergencyContactName *string             `json:"emergencyContactName"`
	Address              *string             `json:"address"`
	BloodGroup           *string             `json:"bloodGroup"`
	Complaint            *string             `json:"complaint"`
	History              *string             `json:"history"`
	DepartmentID         *uuid.UUID          `json:"departmentId"`
	BedID                *uuid.UUID          `json:"bedId"`
	Vitals               *vitals.RecordInput `json:"vitals"`
}

// RegisterOutcome reports everything intake produced.
type RegisterOutcome struct {
	Patient *Patient
	Triage  *triage.Result
	Bed     *bed.Bed
}

// Register creates the patient and runs the intake pipeline. Triage, bed
// assignment, and the staff alert are each best effort; a failure there
// never loses the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput, actor triage.Actor) (*RegisterOutcome, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate patient number: %w", err)
	}

	now := clinicaltime.Format(clinicaltime.Now())
	p := &Patient{
		TenantID:             actor.TenantID,
		PatientID:            fmt.Sprintf("P%05d", count+1),
		Name:                 in.Name,
		Age:                  in.Age,
		Gender:               in.Gender,
		Phone:                in.Phone,
		EmergencyContact:     in.EmergencyContact,
		EmergencyContactName: in.EmergencyContactName,
		Address:              in.Address,
		BloodGroup:           in.BloodGroup,
		Complaint:            in.Complaint,
		History:              in.History,
		Status:               StatusPendingTriage,
		DepartmentID:         in.DepartmentID,
		AdmittedAt:           &now,
		AdmittedBy:           actor.UserID,
		CreatedAt:            &now,
		UpdatedAt:            &now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	if in.Vitals != nil {
		s.recordInitialVitals(ctx, p.ID, *in.Vitals, actor)
	}

	out := &RegisterOutcome{Patient: p}

	res, err := s.runIntakeTriage(ctx, p.ID, actor)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", p.ID.String()).
			Msg("intake triage failed")
	} else {
		out.Triage = res
		p.Priority = &res.Priority
		p.PriorityLabel = &res.PriorityLabel
		p.PriorityColor = &res.PriorityColor
		p.Status = StatusActive
	}

	out.Bed = s.assignBed(ctx, p, in, out.Triage)

	s.notifyRegistration(ctx, p)

	return out, nil
}

func (s *Service) runIntakeTriage(ctx context.Context, patientID uuid.UUID, actor triage.Actor) (*triage.Result, error) {
	if s.triage == nil {
		return nil, fmt.Errorf("triage not wired")
	}
	return s.triage.Run(ctx, patientID, actor, triage.RunOptions{TriggeredBy: "registration"})
}

func (s *Service) recordInitialVitals(ctx context.Context, patientID uuid.UUID, in vitals.RecordInput, actor triage.Actor) {
	now := clinicaltime.Format(clinicaltime.Now())
	v := &vitals.Vitals{
		PatientID:              patientID,
		HeartRate:              in.HeartRate,
		BloodPressure:          in.BP,
		BloodPressureSystolic:  in.BloodPressureSystolic,
		BloodPressureDiastolic: in.BloodPressureDiastolic,
		SpO2:                   in.SpO2,
		Temperature:            in.Temperature,
		RespiratoryRate:        in.RespiratoryRate,
		Notes:                  in.Notes,
		Source:                 vitals.SourceManual,
		RecordedBy:             actor.UserID,
		RecordedAt:             &now,
		CreatedAt:              &now,
	}
	if err := s.vitalsRepo.Create(ctx, v); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Msg("initial vitals failed")
	}
}

// assignBed honors an explicit bed choice, then falls back to automatic
// assignment within the requested or triage-suggested department.
func (s *Service) assignBed(ctx context.Context, p *Patient, in RegisterInput, res *triage.Result) *bed.Bed {
	if s.beds == nil {
		return nil
	}

	var assigned *bed.Bed
	var err error
	if in.BedID != nil {
		assigned, err = s.beds.Assign(ctx, *in.BedID, p.ID)
	} else {
		deptID := in.DepartmentID
		if deptID == nil && res != nil && res.SuggestedDepartment != "" {
			if d, derr := s.beds.FindDepartmentByName(ctx, res.SuggestedDepartment); derr == nil {
				deptID = &d.ID
			}
		}
		if deptID == nil {
			return nil
		}
		priority := 3
		if p.Priority != nil {
			priority = *p.Priority
		}
		assigned, err = s.beds.AssignForPriority(ctx, *deptID, p.ID, priority)
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", p.ID.String()).
			Msg("bed assignment failed")
		return nil
	}

	p.BedID = &assigned.ID
	p.DepartmentID = &assigned.DepartmentID
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", p.ID.String()).
			Msg("bed link update failed")
	}
	return assigned
}

func (s *Service) notifyRegistration(ctx context.Context, p *Patient) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("%s has been registered", p.Name)
	if p.Complaint != nil && *p.Complaint != "" {
		msg += fmt.Sprintf(" with complaint: %s", *p.Complaint)
	}
	if p.PriorityLabel != nil {
		msg += fmt.Sprintf(". Triaged %s.", *p.PriorityLabel)
	} else {
		msg += "."
	}
	a := &alert.Alert{
		Title:       fmt.Sprintf("New Patient - %s", p.Name),
		Message:     msg,
		Priority:    alert.PriorityMedium,
		Category:    "Patient Registration",
		ForRoles:    []string{"nurse", "doctor"},
		PatientID:   &p.ID,
		TriggeredBy: strPtr("registration"),
	}
	if err := s.notifier.Create(ctx, a); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", p.ID.String()).
			Msg("registration alert failed")
	}
}

// =========== Reads ===========

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// =========== Update ===========

// UpdateInput carries partial edits; nil fields stay untouched.
type UpdateInput struct {
	Name                 *string `json:"name"`
	Age                  *int    `json:"age"`
	Gender               *string `json:"gender"`
	Phone                *string `json:"phone"`
	EmergencyContact     *string `json:"emergencyContact"`
	EmergencyContactName *string `json:"emergencyContactName"`
	Address              *string `json:"address"`
	BloodGroup           *string `json:"bloodGroup"`
	Complaint            *string `json:"complaint"`
	History              *string `json:"history"`
}

// UpdateOutcome reports the saved row and the re-triage result when one ran.
type UpdateOutcome struct {
	Patient *Patient
	Triage  *triage.Result
}

// Update applies edits and reruns triage only when a clinically relevant
// field changed. A phone-number correction never touches the priority.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, actor triage.Actor) (*UpdateOutcome, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}

	clinicalChange := false
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Age != nil && !intEq(p.Age, in.Age) {
		p.Age = in.Age
		clinicalChange = true
	}
	if in.Gender != nil && !strEq(p.Gender, in.Gender) {
		p.Gender = in.Gender
		clinicalChange = true
	}
	if in.Complaint != nil && !strEq(p.Complaint, in.Complaint) {
		p.Complaint = in.Complaint
		clinicalChange = true
	}
	if in.History != nil && !strEq(p.History, in.History) {
		p.History = in.History
		clinicalChange = true
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = in.EmergencyContact
	}
	if in.EmergencyContactName != nil {
		p.EmergencyContactName = in.EmergencyContactName
	}
	if in.Address != nil {
		p.Address = in.Address
	}
	if in.BloodGroup != nil {
		p.BloodGroup = in.BloodGroup
	}

	now := clinicaltime.Format(clinicaltime.Now())
	p.UpdatedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	out := &UpdateOutcome{Patient: p}
	if clinicalChange && s.triage != nil {
		out.Triage = s.triage.Retriage(ctx, id, actor, "patient_update")
		// reflect the applied priority in the returned row
		if fresh, err := s.repo.GetByID(ctx, id); err == nil {
			out.Patient = fresh
		}
	}
	return out, nil
}

// =========== Discharge ===========

// Discharge closes the encounter: the bed goes to cleaning and staff are
// notified. Discharging twice is an error.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, notes string, actor triage.Actor) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}
	if p.Status == StatusDischarged {
		return nil, fmt.Errorf("patient already discharged")
	}

	now := clinicaltime.Format(clinicaltime.Now())
	p.Status = StatusDischarged
	p.DischargedAt = &now
	p.DischargedBy = actor.UserID
	if notes != "" {
		p.DischargeNotes = &notes
	}
	p.BedID = nil
	p.UpdatedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if s.beds != nil {
		if _, err := s.beds.ReleaseForPatient(ctx, id); err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", id.String()).
				Msg("bed release failed")
		}
	}

	if s.notifier != nil {
		a := &alert.Alert{
			Title:       fmt.Sprintf("Patient Discharged - %s", p.Name),
			Message:     fmt.Sprintf("%s (%s) has been discharged.", p.Name, p.PatientID),
			Priority:    alert.PriorityLow,
			Category:    "Discharge",
			ForRoles:    []string{"nurse", "admin"},
			PatientID:   &p.ID,
			TriggeredBy: strPtr("discharge"),
		}
		if err := s.notifier.Create(ctx, a); err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", id.String()).
				Msg("discharge alert failed")
		}
	}

	return p, nil
}

// Delete soft-deletes the record. The P-number is never reused.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return triage.ErrPatientNotFound
	}
	return s.repo.SoftDelete(ctx, id, clinicaltime.Format(clinicaltime.Now()))
}

func strPtr(s string) *string { return &s }

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
