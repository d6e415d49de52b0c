package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/alert"
	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/pkg/clinicaltime"
)

// ErrNotFound is returned when a prescription does not exist for the patient.
var ErrNotFound = errors.New("prescription not found")

// Retriager reruns the triage pipeline after a clinical change. Satisfied by
// the triage trigger.
type Retriager interface {
	Retriage(ctx context.Context, patientID uuid.UUID, actor triage.Actor, triggeredBy string) *triage.Result
}

// Notifier delivers staff alerts. Satisfied by the alert service.
type Notifier interface {
	Create(ctx context.Context, a *alert.Alert) error
}

// Service manages prescriptions and the medication formulary. Every new
// prescription feeds back into triage so the patient's acuity reflects the
// treatments already running.
type Service struct {
	repo      Repository
	formulary *Formulary
	patients  triage.PatientSource
	retriager Retriager
	notifier  Notifier
	logger    zerolog.Logger
}

func NewService(repo Repository, formulary *Formulary, patients triage.PatientSource,
	retriager Retriager, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		formulary: formulary,
		patients:  patients,
		retriager: retriager,
		notifier:  notifier,
		logger:    logger.With().Str("component", "prescriptions").Logger(),
	}
}

// SetRetriager wires the triage trigger once both sides exist.
func (s *Service) SetRetriager(r Retriager) { s.retriager = r }

// Formulary exposes medication lookup.
func (s *Service) Formulary() *Formulary { return s.formulary }

// CreateResult reports the stored prescription plus the re-triage outcome
// when one ran.
type CreateResult struct {
	Prescription *Prescription
	Triage       *triage.Result
}

// Create stores a prescription and reruns triage for the patient with the
// updated treatment context. The re-triage is best effort; a triage failure
// never loses the prescription.
func (s *Service) Create(ctx context.Context, p *Prescription, actor triage.Actor) (*CreateResult, error) {
	if p.MedicationName == "" {
		return nil, fmt.Errorf("medication name is required")
	}
	if p.Dosage == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	if p.Frequency == "" {
		return nil, fmt.Errorf("frequency is required")
	}

	info, err := s.patients.TriageInfo(ctx, p.PatientID)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}

	// Enrich from the formulary when the prescriber picked a known drug.
	if p.FormularyDrugID != nil {
		if med := s.formulary.Get(*p.FormularyDrugID); med != nil {
			if p.MedicationCode == nil {
				p.MedicationCode = &med.Code
			}
			if p.MedicationForm == nil {
				p.MedicationForm = &med.Form
			}
			if p.GenericName == nil {
				p.GenericName = &med.GenericName
			}
		}
	}

	p.Status = StatusActive
	now := clinicaltime.Format(clinicaltime.Now())
	p.PrescribedAt = &now
	p.PrescribedBy = actor.UserID

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	var res *triage.Result
	if s.retriager != nil {
		res = s.retriager.Retriage(ctx, p.PatientID, actor, "prescription_created")
	}

	s.notifyNew(ctx, info, p)

	return &CreateResult{Prescription: p, Triage: res}, nil
}

// List returns a patient's prescriptions newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, status string) ([]*Prescription, error) {
	if _, err := s.patients.TriageInfo(ctx, patientID); err != nil {
		return nil, triage.ErrPatientNotFound
	}
	return s.repo.ListByPatient(ctx, patientID, status)
}

// Discontinue marks a prescription discontinued. The triage context shrinks
// accordingly on the next evaluation.
func (s *Service) Discontinue(ctx context.Context, patientID, id uuid.UUID, reason string, actor triage.Actor) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, patientID, id)
	if err != nil {
		return nil, ErrNotFound
	}
	now := clinicaltime.Format(clinicaltime.Now())
	p.Status = StatusDiscontinued
	p.DiscontinuedBy = actor.UserID
	p.DiscontinuedAt = &now
	if reason != "" {
		p.DiscontinueReason = &reason
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ActiveTreatments renders the patient's active prescriptions as clinical
// context lines, newest first.
func (s *Service) ActiveTreatments(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	active, err := s.repo.ListByPatient(ctx, patientID, StatusActive)
	if err != nil {
		return nil, err
	}
	treatments := make([]string, 0, len(active))
	for _, p := range active {
		treatments = append(treatments, p.Treatment())
	}
	return treatments, nil
}

func (s *Service) notifyNew(ctx context.Context, info *triage.PatientInfo, p *Prescription) {
	if s.notifier == nil {
		return
	}
	a := &alert.Alert{
		Title:       fmt.Sprintf("New Prescription - %s", info.Name),
		Message:     fmt.Sprintf("%s (%s %s) prescribed for %s.", p.MedicationName, p.Dosage, p.Frequency, info.Name),
		Priority:    alert.PriorityMedium,
		Category:    "Medication",
		ForRoles:    []string{"nurse"},
		PatientID:   &info.ID,
		TriggeredBy: ptrStr("prescription"),
	}
	if err := s.notifier.Create(ctx, a); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", info.ID.String()).
			Msg("prescription alert failed")
	}
}

func ptrStr(s string) *string { return &s }
