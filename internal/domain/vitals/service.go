package vitals

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/alert"
	"github.com/erms/erms/internal/domain/bed"
	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/pkg/clinicaltime"
)

// Retriager reruns the triage pipeline after a clinical change. Satisfied by
// the triage trigger.
type Retriager interface {
	Retriage(ctx context.Context, patientID uuid.UUID, actor triage.Actor, triggeredBy string) *triage.Result
}

// Notifier delivers staff alerts. Satisfied by the alert service.
type Notifier interface {
	Create(ctx context.Context, a *alert.Alert) error
}

// BedFinder locates the bed a patient occupies, for alert titles. Satisfied
// by the bed repository.
type BedFinder interface {
	FindByPatient(ctx context.Context, patientID uuid.UUID) (*bed.Bed, error)
}

// Service records vitals, watches for out-of-range readings, and feeds every
// new reading back into triage.
type Service struct {
	repo      Repository
	engine    *triage.Engine
	patients  triage.PatientSource
	retriager Retriager
	notifier  Notifier
	beds      BedFinder
	logger    zerolog.Logger
}

func NewService(repo Repository, engine *triage.Engine, patients triage.PatientSource,
	retriager Retriager, notifier Notifier, beds BedFinder, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		patients:  patients,
		retriager: retriager,
		notifier:  notifier,
		beds:      beds,
		logger:    logger.With().Str("component", "vitals").Logger(),
	}
}

// SetRetriager wires the triage trigger once both sides exist.
func (s *Service) SetRetriager(r Retriager) { s.retriager = r }

// RecordInput carries one bedside reading. BP accepts the "120/80" form;
// explicit systolic/diastolic values win when both are given.
type RecordInput struct {
	HeartRate              *int     `json:"hr"`
	BP                     *string  `json:"bp"`
	BloodPressureSystolic  *int     `json:"bloodPressureSystolic"`
	BloodPressureDiastolic *int     `json:"bloodPressureDiastolic"`
	SpO2                   *float64 `json:"spo2"`
	Temperature            *float64 `json:"temp"`
	RespiratoryRate        *int     `json:"respiratoryRate"`
	BloodGlucose           *float64 `json:"bloodGlucose"`
	PainLevel              *int     `json:"painLevel"`
	Notes                  *string  `json:"notes"`
	Source                 string   `json:"source"`
}

// RecordOutcome is the stored reading plus range flags and the re-triage
// result when one ran.
type RecordOutcome struct {
	Vitals *Vitals
	Alerts []RangeAlert
	Triage *triage.Result
}

// Record stores a reading, raises a critical-vitals alert when any channel
// is in the critical band, and reruns triage with the fresh numbers. The
// re-triage is best effort.
func (s *Service) Record(ctx context.Context, patientID uuid.UUID, in RecordInput, actor triage.Actor) (*RecordOutcome, error) {
	info, err := s.patients.TriageInfo(ctx, patientID)
	if err != nil {
		return nil, triage.ErrPatientNotFound
	}

	v := &Vitals{
		PatientID:              patientID,
		HeartRate:              in.HeartRate,
		BloodPressureSystolic:  in.BloodPressureSystolic,
		BloodPressureDiastolic: in.BloodPressureDiastolic,
		SpO2:                   in.SpO2,
		Temperature:            in.Temperature,
		RespiratoryRate:        in.RespiratoryRate,
		BloodGlucose:           in.BloodGlucose,
		PainLevel:              in.PainLevel,
		Notes:                  in.Notes,
		Source:                 in.Source,
		RecordedBy:             actor.UserID,
	}
	if v.Source == "" {
		v.Source = SourceManual
	}

	if in.BP != nil && strings.Contains(*in.BP, "/") {
		v.BloodPressure = in.BP
		parts := strings.SplitN(*in.BP, "/", 2)
		if v.BloodPressureSystolic == nil {
			if sys, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				v.BloodPressureSystolic = &sys
			}
		}
		if v.BloodPressureDiastolic == nil {
			if dia, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				v.BloodPressureDiastolic = &dia
			}
		}
	} else if v.BloodPressureSystolic != nil && v.BloodPressureDiastolic != nil {
		bp := fmt.Sprintf("%d/%d", *v.BloodPressureSystolic, *v.BloodPressureDiastolic)
		v.BloodPressure = &bp
	}

	now := clinicaltime.Format(clinicaltime.Now())
	v.RecordedAt = &now
	v.CreatedAt = &now

	alerts := checkRanges(v)
	for _, a := range alerts {
		if a.Severity == "critical" {
			v.IsCritical = true
			break
		}
	}
	if v.IsCritical {
		v.AlertGenerated = true
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	if v.IsCritical {
		s.notifyCritical(ctx, info, alerts)
	}

	var res *triage.Result
	if s.retriager != nil {
		res = s.retriager.Retriage(ctx, patientID, actor, "vitals_update")
	}

	return &RecordOutcome{Vitals: v, Alerts: alerts, Triage: res}, nil
}

// History returns the patient's readings newest first, normalizing the mixed
// text timestamp formats before sorting.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit int) ([]*Vitals, error) {
	if _, err := s.patients.TriageInfo(ctx, patientID); err != nil {
		return nil, triage.ErrPatientNotFound
	}
	all, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		ti := clinicaltime.Parse(strOr(all[i].RecordedAt))
		tj := clinicaltime.Parse(strOr(all[j].RecordedAt))
		return ti.After(tj)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Latest converts the most recent reading into triage input. A patient with
// no readings yields nil without error.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*triage.VitalsInput, error) {
	all, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	latest := all[0]
	latestAt := clinicaltime.Parse(strOr(latest.RecordedAt))
	for _, v := range all[1:] {
		if at := clinicaltime.Parse(strOr(v.RecordedAt)); at.After(latestAt) {
			latest, latestAt = v, at
		}
	}

	in := &triage.VitalsInput{BP: latest.BloodPressure}
	if latest.HeartRate != nil {
		hr := strconv.Itoa(*latest.HeartRate)
		in.HR = &hr
	}
	if latest.SpO2 != nil {
		spo2 := strconv.FormatFloat(*latest.SpO2, 'f', -1, 64)
		in.SpO2 = &spo2
	}
	if latest.Temperature != nil {
		temp := strconv.FormatFloat(*latest.Temperature, 'f', -1, 64)
		in.Temp = &temp
	}
	if latest.RespiratoryRate != nil {
		rr := strconv.Itoa(*latest.RespiratoryRate)
		in.RR = &rr
	}
	return in, nil
}

// ExtractFromImage runs OCR over a photographed monitor or chart.
func (s *Service) ExtractFromImage(ctx context.Context, imageBase64 string) *triage.Extraction {
	return s.engine.ExtractVitalsFromImage(ctx, imageBase64)
}

// checkRanges flags channels outside their clinical bands. HR and SpO2 also
// carry a warning band; BP and temperature only flag critical excursions.
func checkRanges(v *Vitals) []RangeAlert {
	var alerts []RangeAlert

	if v.HeartRate != nil {
		hr := *v.HeartRate
		if hr < 50 || hr > 150 {
			alerts = append(alerts, RangeAlert{Type: "hr", Message: fmt.Sprintf("Critical heart rate: %d bpm", hr), Severity: "critical"})
		} else if hr < 60 || hr > 100 {
			alerts = append(alerts, RangeAlert{Type: "hr", Message: fmt.Sprintf("Abnormal heart rate: %d bpm", hr), Severity: "warning"})
		}
	}

	if v.SpO2 != nil {
		spo2 := *v.SpO2
		if spo2 < 90 {
			alerts = append(alerts, RangeAlert{Type: "spo2", Message: fmt.Sprintf("Critical SpO2: %g%%", spo2), Severity: "critical"})
		} else if spo2 < 95 {
			alerts = append(alerts, RangeAlert{Type: "spo2", Message: fmt.Sprintf("Low SpO2: %g%%", spo2), Severity: "warning"})
		}
	}

	if v.BloodPressureSystolic != nil && v.BloodPressureDiastolic != nil {
		sys, dia := *v.BloodPressureSystolic, *v.BloodPressureDiastolic
		if sys < 90 || sys > 180 || dia < 60 || dia > 120 {
			alerts = append(alerts, RangeAlert{Type: "bp", Message: fmt.Sprintf("Critical BP: %d/%d mmHg", sys, dia), Severity: "critical"})
		}
	}

	if v.Temperature != nil {
		temp := *v.Temperature
		if temp < 95 || temp > 104 {
			alerts = append(alerts, RangeAlert{Type: "temp", Message: fmt.Sprintf("Critical temperature: %g°F", temp), Severity: "critical"})
		}
	}

	return alerts
}

func (s *Service) notifyCritical(ctx context.Context, info *triage.PatientInfo, alerts []RangeAlert) {
	if s.notifier == nil {
		return
	}
	location := "No Bed"
	if s.beds != nil {
		if b, err := s.beds.FindByPatient(ctx, info.ID); err == nil && b != nil {
			location = b.BedNumber
		}
	}
	var critical []string
	for _, a := range alerts {
		if a.Severity == "critical" {
			critical = append(critical, a.Message)
		}
	}
	a := &alert.Alert{
		Title:       fmt.Sprintf("Critical Vitals - %s", location),
		Message:     fmt.Sprintf("Patient %s has critical vitals: %s", info.Name, strings.Join(critical, ", ")),
		Priority:    alert.PriorityCritical,
		Category:    "Vitals",
		ForRoles:    []string{"doctor", "nurse", "admin"},
		PatientID:   &info.ID,
		TriggeredBy: strPtr("vitals_monitor"),
	}
	if err := s.notifier.Create(ctx, a); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", info.ID.String()).
			Msg("critical vitals alert failed")
	}
}

func strOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
