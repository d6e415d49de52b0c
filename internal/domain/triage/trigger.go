package triage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/pkg/clinicaltime"
)

// ErrPatientNotFound is returned by PatientSource implementations when the
// patient does not exist or is soft-deleted.
var ErrPatientNotFound = errors.New("patient not found")

// PatientInfo is the slice of the patient row the trigger needs.
type PatientInfo struct {
	ID        uuid.UUID
	Name      string
	Complaint *string
	Age       *int
	Gender    *string
	History   *string
	Priority  *int
}

// PatientSource reads and mutates patient rows on behalf of the trigger.
// Implemented by the patient service; wired in main.
type PatientSource interface {
	TriageInfo(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
	// ApplyTriage updates priority/label/color and moves pending_triage
	// patients to active.
	ApplyTriage(ctx context.Context, id uuid.UUID, priority int, label, color string) error
	// ListUntriaged returns non-discharged patients whose priority is null
	// or off the L1-L4 scale.
	ListUntriaged(ctx context.Context) ([]*PatientInfo, error)
}

// VitalsSource supplies the most recent vitals snapshot, nil when none exist.
type VitalsSource interface {
	Latest(ctx context.Context, patientID uuid.UUID) (*VitalsInput, error)
}

// TreatmentSource supplies formatted active treatments, newest first.
type TreatmentSource interface {
	ActiveTreatments(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

// PriorityChange describes an applied priority transition for alerting.
type PriorityChange struct {
	PatientID   uuid.UUID
	PatientName string
	From        *int
	To          int
	Reasoning   string
	Escalated   bool
	TriggeredBy string
}

// Alerter receives priority-change events. Failures are logged and dropped.
type Alerter interface {
	TriageChanged(ctx context.Context, ch PriorityChange) error
}

// Actor identifies who (and which tenant) caused an evaluation.
type Actor struct {
	TenantID *uuid.UUID
	UserID   *uuid.UUID
}

// Trigger orchestrates evaluations: it assembles engine input from the
// patient row, latest vitals, and active treatments, appends the evaluation
// to the audit log, applies the outcome to the patient, and emits alerts on
// priority changes.
type Trigger struct {
	engine     *Engine
	repo       Repository
	patients   PatientSource
	vitals     VitalsSource
	treatments TreatmentSource
	alerter    Alerter
	logger     zerolog.Logger
}

func NewTrigger(engine *Engine, repo Repository, patients PatientSource, vitals VitalsSource,
	treatments TreatmentSource, alerter Alerter, logger zerolog.Logger) *Trigger {
	return &Trigger{
		engine:     engine,
		repo:       repo,
		patients:   patients,
		vitals:     vitals,
		treatments: treatments,
		alerter:    alerter,
		logger:     logger.With().Str("component", "triage-trigger").Logger(),
	}
}

// Quick evaluates ad-hoc input with no patient row. The evaluation is still
// appended to the audit log, with a nil patient id.
func (t *Trigger) Quick(ctx context.Context, in Input, actor Actor) (*Result, error) {
	res := t.engine.Evaluate(ctx, in)
	ev := t.evaluationFrom(res, in, nil, actor)
	if err := t.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("store quick evaluation: %w", err)
	}
	return res, nil
}

// Options for a patient evaluation. Override fields, when set, take
// precedence over the stored patient row.
type RunOptions struct {
	Override    *Input
	TriggeredBy string
}

// Run evaluates a patient and applies the outcome: evaluation appended with
// is_applied, patient priority/label/color updated, alert emitted when the
// priority changed.
func (t *Trigger) Run(ctx context.Context, patientID uuid.UUID, actor Actor, opts RunOptions) (*Result, error) {
	p, err := t.patients.TriageInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}

	in := t.assembleInput(ctx, p, opts.Override)
	res := t.engine.Evaluate(ctx, in)

	oldPriority := p.Priority

	ev := t.evaluationFrom(res, in, &patientID, actor)
	if err := t.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("store evaluation: %w", err)
	}
	if err := t.patients.ApplyTriage(ctx, patientID, res.Priority, res.PriorityLabel, res.PriorityColor); err != nil {
		return nil, fmt.Errorf("apply triage to patient: %w", err)
	}

	t.notifyChange(ctx, p, oldPriority, res.Priority, res.Reasoning, opts.TriggeredBy)
	return res, nil
}

// Retriage is the best-effort variant used by vitals, prescription, and
// patient-edit write paths. Failures are logged, never propagated, so the
// primary write always succeeds.
func (t *Trigger) Retriage(ctx context.Context, patientID uuid.UUID, actor Actor, triggeredBy string) *Result {
	res, err := t.Run(ctx, patientID, actor, RunOptions{TriggeredBy: triggeredBy})
	if err != nil {
		t.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Str("triggered_by", triggeredBy).
			Msg("re-triage failed")
		return nil
	}
	return res
}

// ShiftRequest is the payload of a manual triage shift.
type ShiftRequest struct {
	Priority          int      `json:"priority"`
	Reasoning         string   `json:"reasoning"`
	Recommendations   []string `json:"recommendations"`
	Confidence        *float64 `json:"confidence"`
	EstimatedWaitTime *string  `json:"estimatedWaitTime"`
}

// ShiftOutcome reports an applied manual shift.
type ShiftOutcome struct {
	PatientID     uuid.UUID `json:"id"`
	FromPriority  *int      `json:"fromPriority"`
	ToPriority    int       `json:"toPriority"`
	PriorityLabel string    `json:"priorityLabel"`
	Escalated     bool      `json:"-"`
}

// Shift applies a clinician-chosen priority without consulting the engine.
// The evaluation row carries no model, marking it as manual provenance.
func (t *Trigger) Shift(ctx context.Context, patientID uuid.UUID, req ShiftRequest, actor Actor) (*ShiftOutcome, error) {
	if !ValidPriority(req.Priority) {
		return nil, ErrInvalidPriority
	}

	p, err := t.patients.TriageInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}
	oldPriority := p.Priority

	reasoning := req.Reasoning
	if reasoning == "" {
		reasoning = fmt.Sprintf("Manual triage shift from L%s to L%d", priorityOr(oldPriority, "?"), req.Priority)
	}

	now := clinicaltime.Format(clinicaltime.Now())
	ev := &Evaluation{
		TenantID:          actor.TenantID,
		PatientID:         &patientID,
		InputComplaint:    p.Complaint,
		InputAge:          p.Age,
		InputGender:       p.Gender,
		Priority:          req.Priority,
		PriorityLabel:     PriorityLabels[req.Priority],
		PriorityColor:     PriorityColors[req.Priority],
		Reasoning:         &reasoning,
		Recommendations:   req.Recommendations,
		Confidence:        req.Confidence,
		EstimatedWaitTime: req.EstimatedWaitTime,
		IsApplied:         true,
		AppliedAt:         &now,
		AppliedBy:         actor.UserID,
		CreatedAt:         &now,
	}
	if err := t.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("store shift evaluation: %w", err)
	}
	if err := t.patients.ApplyTriage(ctx, patientID, req.Priority, ev.PriorityLabel, ev.PriorityColor); err != nil {
		return nil, fmt.Errorf("apply shift to patient: %w", err)
	}

	escalated := t.notifyChange(ctx, p, oldPriority, req.Priority, reasoning, "triage_shift")
	return &ShiftOutcome{
		PatientID:     patientID,
		FromPriority:  oldPriority,
		ToPriority:    req.Priority,
		PriorityLabel: ev.PriorityLabel,
		Escalated:     escalated,
	}, nil
}

// ShiftContext carries the clinician's condition-update notes for a
// recommend-shift evaluation.
type ShiftContext struct {
	Notes           string `json:"notes"`
	Procedure       string `json:"procedure"`
	ConditionChange string `json:"conditionChange"`
}

// Recommendation compares the current priority with a fresh evaluation that
// factors in condition updates. Nothing is persisted or applied.
type Recommendation struct {
	CurrentPriority     *int     `json:"currentPriority"`
	CurrentLabel        string   `json:"currentLabel"`
	RecommendedPriority int      `json:"recommendedPriority"`
	RecommendedLabel    string   `json:"recommendedLabel"`
	Reasoning           string   `json:"reasoning"`
	Recommendations     []string `json:"recommendations"`
	Confidence          float64  `json:"confidence"`
	EstimatedWaitTime   string   `json:"estimatedWaitTime"`
	ShouldShift         bool     `json:"shouldShift"`
}

func (t *Trigger) RecommendShift(ctx context.Context, patientID uuid.UUID, sc ShiftContext) (*Recommendation, error) {
	p, err := t.patients.TriageInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}

	in := t.assembleInput(ctx, p, nil)
	in.History = fmt.Sprintf(`
Current Triage Level: L%s (%s)
Original Complaint: %s
Patient History: %s

--- CONDITION UPDATE ---
Procedure/Treatment Done: %s
Condition Change: %s
Additional Notes: %s
---
Please re-evaluate the triage level considering the above updates.
`,
		priorityOr(p.Priority, "?"), labelOr(p.Priority),
		strOr(p.Complaint, ""), strOr(p.History, "None"),
		orDefault(sc.Procedure, "None specified"),
		orDefault(sc.ConditionChange, "Not specified"),
		orDefault(sc.Notes, "None"))

	res := t.engine.Evaluate(ctx, in)

	shouldShift := p.Priority == nil || *p.Priority != res.Priority
	return &Recommendation{
		CurrentPriority:     p.Priority,
		CurrentLabel:        labelOr(p.Priority),
		RecommendedPriority: res.Priority,
		RecommendedLabel:    res.PriorityLabel,
		Reasoning:           res.Reasoning,
		Recommendations:     res.Recommendations,
		Confidence:          res.Confidence,
		EstimatedWaitTime:   res.EstimatedWaitTime,
		ShouldShift:         shouldShift,
	}, nil
}

// Batch evaluates every untriaged patient sequentially. Per-patient failures
// are logged and counted, never abort the sweep.
func (t *Trigger) Batch(ctx context.Context, actor Actor) (triaged, failed int, err error) {
	patients, err := t.patients.ListUntriaged(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list untriaged patients: %w", err)
	}
	for _, p := range patients {
		if _, runErr := t.Run(ctx, p.ID, actor, RunOptions{TriggeredBy: "batch_triage"}); runErr != nil {
			t.logger.Warn().Err(runErr).Str("patient_id", p.ID.String()).Msg("batch triage failed for patient")
			failed++
			continue
		}
		triaged++
	}
	return triaged, failed, nil
}

// TimelineEntry is one row of the triage timeline, newest first.
type TimelineEntry struct {
	ID                  uuid.UUID  `json:"id"`
	FromPriority        *int       `json:"fromPriority"`
	ToPriority          int        `json:"toPriority"`
	PriorityLabel       string     `json:"priorityLabel"`
	PriorityColor       string     `json:"priorityColor"`
	Reasoning           *string    `json:"reasoning"`
	Recommendations     []string   `json:"recommendations"`
	Confidence          *float64   `json:"confidence"`
	EstimatedWaitTime   *string    `json:"estimatedWaitTime"`
	SuggestedDepartment *string    `json:"suggestedDepartment"`
	IsApplied           bool       `json:"isApplied"`
	AppliedAt           *string    `json:"appliedAt"`
	AppliedBy           *uuid.UUID `json:"appliedBy"`
	CreatedAt           *string    `json:"createdAt"`
	Source              string     `json:"source"`
}

// Timeline returns the full evaluation history for a patient. Entries are
// ordered by normalized applied_at so that mixed timestamp formats cannot
// scramble the fromPriority transitions, then returned newest first.
func (t *Trigger) Timeline(ctx context.Context, patientID uuid.UUID) ([]*TimelineEntry, error) {
	if _, err := t.patients.TriageInfo(ctx, patientID); err != nil {
		return nil, err
	}
	evals, err := t.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	sort.SliceStable(evals, func(i, j int) bool {
		return clinicaltime.Parse(strOr(evals[i].AppliedAt, "")).Before(clinicaltime.Parse(strOr(evals[j].AppliedAt, "")))
	})

	entries := make([]*TimelineEntry, 0, len(evals))
	var prev *int
	for _, e := range evals {
		entries = append(entries, &TimelineEntry{
			ID:                  e.ID,
			FromPriority:        prev,
			ToPriority:          e.Priority,
			PriorityLabel:       e.PriorityLabel,
			PriorityColor:       e.PriorityColor,
			Reasoning:           e.Reasoning,
			Recommendations:     e.Recommendations,
			Confidence:          e.Confidence,
			EstimatedWaitTime:   e.EstimatedWaitTime,
			SuggestedDepartment: e.SuggestedDepartment,
			IsApplied:           e.IsApplied,
			AppliedAt:           e.AppliedAt,
			AppliedBy:           e.AppliedBy,
			CreatedAt:           e.CreatedAt,
			Source:              e.Source(),
		})
		p := e.Priority
		prev = &p
	}

	// Newest first for display.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// assembleInput builds the engine input from the patient row, override
// fields, the latest vitals, and active treatments. Vitals and treatment
// lookups are best-effort context.
func (t *Trigger) assembleInput(ctx context.Context, p *PatientInfo, override *Input) Input {
	in := Input{
		Complaint: strOr(p.Complaint, ""),
		Age:       p.Age,
		Gender:    strOr(p.Gender, ""),
		History:   strOr(p.History, ""),
	}
	if override != nil {
		if override.Complaint != "" {
			in.Complaint = override.Complaint
		}
		if override.Age != nil {
			in.Age = override.Age
		}
		if override.Gender != "" {
			in.Gender = override.Gender
		}
		if override.History != "" {
			in.History = override.History
		}
		in.Vitals = override.Vitals
	}
	if in.Complaint == "" {
		in.Complaint = "General checkup"
	}

	if in.Vitals == nil && t.vitals != nil {
		v, err := t.vitals.Latest(ctx, p.ID)
		if err != nil {
			t.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("latest vitals lookup failed")
		} else {
			in.Vitals = v
		}
	}
	if t.treatments != nil {
		tr, err := t.treatments.ActiveTreatments(ctx, p.ID)
		if err != nil {
			t.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("treatment lookup failed")
		} else {
			in.Treatments = tr
		}
	}
	return in
}

func (t *Trigger) evaluationFrom(res *Result, in Input, patientID *uuid.UUID, actor Actor) *Evaluation {
	now := clinicaltime.Format(clinicaltime.Now())
	ev := &Evaluation{
		TenantID:            actor.TenantID,
		PatientID:           patientID,
		InputVitals:         in.Vitals,
		InputAge:            in.Age,
		Priority:            res.Priority,
		PriorityLabel:       res.PriorityLabel,
		PriorityColor:       res.PriorityColor,
		Confidence:          &res.Confidence,
		Reasoning:           &res.Reasoning,
		Recommendations:     res.Recommendations,
		SuggestedDepartment: &res.SuggestedDepartment,
		EstimatedWaitTime:   &res.EstimatedWaitTime,
		IsApplied:           true,
		AppliedAt:           &now,
		AppliedBy:           actor.UserID,
		CreatedAt:           &now,
	}
	if in.Complaint != "" {
		ev.InputComplaint = &in.Complaint
	}
	if in.Gender != "" {
		ev.InputGender = &in.Gender
	}
	if in.History != "" {
		ev.InputHistory = &in.History
	}
	if res.Model != "" {
		ev.Model = &res.Model
	}
	if res.RequestID != "" {
		ev.RequestID = &res.RequestID
	}
	if res.PromptTokens > 0 {
		ev.PromptTokens = &res.PromptTokens
	}
	if res.CompletionTokens > 0 {
		ev.CompletionTokens = &res.CompletionTokens
	}
	if res.TotalTokens > 0 {
		ev.TotalTokens = &res.TotalTokens
	}
	if res.ProcessingTimeMs > 0 {
		ev.ProcessingTimeMs = &res.ProcessingTimeMs
	}
	if res.Temperature > 0 {
		ev.Temperature = &res.Temperature
	}
	return ev
}

// notifyChange emits a priority-change alert when the applied priority
// differs from the previous one. Returns the escalation flag.
func (t *Trigger) notifyChange(ctx context.Context, p *PatientInfo, old *int, newPriority int, reasoning, triggeredBy string) bool {
	oldVal := 5
	if old != nil {
		oldVal = *old
	}
	escalated := newPriority < oldVal

	if old != nil && *old == newPriority {
		return escalated
	}
	if t.alerter == nil {
		return escalated
	}
	err := t.alerter.TriageChanged(ctx, PriorityChange{
		PatientID:   p.ID,
		PatientName: p.Name,
		From:        old,
		To:          newPriority,
		Reasoning:   reasoning,
		Escalated:   escalated,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("triage change alert failed")
	}
	return escalated
}

func strOr(s *string, def string) string {
	if s != nil {
		return *s
	}
	return def
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func priorityOr(p *int, def string) string {
	if p == nil {
		return def
	}
	return fmt.Sprintf("%d", *p)
}

func labelOr(p *int) string {
	if p == nil {
		return ""
	}
	return PriorityLabels[*p]
}
