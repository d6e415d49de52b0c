package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/triage"
	"github.com/erms/erms/pkg/clinicaltime"
)

var validPriorities = map[string]bool{
	PriorityCritical: true,
	PriorityHigh:     true,
	PriorityMedium:   true,
	PriorityLow:      true,
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "alerts").Logger()}
}

func (s *Service) Create(ctx context.Context, a *Alert) error {
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if a.Message == "" {
		return fmt.Errorf("message is required")
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	if !validPriorities[a.Priority] {
		return fmt.Errorf("invalid priority: %s", a.Priority)
	}
	if a.Category == "" {
		a.Category = "General"
	}
	a.Status = StatusUnread
	now := clinicaltime.Format(clinicaltime.Now())
	a.CreatedAt = &now
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Alert, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusUnread)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := clinicaltime.Format(clinicaltime.Now())
	a.Status = StatusRead
	a.ReadAt = &now
	a.ReadBy = userID
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := clinicaltime.Format(clinicaltime.Now())
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = userID
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// TriageChanged records an alert row for an applied priority transition.
// Satisfies the triage trigger's Alerter.
func (s *Service) TriageChanged(ctx context.Context, ch triage.PriorityChange) error {
	old := "?"
	if ch.From != nil {
		old = fmt.Sprintf("%d", *ch.From)
	}

	title := fmt.Sprintf("Triage Changed - %s", ch.PatientName)
	if ch.TriggeredBy == "triage_shift" {
		direction := "De-escalated"
		if ch.Escalated {
			direction = "Escalated"
		}
		title = fmt.Sprintf("Triage %s - %s", direction, ch.PatientName)
	}

	priority := PriorityMedium
	if ch.To == 1 || ch.To == 2 {
		priority = PriorityHigh
	}

	triggered := ch.TriggeredBy
	return s.Create(ctx, &Alert{
		Title:       title,
		Message:     fmt.Sprintf("%s triage shifted from L%s to L%d (%s). %s", ch.PatientName, old, ch.To, triage.PriorityLabels[ch.To], ch.Reasoning),
		Priority:    priority,
		Category:    "Triage",
		ForRoles:    []string{"nurse", "doctor", "admin"},
		PatientID:   &ch.PatientID,
		TriggeredBy: &triggered,
	})
}
