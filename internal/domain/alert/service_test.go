package alert

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/triage"
)

type mockRepo struct {
	alerts map[uuid.UUID]*Alert
}

func newMockRepo() *mockRepo { return &mockRepo{alerts: map[uuid.UUID]*Alert{}} }

func (m *mockRepo) Create(_ context.Context, a *Alert) error {
	a.ID = uuid.New()
	m.alerts[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert not found")
	}
	return a, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Alert, int, error) {
	var out []*Alert
	for _, a := range m.alerts {
		if f.Status != "" && f.Status != "all" && a.Status != f.Status {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Priority != "" && f.Priority != "all" && a.Priority != f.Priority {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, a *Alert) error {
	if _, ok := m.alerts[a.ID]; !ok {
		return fmt.Errorf("alert not found")
	}
	m.alerts[a.ID] = a
	return nil
}

func (m *mockRepo) CountByStatus(_ context.Context, status string) (int, error) {
	n := 0
	for _, a := range m.alerts {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService()

	a := &Alert{Title: "Vitals Pending - X", Message: "No vitals recorded yet."}
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Status != StatusUnread || a.Priority != PriorityMedium || a.Category != "General" {
		t.Fatalf("defaults not applied: %+v", a)
	}
	if a.CreatedAt == nil {
		t.Fatalf("created_at not stamped")
	}

	if err := svc.Create(context.Background(), &Alert{Message: "m"}); err == nil {
		t.Fatalf("missing title should fail")
	}
	if err := svc.Create(context.Background(), &Alert{Title: "t", Message: "m", Priority: "urgent-ish"}); err == nil {
		t.Fatalf("unknown priority should fail")
	}
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService()

	seed := []*Alert{
		{Title: "a", Message: "m", Priority: PriorityCritical, Category: "Vitals"},
		{Title: "b", Message: "m", Priority: PriorityMedium, Category: "Triage"},
		{Title: "c", Message: "m", Priority: PriorityHigh, Category: "Triage"},
	}
	for _, a := range seed {
		if err := svc.Create(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), Filter{Category: "Triage"}, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("category filter: total = %d, want 2", total)
	}

	items, total, _ = svc.List(context.Background(), Filter{Priority: PriorityCritical}, 20, 0)
	if total != 1 || items[0].Category != "Vitals" {
		t.Fatalf("priority filter: got %d items", total)
	}

	_, total, _ = svc.List(context.Background(), Filter{Status: "all", Priority: "all"}, 20, 0)
	if total != 3 {
		t.Fatalf("all filter: total = %d, want 3", total)
	}
}

func TestMarkReadAndAcknowledge(t *testing.T) {
	svc, repo := newTestService()

	a := &Alert{Title: "t", Message: "m"}
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	userID := uuid.New()

	read, err := svc.MarkRead(context.Background(), a.ID, &userID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if read.Status != StatusRead || read.ReadAt == nil || *read.ReadBy != userID {
		t.Fatalf("read = %+v", read)
	}

	ack, err := svc.Acknowledge(context.Background(), a.ID, &userID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if ack.Status != StatusAcknowledged || ack.AcknowledgedAt == nil {
		t.Fatalf("ack = %+v", ack)
	}

	n, _ := repo.CountByStatus(context.Background(), StatusUnread)
	if n != 0 {
		t.Fatalf("unread = %d, want 0", n)
	}
}

func TestTriageChanged_EscalationWording(t *testing.T) {
	svc, repo := newTestService()

	three := 3
	pid := uuid.New()
	err := svc.TriageChanged(context.Background(), triage.PriorityChange{
		PatientID:   pid,
		PatientName: "Asha Rao",
		From:        &three,
		To:          1,
		Reasoning:   "SpO2 85 on room air.",
		Escalated:   true,
		TriggeredBy: "vitals_retriage",
	})
	if err != nil {
		t.Fatalf("TriageChanged: %v", err)
	}

	var got *Alert
	for _, a := range repo.alerts {
		got = a
	}
	if got.Title != "Triage Changed - Asha Rao" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Priority != PriorityHigh || got.Category != "Triage" {
		t.Fatalf("priority/category = %q/%q", got.Priority, got.Category)
	}
	if *got.PatientID != pid || *got.TriggeredBy != "vitals_retriage" {
		t.Fatalf("linkage = %+v", got)
	}
}

func TestTriageChanged_ShiftWording(t *testing.T) {
	svc, repo := newTestService()

	four := 4
	err := svc.TriageChanged(context.Background(), triage.PriorityChange{
		PatientID:   uuid.New(),
		PatientName: "Dev Patel",
		From:        &four,
		To:          2,
		Escalated:   true,
		TriggeredBy: "triage_shift",
	})
	if err != nil {
		t.Fatalf("TriageChanged: %v", err)
	}
	for _, a := range repo.alerts {
		if a.Title != "Triage Escalated - Dev Patel" {
			t.Fatalf("title = %q", a.Title)
		}
	}
}
