package vitals

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/domain/alert"
	"github.com/erms/erms/internal/domain/bed"
	"github.com/erms/erms/internal/domain/triage"
)

type mockRepo struct {
	items []*Vitals
}

func (m *mockRepo) Create(_ context.Context, v *Vitals) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Vitals, error) {
	var out []*Vitals
	for _, v := range m.items {
		if v.PatientID == patientID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockPatients struct {
	info map[uuid.UUID]*triage.PatientInfo
}

func (m *mockPatients) TriageInfo(_ context.Context, id uuid.UUID) (*triage.PatientInfo, error) {
	p, ok := m.info[id]
	if !ok {
		return nil, triage.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatients) ApplyTriage(_ context.Context, _ uuid.UUID, _ int, _, _ string) error {
	return nil
}

func (m *mockPatients) ListUntriaged(_ context.Context) ([]*triage.PatientInfo, error) {
	return nil, nil
}

type mockRetriager struct {
	calls []string
}

func (m *mockRetriager) Retriage(_ context.Context, _ uuid.UUID, _ triage.Actor, triggeredBy string) *triage.Result {
	m.calls = append(m.calls, triggeredBy)
	return &triage.Result{Priority: 1, PriorityLabel: "L1 - Critical"}
}

type mockNotifier struct {
	alerts []*alert.Alert
}

func (m *mockNotifier) Create(_ context.Context, a *alert.Alert) error {
	m.alerts = append(m.alerts, a)
	return nil
}

type mockBeds struct {
	bed *bed.Bed
}

func (m *mockBeds) FindByPatient(_ context.Context, _ uuid.UUID) (*bed.Bed, error) {
	if m.bed == nil {
		return nil, pgx.ErrNoRows
	}
	return m.bed, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	retriager *mockRetriager
	notifier  *mockNotifier
	beds      *mockBeds
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	patientID := uuid.New()
	complaint := "shortness of breath"
	patients := &mockPatients{info: map[uuid.UUID]*triage.PatientInfo{
		patientID: {ID: patientID, Name: "Dev Patel", Complaint: &complaint},
	}}
	repo := &mockRepo{}
	retriager := &mockRetriager{}
	notifier := &mockNotifier{}
	beds := &mockBeds{}
	engine := triage.NewEngine(nil, zerolog.Nop())
	svc := NewService(repo, engine, patients, retriager, notifier, beds, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, retriager: retriager, notifier: notifier, beds: beds, patientID: patientID}
}

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }
func ptr(s string) *string        { return &s }

func TestRecord_NormalReading(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Record(context.Background(), f.patientID, RecordInput{
		HeartRate: intPtr(78),
		BP:        ptr("120/80"),
		SpO2:      floatPtr(98),
	}, triage.Actor{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	v := out.Vitals
	if v.Source != SourceManual {
		t.Fatalf("expected manual source, got %q", v.Source)
	}
	if v.BloodPressureSystolic == nil || *v.BloodPressureSystolic != 120 {
		t.Fatalf("expected systolic 120, got %v", v.BloodPressureSystolic)
	}
	if v.BloodPressureDiastolic == nil || *v.BloodPressureDiastolic != 80 {
		t.Fatalf("expected diastolic 80, got %v", v.BloodPressureDiastolic)
	}
	if v.IsCritical {
		t.Fatal("normal reading must not be critical")
	}
	if len(out.Alerts) != 0 {
		t.Fatalf("expected no range alerts, got %v", out.Alerts)
	}
	if v.RecordedAt == nil || *v.RecordedAt == "" {
		t.Fatal("expected recorded_at stamped")
	}
	if len(f.retriager.calls) != 1 || f.retriager.calls[0] != "vitals_update" {
		t.Fatalf("expected one vitals_update re-triage, got %v", f.retriager.calls)
	}
	if len(f.notifier.alerts) != 0 {
		t.Fatal("expected no alert for normal vitals")
	}
}

func TestRecord_CriticalReadingRaisesAlert(t *testing.T) {
	f := newFixture(t)
	f.beds.bed = &bed.Bed{BedNumber: "ER-04"}

	out, err := f.svc.Record(context.Background(), f.patientID, RecordInput{
		HeartRate: intPtr(160),
		SpO2:      floatPtr(85),
	}, triage.Actor{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if !out.Vitals.IsCritical || !out.Vitals.AlertGenerated {
		t.Fatal("expected reading flagged critical")
	}
	if len(f.notifier.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.notifier.alerts))
	}
	a := f.notifier.alerts[0]
	if a.Title != "Critical Vitals - ER-04" {
		t.Fatalf("unexpected alert title %q", a.Title)
	}
	if a.Priority != alert.PriorityCritical || a.Category != "Vitals" {
		t.Fatalf("unexpected alert priority/category %q/%q", a.Priority, a.Category)
	}
	if !strings.Contains(a.Message, "Critical heart rate: 160 bpm") ||
		!strings.Contains(a.Message, "Critical SpO2: 85%") {
		t.Fatalf("unexpected alert message %q", a.Message)
	}
}

func TestRecord_NoBedFallsBackInTitle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), f.patientID, RecordInput{
		Temperature: floatPtr(105.2),
	}, triage.Actor{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(f.notifier.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.notifier.alerts))
	}
	if f.notifier.alerts[0].Title != "Critical Vitals - No Bed" {
		t.Fatalf("unexpected title %q", f.notifier.alerts[0].Title)
	}
}

func TestRecord_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Record(context.Background(), uuid.New(), RecordInput{}, triage.Actor{}); err != triage.ErrPatientNotFound {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestCheckRanges(t *testing.T) {
	tests := []struct {
		name     string
		vitals   Vitals
		types    []string
		severity string
	}{
		{"bradycardia", Vitals{HeartRate: intPtr(45)}, []string{"hr"}, "critical"},
		{"mild tachycardia", Vitals{HeartRate: intPtr(110)}, []string{"hr"}, "warning"},
		{"hypoxia", Vitals{SpO2: floatPtr(88)}, []string{"spo2"}, "critical"},
		{"borderline spo2", Vitals{SpO2: floatPtr(93)}, []string{"spo2"}, "warning"},
		{"hypotension", Vitals{BloodPressureSystolic: intPtr(85), BloodPressureDiastolic: intPtr(55)}, []string{"bp"}, "critical"},
		{"hypertensive crisis", Vitals{BloodPressureSystolic: intPtr(190), BloodPressureDiastolic: intPtr(125)}, []string{"bp"}, "critical"},
		{"hypothermia", Vitals{Temperature: floatPtr(94.5)}, []string{"temp"}, "critical"},
		{"hyperpyrexia", Vitals{Temperature: floatPtr(104.5)}, []string{"temp"}, "critical"},
		{"normal", Vitals{HeartRate: intPtr(72), SpO2: floatPtr(98), Temperature: floatPtr(98.6)}, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alerts := checkRanges(&tc.vitals)
			if len(alerts) != len(tc.types) {
				t.Fatalf("expected %d alerts, got %v", len(tc.types), alerts)
			}
			for i, typ := range tc.types {
				if alerts[i].Type != typ {
					t.Fatalf("alert %d type = %q, want %q", i, alerts[i].Type, typ)
				}
				if alerts[i].Severity != tc.severity {
					t.Fatalf("alert %d severity = %q, want %q", i, alerts[i].Severity, tc.severity)
				}
			}
		})
	}
}

func TestHistory_NewestFirstAcrossFormats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.items = []*Vitals{
		{ID: uuid.New(), PatientID: f.patientID, HeartRate: intPtr(70), RecordedAt: ptr("2026-02-14T10:00:00Z")},
		{ID: uuid.New(), PatientID: f.patientID, HeartRate: intPtr(90), RecordedAt: ptr("2026-02-14 10:00:05+00:00")},
		{ID: uuid.New(), PatientID: f.patientID, HeartRate: intPtr(80), RecordedAt: ptr("2026-02-14T09:59:58Z")},
	}

	readings, err := f.svc.History(ctx, f.patientID, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	wantHR := []int{90, 70, 80}
	for i, want := range wantHR {
		if *readings[i].HeartRate != want {
			t.Fatalf("reading %d hr = %d, want %d", i, *readings[i].HeartRate, want)
		}
	}

	limited, err := f.svc.History(ctx, f.patientID, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}

func TestLatest_ConvertsToTriageInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Latest(ctx, f.patientID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for patient with no readings")
	}

	bp := "118/76"
	f.repo.items = []*Vitals{
		{ID: uuid.New(), PatientID: f.patientID, HeartRate: intPtr(70), RecordedAt: ptr("2026-02-14T10:00:00Z")},
		{
			ID: uuid.New(), PatientID: f.patientID,
			HeartRate: intPtr(92), BloodPressure: &bp, SpO2: floatPtr(96.5),
			Temperature: floatPtr(99.1), RespiratoryRate: intPtr(18),
			RecordedAt: ptr("2026-02-14T11:30:00Z"),
		},
	}

	got, err = f.svc.Latest(ctx, f.patientID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.HR == nil || *got.HR != "92" {
		t.Fatalf("expected hr 92 from newest reading, got %+v", got)
	}
	if got.BP == nil || *got.BP != "118/76" {
		t.Fatalf("expected bp 118/76, got %v", got.BP)
	}
	if got.SpO2 == nil || *got.SpO2 != "96.5" {
		t.Fatalf("expected spo2 96.5, got %v", got.SpO2)
	}
	if got.Temp == nil || *got.Temp != "99.1" {
		t.Fatalf("expected temp 99.1, got %v", got.Temp)
	}
	if got.RR == nil || *got.RR != "18" {
		t.Fatalf("expected rr 18, got %v", got.RR)
	}
}

func TestExtractFromImage_OfflineMock(t *testing.T) {
	f := newFixture(t)

	extraction := f.svc.ExtractFromImage(context.Background(), "aW1hZ2U=")
	if extraction == nil {
		t.Fatal("expected extraction")
	}
	if hr := extraction.Extracted["hr"]; hr == nil || *hr != "78" {
		t.Fatalf("expected mock hr 78, got %v", hr)
	}
	if extraction.Confidence["bp"] == 0 {
		t.Fatal("expected confidence for bp")
	}
	if extraction.RawText == "" {
		t.Fatal("expected raw text")
	}
}
