package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/platform/groq"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func newOfflineEngine() *Engine {
	return NewEngine(groq.New(groq.Config{}, zerolog.Nop()), zerolog.Nop())
}

func TestEvaluate_FallbackKeywords(t *testing.T) {
	e := newOfflineEngine()

	tests := []struct {
		complaint string
		priority  int
	}{
		{"Crushing chest pain radiating to left arm", 1},
		{"Possible stroke, slurred speech", 1},
		{"Patient unconscious on arrival", 1},
		{"Severe bleeding from laceration", 2},
		{"Head injury after fall", 2},
		{"Difficulty breathing since morning", 2},
		{"High fever and chills", 3},
		{"Vomiting for two days", 3},
		{"Abdominal pain after meals", 3},
		{"Common cold symptoms", 4},
		{"Minor cut on finger", 4},
		{"Prescription refill request", 4},
		{"Twisted ankle at soccer practice", 3}, // no keyword, default
	}

	for _, tt := range tests {
		res := e.Evaluate(context.Background(), Input{Complaint: tt.complaint})
		if res.Priority != tt.priority {
			t.Errorf("complaint %q: priority = %d, want %d", tt.complaint, res.Priority, tt.priority)
		}
		if res.Model != "mock" {
			t.Errorf("complaint %q: model = %q, want mock", tt.complaint, res.Model)
		}
		if res.Confidence != 0.75 {
			t.Errorf("complaint %q: confidence = %v, want 0.75", tt.complaint, res.Confidence)
		}
		if res.PriorityLabel != PriorityLabels[tt.priority] || res.PriorityColor != PriorityColors[tt.priority] {
			t.Errorf("complaint %q: label/color mismatch: %q/%q", tt.complaint, res.PriorityLabel, res.PriorityColor)
		}
	}
}

func TestEvaluate_FallbackSpO2Override(t *testing.T) {
	e := newOfflineEngine()

	res := e.Evaluate(context.Background(), Input{
		Complaint: "Minor cut on finger",
		Vitals:    &VitalsInput{SpO2: strptr("85")},
	})
	if res.Priority != 1 {
		t.Fatalf("priority = %d, want 1 (SpO2 < 90 overrides)", res.Priority)
	}
	if res.PriorityColor != "red" {
		t.Fatalf("color = %q, want red", res.PriorityColor)
	}
}

func TestEvaluate_FallbackWaitTimes(t *testing.T) {
	e := newOfflineEngine()

	wait := map[string]string{
		"cardiac arrest":      "Immediate",
		"fracture":            "10 minutes",
		"fever":               "30-60 minutes",
		"prescription refill": "1-2 hours",
	}
	for complaint, want := range wait {
		res := e.Evaluate(context.Background(), Input{Complaint: complaint})
		if res.EstimatedWaitTime != want {
			t.Errorf("complaint %q: wait = %q, want %q", complaint, res.EstimatedWaitTime, want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	in := Input{
		Complaint: "Shortness of breath",
		Age:       intptr(64),
		Gender:    "male",
		Vitals: &VitalsInput{
			HR:   strptr("118"),
			BP:   strptr("150/95"),
			SpO2: strptr("91"),
			Temp: strptr("99.1"),
			RR:   strptr("24"),
		},
		History:    "COPD",
		Treatments: []string{"Salbutamol - 2 puffs - PRN", "Oxygen - 2L - continuous"},
	}
	prompt := buildPrompt(in)

	for _, want := range []string{
		"Chief Complaint: Shortness of breath",
		"Age: 64",
		"Gender: male",
		"HR: 118 bpm, BP: 150/95 mmHg, SpO2: 91%, Temp: 99.1°F, RR: 24 breaths/min",
		"Medical History: COPD",
		"Salbutamol - 2 puffs - PRN; Oxygen - 2L - continuous",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_Defaults(t *testing.T) {
	prompt := buildPrompt(Input{})

	for _, want := range []string{
		"Chief Complaint: Not specified",
		"Age: Not specified",
		"Gender: Not specified",
		"Vital Signs: Not provided",
		"Medical History: None reported",
		"Current Treatments/Prescriptions: None",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func llmServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"id":    "req_test_1",
			"model": "llama-3.3-70b-versatile",
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": content}},
			},
			"usage": map[string]int{"prompt_tokens": 420, "completion_tokens": 96, "total_tokens": 516},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
}

func llmEngine(t *testing.T, srv *httptest.Server) *Engine {
	t.Helper()
	client := groq.New(groq.Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.3,
	}, zerolog.Nop())
	return NewEngine(client, zerolog.Nop())
}

func TestEvaluate_LLMPath(t *testing.T) {
	srv := llmServer(t, `{
		"priority": 2,
		"priority_label": "l2 emergent",
		"priority_color": "ORANGE",
		"reasoning": "Tachycardia with borderline saturation.",
		"recommendations": ["ECG", "Continuous monitoring"],
		"suggested_department": "Cardiology",
		"estimated_wait_time": "10 minutes",
		"confidence": 0.88
	}`)
	defer srv.Close()

	res := llmEngine(t, srv).Evaluate(context.Background(), Input{Complaint: "palpitations"})
	if res.Priority != 2 {
		t.Fatalf("priority = %d, want 2", res.Priority)
	}
	// Labels are normalized regardless of model phrasing.
	if res.PriorityLabel != "L2 - Emergent" || res.PriorityColor != "orange" {
		t.Fatalf("label/color = %q/%q, want normalized", res.PriorityLabel, res.PriorityColor)
	}
	if res.Model != "llama-3.3-70b-versatile" || res.RequestID != "req_test_1" {
		t.Fatalf("provenance = %q/%q", res.Model, res.RequestID)
	}
	if res.TotalTokens != 516 {
		t.Fatalf("total tokens = %d, want 516", res.TotalTokens)
	}
}

func TestEvaluate_LLMMalformedJSONFallsBack(t *testing.T) {
	srv := llmServer(t, `the patient seems fine to me`)
	defer srv.Close()

	res := llmEngine(t, srv).Evaluate(context.Background(), Input{Complaint: "fever"})
	if res.Model != "mock" {
		t.Fatalf("model = %q, want mock fallback", res.Model)
	}
	if res.Priority != 3 {
		t.Fatalf("priority = %d, want 3 (fever keyword)", res.Priority)
	}
}

func TestEvaluate_LLMOutOfRangePriorityFallsBack(t *testing.T) {
	srv := llmServer(t, `{"priority": 7, "reasoning": "made up scale"}`)
	defer srv.Close()

	res := llmEngine(t, srv).Evaluate(context.Background(), Input{Complaint: "chest pain"})
	if res.Model != "mock" {
		t.Fatalf("model = %q, want mock fallback", res.Model)
	}
	if res.Priority != 1 {
		t.Fatalf("priority = %d, want 1 (chest pain keyword)", res.Priority)
	}
}

func TestEvaluate_LLMErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := llmEngine(t, srv).Evaluate(context.Background(), Input{Complaint: "stroke symptoms"})
	if res.Model != "mock" || res.Priority != 1 {
		t.Fatalf("got model=%q priority=%d, want mock/1", res.Model, res.Priority)
	}
}

func TestExtractVitalsFromImage_MockWhenOffline(t *testing.T) {
	e := newOfflineEngine()

	ext := e.ExtractVitalsFromImage(context.Background(), "aGVsbG8=")
	if got := *ext.Extracted["hr"]; got != "78" {
		t.Fatalf("hr = %q, want 78", got)
	}
	if got := *ext.Extracted["bp"]; got != "120/80" {
		t.Fatalf("bp = %q, want 120/80", got)
	}
	if ext.Confidence["spo2"] != 0.92 {
		t.Fatalf("spo2 confidence = %v, want 0.92", ext.Confidence["spo2"])
	}
	if !strings.Contains(ext.RawText, "HR: 78 bpm") {
		t.Fatalf("raw text = %q", ext.RawText)
	}
}

func TestExtractVitalsFromImage_LLMPath(t *testing.T) {
	srv := llmServer(t, `{
		"extracted": {"hr": "102", "bp": "135/88", "spo2": "94", "temp": null},
		"confidence": {"hr": 0.95, "bp": 0.8, "spo2": 0.9},
		"rawText": "HR 102 BP 135/88 SpO2 94"
	}`)
	defer srv.Close()

	ext := llmEngine(t, srv).ExtractVitalsFromImage(context.Background(), "aGVsbG8=")
	if got := *ext.Extracted["hr"]; got != "102" {
		t.Fatalf("hr = %q, want 102", got)
	}
	if ext.Extracted["temp"] != nil {
		t.Fatalf("temp should be nil")
	}
	if ext.RawText != "HR 102 BP 135/88 SpO2 94" {
		t.Fatalf("rawText = %q", ext.RawText)
	}
}
