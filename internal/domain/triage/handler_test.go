package triage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture(patients *mockPatients) (*Handler, *mockRepo) {
	repo := &mockRepo{}
	tr := newTestTrigger(repo, patients, nil, nil, &mockAlerter{})
	return NewHandler(tr), repo
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	return rec, h(c)
}

func TestQuickTriageHandler(t *testing.T) {
	h, repo := newHandlerFixture(newMockPatients())

	rec, err := doJSON(t, h.QuickTriage, http.MethodPost, "/api/v1/triage/quick",
		`{"complaint": "severe bleeding from arm", "age": 30, "gender": "female"}`, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Priority      int    `json:"priority"`
			PriorityLabel string `json:"priorityLabel"`
			PriorityColor string `json:"priorityColor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Priority != 2 || body.Data.PriorityColor != "orange" {
		t.Fatalf("body = %+v", body)
	}
	if len(repo.evals) != 1 {
		t.Fatalf("quick triage must persist its evaluation")
	}
}

func TestQuickTriageHandler_MissingComplaint(t *testing.T) {
	h, _ := newHandlerFixture(newMockPatients())
	_, err := doJSON(t, h.QuickTriage, http.MethodPost, "/api/v1/triage/quick", `{}`, nil)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestShiftTriageHandler_InvalidPriority(t *testing.T) {
	pid := uuid.New()
	four := 4
	h, repo := newHandlerFixture(newMockPatients(&PatientInfo{ID: pid, Name: "N", Priority: &four}))

	_, err := doJSON(t, h.ShiftTriage, http.MethodPost, "/api/v1/patients/"+pid.String()+"/shift-triage",
		`{"priority": 9}`, map[string]string{"id": pid.String()})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
	if len(repo.evals) != 0 {
		t.Fatalf("invalid shift must not persist")
	}
}

func TestShiftTriageHandler_Success(t *testing.T) {
	pid := uuid.New()
	four := 4
	h, _ := newHandlerFixture(newMockPatients(&PatientInfo{ID: pid, Name: "N", Priority: &four}))

	rec, err := doJSON(t, h.ShiftTriage, http.MethodPost, "/api/v1/patients/"+pid.String()+"/shift-triage",
		`{"priority": 2, "reasoning": "deteriorating"}`, map[string]string{"id": pid.String()})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var body struct {
		Data struct {
			FromPriority  int    `json:"fromPriority"`
			ToPriority    int    `json:"toPriority"`
			PriorityLabel string `json:"priorityLabel"`
			Message       string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.FromPriority != 4 || body.Data.ToPriority != 2 || body.Data.PriorityLabel != "L2 - Emergent" {
		t.Fatalf("body = %+v", body.Data)
	}
	if body.Data.Message != "Triage shifted from L4 to L2 successfully." {
		t.Fatalf("message = %q", body.Data.Message)
	}
}

func TestTimelineHandler_UnknownPatient(t *testing.T) {
	h, _ := newHandlerFixture(newMockPatients())
	id := uuid.New().String()
	_, err := doJSON(t, h.GetTimeline, http.MethodGet, "/api/v1/patients/"+id+"/triage-timeline", "", map[string]string{"id": id})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestTimelineHandler_InvalidID(t *testing.T) {
	h, _ := newHandlerFixture(newMockPatients())
	_, err := doJSON(t, h.GetTimeline, http.MethodGet, "/api/v1/patients/nope/triage-timeline", "", map[string]string{"id": "nope"})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestBatchTriageHandler(t *testing.T) {
	h, _ := newHandlerFixture(newMockPatients(
		&PatientInfo{ID: uuid.New(), Name: "A", Complaint: strptr("cough")},
	))
	rec, err := doJSON(t, h.BatchTriage, http.MethodPost, "/api/v1/patients/batch-triage", "", nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var body struct {
		Data struct {
			TriagedCount int    `json:"triagedCount"`
			Message      string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.TriagedCount != 1 {
		t.Fatalf("triagedCount = %d, want 1", body.Data.TriagedCount)
	}
}
