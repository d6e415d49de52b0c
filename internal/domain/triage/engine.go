package triage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/platform/groq"
)

const triageSystemMessage = "You are a medical triage AI assistant. Always respond with valid JSON."

const triagePromptTemplate = `You are an experienced emergency room triage nurse. Based on the patient information provided, assess the patient's CURRENT condition and assign a priority level.

Priority Levels (L1-L4):
1 - L1 CRITICAL (Red): Life-threatening, requires immediate intervention - resuscitation needed
2 - L2 EMERGENT (Orange): Potentially life-threatening, needs urgent care within 10 minutes
3 - L3 URGENT (Yellow): Serious but stable, can wait up to 30-60 minutes
4 - L4 NON-URGENT (Green): Minor conditions, can wait up to 2 hours

Patient Information:
- Chief Complaint: {complaint}
- Age: {age}
- Gender: {gender}
- Vital Signs: {vitals}
- Medical History: {history}
- Current Treatments/Prescriptions: {treatments}

IMPORTANT: Factor in any ongoing treatments or prescribed medications when assessing the patient's current condition. If treatment has been started (e.g., supplemental oxygen for low SpO2, medication for pain), reflect that in your reasoning and adjust the priority accordingly. Your reasoning should describe the patient's current status including the effect of any treatments.

Respond in JSON format with the following structure:
{
    "priority": <1-4>,
    "priority_label": "<L1 - Critical|L2 - Emergent|L3 - Urgent|L4 - Non-Urgent>",
    "priority_color": "<red|orange|yellow|green>",
    "reasoning": "<brief explanation of your CURRENT assessment, factoring in treatments>",
    "recommendations": ["<recommendation 1>", "<recommendation 2>", ...],
    "suggested_department": "<suggested department/specialty>",
    "estimated_wait_time": "<estimated wait time>",
    "confidence": <0.0-1.0>
}

Be conservative - when in doubt, assign a higher priority (lower number). Consider vital signs thresholds:
- Critical BP: <90/60 or >180/120
- Critical HR: <50 or >150
- Critical SpO2: <90%
- Critical Temp: <95°F or >104°F
`

const ocrPrompt = `Extract vital signs from this medical monitor image.
Return JSON with: {"hr": "heart rate", "bp": "blood pressure", "spo2": "oxygen saturation", "temp": "temperature"}
Include confidence scores (0-1) for each value extracted.
If a value cannot be read, set it to null.`

// Keyword tables for the rule-based fallback classifier, checked in acuity
// order: the first matching tier wins.
var (
	criticalKeywords  = []string{"chest pain", "heart attack", "stroke", "unconscious", "not breathing", "cardiac arrest"}
	emergentKeywords  = []string{"severe bleeding", "head injury", "difficulty breathing", "severe pain", "fracture"}
	urgentKeywords    = []string{"fever", "vomiting", "abdominal pain", "infection", "moderate pain"}
	nonUrgentKeywords = []string{"cold", "cough", "minor cut", "rash", "follow-up", "prescription refill"}
)

// Engine classifies patients onto the L1-L4 scale. It is stateless and never
// persists anything; callers own the audit trail. When the LLM is not
// configured or fails in any way the engine degrades to the deterministic
// keyword classifier, so Evaluate always produces a usable result.
type Engine struct {
	llm    *groq.Client
	logger zerolog.Logger
}

func NewEngine(llm *groq.Client, logger zerolog.Logger) *Engine {
	return &Engine{llm: llm, logger: logger.With().Str("component", "triage-engine").Logger()}
}

// Evaluate runs one classification. A single LLM attempt is made within the
// client's configured timeout; any error, malformed response, or out-of-range
// priority falls back to the keyword rules.
func (e *Engine) Evaluate(ctx context.Context, in Input) *Result {
	if e.llm == nil || !e.llm.Enabled() {
		return e.fallback(in)
	}

	prompt := buildPrompt(in)
	start := time.Now()

	comp, err := e.llm.CompleteJSON(ctx, triageSystemMessage, prompt)
	if err != nil {
		e.logger.Warn().Err(err).Msg("llm triage failed, using rule-based fallback")
		return e.fallback(in)
	}

	var res Result
	if err := json.Unmarshal([]byte(comp.Content), &res); err != nil {
		e.logger.Warn().Err(err).Msg("llm returned malformed json, using rule-based fallback")
		return e.fallback(in)
	}
	if !ValidPriority(res.Priority) {
		e.logger.Warn().Int("priority", res.Priority).Msg("llm priority out of range, using rule-based fallback")
		return e.fallback(in)
	}

	// Labels are normative regardless of what the model phrased.
	res.PriorityLabel = PriorityLabels[res.Priority]
	res.PriorityColor = PriorityColors[res.Priority]
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}

	res.Model = comp.Model
	res.RequestID = comp.RequestID
	res.PromptTokens = comp.PromptTokens
	res.CompletionTokens = comp.CompletionTokens
	res.TotalTokens = comp.TotalTokens
	res.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	res.Temperature = e.llm.Temperature()
	return &res
}

// fallback is the deterministic keyword classifier. Default is L3; an SpO2
// below 90 overrides everything to L1.
func (e *Engine) fallback(in Input) *Result {
	priority := 3
	complaint := strings.ToLower(in.Complaint)

	switch {
	case matchesAny(complaint, criticalKeywords):
		priority = 1
	case matchesAny(complaint, emergentKeywords):
		priority = 2
	case matchesAny(complaint, urgentKeywords):
		priority = 3
	case matchesAny(complaint, nonUrgentKeywords):
		priority = 4
	}

	if in.Vitals != nil && in.Vitals.SpO2 != nil {
		if spo2, err := strconv.ParseFloat(strings.TrimSpace(*in.Vitals.SpO2), 64); err == nil && spo2 < 90 {
			priority = 1
		}
	}

	return &Result{
		Priority:            priority,
		PriorityLabel:       PriorityLabels[priority],
		PriorityColor:       PriorityColors[priority],
		Reasoning:           "Based on chief complaint: " + in.Complaint + ". Assessment performed using rule-based fallback.",
		Recommendations:     []string{"Clinical assessment required", "Monitor vitals"},
		SuggestedDepartment: "Emergency",
		EstimatedWaitTime:   priorityWaitTimes[priority-1],
		Confidence:          0.75,
		Model:               "mock",
		ProcessingTimeMs:    50,
	}
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func buildPrompt(in Input) string {
	complaint := in.Complaint
	if complaint == "" {
		complaint = "Not specified"
	}
	age := "Not specified"
	if in.Age != nil {
		age = strconv.Itoa(*in.Age)
	}
	gender := in.Gender
	if gender == "" {
		gender = "Not specified"
	}
	history := in.History
	if history == "" {
		history = "None reported"
	}
	treatments := "None"
	if len(in.Treatments) > 0 {
		treatments = strings.Join(in.Treatments, "; ")
	}

	r := strings.NewReplacer(
		"{complaint}", complaint,
		"{age}", age,
		"{gender}", gender,
		"{vitals}", formatVitals(in.Vitals),
		"{history}", history,
		"{treatments}", treatments,
	)
	return r.Replace(triagePromptTemplate)
}

func formatVitals(v *VitalsInput) string {
	if v == nil {
		return "Not provided"
	}
	var parts []string
	if v.HR != nil && *v.HR != "" {
		parts = append(parts, "HR: "+*v.HR+" bpm")
	}
	if v.BP != nil && *v.BP != "" {
		parts = append(parts, "BP: "+*v.BP+" mmHg")
	}
	if v.SpO2 != nil && *v.SpO2 != "" {
		parts = append(parts, "SpO2: "+*v.SpO2+"%")
	}
	if v.Temp != nil && *v.Temp != "" {
		parts = append(parts, "Temp: "+*v.Temp+"°F")
	}
	if v.RR != nil && *v.RR != "" {
		parts = append(parts, "RR: "+*v.RR+" breaths/min")
	}
	if len(parts) == 0 {
		return "Not provided"
	}
	return strings.Join(parts, ", ")
}

// Extraction is the result of reading vitals off a monitor photo.
type Extraction struct {
	Extracted  map[string]*string  `json:"extracted"`
	Confidence map[string]float64  `json:"confidence"`
	RawText    string              `json:"rawText"`
}

// ExtractVitalsFromImage reads vital signs from a monitor image via the
// vision model, returning a canned result when the LLM is unavailable so the
// intake flow keeps working offline.
func (e *Engine) ExtractVitalsFromImage(ctx context.Context, imageBase64 string) *Extraction {
	if e.llm == nil || !e.llm.Enabled() {
		return mockExtraction()
	}

	comp, err := e.llm.CompleteVisionJSON(ctx, ocrPrompt, imageBase64)
	if err != nil {
		e.logger.Warn().Err(err).Msg("vision ocr failed, using mock extraction")
		return mockExtraction()
	}

	var raw struct {
		Extracted  map[string]*string `json:"extracted"`
		Confidence map[string]float64 `json:"confidence"`
		RawText    string             `json:"rawText"`

		// Models sometimes return the fields at the top level instead of
		// nesting them under "extracted".
		HR   *string `json:"hr"`
		BP   *string `json:"bp"`
		SpO2 *string `json:"spo2"`
		Temp *string `json:"temp"`
	}
	if err := json.Unmarshal([]byte(comp.Content), &raw); err != nil {
		e.logger.Warn().Err(err).Msg("vision ocr returned malformed json, using mock extraction")
		return mockExtraction()
	}

	ext := &Extraction{Extracted: raw.Extracted, Confidence: raw.Confidence, RawText: raw.RawText}
	if ext.Extracted == nil {
		ext.Extracted = map[string]*string{"hr": raw.HR, "bp": raw.BP, "spo2": raw.SpO2, "temp": raw.Temp}
	}
	if ext.Confidence == nil {
		ext.Confidence = map[string]float64{}
	}
	return ext
}

func mockExtraction() *Extraction {
	str := func(s string) *string { return &s }
	return &Extraction{
		Extracted: map[string]*string{
			"hr":   str("78"),
			"bp":   str("120/80"),
			"spo2": str("98"),
			"temp": str("98.6"),
		},
		Confidence: map[string]float64{
			"hr":   0.9,
			"bp":   0.85,
			"spo2": 0.92,
			"temp": 0.88,
		},
		RawText: "HR: 78 bpm, BP: 120/80 mmHg, SpO2: 98%, Temp: 98.6°F",
	}
}
