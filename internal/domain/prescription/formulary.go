package prescription

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erms/erms/internal/platform/cache"
	"github.com/erms/erms/internal/platform/groq"
)

// formularySeed covers the commonly prescribed drugs of the Indian
// pharmaceutical market. Anything not found here falls through to the LLM
// lookup when one is configured.
var formularySeed = []Medication{
	{ID: "IN001", Name: "Paracetamol 500mg", GenericName: "Acetaminophen", Code: "N02BE01", Form: "Tablet", Strengths: []string{"500mg", "650mg"}, Category: "Analgesic", Manufacturer: "Various"},
	{ID: "IN002", Name: "Dolo 650", GenericName: "Paracetamol", Code: "N02BE01", Form: "Tablet", Strengths: []string{"650mg"}, Category: "Analgesic", Manufacturer: "Micro Labs"},
	{ID: "IN003", Name: "Crocin Advance", GenericName: "Paracetamol", Code: "N02BE01", Form: "Tablet", Strengths: []string{"500mg"}, Category: "Analgesic", Manufacturer: "GSK"},
	{ID: "IN006", Name: "Ibuprofen 400mg", GenericName: "Ibuprofen", Code: "M01AE01", Form: "Tablet", Strengths: []string{"200mg", "400mg", "600mg"}, Category: "NSAID", Manufacturer: "Various"},
	{ID: "IN008", Name: "Combiflam", GenericName: "Ibuprofen + Paracetamol", Code: "M01AE51", Form: "Tablet", Strengths: []string{"400mg+325mg"}, Category: "NSAID + Analgesic", Manufacturer: "Sanofi"},
	{ID: "IN009", Name: "Diclofenac 50mg", GenericName: "Diclofenac Sodium", Code: "M01AB05", Form: "Tablet", Strengths: []string{"50mg", "100mg"}, Category: "NSAID", Manufacturer: "Various"},
	{ID: "IN013", Name: "Nimesulide 100mg", GenericName: "Nimesulide", Code: "M01AX17", Form: "Tablet", Strengths: []string{"100mg"}, Category: "NSAID", Manufacturer: "Various"},
	{ID: "IN016", Name: "Etoricoxib 90mg", GenericName: "Etoricoxib", Code: "M01AH05", Form: "Tablet", Strengths: []string{"60mg", "90mg", "120mg"}, Category: "COX-2 Inhibitor", Manufacturer: "Various"},
	{ID: "IN017", Name: "Amoxicillin 500mg", GenericName: "Amoxicillin", Code: "J01CA04", Form: "Capsule", Strengths: []string{"250mg", "500mg"}, Category: "Antibiotic (Penicillin)", Manufacturer: "Various"},
	{ID: "IN018", Name: "Augmentin 625 Duo", GenericName: "Amoxicillin + Clavulanate", Code: "J01CR02", Form: "Tablet", Strengths: []string{"500mg+125mg"}, Category: "Antibiotic (Penicillin)", Manufacturer: "GSK"},
	{ID: "IN019", Name: "Azithromycin 500mg", GenericName: "Azithromycin", Code: "J01FA10", Form: "Tablet", Strengths: []string{"250mg", "500mg"}, Category: "Antibiotic (Macrolide)", Manufacturer: "Various"},
	{ID: "IN021", Name: "Ciprofloxacin 500mg", GenericName: "Ciprofloxacin", Code: "J01MA02", Form: "Tablet", Strengths: []string{"250mg", "500mg"}, Category: "Antibiotic (Fluoroquinolone)", Manufacturer: "Various"},
	{ID: "IN025", Name: "Cefixime 200mg", GenericName: "Cefixime", Code: "J01DD08", Form: "Tablet", Strengths: []string{"100mg", "200mg"}, Category: "Antibiotic (Cephalosporin)", Manufacturer: "Various"},
	{ID: "IN027", Name: "Ceftriaxone 1g Inj", GenericName: "Ceftriaxone", Code: "J01DD04", Form: "Injection", Strengths: []string{"250mg", "500mg", "1g"}, Category: "Antibiotic (Cephalosporin)", Manufacturer: "Various"},
	{ID: "IN028", Name: "Doxycycline 100mg", GenericName: "Doxycycline", Code: "J01AA02", Form: "Capsule", Strengths: []string{"100mg"}, Category: "Antibiotic (Tetracycline)", Manufacturer: "Various"},
	{ID: "IN029", Name: "Metronidazole 400mg", GenericName: "Metronidazole", Code: "J01XD01", Form: "Tablet", Strengths: []string{"200mg", "400mg"}, Category: "Antibiotic (Nitroimidazole)", Manufacturer: "Various"},
	{ID: "IN034", Name: "Meropenem 1g Inj", GenericName: "Meropenem", Code: "J01DH02", Form: "Injection", Strengths: []string{"500mg", "1g"}, Category: "Antibiotic (Carbapenem)", Manufacturer: "Various"},
	{ID: "IN036", Name: "Vancomycin 500mg Inj", GenericName: "Vancomycin", Code: "J01XA01", Form: "Injection", Strengths: []string{"500mg", "1g"}, Category: "Antibiotic (Glycopeptide)", Manufacturer: "Various"},
	{ID: "IN040", Name: "Fluconazole 150mg", GenericName: "Fluconazole", Code: "J02AC01", Form: "Tablet", Strengths: []string{"50mg", "150mg", "200mg"}, Category: "Antifungal", Manufacturer: "Various"},
	{ID: "IN044", Name: "Omeprazole 20mg", GenericName: "Omeprazole", Code: "A02BC01", Form: "Capsule", Strengths: []string{"20mg", "40mg"}, Category: "PPI", Manufacturer: "Various"},
	{ID: "IN045", Name: "Pantoprazole 40mg", GenericName: "Pantoprazole", Code: "A02BC02", Form: "Tablet", Strengths: []string{"20mg", "40mg"}, Category: "PPI", Manufacturer: "Various"},
	{ID: "IN052", Name: "Ondansetron 4mg", GenericName: "Ondansetron", Code: "A04AA01", Form: "Tablet", Strengths: []string{"4mg", "8mg"}, Category: "Antiemetic", Manufacturer: "Various"},
	{ID: "IN055", Name: "ORS Powder", GenericName: "Oral Rehydration Salts", Code: "A07CA", Form: "Powder", Strengths: []string{"Standard WHO"}, Category: "Rehydration", Manufacturer: "Various"},
	{ID: "IN059", Name: "Metformin 500mg", GenericName: "Metformin Hydrochloride", Code: "A10BA02", Form: "Tablet", Strengths: []string{"500mg", "850mg", "1000mg"}, Category: "Antidiabetic (Biguanide)", Manufacturer: "Various"},
	{ID: "IN061", Name: "Glimepiride 1mg", GenericName: "Glimepiride", Code: "A10BB12", Form: "Tablet", Strengths: []string{"1mg", "2mg", "3mg", "4mg"}, Category: "Antidiabetic (Sulfonylurea)", Manufacturer: "Various"},
	{ID: "IN070", Name: "Insulin Glargine (Lantus)", GenericName: "Insulin Glargine", Code: "A10AE04", Form: "Injection", Strengths: []string{"100IU/ml"}, Category: "Insulin (Long-acting)", Manufacturer: "Sanofi"},
	{ID: "IN071", Name: "Insulin Regular (Actrapid)", GenericName: "Regular Insulin", Code: "A10AB01", Form: "Injection", Strengths: []string{"40IU/ml", "100IU/ml"}, Category: "Insulin (Short-acting)", Manufacturer: "Novo Nordisk"},
	{ID: "IN074", Name: "Amlodipine 5mg", GenericName: "Amlodipine Besylate", Code: "C08CA01", Form: "Tablet", Strengths: []string{"2.5mg", "5mg", "10mg"}, Category: "CCB", Manufacturer: "Various"},
	{ID: "IN075", Name: "Telmisartan 40mg", GenericName: "Telmisartan", Code: "C09CA07", Form: "Tablet", Strengths: []string{"20mg", "40mg", "80mg"}, Category: "ARB", Manufacturer: "Various"},
	{ID: "IN077", Name: "Losartan 50mg", GenericName: "Losartan Potassium", Code: "C09CA01", Form: "Tablet", Strengths: []string{"25mg", "50mg", "100mg"}, Category: "ARB", Manufacturer: "Various"},
	{ID: "IN079", Name: "Ramipril 5mg", GenericName: "Ramipril", Code: "C09AA05", Form: "Capsule", Strengths: []string{"1.25mg", "2.5mg", "5mg", "10mg"}, Category: "ACE Inhibitor", Manufacturer: "Various"},
	{ID: "IN082", Name: "Metoprolol 50mg", GenericName: "Metoprolol Succinate", Code: "C07AB02", Form: "Tablet", Strengths: []string{"25mg", "50mg", "100mg"}, Category: "Beta Blocker", Manufacturer: "Various"},
	{ID: "IN088", Name: "Furosemide 40mg", GenericName: "Furosemide", Code: "C03CA01", Form: "Tablet", Strengths: []string{"20mg", "40mg"}, Category: "Loop Diuretic", Manufacturer: "Various"},
	{ID: "IN091", Name: "Glyceryl Trinitrate", GenericName: "Nitroglycerin", Code: "C01DA02", Form: "Sublingual Tablet", Strengths: []string{"0.5mg"}, Category: "Antianginal", Manufacturer: "Various"},
	{ID: "IN096", Name: "Atorvastatin 10mg", GenericName: "Atorvastatin", Code: "C10AA05", Form: "Tablet", Strengths: []string{"10mg", "20mg", "40mg", "80mg"}, Category: "Statin", Manufacturer: "Various"},
	{ID: "IN101", Name: "Aspirin 75mg", GenericName: "Acetylsalicylic Acid", Code: "B01AC06", Form: "Tablet", Strengths: []string{"75mg", "150mg", "325mg"}, Category: "Antiplatelet", Manufacturer: "Various"},
	{ID: "IN102", Name: "Clopidogrel 75mg", GenericName: "Clopidogrel", Code: "B01AC04", Form: "Tablet", Strengths: []string{"75mg"}, Category: "Antiplatelet", Manufacturer: "Various"},
	{ID: "IN105", Name: "Warfarin 5mg", GenericName: "Warfarin Sodium", Code: "B01AA03", Form: "Tablet", Strengths: []string{"1mg", "2mg", "5mg"}, Category: "Anticoagulant", Manufacturer: "Various"},
	{ID: "IN110", Name: "Salbutamol Inhaler", GenericName: "Salbutamol", Code: "R03AC02", Form: "Inhaler", Strengths: []string{"100mcg/dose"}, Category: "Bronchodilator", Manufacturer: "Various"},
	{ID: "IN112", Name: "Budesonide + Formoterol", GenericName: "Budesonide + Formoterol", Code: "R03AK07", Form: "Inhaler", Strengths: []string{"160mcg+4.5mcg"}, Category: "ICS + LABA", Manufacturer: "Various"},
	{ID: "IN120", Name: "Cetirizine 10mg", GenericName: "Cetirizine", Code: "R06AE07", Form: "Tablet", Strengths: []string{"5mg", "10mg"}, Category: "Antihistamine", Manufacturer: "Various"},
	{ID: "IN130", Name: "Hydrocortisone 100mg Inj", GenericName: "Hydrocortisone", Code: "H02AB09", Form: "Injection", Strengths: []string{"100mg"}, Category: "Corticosteroid", Manufacturer: "Various"},
	{ID: "IN135", Name: "Adrenaline 1mg Inj", GenericName: "Epinephrine", Code: "C01CA24", Form: "Injection", Strengths: []string{"1mg/ml"}, Category: "Emergency (Vasopressor)", Manufacturer: "Various"},
	{ID: "IN140", Name: "Tranexamic Acid 500mg", GenericName: "Tranexamic Acid", Code: "B02AA02", Form: "Tablet", Strengths: []string{"500mg"}, Category: "Antifibrinolytic", Manufacturer: "Various"},
	{ID: "IN152", Name: "Sertraline 50mg", GenericName: "Sertraline", Code: "N06AB06", Form: "Tablet", Strengths: []string{"25mg", "50mg", "100mg"}, Category: "SSRI", Manufacturer: "Various"},
	{ID: "IN221", Name: "Tramadol 50mg", GenericName: "Tramadol", Code: "N02AX02", Form: "Capsule", Strengths: []string{"50mg", "100mg"}, Category: "Opioid Analgesic", Manufacturer: "Various"},
}

type interactionKey struct{ a, b string }

var knownInteractions = map[interactionKey]Interaction{
	{"IN006", "IN101"}: {Severity: "moderate", Description: "Ibuprofen may reduce the antiplatelet effect of Aspirin", Recommendation: "Take Aspirin at least 30 minutes before Ibuprofen"},
	{"IN059", "IN006"}: {Severity: "mild", Description: "NSAIDs may slightly reduce the hypoglycemic effect of Metformin", Recommendation: "Monitor blood glucose levels"},
	{"IN079", "IN059"}: {Severity: "moderate", Description: "Both medications can affect kidney function", Recommendation: "Monitor renal function regularly"},
	{"IN105", "IN009"}: {Severity: "high", Description: "Diclofenac increases Warfarin bleeding risk", Recommendation: "Avoid combination or monitor INR closely"},
	{"IN105", "IN101"}: {Severity: "high", Description: "Aspirin with Warfarin significantly increases bleeding risk", Recommendation: "Use with extreme caution; monitor INR frequently"},
	{"IN074", "IN082"}: {Severity: "mild", Description: "Both lower blood pressure; additive hypotensive effect", Recommendation: "Monitor blood pressure regularly"},
	{"IN096", "IN040"}: {Severity: "moderate", Description: "Fluconazole inhibits CYP3A4 and increases statin levels", Recommendation: "Monitor for signs of rhabdomyolysis"},
	{"IN059", "IN088"}: {Severity: "mild", Description: "Furosemide may increase risk of Metformin-associated lactic acidosis", Recommendation: "Ensure adequate hydration"},
	{"IN152", "IN221"}: {Severity: "moderate", Description: "SSRIs with Tramadol increase serotonin syndrome risk", Recommendation: "Monitor for serotonin syndrome symptoms"},
	{"IN019", "IN105"}: {Severity: "moderate", Description: "Azithromycin may increase Warfarin effect", Recommendation: "Monitor INR when starting/stopping azithromycin"},
}

const medicationSearchPrompt = `You are a pharmacology reference for medications sold in the Indian market.
Return up to 10 medications matching the search term "{query}".
Respond ONLY with a JSON object of the form:
{"medications": [{"id": "LLM-1", "name": "...", "genericName": "...", "code": "...", "form": "...", "strengths": ["..."], "category": "...", "manufacturer": "..."}]}
If nothing plausible matches, return {"medications": []}.`

const searchCacheTTL = 15 * time.Minute

// Formulary answers medication lookups. Local seed data is searched first,
// with an LLM fallback for queries the seed does not cover. Results are
// cached so repeated dropdown keystrokes stay instant.
type Formulary struct {
	llm     *groq.Client
	results *cache.TTLStore
	logger  zerolog.Logger
}

func NewFormulary(llm *groq.Client, logger zerolog.Logger) *Formulary {
	return &Formulary{
		llm:     llm,
		results: cache.NewTTLStore(),
		logger:  logger.With().Str("component", "formulary").Logger(),
	}
}

// StartCleanup evicts expired search results in the background until the
// context is cancelled.
func (f *Formulary) StartCleanup(ctx context.Context) {
	f.results.StartCleanup(ctx, searchCacheTTL)
}

// ClearCache drops all cached search results.
func (f *Formulary) ClearCache() { f.results.Clear() }

// Get returns a formulary entry by drug id.
func (f *Formulary) Get(drugID string) *Medication {
	for i := range formularySeed {
		if formularySeed[i].ID == drugID {
			m := formularySeed[i]
			return &m
		}
	}
	return nil
}

// Search matches medications by name, generic name, code, category or
// manufacturer. Exact matches rank first, then prefix matches, then
// substring matches. An empty query returns the head of the formulary for
// dropdown priming.
func (f *Formulary) Search(ctx context.Context, query string, limit int) []Medication {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return clip(formularySeed, limit)
	}

	if cached, ok := f.results.Get(q); ok {
		return clip(cached.([]Medication), limit)
	}

	var exact, prefix, contains []Medication
	for _, med := range formularySeed {
		name := strings.ToLower(med.Name)
		generic := strings.ToLower(med.GenericName)
		switch {
		case q == name || q == generic:
			exact = append(exact, med)
		case strings.HasPrefix(name, q) || strings.HasPrefix(generic, q):
			prefix = append(prefix, med)
		case strings.Contains(name, q) ||
			strings.Contains(generic, q) ||
			strings.Contains(strings.ToLower(med.Code), q) ||
			strings.Contains(strings.ToLower(med.Category), q) ||
			strings.Contains(strings.ToLower(med.Manufacturer), q):
			contains = append(contains, med)
		}
	}

	results := append(append(exact, prefix...), contains...)
	if len(results) == 0 && len(q) >= 3 {
		results = f.llmSearch(ctx, q)
	}
	if len(results) > 0 {
		f.results.Set(q, results, searchCacheTTL)
	}
	return clip(results, limit)
}

// Interactions reports known interactions between a drug and the patient's
// current medications.
func (f *Formulary) Interactions(drugID string, current []string) []Interaction {
	out := []Interaction{}
	for _, other := range current {
		if hit, ok := knownInteractions[interactionKey{drugID, other}]; ok {
			hit.Drug1, hit.Drug2 = drugID, other
			out = append(out, hit)
		} else if hit, ok := knownInteractions[interactionKey{other, drugID}]; ok {
			hit.Drug1, hit.Drug2 = other, drugID
			out = append(out, hit)
		}
	}
	return out
}

func (f *Formulary) llmSearch(ctx context.Context, query string) []Medication {
	if f.llm == nil || !f.llm.Enabled() {
		return nil
	}
	prompt := strings.ReplaceAll(medicationSearchPrompt, "{query}", query)
	completion, err := f.llm.CompleteJSON(ctx, "You are a medication lookup assistant. Always respond with valid JSON.", prompt)
	if err != nil {
		f.logger.Warn().Err(err).Str("query", query).Msg("llm medication search failed")
		return nil
	}
	var parsed struct {
		Medications []Medication `json:"medications"`
	}
	if err := json.Unmarshal([]byte(completion.Content), &parsed); err != nil {
		f.logger.Warn().Err(err).Str("query", query).Msg("llm medication search returned malformed JSON")
		return nil
	}
	return parsed.Medications
}

func clip(meds []Medication, limit int) []Medication {
	if len(meds) > limit {
		return meds[:limit]
	}
	return meds
}
