package matcher

import (
	"sort"

	"github.com/cdematcher/backend/internal/textutil"
)

// builtinConcepts maps canonical biomedical concepts to the names datasets
// commonly use for them.
var builtinConcepts = map[string][]string{
	// Identifiers
	"donor_id": {"participant_id", "BB_id", "additional_ID", "donor_id", "subject_id", "patient_id"},

	// Ages
	"age_at_death":                    {"age_at_death", "age_at_onset", "age_at_diagnosis", "death_age"},
	"age_of_onset_cognitive_symptoms": {"age_at_onset", "age_of_onset", "onset_age"},
	"age_of_dementia_diagnosis":       {"age_at_diagnosis", "diagnosis_age"},

	// Demographics
	"sex":                {"sex", "gender"},
	"race":               {"race", "ethnicity_race"},
	"hispanic_latino":    {"ethnicity", "hispanic", "latino"},
	"years_of_education": {"education_years", "education", "years_education"},

	// Genetics
	"apoe_genotype": {"apoe_genotype", "genetics_screening", "apoe", "apolipoprotein"},

	// Brain and tissue
	"fresh_brain_weight": {"brain_weight", "fresh_weight"},
	"brain_ph":           {"brain_ph", "ph", "tissue_ph"},
	"pmi":                {"pmi", "postmortem_interval", "post_mortem_interval"},
	"rin":                {"rin", "rna_integrity", "rna_integrity_number"},

	// Pathology
	"braak":       {"braak_stage", "braak_score", "braak"},
	"thal":        {"thal_phase", "thal_score", "thal"},
	"cerad_score": {"cerad", "cerad_score"},

	// Clinical assessments
	"cognitive_status": {"cognitive_status", "dementia_status", "cognitive_state"},
	"last_casi_score":  {"casi_score", "casi"},
	"last_mmse_score":  {"mmse_score", "mmse"},
	"last_moca_score":  {"moca_score", "moca"},

	// Studies
	"primary_study_name":   {"study_name", "cohort_name", "primary_study"},
	"secondary_study_name": {"secondary_study", "additional_study"},

	// Other clinical concepts
	"cerebrospinal_fluid": {"csf", "cerebrospinal_fluid", "spinal_fluid"},
	"body_mass_index":     {"bmi", "body_mass_index"},
	"blood_pressure":      {"bp", "blood_pressure", "systolic", "diastolic"},
	"medication":          {"meds", "medication", "drugs", "pharmaceuticals"},
}

// BuiltinConcepts returns a copy of the built-in concept table.
func BuiltinConcepts() map[string][]string {
	return mergeConcepts(nil, false)
}

// ConceptNames returns the sorted keys of a concept table.
func ConceptNames(concepts map[string][]string) []string {
	names := make([]string, 0, len(concepts))
	for k := range concepts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// mergeConcepts copies the built-in table and unions custom into it. A
// concept touched by custom keeps its built-in variants plus the new ones,
// one spelling per normalized form, sorted.
func mergeConcepts(custom map[string][]string, caseSensitive bool) map[string][]string {
	merged := make(map[string][]string, len(builtinConcepts)+len(custom))
	for k, v := range builtinConcepts {
		merged[k] = append([]string(nil), v...)
	}
	for k, v := range custom {
		seen := make(map[string]bool)
		var variants []string
		for _, raw := range append(append([]string(nil), merged[k]...), v...) {
			norm := textutil.Identifier(raw, caseSensitive)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			variants = append(variants, raw)
		}
		sort.Strings(variants)
		merged[k] = variants
	}
	return merged
}
