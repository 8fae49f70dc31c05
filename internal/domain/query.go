package domain

import (
	"math"
	"time"
)

// HealthField names one optional section of a structured health query.
type HealthField string

const (
	FieldSymptoms       HealthField = "symptoms"
	FieldBiomarkers     HealthField = "biomarkers"
	FieldRemarks        HealthField = "remarks"
	FieldScreenTime     HealthField = "screen_time"
	FieldHealthTracking HealthField = "health_tracking"
)

// HealthFieldOrder is the order in which sections reach the model. The
// system instruction refers to the sections in this order.
var HealthFieldOrder = []HealthField{
	FieldSymptoms,
	FieldBiomarkers,
	FieldRemarks,
	FieldScreenTime,
	FieldHealthTracking,
}

// HealthQuery is the user-supplied data for one request. Any field may be
// empty. When FreeText is set the structured fields are ignored.
type HealthQuery struct {
	Symptoms       string `json:"symptoms" form:"symptoms"`
	Biomarkers     string `json:"biomarkers" form:"biomarkers"`
	Remarks        string `json:"remarks" form:"remarks"`
	ScreenTime     string `json:"screen_time" form:"screen_time"`
	HealthTracking string `json:"health_tracking" form:"health_tracking"`
	FreeText       string `json:"-" form:"-"`
}

// Value returns the raw text of one structured field.
func (q HealthQuery) Value(f HealthField) string {
	switch f {
	case FieldSymptoms:
		return q.Symptoms
	case FieldBiomarkers:
		return q.Biomarkers
	case FieldRemarks:
		return q.Remarks
	case FieldScreenTime:
		return q.ScreenTime
	case FieldHealthTracking:
		return q.HealthTracking
	}
	return ""
}

// IsFreeText reports whether the query carries a single free-text blob.
func (q HealthQuery) IsFreeText() bool {
	return q.FreeText != ""
}

// HealthReport is the formatted result of one pipeline run.
type HealthReport struct {
	Recommendations string        `json:"recommendations"`
	ExecutionTime   time.Duration `json:"-"`
	SchemaVersion   string        `json:"schema_version,omitempty"`
}

// ExecutionTimeSeconds returns the generation time rounded to two decimals.
func (r *HealthReport) ExecutionTimeSeconds() float64 {
	return math.Round(r.ExecutionTime.Seconds()*100) / 100
}

// ExampleQuery returns sample data used to prefill the form.
func ExampleQuery() HealthQuery {
	return HealthQuery{
		Symptoms:       "mild chest pain, shortness of breath, past asthma",
		Biomarkers:     "Hemoglobin: 13.5 g/dL, WBC Count: 7000 cells/µL, Platelets: 250000/µL",
		Remarks:        "Patient experienced mild fatigue during the afternoon but recovered after hydration.",
		ScreenTime:     "9 hrs/day on Desktop, 6 hrs/day on Mobile. Total: 9.7 hrs",
		HealthTracking: "Blood Pressure: 120/80 mmHg, Diabetes (Fasting: 95 mg/dL, Post Meal: 135 mg/dL, Random: 110 mg/dL), Weight: 68 kg, Emotional score: Relaxed (Score: 8), Note: Slept well, had a productive day, Steps per day: 7,850",
	}
}
