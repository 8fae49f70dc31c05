package prompt

import (
	"strings"

	"github.com/health-advisor-server/internal/domain"
)

// Sentinel replaces every empty or whitespace-only field so the model never
// sees a silently omitted section.
const Sentinel = "Data not provided"

// FreeTextHeading labels the single section produced from free text.
const FreeTextHeading = "### User Provided Health Information"

var sectionHeadings = map[domain.HealthField]string{
	domain.FieldSymptoms:       "### Symptoms and Medical History",
	domain.FieldBiomarkers:     "### Biomarkers and Lab Results",
	domain.FieldRemarks:        "### Clinical Notes / Physician Remarks",
	domain.FieldScreenTime:     "### Screen Time and Digital Behavior",
	domain.FieldHealthTracking: "### Health Tracking (Sleep, Steps, Hydration, etc.)",
}

// heading returns the section heading used for field.
func heading(field domain.HealthField) string {
	return sectionHeadings[field]
}

// NormalizeQuery renders q as labeled sections in the fixed field order.
// A free-text query renders as a single section instead.
func NormalizeQuery(q domain.HealthQuery) string {
	if q.IsFreeText() {
		return NormalizeFreeText(q.FreeText)
	}

	parts := make([]string, 0, len(domain.HealthFieldOrder))
	for _, f := range domain.HealthFieldOrder {
		parts = append(parts, heading(f)+"\n"+bodyOrSentinel(q.Value(f)))
	}
	return strings.Join(parts, "\n\n")
}

// NormalizeFreeText renders a single free-text blob as one labeled section.
func NormalizeFreeText(text string) string {
	return FreeTextHeading + "\n" + bodyOrSentinel(text)
}

// bodyOrSentinel keeps non-empty user text verbatim, newlines included.
func bodyOrSentinel(s string) string {
	if strings.TrimSpace(s) == "" {
		return Sentinel
	}
	return s
}
