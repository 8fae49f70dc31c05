package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/health-advisor-server/internal/domain"
)

// requiredFormFields are checked on form submissions, in display order.
var requiredFormFields = []struct {
	field domain.HealthField
	label string
}{
	{domain.FieldSymptoms, "Symptoms/Disease History"},
	{domain.FieldBiomarkers, "Biomarkers"},
	{domain.FieldHealthTracking, "Health Tracking Data"},
}

// ValidateText checks that text has at least minLength characters once
// surrounding whitespace is removed.
func ValidateText(text string, minLength int) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minLength {
		return domain.NewValidationError("", fmt.Sprintf("Please provide at least %d characters", minLength))
	}
	return nil
}

// ValidateForm checks every required form field and reports all failures
// together.
func ValidateForm(q domain.HealthQuery, minLength int) error {
	var errs domain.ValidationErrors
	for _, f := range requiredFormFields {
		if err := ValidateText(q.Value(f.field), minLength); err != nil {
			errs = append(errs, domain.NewValidationError(f.label, err.Error()))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
