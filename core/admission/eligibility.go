package admission

import (
	"fmt"
	"time"

	"github.com/trezcool/admissions/core"
)

type ageRule struct {
	cutoffMonth time.Month
	minMonths   int
	maxMonths   int
}

// ageRules are checked against the 1st of cutoffMonth of the admission year.
var ageRules = map[Class]ageRule{
	ClassVIII: {cutoffMonth: time.April, minMonths: 141, maxMonths: 171},
	ClassXI:   {cutoffMonth: time.July, minMonths: 177, maxMonths: 207},
}

// AgeInMonths counts the completed months between dob and ref.
func AgeInMonths(dob, ref time.Time) int {
	months := (ref.Year()-dob.Year())*12 + int(ref.Month()-dob.Month())
	if ref.Day() < dob.Day() {
		months--
	}
	return months
}

// CheckAge fails with a field error on "dob" when the candidate is too young or too old for class.
func CheckAge(class Class, dob, now time.Time) error {
	rule, ok := ageRules[class]
	if !ok {
		return nil
	}
	cutoff := time.Date(AdmissionYear(now), rule.cutoffMonth, 1, 0, 0, 0, 0, time.UTC)
	months := AgeInMonths(dob, cutoff)
	if months < rule.minMonths || months > rule.maxMonths {
		return core.NewValidationError(ErrAgeNotEligible, core.FieldError{
			Field: "dob",
			Error: fmt.Sprintf(
				"age on %s must be between %d and %d months (got %d)",
				cutoff.Format(core.DateLayout), rule.minMonths, rule.maxMonths, months,
			),
		})
	}
	return nil
}
