package admission

import (
	"strconv"
	"time"
)

// retiredCategories are the only categories for which a shaheed sub-status applies.
var retiredCategories = map[string]bool{
	CategoryOffrRetired: true,
	CategoryJCOsRetired: true,
}

// AdmissionYear is the year an applicant enters: next year from July onwards.
func AdmissionYear(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year() + 1
	}
	return now.Year()
}

// Derive computes the display fields of an application. It returns the cleaned shaheed
// fields too: they are dropped for categories they do not apply to.
func Derive(class Class, category, shaheedStatus, shaheedIn string, now time.Time) (Display, string, string) {
	var d Display

	if retiredCategories[category] {
		if shaheedStatus == ShaheedYes && shaheedIn != "" {
			if shaheedIn == ShaheedInWarOp {
				d.Remarks = "Shaheed (War/Op)"
				d.StatusLabel = "shaheed"
			} else {
				d.Remarks = "In Service Death"
				d.StatusLabel = "isd"
			}
		}
	} else {
		shaheedStatus, shaheedIn = "", ""
	}

	year := strconv.Itoa(AdmissionYear(now))
	if class != "" {
		d.Entry = string(class) + " Class Entry-" + year
	} else {
		d.Entry = "Entry-" + year
	}
	return d, shaheedStatus, shaheedIn
}
