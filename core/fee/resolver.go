package fee

import (
	"time"

	"github.com/trezcool/admissions/core"
)

// legacyFees are the fixed category prices used before schedules were configurable.
var legacyFees = map[string]int{
	"offr_serving":  3000,
	"offr_retired":  3000,
	"navy_airforce": 3000,
	"jcos_serving":  2000,
	"jcos_retired":  2000,
	"caf":           2000,
	"fata":          2000,
	"balochistan":   2000,
	"gilgit":        2000,
	"ajk":           2000,
	"civilian":      5000,
}

const defaultLegacyFee = 5000

// TierAt returns the tier in effect on asOf. Boundaries are inclusive and only the calendar date counts.
// It fails with ErrClosed once the final deadline has passed on a schedule that stops after it.
func TierAt(sched Schedule, asOf time.Time) (Tier, error) {
	day := core.Date(asOf)
	switch {
	case !day.After(core.Date(sched.NormalDeadline)):
		return TierNormal, nil
	case !day.After(core.Date(sched.LateDeadline)):
		return TierLate, nil
	case sched.StopAfterFinal && day.After(core.Date(sched.FinalDeadline)):
		return "", ErrClosed
	default:
		return TierFinal, nil
	}
}

// Resolve prices an application on asOf. override may be nil, in which case the schedule's flat fees apply.
// Resolve has no side effects.
func Resolve(sched Schedule, override *CategoryOverride, asOf time.Time) (Quote, error) {
	tier, err := TierAt(sched, asOf)
	if err != nil {
		return Quote{}, err
	}
	fees := sched.Fees
	if override != nil {
		fees = override.Fees
	}
	return Quote{Amount: fees.For(tier), Tier: tier}, nil
}

// LegacyFee is the fixed price for category, regardless of date.
func LegacyFee(category string) int {
	if amount, ok := legacyFees[category]; ok {
		return amount
	}
	return defaultLegacyFee
}
