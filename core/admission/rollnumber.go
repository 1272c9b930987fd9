package admission

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FormatRollNumber renders "{prefix}-{seq}", seq zero-padded to 4 digits.
func FormatRollNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// ParseRollNumber splits a roll number into its prefix and sequence.
// Anything not shaped like FormatRollNumber's output fails with ErrMalformedRollNumber.
func ParseRollNumber(rollNo string) (string, int, error) {
	i := strings.LastIndex(rollNo, "-")
	if i <= 0 {
		return "", 0, errors.Wrapf(ErrMalformedRollNumber, "%q", rollNo)
	}
	prefix, digits := rollNo[:i], rollNo[i+1:]
	if !isDigits(prefix) || len(digits) < 4 || !isDigits(digits) {
		return "", 0, errors.Wrapf(ErrMalformedRollNumber, "%q", rollNo)
	}
	seq, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, errors.Wrapf(ErrMalformedRollNumber, "%q", rollNo)
	}
	return prefix, seq, nil
}

// MaxSequence returns the highest sequence among rollNos carrying prefix, or 0.
// Roll numbers in the prefix namespace that do not parse make it fail.
func MaxSequence(prefix string, rollNos []string) (int, error) {
	var max int
	for _, rollNo := range rollNos {
		if !strings.HasPrefix(rollNo, prefix+"-") {
			continue
		}
		p, seq, err := ParseRollNumber(rollNo)
		if err != nil {
			return 0, err
		}
		if p == prefix && seq > max {
			max = seq
		}
	}
	return max, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
