package admission

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const secureTokenLen = 24

var (
	NewSecureToken = newSecureToken // mockable
	newChallanNo   = func() string { return strconv.Itoa(10000 + rand.Intn(90000)) }
)

// newSecureToken returns 24 hex characters taken from a random (v4) UUID.
func newSecureToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:secureTokenLen]
}
