package uid

import (
	"strings"

	"github.com/google/uuid"
)

// Record id prefixes.
const (
	PrefixCard    = "card"
	PrefixClaim   = "claim"
	PrefixSeller  = "seller"
	PrefixRequest = "req"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// NewPrefixed returns an identifier of the form "<prefix>_<uuid without dashes>".
func NewPrefixed(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
