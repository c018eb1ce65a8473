// Package anonymize derives stable, non-reversible identifiers from vendor-supplied ids.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex SHA-256 digest of input. It is keyless and deterministic.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ProfileID derives the profile primary key from the platform and the vendor account id.
// The vendor id is trimmed so whitespace differences between exports do not split a profile.
func ProfileID(platform, vendorID string) string {
	return Hash(platform + strings.TrimSpace(vendorID))
}
