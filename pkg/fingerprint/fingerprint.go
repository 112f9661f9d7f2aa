package fingerprint

import (
	"fmt"
	"regexp"
)

// Fingerprint is the reproducible content identity of a build container,
// an md5 digest over the canonical content archive rendered as 32 lowercase
// hex chars.
type Fingerprint string

var hexPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Parse validates a stored fingerprint value.
func Parse(s string) (Fingerprint, error) {
	if !hexPattern.MatchString(s) {
		return "", fmt.Errorf("fingerprint must be 32 lowercase hex chars, got %q", s)
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string {
	return string(f)
}
