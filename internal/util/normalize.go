package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier trims surrounding whitespace and applies NFKC so
// visually identical usernames and emails compare equal on the wire.
func NormalizeIdentifier(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}
