// Package identity turns a verified session into exactly one canonical
// handle. Handles follow the provider's username grammar: 1-15 chars of
// a-z, 0-9 or underscore, matched after normalization.
package identity

import (
	"regexp"
	"strings"

	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

var handleRe = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)

// Normalize trims whitespace, lowercases and strips leading @ signs.
func Normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.TrimLeft(v, "@")
}

// Validate checks the normalized handle against the provider grammar.
func Validate(handle string) error {
	if !handleRe.MatchString(handle) {
		return svcErr.InvalidArgument("username must be 1-15 chars: a-z, 0-9, or _")
	}
	return nil
}
