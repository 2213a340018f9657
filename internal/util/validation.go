package util

import (
	"regexp"
)

// Identifiers embedded in OAuth state payloads: cuid/uuid-style ids.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Legacy bare-userId state format: conservative, at least 8 chars.
var legacyStateRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,64}$`)

func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	return identifierRegex.MatchString(s)
}

func IsValidLegacyState(s string) bool {
	return legacyStateRegex.MatchString(s)
}
