package middleware

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxContentLength = 100000 // ~100KB
	maxNodeIDLength  = 128
)

// ValidateContent validates replacement response text.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	return ValidateTurnText(content)
}

// ValidateTurnText validates the text fields of a recorded turn. Empty text
// is allowed.
func ValidateTurnText(text string) error {
	if len(text) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateCharacterID validates a character ID.
func ValidateCharacterID(id string) error {
	return validateSubjectToken("character ID", id)
}

// ValidateNodeID validates a node ID. Node IDs are opaque: generated turns
// use UUIDs, imported trees may use any printable ID.
func ValidateNodeID(id string) error {
	if len(id) == 0 {
		return errors.New("node ID cannot be empty")
	}
	if len(id) > maxNodeIDLength {
		return errors.New("node ID exceeds maximum length")
	}
	if !utf8.ValidString(id) || strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return errors.New("invalid node ID format")
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	return validateSubjectToken("tenant ID", id)
}

// validateSubjectToken checks an ID that becomes a single NATS subject token:
// no separators, wildcards or whitespace.
func validateSubjectToken(kind, id string) error {
	if len(id) == 0 {
		return errors.New(kind + " cannot be empty")
	}
	if len(id) > 64 {
		return errors.New(kind + " exceeds maximum length")
	}
	if strings.ContainsAny(id, ".*>") || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return errors.New(kind + " contains invalid characters")
	}
	return nil
}
