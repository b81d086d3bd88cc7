package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/proconnect/internal/model"
)

const maxMessageLength = 10000

// ValidateMessageContent validates message content. Emptiness is left to the thread,
// which rejects blank drafts itself.
func ValidateMessageContent(content string) error {
	if utf8.RuneCountInString(content) > maxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a profile, conversation or connection id.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid ID format")
	}
	return nil
}

// ValidateOptionalID accepts an empty id or a valid one.
func ValidateOptionalID(id string) error {
	if id == "" {
		return nil
	}
	return ValidateID(id)
}

// ValidateConnectionStatus validates a status filter; empty means any.
func ValidateConnectionStatus(status model.ConnectionStatus) error {
	if status != "" && !status.Valid() {
		return errors.New("invalid connection status")
	}
	return nil
}

// ValidateSearchTerm validates a candidate search term.
func ValidateSearchTerm(q string) error {
	if len(q) > 256 {
		return errors.New("search term exceeds maximum length")
	}
	if !utf8.ValidString(q) {
		return errors.New("search term must be valid UTF-8")
	}
	return nil
}
