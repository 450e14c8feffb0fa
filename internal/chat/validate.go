package chat

import (
	"errors"
	"fmt"
)

// ErrMissingFields is returned when a snapshot lacks a required field.
var ErrMissingFields = errors.New("missing required fields: provider, externalId, or messages")

// ErrInvalidProvider is returned when a snapshot names an unknown provider.
var ErrInvalidProvider = errors.New("invalid provider")

// Validate checks that a snapshot carries the fields reconcile depends on.
// Message indices are normalized to array order; clients that send sparse or
// unordered indices still get positional storage matching the array.
func (s *Snapshot) Validate() error {
	if s.Provider == "" || s.ExternalID == "" || s.Messages == nil {
		return ErrMissingFields
	}
	if !ValidProvider(s.Provider) {
		return fmt.Errorf("%w: %s", ErrInvalidProvider, s.Provider)
	}
	for i, m := range s.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// LastPreview returns the preview of the final message, or "" for an empty
// snapshot. Used by the scheduler's change fingerprint.
func (s *Snapshot) LastPreview() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return Preview(s.Messages[len(s.Messages)-1].Content)
}
