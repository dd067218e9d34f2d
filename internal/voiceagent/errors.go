package voiceagent

import (
	"errors"
	"fmt"
)

// Transient failures. Callers retry status polls on ErrProviderUnavailable
// and degrade gracefully on ErrTranscriptUnavailable; neither is fatal for a
// negotiation.
var (
	ErrProviderUnavailable   = errors.New("voiceagent: provider unavailable")
	ErrTranscriptUnavailable = errors.New("voiceagent: transcript unavailable")
)

// ConfigError means the provider rejected an agent configuration update.
type ConfigError struct {
	StatusCode int
	Detail     string
}

func (e *ConfigError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("voiceagent: agent config rejected: %s (status=%d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("voiceagent: agent config rejected (status=%d)", e.StatusCode)
}

// PlacementError means the provider refused to place the call. The detail is
// surfaced to the end user, so it carries the provider's message verbatim.
type PlacementError struct {
	StatusCode int
	Detail     string
}

func (e *PlacementError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("voiceagent: call placement failed: %s (status=%d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("voiceagent: call placement failed (status=%d)", e.StatusCode)
}
