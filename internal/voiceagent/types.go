package voiceagent

// Request/response types for the voice-AI provider API.
//
// Keep these provider-shaped: the negotiation core talks to a narrow
// interface and never sees raw payloads beyond what it needs for phase
// inference and debugging.

// AgentConfig is the provider-side agent definition rewritten before every
// call placement. The provider exposes exactly one agent object per account,
// which is why the caller must serialize configure+place (see negotiation
// service).
type AgentConfig struct {
	Name             string           `json:"name"`
	Model            AgentModel       `json:"model"`
	Voice            AgentVoice       `json:"voice"`
	FirstMessage     string           `json:"firstMessage"`
	VoicemailMessage string           `json:"voicemailMessage"`
	EndCallMessage   string           `json:"endCallMessage"`
	Transcriber      AgentTranscriber `json:"transcriber"`
}

type AgentModel struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []AgentMessage `json:"messages"`
}

type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AgentVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type AgentTranscriber struct {
	Model    string `json:"model"`
	Language string `json:"language"`
	Provider string `json:"provider"`
}

// PlaceCallRequest starts an outbound call from the configured agent to the
// customer's number.
type PlaceCallRequest struct {
	AssistantID   string            `json:"assistantId"`
	PhoneNumberID string            `json:"phoneNumberId"`
	Customer      CallCustomer      `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CallCustomer struct {
	Number string `json:"number"`
}

// Call is the provider's view of a call. Status values observed in the wild:
// queued, ringing, in-progress, forwarding, ended, failed.
type Call struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"duration"`
	EndedReason     string `json:"endedReason,omitempty"`
}

// PhoneNumber is an entry from the provider's phone-number listing, used at
// startup to resolve the dial-out number to its provider id.
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}
