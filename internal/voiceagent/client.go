package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.vapi.ai"
	defaultUserAgent = "negotiation-platform/0.1"
)

// Config controls how the provider client behaves.
type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string

	// Timeout bounds every provider request independently of the status
	// polling interval, so a hung request cannot stall the poll loop.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string

	// Observe, when set, receives per-request timing for metrics.
	Observe func(operation string, d time.Duration, err error)
}

// Client wraps the voice-AI provider REST endpoints used by the negotiation
// lifecycle: agent configuration, call placement, status, transcript, and
// phone-number resolution.
type Client struct {
	baseURL     string
	apiKey      string
	assistantID string
	httpClient  *http.Client
	logger      *slog.Logger
	userAgent   string
	observe     func(operation string, d time.Duration, err error)
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("voiceagent: API key is required")
	}
	if strings.TrimSpace(cfg.AssistantID) == "" {
		return nil, errors.New("voiceagent: assistant id is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		assistantID: cfg.AssistantID,
		httpClient:  httpClient,
		logger:      logger,
		userAgent:   userAgent,
		observe:     cfg.Observe,
	}, nil
}

// ConfigureAgent rewrites the shared agent definition with a new instruction
// script. This mutates one global provider object; callers racing here will
// corrupt each other's scripts, so the negotiation service holds a mutex
// across ConfigureAgent and PlaceCall.
func (c *Client) ConfigureAgent(ctx context.Context, script string, voice AgentVoice) error {
	cfg := AgentConfig{
		Name: "Negotiator",
		Model: AgentModel{
			Provider: "openai",
			Model:    "gpt-4o",
			Messages: []AgentMessage{{Role: "system", Content: script}},
		},
		Voice:            voice,
		FirstMessage:     "Hello.",
		VoicemailMessage: "Please call back when you're available.",
		EndCallMessage:   "Goodbye.",
		Transcriber:      AgentTranscriber{Model: "nova-2", Language: "en", Provider: "deepgram"},
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("voiceagent: marshal agent config: %w", err)
	}

	data, status, err := c.invoke(ctx, "configure_agent", http.MethodPatch, "/assistant/"+c.assistantID, body)
	if err != nil {
		return &ConfigError{Detail: err.Error()}
	}
	if status < 200 || status >= 300 {
		return &ConfigError{StatusCode: status, Detail: errorDetail(data)}
	}
	return nil
}

// PlaceCall creates an outbound call and returns the provider call id.
// Creates a billable external resource; never retried automatically.
func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (string, error) {
	if req.AssistantID == "" {
		req.AssistantID = c.assistantID
	}
	if strings.TrimSpace(req.PhoneNumberID) == "" {
		return "", &PlacementError{Detail: "agent phone number is not resolved; check the provider phone-number configuration"}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("voiceagent: marshal call request: %w", err)
	}

	data, status, err := c.invoke(ctx, "place_call", http.MethodPost, "/call", body)
	if err != nil {
		return "", &PlacementError{Detail: err.Error()}
	}
	if status < 200 || status >= 300 {
		return "", &PlacementError{StatusCode: status, Detail: errorDetail(data)}
	}

	var call Call
	if err := json.Unmarshal(data, &call); err != nil {
		return "", fmt.Errorf("voiceagent: decode call response: %w", err)
	}
	if call.ID == "" {
		return "", &PlacementError{StatusCode: status, Detail: "provider returned no call id"}
	}
	return call.ID, nil
}

// GetCall fetches the current provider status for a call.
func (c *Client) GetCall(ctx context.Context, callID string) (Call, error) {
	data, status, err := c.invoke(ctx, "get_call", http.MethodGet, "/call/"+callID, nil)
	if err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return Call{}, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, errorDetail(data))
	}
	var call Call
	if err := json.Unmarshal(data, &call); err != nil {
		return Call{}, fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}
	return call, nil
}

// GetTranscript fetches the call transcript text.
func (c *Client) GetTranscript(ctx context.Context, callID string) (string, error) {
	data, status, err := c.invoke(ctx, "get_transcript", http.MethodGet, "/call/"+callID+"/transcript", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrTranscriptUnavailable, status)
	}

	// The endpoint may return a JSON object or plain text.
	var wrapper struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Transcript != "" {
		return wrapper.Transcript, nil
	}
	return string(data), nil
}

// EndCall asks the provider to hang up an in-flight call.
func (c *Client) EndCall(ctx context.Context, callID string) error {
	data, status, err := c.invoke(ctx, "end_call", http.MethodPost, "/call/"+callID+"/end", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, errorDetail(data))
	}
	return nil
}

// ListPhoneNumbers returns the provider's phone-number inventory.
func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	data, status, err := c.invoke(ctx, "list_phone_numbers", http.MethodGet, "/phone-number", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, errorDetail(data))
	}
	var numbers []PhoneNumber
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, fmt.Errorf("voiceagent: decode phone numbers: %w", err)
	}
	return numbers, nil
}

// ResolvePhoneNumberID finds the provider id for the configured dial-out
// number. An empty result means calling is inoperable; the caller should fail
// loudly on the first placement attempt rather than silently.
func (c *Client) ResolvePhoneNumberID(ctx context.Context, agentNumber string) (string, error) {
	numbers, err := c.ListPhoneNumbers(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range numbers {
		if n.Number == agentNumber || n.Number == strings.TrimPrefix(agentNumber, "+") {
			return n.ID, nil
		}
	}
	return "", fmt.Errorf("voiceagent: number %s not found in provider account", agentNumber)
}

func (c *Client) invoke(ctx context.Context, operation, method, path string, body []byte) ([]byte, int, error) {
	start := time.Now()
	data, status, err := c.do(ctx, method, path, body)
	if c.observe != nil {
		c.observe(operation, time.Since(start), err)
	}
	return data, status, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("voiceagent: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Warn("provider request timed out", "method", method, "path", path)
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("voiceagent: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// errorDetail pulls a human-readable message out of a provider error body.
func errorDetail(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
