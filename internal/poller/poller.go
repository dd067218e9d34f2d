// Package poller is the client side of the negotiation API: it submits a
// request and watches /status/:id until the negotiation settles.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultInterval = 2 * time.Second

var ErrNotFound = errors.New("negotiation not found")

type Client struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration

	clock func() time.Time
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Interval   time.Duration
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("poller: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Client{baseURL: base, httpClient: httpClient, interval: interval, clock: time.Now}, nil
}

// StartRequest mirrors the /start form fields.
type StartRequest struct {
	Message           string
	FullName          string
	PhoneNumber       string
	Email             string
	OrderNumber       string
	AppointmentTime   string
	AppointmentAction string

	// ScreenshotPath, when set, is uploaded as the screenshot part.
	ScreenshotPath string
}

// Result is the completed-negotiation payload the server reports.
type Result struct {
	Outcome              string   `json:"outcome"`
	Code                 string   `json:"code"`
	RealConfirmationCode *string  `json:"realConfirmationCode"`
	RefundAmount         *float64 `json:"refundAmount"`
	Transcript           string   `json:"transcript"`
}

// Snapshot is the client-side view of a negotiation status response.
type Snapshot struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase"`
	Category   string    `json:"category"`
	StartTime  time.Time `json:"startTime"`
	LastUpdate time.Time `json:"lastUpdate"`
	Result     *Result   `json:"result"`
	Error      string    `json:"error"`
}

func (s Snapshot) Terminal() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// Start submits a negotiation and returns its id.
func (c *Client) Start(ctx context.Context, req StartRequest) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"userMessage":       req.Message,
		"fullName":          req.FullName,
		"phoneNumber":       req.PhoneNumber,
		"email":             req.Email,
		"orderNumber":       req.OrderNumber,
		"appointmentTime":   req.AppointmentTime,
		"appointmentAction": req.AppointmentAction,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if req.ScreenshotPath != "" {
		f, err := os.Open(req.ScreenshotPath)
		if err != nil {
			return "", fmt.Errorf("poller: open screenshot: %w", err)
		}
		defer f.Close()
		part, err := w.CreateFormFile("screenshot", filepath.Base(req.ScreenshotPath))
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("poller: start rejected: %s", e.Error)
		}
		return "", fmt.Errorf("poller: start failed with status %d", resp.StatusCode)
	}

	var started struct {
		NegotiationID string `json:"negotiationId"`
	}
	if err := json.Unmarshal(body, &started); err != nil {
		return "", fmt.Errorf("poller: decode start response: %w", err)
	}
	if started.NegotiationID == "" {
		return "", errors.New("poller: start response missing negotiation id")
	}
	return started.NegotiationID, nil
}

// Fetch retrieves one status snapshot.
func (c *Client) Fetch(ctx context.Context, id string) (Snapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+id, nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Snapshot{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("poller: status request failed with %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("poller: decode status: %w", err)
	}
	return snap, nil
}

// Watch polls until the negotiation reaches a terminal status, invoking
// onUpdate on every phase change. Transient fetch errors are retried on the
// next tick; ErrNotFound ends the watch.
func (c *Client) Watch(ctx context.Context, id string, onUpdate func(phase, message string)) (Snapshot, error) {
	started := c.clock()
	lastPhase := ""

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		snap, err := c.Fetch(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			return Snapshot{}, err
		case err != nil:
			// transient; wait for the next tick
		default:
			phase := DisplayPhase(snap.Phase, c.clock().Sub(started))
			if phase != lastPhase && onUpdate != nil {
				onUpdate(phase, phaseLine(phase))
				lastPhase = phase
			}
			if snap.Terminal() {
				return snap, nil
			}
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DisplayPhase returns the phase to render. When the server reports none,
// a bucket derived from elapsed watch time stands in. Presentation only;
// the server's state is not affected.
func DisplayPhase(reported string, elapsed time.Duration) string {
	if reported != "" {
		return reported
	}
	switch {
	case elapsed < 5*time.Second:
		return "initializing"
	case elapsed < 15*time.Second:
		return "dialing"
	case elapsed < 60*time.Second:
		return "connected"
	default:
		return "negotiating"
	}
}

func phaseLine(phase string) string {
	switch phase {
	case "initializing":
		return "Setting up your negotiation..."
	case "dialing":
		return "Dialing customer service..."
	case "connected":
		return "Connected, reaching a representative..."
	case "negotiating":
		return "Negotiating on your behalf..."
	case "completing":
		return "Wrapping up the call..."
	case "failed":
		return "The negotiation could not be completed."
	default:
		return ""
	}
}
