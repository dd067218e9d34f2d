package negotiation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"negotiation-platform/internal/events"
	"negotiation-platform/internal/observability/metrics"
	"negotiation-platform/internal/voiceagent"
)

type fakeProvider struct {
	mu sync.Mutex

	configureErr error
	placeErr     error
	callID       string

	// statuses are returned by GetCall in order; the last entry repeats.
	statuses []voiceagent.Call
	idx      int

	// getCallErrs makes the first N GetCall invocations fail.
	getCallErrs int

	transcript    string
	transcriptErr error

	scripts []string
	placed  []voiceagent.PlaceCallRequest
}

func (f *fakeProvider) ConfigureAgent(ctx context.Context, script string, voice voiceagent.AgentVoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configureErr != nil {
		return f.configureErr
	}
	f.scripts = append(f.scripts, script)
	return nil
}

func (f *fakeProvider) PlaceCall(ctx context.Context, req voiceagent.PlaceCallRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, req)
	if f.callID == "" {
		return "call-1", nil
	}
	return f.callID, nil
}

func (f *fakeProvider) GetCall(ctx context.Context, callID string) (voiceagent.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getCallErrs > 0 {
		f.getCallErrs--
		return voiceagent.Call{}, voiceagent.ErrProviderUnavailable
	}
	if len(f.statuses) == 0 {
		return voiceagent.Call{ID: callID, Status: "in-progress"}, nil
	}
	call := f.statuses[f.idx]
	if f.idx < len(f.statuses)-1 {
		f.idx++
	}
	call.ID = callID
	return call, nil
}

func (f *fakeProvider) GetTranscript(ctx context.Context, callID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transcriptErr != nil {
		return "", f.transcriptErr
	}
	return f.transcript, nil
}

func newTestService(t *testing.T, provider Provider) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc := NewService(ctx, provider, NewStore(),
		events.NewService(events.NewMemoryRepo()),
		metrics.New(prometheus.NewRegistry()),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{
			PhoneNumberID: "pn-1",
			PollInterval:  time.Millisecond,
			PollBackoff:   time.Millisecond,
		})
	t.Cleanup(func() {
		cancel()
		svc.Wait()
	})
	return svc
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		UserMessage: "I want a refund for my order, it arrived broken",
		OrderNumber: "ORD-9921",
		Customer: Customer{
			FullName:    "Dana Smith",
			PhoneNumber: "(415) 555-2671",
		},
	}
}

func waitStatus(t *testing.T, svc *Service, id string, want Status) Negotiation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if n.Status == want {
			return n
		}
		time.Sleep(time.Millisecond)
	}
	n, _ := svc.Get(context.Background(), id)
	t.Fatalf("status = %q, want %q (phase %q, error %q)", n.Status, want, n.Phase, n.Error)
	return Negotiation{}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SubmitRequest)
		wantErr error
	}{
		{
			name:    "missing message",
			mutate:  func(r *SubmitRequest) { r.UserMessage = "" },
			wantErr: ErrValidation,
		},
		{
			name:    "missing phone",
			mutate:  func(r *SubmitRequest) { r.Customer.PhoneNumber = "" },
			wantErr: ErrValidation,
		},
		{
			name: "refund without order reference",
			mutate: func(r *SubmitRequest) {
				r.OrderNumber = ""
				r.AttachmentRef = ""
			},
			wantErr: ErrValidation,
		},
		{
			name:    "unnormalizable phone",
			mutate:  func(r *SubmitRequest) { r.Customer.PhoneNumber = "12345" },
			wantErr: ErrInvalidPhoneNumber,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &fakeProvider{})
			req := validSubmit()
			tt.mutate(&req)
			if _, err := svc.Submit(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitCancellationNeedsNoOrderReference(t *testing.T) {
	provider := &fakeProvider{statuses: []voiceagent.Call{{Status: "ended"}}}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), SubmitRequest{
		UserMessage: "Cancel my Chipotle subscription",
		Customer:    Customer{FullName: "Dana Smith", PhoneNumber: "4155552671"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n.Status != StatusStarting || n.Phase != PhaseInitializing {
		t.Fatalf("initial state = %s/%s, want starting/initializing", n.Status, n.Phase)
	}
	if n.Customer.PhoneNumber != "+14155552671" {
		t.Fatalf("stored phone = %q, want +14155552671", n.Customer.PhoneNumber)
	}
	waitStatus(t, svc, n.ID, StatusCompleted)
}

func TestLifecyclePhaseProgression(t *testing.T) {
	provider := &fakeProvider{
		statuses: []voiceagent.Call{
			{Status: "queued"},
			{Status: "ringing"},
			{Status: "in-progress", DurationSeconds: 10},
			{Status: "in-progress", DurationSeconds: 50},
			{Status: "ended", DurationSeconds: 95},
		},
		transcript: "The representative said the refund is approved. Your confirmation code is RF8842XQ. We will refund $45.50 to your card.",
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := waitStatus(t, svc, n.ID, StatusCompleted)
	if got.Phase != PhaseCompleting {
		t.Fatalf("final phase = %q, want completing", got.Phase)
	}
	if got.DurationSeconds != 95 {
		t.Fatalf("duration = %d, want 95", got.DurationSeconds)
	}
	if got.Result == nil {
		t.Fatal("completed negotiation has no result")
	}
	if got.Result.Code != "RF8842XQ" {
		t.Fatalf("code = %q, want RF8842XQ", got.Result.Code)
	}
	if got.Result.RealConfirmationCode == nil || *got.Result.RealConfirmationCode != "RF8842XQ" {
		t.Fatalf("realConfirmationCode = %v, want RF8842XQ", got.Result.RealConfirmationCode)
	}
	if got.Result.RefundAmount == nil || *got.Result.RefundAmount != 45.50 {
		t.Fatalf("refundAmount = %v, want 45.50", got.Result.RefundAmount)
	}
	if got.Result.Outcome != "Request approved and processed" {
		t.Fatalf("outcome = %q", got.Result.Outcome)
	}

	// Phase-change events must show forward movement through the call.
	var phases []string
	for _, e := range got.Events {
		if e.Type == events.TypePhaseChange {
			phases = append(phases, e.Phase)
		}
	}
	want := []string{"dialing", "connected", "negotiating", "completing"}
	if len(phases) != len(want) {
		t.Fatalf("phase changes = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase changes = %v, want %v", phases, want)
		}
	}
}

func TestTranscriptFailureStillCompletes(t *testing.T) {
	provider := &fakeProvider{
		statuses:      []voiceagent.Call{{Status: "ended", DurationSeconds: 30}},
		transcriptErr: voiceagent.ErrTranscriptUnavailable,
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := waitStatus(t, svc, n.ID, StatusCompleted)
	if got.Result == nil {
		t.Fatal("no result")
	}
	if !strings.HasPrefix(got.Result.Code, "CSR-") {
		t.Fatalf("fallback code = %q, want CSR- prefix", got.Result.Code)
	}
	if got.Result.RealConfirmationCode != nil {
		t.Fatalf("realConfirmationCode = %v, want nil for synthesized code", got.Result.RealConfirmationCode)
	}
	if got.Error != "" {
		t.Fatalf("completed negotiation carries error %q", got.Error)
	}
}

func TestSynthesizedCodeWhenTranscriptHasNone(t *testing.T) {
	provider := &fakeProvider{
		statuses:   []voiceagent.Call{{Status: "ended"}},
		transcript: "thank you for calling, goodbye",
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitStatus(t, svc, n.ID, StatusCompleted)
	if !strings.HasPrefix(got.Result.Code, "CSR-") || got.Result.RealConfirmationCode != nil {
		t.Fatalf("result = %+v, want synthesized code", got.Result)
	}
}

func TestPlacementFailureFailsNegotiation(t *testing.T) {
	provider := &fakeProvider{
		placeErr: &voiceagent.PlacementError{StatusCode: 400, Detail: "customer number invalid"},
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitStatus(t, svc, n.ID, StatusFailed)
	if got.Phase != PhaseFailed {
		t.Fatalf("phase = %q, want failed", got.Phase)
	}
	if !strings.Contains(got.Error, "customer number invalid") {
		t.Fatalf("error = %q, want provider detail", got.Error)
	}
	if got.Result != nil {
		t.Fatal("failed negotiation has a result")
	}
	if got.ProviderCallID != "" {
		t.Fatalf("providerCallId = %q, want empty", got.ProviderCallID)
	}
}

func TestPollRecoversFromTransientErrors(t *testing.T) {
	provider := &fakeProvider{
		getCallErrs: 3,
		statuses:    []voiceagent.Call{{Status: "ended"}},
		transcript:  "approved, confirmation code is AA11BB",
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitStatus(t, svc, n.ID, StatusCompleted)
	if got.Result.Code != "AA11BB" {
		t.Fatalf("code = %q, want AA11BB", got.Result.Code)
	}
}

func TestWebhookForcesCompletion(t *testing.T) {
	provider := &fakeProvider{
		callID:   "call-web",
		statuses: []voiceagent.Call{{Status: "in-progress", DurationSeconds: 5}},
	}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitStatus(t, svc, n.ID, StatusInProgress)

	// Wait until the call id is recorded before firing the webhook.
	deadline := time.Now().Add(2 * time.Second)
	for {
		cur, _ := svc.Get(context.Background(), n.ID)
		if cur.ProviderCallID == "call-web" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("call id never recorded")
		}
		time.Sleep(time.Millisecond)
	}

	if ok := svc.CompleteFromWebhook(context.Background(), "call-web", "Refund of $12.00 approved", "WH-123"); !ok {
		t.Fatal("webhook did not match negotiation")
	}
	got := waitStatus(t, svc, n.ID, StatusCompleted)
	if got.Result.Code != "WH-123" {
		t.Fatalf("code = %q, want WH-123", got.Result.Code)
	}
	if got.Result.RefundAmount == nil || *got.Result.RefundAmount != 12.00 {
		t.Fatalf("refundAmount = %v, want 12.00", got.Result.RefundAmount)
	}

	if ok := svc.CompleteFromWebhook(context.Background(), "call-unknown", "x", ""); ok {
		t.Fatal("webhook matched unknown call id")
	}
}

func TestGetUnknownID(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestScriptCarriesRequestContext(t *testing.T) {
	provider := &fakeProvider{statuses: []voiceagent.Call{{Status: "ended"}}}
	svc := newTestService(t, provider)

	n, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitStatus(t, svc, n.ID, StatusCompleted)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.scripts) != 1 {
		t.Fatalf("agent configured %d times, want 1", len(provider.scripts))
	}
	if !strings.Contains(provider.scripts[0], "ORD-9921") {
		t.Fatal("script does not mention the order number")
	}
	if len(provider.placed) != 1 {
		t.Fatalf("placed %d calls, want 1", len(provider.placed))
	}
	req := provider.placed[0]
	if req.Customer.Number != "+14155552671" {
		t.Fatalf("dialed %q, want +14155552671", req.Customer.Number)
	}
	if req.Metadata["negotiationId"] != n.ID {
		t.Fatalf("metadata negotiationId = %q, want %q", req.Metadata["negotiationId"], n.ID)
	}
}
