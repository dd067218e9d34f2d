package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"negotiation-platform/internal/classify"
	"negotiation-platform/internal/events"
	"negotiation-platform/internal/observability/metrics"
	"negotiation-platform/internal/phone"
	"negotiation-platform/internal/prompt"
	"negotiation-platform/internal/voiceagent"
)

// connectedWindow separates the connected phase from negotiating once the
// provider reports an in-progress call. This is a documented heuristic
// constant, not a provider guarantee.
const connectedWindow = 45 * time.Second

const (
	defaultPollInterval = 2 * time.Second
	defaultPollBackoff  = 5 * time.Second
)

// Provider is the narrow slice of the voice-AI provider the state machine
// drives. *voiceagent.Client satisfies it.
type Provider interface {
	ConfigureAgent(ctx context.Context, script string, voice voiceagent.AgentVoice) error
	PlaceCall(ctx context.Context, req voiceagent.PlaceCallRequest) (string, error)
	GetCall(ctx context.Context, callID string) (voiceagent.Call, error)
	GetTranscript(ctx context.Context, callID string) (string, error)
}

// Limiter caps simultaneously active outbound calls. A nil limiter means no
// cap.
type Limiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrNotFound           = errors.New("negotiation not found")
)

// Config carries the per-deployment knobs for the negotiation service.
type Config struct {
	// PhoneNumberID is the provider-side id of the dial-out number,
	// resolved at startup. May be empty; placement then fails loudly on
	// the first attempt.
	PhoneNumberID string

	Voice voiceagent.AgentVoice

	PollInterval time.Duration
	PollBackoff  time.Duration
}

// Service owns the negotiation registry and drives each negotiation's call
// lifecycle against the provider.
type Service struct {
	provider Provider
	store    *Store
	events   *events.Service
	metrics  *metrics.Metrics
	limiter  Limiter
	log      *slog.Logger

	cfg Config

	// placeMu serializes ConfigureAgent+PlaceCall. The provider exposes a
	// single shared agent object, so two racing placements would corrupt
	// each other's instruction scripts.
	placeMu sync.Mutex

	// baseCtx bounds all background polling; cancelled on shutdown.
	baseCtx context.Context
	wg      sync.WaitGroup

	clock func() time.Time
}

func NewService(ctx context.Context, provider Provider, store *Store, ev *events.Service, m *metrics.Metrics, limiter Limiter, log *slog.Logger, cfg Config) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollBackoff <= 0 {
		cfg.PollBackoff = defaultPollBackoff
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Service{
		provider: provider,
		store:    store,
		events:   ev,
		metrics:  m,
		limiter:  limiter,
		log:      log,
		cfg:      cfg,
		baseCtx:  ctx,
		clock:    time.Now,
	}
}

// SubmitRequest is a validated-on-entry submission.
type SubmitRequest struct {
	UserMessage   string
	OrderNumber   string
	AttachmentRef string
	Customer      Customer
}

// Submit validates the request, registers a new negotiation in the starting
// state, and kicks off call placement in the background. It returns
// immediately; callers poll for progress.
//
// Validation failures never create a negotiation record.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Negotiation, error) {
	if req.UserMessage == "" {
		return Negotiation{}, fmt.Errorf("%w: user message is required", ErrValidation)
	}
	if req.Customer.PhoneNumber == "" {
		return Negotiation{}, fmt.Errorf("%w: phone number is required to make the call", ErrValidation)
	}

	category := classify.Classify(req.UserMessage)
	if classify.RequiresOrderReference(category) && req.OrderNumber == "" && req.AttachmentRef == "" {
		return Negotiation{}, fmt.Errorf("%w: either order number or screenshot is required for returns/refunds", ErrValidation)
	}

	normalized := phone.Normalize(req.Customer.PhoneNumber)
	if !phone.IsValidE164(normalized) {
		return Negotiation{}, fmt.Errorf("%w: %s is not a valid phone number (expected E.164, e.g. +15551234567)", ErrInvalidPhoneNumber, normalized)
	}

	now := s.clock().UTC()
	n := Negotiation{
		ID:              uuid.NewString(),
		Status:          StatusStarting,
		Phase:           PhaseInitializing,
		UserMessage:     req.UserMessage,
		Category:        category,
		ReferenceNumber: req.OrderNumber,
		AttachmentRef:   req.AttachmentRef,
		Customer:        req.Customer,
		StartTime:       now,
		LastUpdate:      now,
	}
	n.Customer.PhoneNumber = normalized

	s.store.Put(n)
	s.record(events.Event{NegotiationID: n.ID, Type: events.TypeSubmitted, Message: "negotiation submitted"})
	if s.metrics != nil {
		s.metrics.NegotiationsStarted.Inc()
		s.metrics.ActiveNegotiations.Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(n.ID)
	}()

	return n, nil
}

// Get returns the current snapshot with the event timeline attached. Pure
// read, safe to call arbitrarily often.
func (s *Service) Get(ctx context.Context, id string) (Negotiation, error) {
	n, ok := s.store.Get(id)
	if !ok {
		return Negotiation{}, ErrNotFound
	}
	if n.DurationSeconds == 0 && n.Status == StatusInProgress {
		n.DurationSeconds = int(s.clock().UTC().Sub(n.StartTime).Seconds())
	}
	if s.events != nil {
		if timeline, err := s.events.Timeline(ctx, id); err == nil {
			n.Events = timeline
		}
	}
	return n, nil
}

// CompleteFromWebhook force-completes the negotiation owning the given
// provider call id with a result pushed by the provider. Best-effort: returns
// false when no negotiation matches.
func (s *Service) CompleteFromWebhook(ctx context.Context, callID, outcome, code string) bool {
	n, ok := s.store.FindByProviderCallID(callID)
	if !ok {
		return false
	}
	if n.Terminal() {
		return true
	}

	now := s.clock().UTC()
	result := Result{
		Outcome:     outcome,
		Code:        code,
		CompletedAt: now,
	}
	if code != "" {
		real := code
		result.RealConfirmationCode = &real
	} else {
		result.Code = synthesizeCode(now)
	}
	if amount, ok := extractRefundAmount(outcome); ok {
		result.RefundAmount = &amount
	}

	updated := false
	s.store.Update(n.ID, func(cur *Negotiation) {
		if cur.Terminal() {
			return
		}
		cur.Status = StatusCompleted
		cur.advancePhase(PhaseCompleting)
		cur.Result = &result
		cur.Error = ""
		cur.LastUpdate = now
		updated = true
	})
	if !updated {
		return true
	}
	s.record(events.Event{NegotiationID: n.ID, Type: events.TypeWebhook, Message: "result reported by provider webhook"})
	s.finish(StatusCompleted)
	return true
}

// Wait blocks until all background polling has stopped. Call after
// cancelling the service's base context.
func (s *Service) Wait() { s.wg.Wait() }

// run drives one negotiation from placement to a terminal state.
func (s *Service) run(id string) {
	ctx := s.baseCtx

	n, ok := s.store.Get(id)
	if !ok {
		return
	}
	log := s.log.With("negotiation_id", id)

	if s.limiter != nil {
		acquired, err := s.limiter.Acquire(ctx)
		if err != nil {
			log.Warn("call cap check failed, proceeding without cap", "err", err)
		} else if !acquired {
			s.fail(id, "too many calls in progress, please try again shortly")
			return
		} else {
			defer func() {
				if err := s.limiter.Release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("call cap release failed", "err", err)
				}
			}()
		}
	}

	script := prompt.Build(n.Category, n.UserMessage, n.ReferenceNumber, prompt.CustomerInfo{
		FullName:          n.Customer.FullName,
		PhoneNumber:       n.Customer.PhoneNumber,
		Email:             n.Customer.Email,
		AppointmentTime:   n.Customer.AppointmentTime,
		AppointmentAction: n.Customer.AppointmentAction,
	})

	callID, err := s.place(ctx, n, script)
	if err != nil {
		log.Error("call placement failed", "err", err)
		s.fail(id, err.Error())
		return
	}

	s.store.Update(id, func(cur *Negotiation) {
		cur.ProviderCallID = callID
		cur.Status = StatusInProgress
		cur.LastUpdate = s.clock().UTC()
	})
	s.record(events.Event{NegotiationID: id, Type: events.TypeCallPlaced, Message: "outbound call placed"})
	log.Info("call placed", "provider_call_id", callID)

	s.poll(ctx, id, callID)
}

// place runs the configure+place critical section. The agent definition is a
// shared provider-side object; holding placeMu across both calls keeps one
// negotiation's script from leaking into another's call.
func (s *Service) place(ctx context.Context, n Negotiation, script string) (string, error) {
	s.placeMu.Lock()
	defer s.placeMu.Unlock()

	if err := s.provider.ConfigureAgent(ctx, script, s.cfg.Voice); err != nil {
		return "", err
	}
	return s.provider.PlaceCall(ctx, voiceagent.PlaceCallRequest{
		PhoneNumberID: s.cfg.PhoneNumberID,
		Customer:      voiceagent.CallCustomer{Number: n.Customer.PhoneNumber},
		Metadata: map[string]string{
			"negotiationId": n.ID,
			"requestType":   string(n.Category),
			"orderNumber":   n.ReferenceNumber,
		},
	})
}

// poll watches provider call status until the call ends or fails. Transient
// errors back off and keep going; the loop is bounded by the call's own
// termination and the service's base context.
func (s *Service) poll(ctx context.Context, id, callID string) {
	log := s.log.With("negotiation_id", id, "provider_call_id", callID)
	interval := s.cfg.PollInterval

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		// A webhook may have completed the negotiation between ticks.
		if cur, ok := s.store.Get(id); !ok || cur.Terminal() {
			return
		}

		cycleStart := s.clock()
		call, err := s.provider.GetCall(ctx, callID)
		if err != nil {
			log.Warn("status poll failed, backing off", "err", err)
			interval = s.cfg.PollBackoff
			continue
		}
		interval = s.cfg.PollInterval
		if s.metrics != nil {
			s.metrics.PollCycleDuration.Observe(s.clock().Sub(cycleStart).Seconds())
		}

		switch call.Status {
		case "ended":
			s.complete(ctx, id, callID, call)
			return
		case "failed":
			s.fail(id, "the call failed at the provider before completing")
			return
		default:
			s.applyStatus(ctx, id, call)
		}
	}
}

// applyStatus records the raw provider status and infers the user-facing
// phase from it. Unrecognized statuses keep the last known phase.
func (s *Service) applyStatus(ctx context.Context, id string, call voiceagent.Call) {
	now := s.clock().UTC()

	var changedTo Phase
	n, ok := s.store.Update(id, func(cur *Negotiation) {
		if cur.Terminal() {
			return
		}
		cur.ProviderCallStatus = call.Status
		if call.DurationSeconds > 0 {
			cur.DurationSeconds = call.DurationSeconds
		}
		cur.LastUpdate = now

		elapsed := time.Duration(call.DurationSeconds) * time.Second
		if call.DurationSeconds == 0 {
			elapsed = now.Sub(cur.StartTime)
		}
		if next, ok := inferPhase(call.Status, elapsed); ok && cur.advancePhase(next) {
			changedTo = next
		}
	})
	if !ok {
		return
	}

	if changedTo != "" {
		s.record(events.Event{
			NegotiationID: id,
			Type:          events.TypePhaseChange,
			Phase:         string(changedTo),
			Message:       phaseMessage(changedTo),
		})
		if s.metrics != nil {
			s.metrics.PhaseTransitions.WithLabelValues(string(changedTo)).Inc()
		}
		s.log.Debug("phase changed", "negotiation_id", id, "phase", n.Phase)
	}
}

// inferPhase maps a raw provider status plus elapsed call time to a phase.
func inferPhase(raw string, elapsed time.Duration) (Phase, bool) {
	switch raw {
	case "queued":
		return PhaseInitializing, true
	case "ringing":
		return PhaseDialing, true
	case "in-progress":
		if elapsed <= connectedWindow {
			return PhaseConnected, true
		}
		return PhaseNegotiating, true
	case "forwarding":
		return PhaseNegotiating, true
	default:
		return "", false
	}
}

func phaseMessage(p Phase) string {
	switch p {
	case PhaseInitializing:
		return "call queued at provider"
	case PhaseDialing:
		return "dialing customer service"
	case PhaseConnected:
		return "connected to a representative"
	case PhaseNegotiating:
		return "negotiating on your behalf"
	case PhaseCompleting:
		return "wrapping up the call"
	default:
		return ""
	}
}

// complete handles the ended status: fetch the transcript, extract a result,
// and finish. Enrichment failures degrade to a fallback result; a completed
// call is never downgraded to failed here.
func (s *Service) complete(ctx context.Context, id, callID string, call voiceagent.Call) {
	now := s.clock().UTC()

	advanced := false
	s.store.Update(id, func(cur *Negotiation) {
		if cur.Terminal() {
			return
		}
		cur.ProviderCallStatus = call.Status
		if call.DurationSeconds > 0 {
			cur.DurationSeconds = call.DurationSeconds
		}
		if cur.advancePhase(PhaseCompleting) {
			cur.LastUpdate = now
			advanced = true
		}
	})
	if advanced {
		s.record(events.Event{NegotiationID: id, Type: events.TypePhaseChange, Phase: string(PhaseCompleting), Message: phaseMessage(PhaseCompleting)})
		if s.metrics != nil {
			s.metrics.PhaseTransitions.WithLabelValues(string(PhaseCompleting)).Inc()
		}
	}

	result := Result{CompletedAt: now}
	transcript, err := s.provider.GetTranscript(ctx, callID)
	if err != nil {
		s.log.Warn("transcript unavailable, using fallback result", "negotiation_id", id, "err", err)
		result.Outcome = "Call completed"
		result.Code = synthesizeCode(now)
	} else {
		result.Transcript = transcript
		result.Outcome = summarizeOutcome(transcript)
		if code, ok := extractConfirmationCode(transcript); ok {
			result.Code = code
			real := code
			result.RealConfirmationCode = &real
		} else {
			result.Code = synthesizeCode(now)
		}
		if amount, ok := extractRefundAmount(transcript); ok {
			result.RefundAmount = &amount
		}
	}

	updated := false
	s.store.Update(id, func(cur *Negotiation) {
		if cur.Terminal() {
			return
		}
		cur.Status = StatusCompleted
		cur.Result = &result
		cur.Error = ""
		cur.LastUpdate = now
		updated = true
	})
	if !updated {
		return
	}
	s.record(events.Event{NegotiationID: id, Type: events.TypeCompleted, Message: "negotiation completed"})
	s.finish(StatusCompleted)
	s.log.Info("negotiation completed", "negotiation_id", id, "code", result.Code, "authoritative", result.RealConfirmationCode != nil)
}

// fail moves a negotiation to the failed state with a user-facing cause.
func (s *Service) fail(id, cause string) {
	now := s.clock().UTC()
	updated := false
	s.store.Update(id, func(cur *Negotiation) {
		if cur.Terminal() {
			return
		}
		cur.Status = StatusFailed
		cur.advancePhase(PhaseFailed)
		cur.Error = cause
		cur.Result = nil
		cur.LastUpdate = now
		updated = true
	})
	if !updated {
		return
	}
	s.record(events.Event{NegotiationID: id, Type: events.TypeFailed, Message: cause})
	s.finish(StatusFailed)
}

func (s *Service) finish(outcome Status) {
	if s.metrics == nil {
		return
	}
	s.metrics.NegotiationsTerminal.WithLabelValues(string(outcome)).Inc()
	s.metrics.ActiveNegotiations.Dec()
}

// record appends a timeline event, best-effort.
func (s *Service) record(e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(context.WithoutCancel(s.baseCtx), e); err != nil {
		s.log.Debug("event record failed", "err", err)
	}
}
