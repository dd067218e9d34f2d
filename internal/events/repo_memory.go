package events

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository. It backs the process-wide
// event timeline for the in-memory registry scope of this service.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) ByNegotiation(ctx context.Context, negotiationID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.NegotiationID == negotiationID {
			out = append(out, e)
		}
	}
	return out, nil
}
