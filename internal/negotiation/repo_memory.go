package negotiation

import "sync"

// Store is the process-wide registry of negotiations keyed by id.
//
// Known limitation, by scope: state lives in memory only, is empty at start,
// grows with submissions, and is lost on restart. A durable implementation
// would externalize this to a keyed store.
//
// All mutation goes through Update so that the poll loop and concurrent
// status reads never interleave a lost update.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*Negotiation
}

func NewStore() *Store {
	return &Store{byID: map[string]*Negotiation{}}
}

func (s *Store) Put(n Negotiation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := n
	s.byID[n.ID] = &cp
}

// Get returns a snapshot copy; callers can never mutate the stored record.
func (s *Store) Get(id string) (Negotiation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return Negotiation{}, false
	}
	return *n, true
}

// Update applies fn to the stored record as one atomic read-modify-write and
// returns the resulting snapshot.
func (s *Store) Update(id string, fn func(*Negotiation)) (Negotiation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return Negotiation{}, false
	}
	fn(n)
	return *n, true
}

// FindByProviderCallID locates a negotiation by the provider's call id.
// Used by the provider result webhook.
func (s *Store) FindByProviderCallID(callID string) (Negotiation, bool) {
	if callID == "" {
		return Negotiation{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byID {
		if n.ProviderCallID == callID {
			return *n, true
		}
	}
	return Negotiation{}, false
}

// All returns snapshots of every negotiation, in no particular order.
func (s *Store) All() []Negotiation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Negotiation, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, *n)
	}
	return out
}
