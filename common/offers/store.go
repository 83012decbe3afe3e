package offers

import (
	"slices"
	"sync"
)

// ConcurrentOfferStore is a set of HostOffer instances that is kept sorted by an Ordering.
//
// Offers are unique by OfferID. Offers that compare as equal under the Ordering are ordered by OfferID so
// that the order of the store is total and deterministic.
//
// ConcurrentOfferStore is safe for concurrent use. Values returns a snapshot: an offer added or removed
// concurrently with the call is either entirely present in, or entirely absent from, the result.
type ConcurrentOfferStore struct {
	mu sync.RWMutex

	compare func(a HostOffer, b HostOffer) int
	sorted  []HostOffer
	byId    map[string]HostOffer
}

// NewConcurrentOfferStore creates a new, empty ConcurrentOfferStore sorted by the given Ordering.
//
// If ordering is nil, offers are sorted by OfferID only.
func NewConcurrentOfferStore(ordering Ordering) *ConcurrentOfferStore {
	if ordering == nil {
		ordering = byOfferID
	}

	return &ConcurrentOfferStore{
		compare: Compound(ordering, byOfferID),
		sorted:  make([]HostOffer, 0, 16),
		byId:    make(map[string]HostOffer),
	}
}

// Add adds the offer to the store. If an offer with the same OfferID is already present, Add is a no-op.
func (s *ConcurrentOfferStore) Add(offer HostOffer) {
	if offer == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, loaded := s.byId[offer.OfferID()]; loaded {
		return
	}

	idx, _ := slices.BinarySearchFunc(s.sorted, offer, s.compare)
	s.sorted = slices.Insert(s.sorted, idx, offer)
	s.byId[offer.OfferID()] = offer
}

// Remove removes the offer with the same OfferID as the given offer. Removing an absent offer is a no-op.
func (s *ConcurrentOfferStore) Remove(offer HostOffer) {
	if offer == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, loaded := s.byId[offer.OfferID()]
	if !loaded {
		return
	}

	delete(s.byId, offer.OfferID())

	idx, found := slices.BinarySearchFunc(s.sorted, stored, s.compare)
	if found && s.sorted[idx].OfferID() == stored.OfferID() {
		s.sorted = slices.Delete(s.sorted, idx, idx+1)
		return
	}

	// The offer's resources changed after it was added, so its position can no longer be found by bisection.
	idx = slices.IndexFunc(s.sorted, func(o HostOffer) bool {
		return o.OfferID() == stored.OfferID()
	})
	if idx >= 0 {
		s.sorted = slices.Delete(s.sorted, idx, idx+1)
	}
}

// Contains returns true if an offer with the same OfferID as the given offer is in the store.
func (s *ConcurrentOfferStore) Contains(offer HostOffer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, loaded := s.byId[offer.OfferID()]
	return loaded
}

// Size returns the number of offers in the store.
func (s *ConcurrentOfferStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sorted)
}

// IsEmpty returns true if the store contains no offers.
func (s *ConcurrentOfferStore) IsEmpty() bool {
	return s.Size() == 0
}

// Clear removes all offers from the store.
func (s *ConcurrentOfferStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sorted = make([]HostOffer, 0, 16)
	s.byId = make(map[string]HostOffer)
}

// Values returns a snapshot of the offers in the store, in the order of the store.
func (s *ConcurrentOfferStore) Values() []HostOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.sorted)
}

// Hostnames returns the hostnames of the offers in the store, in the order of the store.
func (s *ConcurrentOfferStore) Hostnames() []string {
	return Hostnames(s.Values())
}
