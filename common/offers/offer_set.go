package offers

import "github.com/scusemua/offer-ranking/common/types"

// OfferSet is the set of offers available to the scheduler.
type OfferSet interface {
	// Add adds an offer to the set. Adding an offer that is already present is a no-op.
	Add(offer HostOffer)

	// Remove removes an offer from the set. Removing an absent offer is a no-op.
	Remove(offer HostOffer)

	// Size returns the number of offers in the set.
	Size() int

	// Clear removes every offer from the set.
	Clear()

	// Values returns the offers in the set's natural order.
	Values() []HostOffer

	// GetOrdered returns the offers of the set ordered from most to least preferred for the given request.
	//
	// GetOrdered never fails. When no better ordering is available, the natural order is returned.
	GetOrdered(groupKey types.TaskGroupKey, request *types.ResourceRequest) []HostOffer
}
