package offers

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/scusemua/offer-ranking/common/types"
)

// HostOffer is a time-bounded grant of resources on a specific host.
//
// Offers are identified by their OfferID. Two HostOffer values with the same OfferID are the same offer.
type HostOffer interface {
	// OfferID returns the unique identifier of the offer.
	OfferID() string

	// Hostname returns the name of the host that the offer was made by.
	Hostname() string

	// Resources returns the revocable (true) or non-revocable (false) resources of the offer.
	Resources(revocable bool) types.ResourceBag

	// Attributes returns the attributes of the host.
	Attributes() map[string]string
}

// BasicHostOffer is a plain HostOffer.
type BasicHostOffer struct {
	ID                    string            `json:"id"`
	Host                  string            `json:"hostname"`
	NonRevocableResources types.ResourceBag `json:"resources"`
	RevocableResources    types.ResourceBag `json:"revocable_resources,omitempty"`
	HostAttributes        map[string]string `json:"attributes,omitempty"`
}

// NewHostOffer creates a new BasicHostOffer with a freshly-generated offer ID.
func NewHostOffer(hostname string, resources types.ResourceBag, revocable types.ResourceBag) *BasicHostOffer {
	return &BasicHostOffer{
		ID:                    uuid.NewString(),
		Host:                  hostname,
		NonRevocableResources: resources,
		RevocableResources:    revocable,
		HostAttributes:        make(map[string]string),
	}
}

func (o *BasicHostOffer) OfferID() string {
	return o.ID
}

func (o *BasicHostOffer) Hostname() string {
	return o.Host
}

func (o *BasicHostOffer) Resources(revocable bool) types.ResourceBag {
	if revocable {
		return o.RevocableResources
	}

	return o.NonRevocableResources
}

func (o *BasicHostOffer) Attributes() map[string]string {
	return o.HostAttributes
}

func (o *BasicHostOffer) String() string {
	return fmt.Sprintf("HostOffer[ID=%s, Host=%s, %v]", o.ID, o.Host, o.NonRevocableResources)
}

// AggregateResources returns the sum of the revocable and non-revocable resources of the given offer.
func AggregateResources(offer HostOffer) types.ResourceVector {
	return offer.Resources(false).Vector().Add(offer.Resources(true).Vector())
}

// Hostnames returns the hostnames of the given offers, in order.
func Hostnames(offers []HostOffer) []string {
	hostnames := make([]string, 0, len(offers))
	for _, offer := range offers {
		hostnames = append(hostnames, offer.Hostname())
	}

	return hostnames
}
