package offers

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/types"
)

var (
	ErrUnknownOrdering = errors.New("unknown offer ordering")
	ErrEmptyOrdering   = errors.New("offer ordering must name at least one order")
)

// Ordering compares two offers. It returns a negative number when a should be tried before b, a positive number
// when b should be tried before a, and 0 when the two are equivalent under the ordering.
type Ordering func(a HostOffer, b HostOffer) int

// ByResource orders offers by the non-revocable quantity of the given ResourceType, smallest first.
func ByResource(t types.ResourceType) Ordering {
	return func(a HostOffer, b HostOffer) int {
		return cmp.Compare(a.Resources(false).ValueOf(t), b.Resources(false).ValueOf(t))
	}
}

var (
	// ByCPU packs offers with the least non-revocable CPU first.
	ByCPU = ByResource(types.CPUs)
	// ByMemory packs offers with the least non-revocable memory first.
	ByMemory = ByResource(types.RamMb)
	// ByDisk packs offers with the least non-revocable disk first.
	ByDisk = ByResource(types.DiskMb)
)

// ByRevocableCPU orders offers by their revocable CPU, smallest first.
func ByRevocableCPU(a HostOffer, b HostOffer) int {
	return cmp.Compare(a.Resources(true).ValueOf(types.CPUs), b.Resources(true).ValueOf(types.CPUs))
}

// ByHostname orders offers lexicographically by hostname.
func ByHostname(a HostOffer, b HostOffer) int {
	return strings.Compare(a.Hostname(), b.Hostname())
}

// byOfferID is the final tie-break of every ConcurrentOfferStore.
func byOfferID(a HostOffer, b HostOffer) int {
	return strings.Compare(a.OfferID(), b.OfferID())
}

// Reverse returns the reverse of the given Ordering.
func Reverse(ordering Ordering) Ordering {
	return func(a HostOffer, b HostOffer) int {
		return ordering(b, a)
	}
}

// Compound returns an Ordering that consults each of the given orderings in turn until one of them
// distinguishes the two offers.
func Compound(orderings ...Ordering) Ordering {
	return func(a HostOffer, b HostOffer) int {
		for _, ordering := range orderings {
			if c := ordering(a, b); c != 0 {
				return c
			}
		}

		return 0
	}
}

var namedOrderings = map[string]Ordering{
	"cpu":           ByCPU,
	"memory":        ByMemory,
	"disk":          ByDisk,
	"revocable_cpu": ByRevocableCPU,
	"hostname":      ByHostname,
}

// ParseOrdering parses a comma-separated list of ordering names, such as "cpu_desc,hostname", into a
// single compound Ordering.
//
// Valid names are "cpu", "memory", "disk", "revocable_cpu", and "hostname". Appending "_desc" to a name
// reverses it.
func ParseOrdering(names string) (Ordering, error) {
	var orderings []Ordering
	for _, name := range strings.Split(names, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		base, descending := strings.CutSuffix(name, "_desc")
		ordering, ok := namedOrderings[base]
		if !ok {
			return nil, errors.Wrap(ErrUnknownOrdering, fmt.Sprintf("\"%s\"", name))
		}

		if descending {
			ordering = Reverse(ordering)
		}

		orderings = append(orderings, ordering)
	}

	if len(orderings) == 0 {
		return nil, ErrEmptyOrdering
	}

	if len(orderings) == 1 {
		return orderings[0], nil
	}

	return Compound(orderings...), nil
}
