package ranking

import (
	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/scusemua/offer-ranking/common/utils"
	"go.uber.org/atomic"
)

// Availability decides whether the ranking service is consulted at all.
//
// Availability is a one-way circuit breaker with two states, enabled and disabled. It starts enabled
// and becomes disabled either when the endpoint is found to be malformed or once the number of failed
// ranking requests reaches the configured maximum. A disabled Availability never becomes enabled again.
//
// Successful requests do not reset the failure count, so failures accumulate over the lifetime of the
// process even when they are far apart.
//
// Availability is safe for concurrent use.
type Availability struct {
	log logger.Logger

	enabled     *atomic.Bool
	failures    *atomic.Int64
	maxFailures int64
	cause       *atomic.Error
}

// NewAvailability creates a new, enabled Availability that disables itself after maxFailures failures.
//
// A maxFailures smaller than 1 disables the Availability on the first failure.
func NewAvailability(maxFailures int) *Availability {
	if maxFailures < 1 {
		maxFailures = 1
	}

	availability := &Availability{
		enabled:     atomic.NewBool(true),
		failures:    atomic.NewInt64(0),
		maxFailures: int64(maxFailures),
		cause:       atomic.NewError(nil),
	}
	config.InitLogger(&availability.log, availability)

	return availability
}

// IsEnabled returns true if the ranking service may be consulted.
func (a *Availability) IsEnabled() bool {
	return a.enabled.Load()
}

// Failures returns the number of failures recorded so far.
func (a *Availability) Failures() int64 {
	return a.failures.Load()
}

// MaxFailures returns the number of failures at which the Availability disables itself.
func (a *Availability) MaxFailures() int64 {
	return a.maxFailures
}

// Cause returns the reason that the Availability was disabled, or nil if it is enabled.
func (a *Availability) Cause() error {
	return a.cause.Load()
}

// RecordFailure counts a failed ranking request.
//
// It returns the number of failures including this one and whether this failure is the one that disabled
// the Availability. Of several concurrent failures that cross the threshold, exactly one reports true.
func (a *Availability) RecordFailure() (failures int64, disabledNow bool) {
	failures = a.failures.Inc()
	if failures < a.maxFailures {
		return failures, false
	}

	if !a.enabled.CompareAndSwap(true, false) {
		return failures, false
	}

	a.cause.Store(ErrPermanentlyDisabled)
	a.log.Error(utils.RedStyle.Render("Reached %d failures. HTTP offer ranking disabled."), a.maxFailures)
	return failures, true
}

// DisableInvalidConfig permanently disables the Availability because the endpoint is unusable.
//
// It returns true if this call changed the state.
func (a *Availability) DisableInvalidConfig(err error) bool {
	if !a.enabled.CompareAndSwap(true, false) {
		return false
	}

	a.cause.Store(err)
	return true
}

// shared holds the process-wide Availability of every endpoint.
var shared = cmap.New[*Availability]()

// SharedAvailability returns the process-wide Availability for the given endpoint, creating it with the
// given failure threshold if this is the first request for the endpoint.
//
// Every offer set that ranks with the same endpoint shares one Availability, so the process as a whole
// stops calling a broken ranking service once the threshold is crossed. The threshold of the first caller
// wins; a later caller asking for a different threshold is warned.
func SharedAvailability(endpoint string, maxFailures int) *Availability {
	availability, loaded := shared.Get(endpoint)
	if !loaded {
		availability = shared.Upsert(endpoint, nil, func(exist bool, valueInMap *Availability, _ *Availability) *Availability {
			if exist {
				return valueInMap
			}

			return NewAvailability(maxFailures)
		})
	}

	if requested := int64(max(maxFailures, 1)); requested != availability.maxFailures {
		availability.log.Warn("Ignoring failure threshold of %d for endpoint \"%s\": it already shares a threshold of %d failure(s).",
			requested, endpoint, availability.maxFailures)
	}

	return availability
}

// ResetSharedAvailability forgets the process-wide Availability of every endpoint.
//
// It exists for tests; production code never re-enables ranking.
func ResetSharedAvailability() {
	shared.Clear()
}
