package ranking

import "time"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	// FallbackDisabled labels requests answered with the fallback ordering because ranking is disabled.
	FallbackDisabled = "disabled"
	// FallbackFailure labels requests answered with the fallback ordering because ranking failed.
	FallbackFailure = "failure"
	// FallbackNoMatchingHosts labels requests whose ranking named none of the offered hosts.
	FallbackNoMatchingHosts = "no_matching_hosts"
	// FallbackSaturated labels requests the Dispatcher answered without ranking because every worker was busy
	// or the caller's context ended first.
	FallbackSaturated = "saturated"
)

// MetricsSink receives the measurements of an HttpOfferSet.
//
// Implementations must be safe for concurrent use.
type MetricsSink interface {
	// ObserveLatency records the duration of one exchange with the ranking service.
	ObserveLatency(latency time.Duration, outcome string)

	// RecordFailure counts a failed ranking request of the given kind (see FailureKind).
	RecordFailure(kind string)

	// RecordFallback counts a request that was answered with the fallback ordering.
	RecordFallback(reason string)

	// SetEnabled publishes whether external ranking is enabled.
	SetEnabled(enabled bool)
}

type noopMetricsSink struct{}

func (noopMetricsSink) ObserveLatency(time.Duration, string) {}
func (noopMetricsSink) RecordFailure(string)                 {}
func (noopMetricsSink) RecordFallback(string)                {}
func (noopMetricsSink) SetEnabled(bool)                      {}
