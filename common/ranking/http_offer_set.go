package ranking

import (
	"context"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/configuration"
	"github.com/scusemua/offer-ranking/common/offers"
	"github.com/scusemua/offer-ranking/common/statistics"
	"github.com/scusemua/offer-ranking/common/types"
	"github.com/scusemua/offer-ranking/common/utils"
)

// Config is the configuration of an HttpOfferSet.
type Config struct {
	// Ordering is the fallback ordering of the offers. It is used whenever external ranking is disabled,
	// fails, or names none of the offered hosts.
	Ordering offers.Ordering

	// Endpoint is the URL of the ranking service. A malformed Endpoint permanently disables external ranking.
	Endpoint string

	// TimeoutMs is the connect and read timeout of each ranking request. A non-positive TimeoutMs is replaced
	// by configuration.DefaultTimeoutMs.
	TimeoutMs int

	// MaxFailures is the number of failed ranking requests after which ranking is disabled for good.
	MaxFailures int

	// LatencyWindow is the number of recent latency samples retained by the offer set.
	LatencyWindow int

	// Client overrides the HttpClient built from Endpoint and TimeoutMs.
	Client Client

	// Availability overrides the process-wide Availability of Endpoint.
	Availability *Availability

	// Metrics receives latency samples, failures, and fallbacks. Optional.
	Metrics MetricsSink

	// Tracer traces requests sent by the default HttpClient. Optional.
	Tracer opentracing.Tracer

	// Now overrides the clock used to timestamp and time requests.
	Now func() time.Time
}

// Timeout returns the timeout of each request to the ranking service.
func (s *HttpOfferSet) Timeout() time.Duration {
	return s.timeout
}

// LatencyStats summarizes the retained latency samples of an HttpOfferSet.
type LatencyStats struct {
	// Samples is the number of retained samples.
	Samples int64
	// Total is the number of samples ever recorded.
	Total   int64
	Average time.Duration
	Last    time.Duration
}

// HttpOfferSet is an offers.OfferSet that ranks offers with an external ranking service.
//
// On every call to GetOrdered it sends the pending task's resource request and the current offers to the
// ranking service and returns the offers in the order named by the response. If the ranking service is
// unreachable, slow, or replies with an error, GetOrdered returns the offers in the fallback order of the
// store instead, and the failure is counted against the shared Availability. Once the Availability is
// disabled, the ranking service is no longer contacted.
type HttpOfferSet struct {
	log logger.Logger

	store        *offers.ConcurrentOfferStore
	codec        *Codec
	client       Client
	availability *Availability
	metrics      MetricsSink
	latency      *statistics.MovingStat
	now          func() time.Time

	endpoint    string
	timeout     time.Duration
	maxFailures int
}

// NewHttpOfferSet creates a new HttpOfferSet and returns a pointer to it.
func NewHttpOfferSet(cfg *Config) *HttpOfferSet {
	set := &HttpOfferSet{
		store:       offers.NewConcurrentOfferStore(cfg.Ordering),
		codec:       NewCodec(),
		client:      cfg.Client,
		metrics:     cfg.Metrics,
		latency:     statistics.NewMovingStat(int64(cfg.LatencyWindow)),
		now:         cfg.Now,
		endpoint:    cfg.Endpoint,
		maxFailures: cfg.MaxFailures,
	}
	config.InitLogger(&set.log, set)

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		set.log.Warn("HttpOfferSet's timeout of %d (ms) is not positive. Using the default of %d (ms) instead.",
			timeoutMs, configuration.DefaultTimeoutMs)
		timeoutMs = configuration.DefaultTimeoutMs
	}
	set.timeout = time.Duration(timeoutMs) * time.Millisecond

	if set.metrics == nil {
		set.metrics = noopMetricsSink{}
	}

	if set.now == nil {
		set.now = time.Now
	}

	set.availability = cfg.Availability
	if set.availability == nil {
		set.availability = SharedAvailability(cfg.Endpoint, cfg.MaxFailures)
	}

	endpoint, err := ParseEndpoint(cfg.Endpoint)
	if err != nil {
		set.log.Error(utils.RedStyle.Render("http_offer_set_endpoint \"%s\" is malformed: %v"), cfg.Endpoint, err)
		set.availability.DisableInvalidConfig(err)
	} else if set.client == nil {
		set.client = NewHttpClient(endpoint, set.timeout, cfg.Tracer)
	}

	if set.availability.IsEnabled() {
		set.log.Info("HttpOfferSet Enabled.")
	} else {
		set.log.Info("HttpOfferSet Disabled.")
	}
	set.metrics.SetEnabled(set.availability.IsEnabled())

	set.log.Info("HttpOfferSet's endpoint: %s", cfg.Endpoint)
	set.log.Info("HttpOfferSet's timeout: %d (ms)", set.timeout.Milliseconds())
	set.log.Info("HttpOfferSet's max retries: %d", cfg.MaxFailures)

	return set
}

// NewHttpOfferSetFromOptions creates a new HttpOfferSet from command-line options.
func NewHttpOfferSetFromOptions(opts *configuration.HttpOfferSetOptions, metrics MetricsSink, tracer opentracing.Tracer) (*HttpOfferSet, error) {
	ordering, err := opts.Ordering()
	if err != nil {
		return nil, err
	}

	return NewHttpOfferSet(&Config{
		Ordering:      ordering,
		Endpoint:      opts.Endpoint,
		TimeoutMs:     opts.TimeoutMs,
		MaxFailures:   opts.MaxRetries,
		LatencyWindow: opts.LatencyWindow,
		Metrics:       metrics,
		Tracer:        tracer,
	}), nil
}

func (s *HttpOfferSet) Add(offer offers.HostOffer) {
	s.store.Add(offer)
}

func (s *HttpOfferSet) Remove(offer offers.HostOffer) {
	s.store.Remove(offer)
}

// Size returns the number of offers in the set.
func (s *HttpOfferSet) Size() int {
	return s.store.Size()
}

func (s *HttpOfferSet) Clear() {
	s.store.Clear()
}

// Values returns the offers in the fallback order.
func (s *HttpOfferSet) Values() []offers.HostOffer {
	return s.store.Values()
}

// Availability returns the Availability that gates the ranking service.
func (s *HttpOfferSet) Availability() *Availability {
	return s.availability
}

// LatencyStats summarizes the latency of recent exchanges with the ranking service.
func (s *HttpOfferSet) LatencyStats() LatencyStats {
	return LatencyStats{
		Samples: s.latency.N(),
		Total:   s.latency.Total(),
		Average: time.Duration(s.latency.Avg()),
		Last:    time.Duration(s.latency.Last()),
	}
}

// GetOrdered returns the offers ordered from most to least preferred for the given request.
//
// GetOrdered blocks for up to the configured timeout while the ranking service is consulted. It never fails:
// every failure degrades to the fallback order of the set.
func (s *HttpOfferSet) GetOrdered(groupKey types.TaskGroupKey, request *types.ResourceRequest) []offers.HostOffer {
	snapshot := s.store.Values()

	// If there are no available offers, there is nothing to rank.
	if len(snapshot) == 0 {
		return snapshot
	}

	if !s.availability.IsEnabled() {
		s.metrics.RecordFallback(FallbackDisabled)
		return snapshot
	}

	if request == nil {
		s.log.Warn("No resource request given for %s. Returning offers in default order.", groupKey.String())
		return snapshot
	}

	ordered, err := s.rank(request, snapshot)
	if err != nil {
		s.log.Error("Failed to schedule the task of %s using HttpOfferSet: %v", groupKey.String(), err)
		s.recordFailure(err)

		// fall back to the default ordering.
		s.log.Warn("Falling back on default ordering.")
		s.metrics.RecordFallback(FallbackFailure)
		return s.store.Values()
	}

	if len(ordered) == 0 {
		s.log.Warn("Ranking of %s named none of the offered hosts. Falling back on default ordering. Known hosts: %s",
			groupKey.String(), strings.Join(s.store.Hostnames(), ","))
		s.metrics.RecordFallback(FallbackNoMatchingHosts)
		return s.store.Values()
	}

	return ordered
}

// rank exchanges one ranking request with the ranking service.
func (s *HttpOfferSet) rank(request *types.ResourceRequest, snapshot []offers.HostOffer) (ordered []offers.HostOffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			ordered, err = nil, errors.Errorf("panic while ranking offers: %v", r)
		}
	}()

	startTime := s.now()

	// create json request & send the request to the ranking service
	rankingRequest := s.codec.Encode(request, snapshot, startTime)
	s.log.Debug("Sending request %s", rankingRequest.JobKey)

	body, err := s.client.Send(context.Background(), rankingRequest)
	if err == nil {
		ordered, err = s.codec.Decode(body, snapshot)
	}

	latency := s.now().Sub(startTime)
	s.latency.Add(float64(latency))
	if err != nil {
		s.metrics.ObserveLatency(latency, OutcomeFailure)
		return nil, err
	}

	s.log.Debug("Received response for %s after %v", rankingRequest.JobKey, latency)
	s.metrics.ObserveLatency(latency, OutcomeSuccess)
	return ordered, nil
}

func (s *HttpOfferSet) recordFailure(err error) {
	s.metrics.RecordFailure(FailureKind(err))

	failures, disabledNow := s.availability.RecordFailure()
	s.log.Debug("HttpOfferSet has failed %d/%d time(s).", failures, s.availability.MaxFailures())

	if disabledNow {
		s.metrics.SetEnabled(false)
	}
}
