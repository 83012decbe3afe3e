package ranking

import (
	"context"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/offer-ranking/common/offers"
	"github.com/scusemua/offer-ranking/common/types"
	"golang.org/x/sync/semaphore"
)

// Dispatcher runs GetOrdered on a bounded pool of goroutines so that the caller's wait is bounded by its
// own context rather than by the timeout of the ranking service.
//
// When the caller's context ends before a worker is free or before the ranking completes, the Dispatcher
// returns the fallback order immediately. A ranking that is already in flight still runs to completion and
// still counts against the Availability of the offer set.
type Dispatcher struct {
	log logger.Logger

	set     offers.OfferSet
	workers *semaphore.Weighted
	metrics MetricsSink
}

// NewDispatcher creates a new Dispatcher that runs at most `workers` rankings of the given set at once.
func NewDispatcher(set offers.OfferSet, workers int, metrics MetricsSink) *Dispatcher {
	if workers < 1 {
		workers = 1
	}

	if metrics == nil {
		metrics = noopMetricsSink{}
	}

	dispatcher := &Dispatcher{
		set:     set,
		workers: semaphore.NewWeighted(int64(workers)),
		metrics: metrics,
	}
	config.InitLogger(&dispatcher.log, dispatcher)

	return dispatcher
}

// GetOrdered returns the offers of the set ordered for the given request, or in the fallback order if ctx
// ends first.
func (d *Dispatcher) GetOrdered(ctx context.Context, groupKey types.TaskGroupKey, request *types.ResourceRequest) []offers.HostOffer {
	if err := d.workers.Acquire(ctx, 1); err != nil {
		d.log.Warn("No worker available to rank offers for %s: %v", groupKey.String(), err)
		d.metrics.RecordFallback(FallbackSaturated)
		return d.set.Values()
	}

	resultChan := make(chan []offers.HostOffer, 1)
	go func() {
		defer d.workers.Release(1)
		resultChan <- d.set.GetOrdered(groupKey, request)
	}()

	select {
	case ordered := <-resultChan:
		return ordered
	case <-ctx.Done():
		d.log.Warn("Gave up waiting for the ranking of %s: %v", groupKey.String(), ctx.Err())
		d.metrics.RecordFallback(FallbackSaturated)
		return d.set.Values()
	}
}
