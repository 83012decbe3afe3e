package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/gin-gonic/gin"
	"github.com/scusemua/offer-ranking/common/metrics"
	"github.com/scusemua/offer-ranking/common/offers"
	"github.com/scusemua/offer-ranking/common/ranking"
	"github.com/scusemua/offer-ranking/common/tracing"
	"github.com/scusemua/offer-ranking/common/utils"
)

const (
	ServiceName = "offer-ranker"
)

var (
	options      = DefaultOptions()
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	options.Endpoint = utils.GetEnv("HTTP_OFFER_SET_ENDPOINT", options.Endpoint)
	options.PrometheusPort = utils.GetEnvInt("PROMETHEUS_PORT", options.PrometheusPort)
}

// ValidateOptions ensures that the options/configuration is valid.
func ValidateOptions() {
	flags, err := config.ValidateOptions(&options)
	if errors.Is(err, config.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}

	if err = options.Validate(); err != nil {
		log.Fatal(err)
	}
}

func main() {
	ValidateOptions()

	if options.PrettyPrintOptions {
		globalLogger.Info("Starting the offer ranker with the following options:\n%s\n", options.PrettyString(2))
	} else {
		globalLogger.Info("Starting the offer ranker.")
	}

	gin.SetMode(gin.ReleaseMode)

	globalLogger.Info("Initializing jaeger agent [service name: %v | host: %v]...", ServiceName, options.JaegerAddr)
	tracer, closer, err := tracing.Init(ServiceName, options.JaegerAddr)
	if err != nil {
		log.Fatalf("Got error while initializing jaeger agent: %v", err)
	}
	defer func() {
		_ = closer.Close()
	}()

	metricsManager := metrics.NewRankingPrometheusManager(options.PrometheusPort)
	if err = metricsManager.Start(); err != nil {
		log.Fatalf("Failed to start serving metrics: %v", err)
	}
	defer func() {
		_ = metricsManager.Stop()
	}()

	set, err := ranking.NewHttpOfferSetFromOptions(&options.HttpOfferSetOptions, metricsManager, tracer)
	if err != nil {
		log.Fatal(err)
	}

	hostOffers, err := loadOffers(options.OffersFile)
	if err != nil {
		log.Fatal(err)
	}
	for _, offer := range hostOffers {
		set.Add(offer)
	}
	globalLogger.Info("Loaded %d offer(s) from %s.", set.Size(), options.OffersFile)

	request, groupKey, err := options.ResourceRequest()
	if err != nil {
		log.Fatal(err)
	}

	dispatcher := ranking.NewDispatcher(set, options.DispatcherWorkers, metricsManager)
	deadline := time.Duration(options.DeadlineMs) * time.Millisecond

	for round := 1; round <= max(options.Rounds, 1); round++ {
		ctx, cancel := context.WithTimeout(context.Background(), deadline)
		ordered := dispatcher.GetOrdered(ctx, groupKey, request)
		cancel()

		printOrdering(round, ordered)

		if round < options.Rounds && options.IntervalMs > 0 {
			select {
			case <-time.After(time.Duration(options.IntervalMs) * time.Millisecond):
			case <-sig:
				globalLogger.Info("Shutting down...")
				return
			}
		}
	}

	stats := set.LatencyStats()
	globalLogger.Info("Ranking latency over the last %d of %d request(s): avg=%v, last=%v.",
		stats.Samples, stats.Total, stats.Average, stats.Last)

	if !set.Availability().IsEnabled() {
		globalLogger.Warn(utils.YellowStyle.Render("External ranking is disabled: %v"), set.Availability().Cause())
	}

	if options.PrometheusPort > 0 {
		globalLogger.Info("Serving metrics on port %d until interrupted.", options.PrometheusPort)
		<-sig
		globalLogger.Info("Shutting down...")
	}
}

func printOrdering(round int, ordered []offers.HostOffer) {
	fmt.Println(utils.LightBlueStyle.Render(fmt.Sprintf("Round %d:", round)))
	for i, offer := range ordered {
		fmt.Printf("  %d. %s %s\n", i+1, offer.Hostname(), utils.GrayStyle.Render(offer.OfferID()))
	}
}
