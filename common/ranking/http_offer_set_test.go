package ranking_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/configuration"
	"github.com/scusemua/offer-ranking/common/offers"
	"github.com/scusemua/offer-ranking/common/ranking"
	"github.com/scusemua/offer-ranking/common/ranking/mock_ranking"
	"github.com/scusemua/offer-ranking/common/ranking/rankingtest"
	"github.com/scusemua/offer-ranking/common/types"
	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HttpOfferSet", func() {
	var (
		mockCtrl *gomock.Controller
		stub     *rankingtest.Server
		server   *httptest.Server
		metrics  *recordingMetrics

		groupKey types.TaskGroupKey
		request  *types.ResourceRequest

		offerA *offers.BasicHostOffer
		offerB *offers.BasicHostOffer
		offerC *offers.BasicHostOffer
	)

	newConfig := func(endpoint string, maxFailures int) *ranking.Config {
		return &ranking.Config{
			Ordering:      offers.Reverse(offers.ByCPU),
			Endpoint:      endpoint,
			TimeoutMs:     250,
			MaxFailures:   maxFailures,
			LatencyWindow: 16,
			Metrics:       metrics,
		}
	}

	addOffers := func(set *ranking.HttpOfferSet) {
		set.Add(offerA)
		set.Add(offerB)
		set.Add(offerC)
	}

	BeforeEach(func() {
		ranking.ResetSharedAvailability()

		mockCtrl = gomock.NewController(GinkgoT())
		stub = rankingtest.NewServer("test")
		server = httptest.NewServer(stub.Handler())
		metrics = newRecordingMetrics()

		job := types.JobKey{Role: "www-data", Environment: "prod", Name: "hello"}
		groupKey = types.TaskGroupKey{Job: job, TaskName: "0"}
		request = types.NewResourceRequest(job, 1, 128, 256)

		offerA = createOffer("A", 4)
		offerB = createOffer("B", 8)
		offerC = createOffer("C", 2)
	})

	AfterEach(func() {
		server.Close()
		mockCtrl.Finish()
		ranking.ResetSharedAvailability()
	})

	Context("Ranking with a healthy ranking service", func() {
		It("Will return the offers in the order chosen by the ranking service", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL+"/rank", 10))
			addOffers(set)
			Expect(set.Values()).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))

			stub.RespondWith("", "C", "A")

			ordered := set.GetOrdered(groupKey, request)
			Expect(ordered).To(Equal([]offers.HostOffer{offerC, offerA}))
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
			Expect(metrics.Latencies(ranking.OutcomeSuccess)).To(Equal(1))
		})

		It("Will send the offers in the fallback order", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 10))
			addOffers(set)

			ordered := set.GetOrdered(groupKey, request)
			Expect(ordered).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))

			sent := stub.LastRequest()
			Expect(sent).ToNot(BeNil())
			Expect(sent.Hosts).To(HaveLen(3))
			Expect(sent.Hosts[0].Name).To(Equal("B"))
			Expect(sent.Hosts[1].Name).To(Equal("A"))
			Expect(sent.Hosts[2].Name).To(Equal("C"))
			Expect(sent.Request).To(Equal(types.ResourceVector{CPU: 1, Memory: 128, Disk: 256}))
		})

		It("Will use the default timeout when the configured timeout is not positive", func() {
			cfg := newConfig(server.URL, 10)
			cfg.TimeoutMs = 0
			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)
			Expect(set.Timeout()).To(Equal(configuration.DefaultTimeoutMs * time.Millisecond))

			stub.RespondWith("", "B", "A")

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA}))
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
			Expect(set.Availability().IsEnabled()).To(BeTrue())
			Expect(stub.NumRequests()).To(Equal(int64(1)))
		})

		It("Will not contact the ranking service when there are no offers", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

			cfg := newConfig("http://localhost:9090/rank", 10)
			cfg.Client = client
			set := ranking.NewHttpOfferSet(cfg)

			ordered := set.GetOrdered(groupKey, request)
			Expect(ordered).To(BeEmpty())
		})

		It("Will not contact the ranking service without a resource request", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

			cfg := newConfig("http://localhost:9090/rank", 10)
			cfg.Client = client
			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)

			Expect(set.GetOrdered(groupKey, nil)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
		})

		It("Will fall back without counting a failure when no ranked host is offered", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 10))
			addOffers(set)

			stub.RespondWith("", "X", "Y")

			ordered := set.GetOrdered(groupKey, request)
			Expect(ordered).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
			Expect(set.Availability().IsEnabled()).To(BeTrue())
			Expect(metrics.Fallbacks(ranking.FallbackNoMatchingHosts)).To(Equal(1))
		})

		It("Will record the latency of every exchange", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).Return([]byte(`{"error": "", "hosts": ["A"]}`), nil).Times(2)

			clock := time.Unix(1700000000, 0)
			cfg := newConfig("http://localhost:9090/rank", 10)
			cfg.Client = client
			cfg.Now = func() time.Time {
				clock = clock.Add(10 * time.Millisecond)
				return clock
			}

			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerA}))
			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerA}))

			stats := set.LatencyStats()
			Expect(stats.Samples).To(Equal(int64(2)))
			Expect(stats.Total).To(Equal(int64(2)))
			Expect(stats.Last).To(Equal(10 * time.Millisecond))
			Expect(stats.Average).To(Equal(10 * time.Millisecond))
		})
	})

	Context("Ranking with an unhealthy ranking service", func() {
		It("Will fall back to the default order when the ranking service times out", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 10))
			addOffers(set)

			stub.RespondWith("", "C", "A")
			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerC, offerA}))

			stub.SetDelay(time.Second)
			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Eventually(stub.NumRequests).Should(Equal(int64(2)))
			Expect(set.Availability().Failures()).To(Equal(int64(1)))
			Expect(set.Availability().IsEnabled()).To(BeTrue())
			Expect(metrics.Failures("io_failure")).To(Equal(1))
			Expect(metrics.Fallbacks(ranking.FallbackFailure)).To(Equal(1))
			Expect(metrics.Latencies(ranking.OutcomeFailure)).To(Equal(1))
		})

		It("Will count an error reported by the ranking service as one failure", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 10))
			addOffers(set)

			stub.RespondWith("no capacity", "A")

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(set.Availability().Failures()).To(Equal(int64(1)))
			Expect(metrics.Failures("ranking_service_error")).To(Equal(1))
		})

		It("Will count a malformed response as a failure", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 10))
			addOffers(set)

			stub.SetRawResponse(200, "this is not json")

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(stub.NumRequests()).To(Equal(int64(1)))
			Expect(set.Availability().Failures()).To(Equal(int64(1)))
			Expect(metrics.Failures("malformed_response")).To(Equal(1))
		})

		It("Will count a panic while ranking as a failure", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *ranking.Request) ([]byte, error) {
				panic("boom")
			}).Times(1)

			cfg := newConfig("http://localhost:9090/rank", 10)
			cfg.Client = client
			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(set.Availability().Failures()).To(Equal(int64(1)))
		})

		It("Will stop contacting the ranking service after the maximum number of failures", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, errors.Wrap(ranking.ErrIOFailure, "connection refused")).Times(5)

			cfg := newConfig("http://localhost:9090/rank", 5)
			cfg.Client = client
			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)
			Expect(metrics.Enabled()).To(BeTrue())

			for i := 0; i < 5; i++ {
				Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			}

			Expect(set.Availability().IsEnabled()).To(BeFalse())
			Expect(set.Availability().Failures()).To(Equal(int64(5)))
			Expect(metrics.Enabled()).To(BeFalse())
			Expect(metrics.NumDisabled()).To(Equal(1))

			for i := 0; i < 3; i++ {
				Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			}

			Expect(set.Availability().Failures()).To(Equal(int64(5)))
			Expect(metrics.Fallbacks(ranking.FallbackDisabled)).To(Equal(3))
		})

		It("Will not reset the failure count after a success", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 3))
			addOffers(set)

			stub.RespondWith("boom")
			set.GetOrdered(groupKey, request)
			set.GetOrdered(groupKey, request)

			stub.RespondWith("", "A")
			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerA}))
			Expect(set.Availability().Failures()).To(Equal(int64(2)))

			stub.RespondWith("boom")
			set.GetOrdered(groupKey, request)
			Expect(set.Availability().IsEnabled()).To(BeFalse())

			numRequests := stub.NumRequests()
			set.GetOrdered(groupKey, request)
			Expect(stub.NumRequests()).To(Equal(numRequests))
		})

		It("Will disable ranking exactly once under concurrent failures", func() {
			set := ranking.NewHttpOfferSet(newConfig(server.URL, 5))
			addOffers(set)
			stub.RespondWith("boom")

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
				}()
			}
			wg.Wait()

			Expect(set.Availability().IsEnabled()).To(BeFalse())
			Expect(set.Availability().Failures()).To(BeNumerically(">=", 5))
			Expect(set.Availability().Failures()).To(BeNumerically("<=", 20))
			Expect(metrics.NumDisabled()).To(Equal(1))
		})
	})

	Context("Shared availability", func() {
		It("Will share the failure count between offer sets of the same endpoint", func() {
			first := ranking.NewHttpOfferSet(newConfig(server.URL, 2))
			second := ranking.NewHttpOfferSet(newConfig(server.URL, 2))
			addOffers(first)
			addOffers(second)

			stub.RespondWith("boom")
			first.GetOrdered(groupKey, request)
			second.GetOrdered(groupKey, request)

			Expect(first.Availability()).To(BeIdenticalTo(second.Availability()))
			Expect(first.Availability().IsEnabled()).To(BeFalse())
		})

		It("Will not re-enable ranking when another offer set is created", func() {
			first := ranking.NewHttpOfferSet(newConfig(server.URL, 1))
			addOffers(first)

			stub.RespondWith("boom")
			first.GetOrdered(groupKey, request)
			Expect(first.Availability().IsEnabled()).To(BeFalse())

			second := ranking.NewHttpOfferSet(newConfig(server.URL, 1))
			Expect(second.Availability().IsEnabled()).To(BeFalse())
			Expect(metrics.Enabled()).To(BeFalse())
		})
	})

	Context("Invalid configuration", func() {
		It("Will never contact the ranking service when the endpoint is malformed", func() {
			client := mock_ranking.NewMockClient(mockCtrl)
			client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

			cfg := newConfig("not a url", 10)
			cfg.Client = client
			set := ranking.NewHttpOfferSet(cfg)
			addOffers(set)

			Expect(set.Availability().IsEnabled()).To(BeFalse())
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
			Expect(errors.Is(set.Availability().Cause(), ranking.ErrConfigInvalid)).To(BeTrue())

			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerB, offerA, offerC}))
			Expect(set.Availability().Failures()).To(Equal(int64(0)))
			Expect(metrics.Fallbacks(ranking.FallbackDisabled)).To(Equal(1))
		})

		It("Will build an offer set from command-line options", func() {
			opts := configuration.DefaultHttpOfferSetOptions()
			opts.Endpoint = server.URL
			opts.OfferOrder = "hostname"

			set, err := ranking.NewHttpOfferSetFromOptions(opts, metrics, nil)
			Expect(err).To(BeNil())
			addOffers(set)

			Expect(set.Values()).To(Equal([]offers.HostOffer{offerA, offerB, offerC}))
			Expect(set.Availability().MaxFailures()).To(Equal(int64(opts.MaxRetries)))

			stub.RespondWith("", "C", "B")
			Expect(set.GetOrdered(groupKey, request)).To(Equal([]offers.HostOffer{offerC, offerB}))
		})

		It("Will reject an unknown fallback order", func() {
			opts := configuration.DefaultHttpOfferSetOptions()
			opts.Endpoint = server.URL
			opts.OfferOrder = "by_magic"

			_, err := ranking.NewHttpOfferSetFromOptions(opts, metrics, nil)
			Expect(errors.Is(err, offers.ErrUnknownOrdering)).To(BeTrue())
		})
	})
})
