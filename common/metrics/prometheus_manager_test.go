package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/scusemua/offer-ranking/common/metrics"
	"github.com/scusemua/offer-ranking/common/ranking"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ ranking.MetricsSink = (*metrics.RankingPrometheusManager)(nil)

var _ = Describe("RankingPrometheusManager", func() {
	var manager *metrics.RankingPrometheusManager

	scrape := func() string {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, metrics.MetricsRoute, nil)
		manager.Handler().ServeHTTP(recorder, request)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		return recorder.Body.String()
	}

	BeforeEach(func() {
		manager = metrics.NewRankingPrometheusManager(0)
	})

	It("Will expose the recorded measurements", func() {
		manager.SetEnabled(true)
		manager.ObserveLatency(1500*time.Microsecond, ranking.OutcomeSuccess)
		manager.ObserveLatency(100*time.Millisecond, ranking.OutcomeFailure)
		manager.RecordFailure("io_failure")
		manager.RecordFailure("io_failure")
		manager.RecordFallback(ranking.FallbackFailure)

		body := scrape()
		Expect(body).To(ContainSubstring(`offer_ranking_latency_microseconds_count{outcome="success"} 1`))
		Expect(body).To(ContainSubstring(`offer_ranking_latency_microseconds_sum{outcome="success"} 1500`))
		Expect(body).To(ContainSubstring(`offer_ranking_latency_microseconds_count{outcome="failure"} 1`))
		Expect(body).To(ContainSubstring(`offer_ranking_failures_total{kind="io_failure"} 2`))
		Expect(body).To(ContainSubstring(`offer_ranking_fallbacks_total{reason="failure"} 1`))
		Expect(body).To(ContainSubstring("offer_ranking_enabled 1"))
	})

	It("Will report when ranking is disabled", func() {
		manager.SetEnabled(true)
		manager.SetEnabled(false)

		Expect(scrape()).To(ContainSubstring("offer_ranking_enabled 0"))
	})

	It("Will allow several managers in one process", func() {
		other := metrics.NewRankingPrometheusManager(0)
		other.RecordFailure("malformed_response")

		Expect(scrape()).ToNot(ContainSubstring("malformed_response"))
	})

	It("Will refuse to start twice or to stop when not running", func() {
		Expect(manager.IsRunning()).To(BeFalse())
		Expect(manager.Stop()).To(MatchError(metrics.ErrPrometheusManagerNotRunning))

		Expect(manager.Start()).To(Succeed())
		Expect(manager.IsRunning()).To(BeTrue())
		Expect(manager.Start()).To(MatchError(metrics.ErrPrometheusManagerAlreadyRunning))

		Expect(manager.Stop()).To(Succeed())
		Expect(manager.IsRunning()).To(BeFalse())
	})
})
