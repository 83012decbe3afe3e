package ranking

import (
	"fmt"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/offers"
	"github.com/scusemua/offer-ranking/common/types"
	"golang.org/x/time/rate"
)

const (
	// numHostsToLog is the number of ranked hosts included in the debug log of a decoded response.
	numHostsToLog = 5
)

// Host is a single candidate host in a ranking Request.
type Host struct {
	Name  string               `json:"name"`
	Offer types.ResourceVector `json:"offer"`
}

func (h Host) String() string {
	return fmt.Sprintf("Host{name='%s', offer=%v}", h.Name, h.Offer)
}

// Request is the body of a request to the ranking service.
type Request struct {
	JobKey  string               `json:"jobKey"`
	Request types.ResourceVector `json:"request"`
	Hosts   []Host               `json:"hosts"`
}

func (r *Request) String() string {
	return fmt.Sprintf("Request{jobKey=%s, request=%v, hosts=%v}", r.JobKey, r.Request, r.Hosts)
}

// Response is the body of a response from the ranking service.
//
// Both fields are pointers so that a field that is absent from the response can be told apart from one
// that is present but empty.
type Response struct {
	Error *string   `json:"error"`
	Hosts *[]string `json:"hosts"`
}

// CorrelationKey returns the key that identifies a single ranking exchange of the given job in logs.
func CorrelationKey(job types.JobKey, timestamp time.Time) string {
	return fmt.Sprintf("%s-%s-%s@%d", job.Role, job.Environment, job.Name, timestamp.UnixNano())
}

// Codec translates between offers and the wire format of the ranking service.
//
// Codec is safe for concurrent use.
type Codec struct {
	log logger.Logger

	// warnLimiter throttles the per-host "unknown host" warning, which can fire once per ranked host on
	// every scheduling attempt while offers churn.
	warnLimiter *rate.Limiter
}

// NewCodec creates a new Codec and returns a pointer to it.
func NewCodec() *Codec {
	codec := &Codec{
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	config.InitLogger(&codec.log, codec)

	return codec
}

// Encode builds the ranking Request for the given resource request and offers.
//
// Each host is described by the sum of the revocable and non-revocable resources of its offer.
func (c *Codec) Encode(request *types.ResourceRequest, hostOffers []offers.HostOffer, timestamp time.Time) *Request {
	hosts := make([]Host, 0, len(hostOffers))
	for _, offer := range hostOffers {
		hosts = append(hosts, Host{
			Name:  offer.Hostname(),
			Offer: offers.AggregateResources(offer),
		})
	}

	return &Request{
		JobKey:  CorrelationKey(request.Job, timestamp),
		Request: request.Resources.Vector(),
		Hosts:   hosts,
	}
}

// Marshal serializes the given Request.
func (c *Codec) Marshal(request *Request) ([]byte, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize ranking request")
	}

	return body, nil
}

// Decode parses the body of a ranking response and returns the offers of the ranked hosts, in ranked order.
//
// hostOffers must be the offers that the request was encoded from. Hosts named in the response that are
// not among hostOffers are skipped, as are repeated hostnames. If a host has several offers, they are
// returned together in the order of hostOffers.
//
// Decode returns an error matching ErrMalformedResponse if the body cannot be parsed or lacks the error or
// hosts field, and a *ServiceError if the error field is not blank. An empty (but non-nil) slice is
// returned without error when no ranked host could be matched.
func (c *Codec) Decode(body []byte, hostOffers []offers.HostOffer) ([]offers.HostOffer, error) {
	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		c.log.Error("Response: %s", string(body))
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	if response.Error == nil || response.Hosts == nil {
		c.log.Error("Response: %s", string(body))
		return nil, errors.Wrap(ErrMalformedResponse, "missing \"error\" or \"hosts\" field")
	}

	if message := strings.TrimSpace(*response.Error); message != "" {
		c.log.Error("Unable to get sorted offers due to %s", message)
		return nil, &ServiceError{Message: message}
	}

	offersByHost := orderedmap.NewOrderedMap[string, []offers.HostOffer]()
	for _, offer := range hostOffers {
		existing, _ := offersByHost.Get(offer.Hostname())
		offersByHost.Set(offer.Hostname(), append(existing, offer))
	}

	hostnames := *response.Hosts
	ordered := make([]offers.HostOffer, 0, len(hostnames))
	matched := make(map[string]struct{}, len(hostnames))
	for _, hostname := range hostnames {
		if _, seen := matched[hostname]; seen {
			continue
		}

		hostOffersOfHost, loaded := offersByHost.Get(hostname)
		if !loaded {
			if c.warnLimiter.Allow() {
				c.log.Warn("Cannot find host %s of the response among the offers", hostname)
			}
			continue
		}

		ordered = append(ordered, hostOffersOfHost...)
		matched[hostname] = struct{}{}
	}

	c.log.Debug("Sorted offers: %s", strings.Join(hostnames[:min(numHostsToLog, len(hostnames))], ",")+"...")

	if len(ordered) == 0 {
		c.log.Warn("Cannot find any offers for this task. Please check the condition of these hosts: %s",
			strings.Join(offers.Hostnames(hostOffers), ","))
	}

	return ordered, nil
}
