package ranking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/configuration"
)

const (
	ContentTypeHeader = "application/json; charset=utf-8"
	AcceptHeader      = "application/json"

	rankSpanName = "rank-offers"
)

// Client sends ranking requests to the ranking service.
type Client interface {
	// Send posts the request to the ranking service and returns the body of the response.
	//
	// Send makes exactly one attempt. It returns an error matching ErrIOFailure if the connection cannot be
	// established, the timeout elapses, or the response body is empty.
	Send(ctx context.Context, request *Request) ([]byte, error)
}

// ParseEndpoint parses the URL of the ranking service.
//
// Only absolute http and https URLs are accepted. The returned error matches ErrConfigInvalid.
func ParseEndpoint(rawUrl string) (*url.URL, error) {
	endpoint, err := url.ParseRequestURI(rawUrl)
	if err != nil {
		return nil, errors.Wrap(ErrConfigInvalid, err.Error())
	}

	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, errors.Wrap(ErrConfigInvalid, fmt.Sprintf("unsupported scheme \"%s\"", endpoint.Scheme))
	}

	if endpoint.Host == "" {
		return nil, errors.Wrap(ErrConfigInvalid, fmt.Sprintf("no host in \"%s\"", rawUrl))
	}

	return endpoint, nil
}

// HttpClient is the Client that POSTs JSON-encoded requests to the ranking service.
type HttpClient struct {
	log logger.Logger

	endpoint   *url.URL
	timeout    time.Duration
	httpClient *http.Client
	codec      *Codec
	tracer     opentracing.Tracer
}

// NewHttpClient creates a new HttpClient that sends requests to the given endpoint.
//
// The timeout bounds establishing the connection, waiting for the response headers, and the exchange as a
// whole. A non-positive timeout is replaced by configuration.DefaultTimeoutMs. If tracer is nil, requests are
// not traced.
func NewHttpClient(endpoint *url.URL, timeout time.Duration, tracer opentracing.Tracer) *HttpClient {
	if timeout <= 0 {
		timeout = configuration.DefaultTimeoutMs * time.Millisecond
	}

	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	client := &HttpClient{
		endpoint: endpoint,
		timeout:  timeout,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		codec:  NewCodec(),
		tracer: tracer,
	}
	config.InitLogger(&client.log, client)

	return client
}

// Endpoint returns the URL that requests are sent to.
func (c *HttpClient) Endpoint() *url.URL {
	return c.endpoint
}

// Send posts the request to the ranking service and returns the body of the response.
func (c *HttpClient) Send(ctx context.Context, request *Request) ([]byte, error) {
	c.log.Debug("Sending request for %v", request)

	payload, err := c.codec.Marshal(request)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(ErrIOFailure, err.Error())
	}
	req.Header.Set("Content-Type", ContentTypeHeader)
	req.Header.Set("Accept", AcceptHeader)

	span := c.tracer.StartSpan(rankSpanName, ext.SpanKindRPCClient)
	defer span.Finish()
	ext.HTTPMethod.Set(span, http.MethodPost)
	ext.HTTPUrl.Set(span, c.endpoint.String())
	span.SetTag("job_key", request.JobKey)
	if err = c.tracer.Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header)); err != nil {
		c.log.Debug("Failed to inject span context into ranking request %s: %v", request.JobKey, err)
	}

	body, err := c.exchange(req)
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
		return nil, err
	}

	return body, nil
}

func (c *HttpClient) exchange(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrIOFailure, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrIOFailure, err.Error())
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.Wrap(ErrIOFailure, fmt.Sprintf("empty response from the external http endpoint (status %d)", resp.StatusCode))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Ranking service at %s responded with status %d.", c.endpoint.String(), resp.StatusCode)
	}

	return body, nil
}
