package configuration

import (
	"fmt"
	"strings"

	"github.com/Scusemua/go-utils/config"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/offers"
)

const (
	DefaultTimeoutMs         = 100
	DefaultMaxRetries        = 10
	DefaultLatencyWindow     = 1024
	DefaultOfferOrder        = "cpu_desc,hostname"
	DefaultDispatcherWorkers = 8
)

var (
	ErrInvalidTimeout       = errors.New("http offer set timeout must be positive")
	ErrInvalidMaxRetries    = errors.New("http offer set max retries must be positive")
	ErrInvalidLatencyWindow = errors.New("http offer set latency window must be positive")
	ErrInvalidWorkers       = errors.New("dispatcher workers must be positive")
)

// HttpOfferSetOptions includes all configuration parameters of the HTTP offer set and of the
// executables that host one.
//
// A malformed endpoint is deliberately not a validation error. It disables external ranking when the
// offer set is constructed, leaving the scheduler on the fallback ordering.
type HttpOfferSetOptions struct {
	config.LoggerOptions `yaml:",inline" json:"logger_options"`

	Endpoint          string `name:"http-offer-set-endpoint"       json:"http-offer-set-endpoint"       yaml:"http-offer-set-endpoint"       description:"URL of the external offer ranking service. If empty or malformed, offers are always returned in the fallback order."`
	TimeoutMs         int    `name:"http-offer-set-timeout-ms"     json:"http-offer-set-timeout-ms"     yaml:"http-offer-set-timeout-ms"     description:"Connect and read timeout, in milliseconds, of each request to the ranking service."`
	MaxRetries        int    `name:"http-offer-set-max-retries"    json:"http-offer-set-max-retries"    yaml:"http-offer-set-max-retries"    description:"Number of failed ranking requests after which the ranking service is no longer consulted for the lifetime of the process."`
	LatencyWindow     int    `name:"http-offer-set-latency-window" json:"http-offer-set-latency-window" yaml:"http-offer-set-latency-window" description:"Number of recent ranking latency samples to retain."`
	OfferOrder        string `name:"offer-order"                   json:"offer-order"                   yaml:"offer-order"                   description:"Comma-separated fallback ordering of offers. Valid orders are 'cpu', 'memory', 'disk', 'revocable_cpu', and 'hostname', each optionally suffixed with '_desc'."`
	DispatcherWorkers int    `name:"dispatcher-workers"            json:"dispatcher-workers"            yaml:"dispatcher-workers"            description:"Maximum number of ranking requests that may be in flight at once."`
	PrometheusPort    int    `name:"prometheus_port"               json:"prometheus_port"               yaml:"prometheus_port"               description:"The port on which ranking metrics are served. Set to 0 to disable serving metrics."`
	JaegerAddr        string `name:"jaeger"                        json:"jaeger"                        yaml:"jaeger"                        description:"Jaeger agent address. Tracing is disabled when empty."`

	// PrettyPrintOptions, when true, instructs the driver to pretty-print the options when the program
	// first begins running.
	PrettyPrintOptions bool `name:"pretty_print_options" json:"pretty_print_options" yaml:"pretty_print_options"`
}

// DefaultHttpOfferSetOptions returns HttpOfferSetOptions populated with the default values.
func DefaultHttpOfferSetOptions() *HttpOfferSetOptions {
	return &HttpOfferSetOptions{
		TimeoutMs:         DefaultTimeoutMs,
		MaxRetries:        DefaultMaxRetries,
		LatencyWindow:     DefaultLatencyWindow,
		OfferOrder:        DefaultOfferOrder,
		DispatcherWorkers: DefaultDispatcherWorkers,
	}
}

// Validate checks the options.
func (opts *HttpOfferSetOptions) Validate() error {
	if opts.TimeoutMs <= 0 {
		return errors.Wrap(ErrInvalidTimeout, fmt.Sprintf("got %d", opts.TimeoutMs))
	}

	if opts.MaxRetries <= 0 {
		return errors.Wrap(ErrInvalidMaxRetries, fmt.Sprintf("got %d", opts.MaxRetries))
	}

	if opts.LatencyWindow <= 0 {
		return errors.Wrap(ErrInvalidLatencyWindow, fmt.Sprintf("got %d", opts.LatencyWindow))
	}

	if opts.DispatcherWorkers <= 0 {
		return errors.Wrap(ErrInvalidWorkers, fmt.Sprintf("got %d", opts.DispatcherWorkers))
	}

	if _, err := opts.Ordering(); err != nil {
		return err
	}

	return nil
}

// Ordering parses the OfferOrder option.
func (opts *HttpOfferSetOptions) Ordering() (offers.Ordering, error) {
	return offers.ParseOrdering(opts.OfferOrder)
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (opts *HttpOfferSetOptions) PrettyString(indentSize int) string {
	indentBuilder := strings.Builder{}
	for i := 0; i < indentSize; i++ {
		indentBuilder.WriteString(" ")
	}

	m, err := json.MarshalIndent(opts, "", indentBuilder.String())
	if err != nil {
		panic(err)
	}

	return string(m)
}

func (opts *HttpOfferSetOptions) Clone() *HttpOfferSetOptions {
	clone := *opts
	return &clone
}

func (opts *HttpOfferSetOptions) String() string {
	m, err := json.Marshal(opts)
	if err != nil {
		panic(err)
	}

	return string(m)
}
