package tracing

import (
	"io"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init returns a Jaeger tracer that reports every span of the given service to the agent at agentAddr.
//
// If agentAddr is empty, Init returns a tracer that records nothing. The returned io.Closer flushes
// buffered spans and must be closed before the process exits.
func Init(serviceName string, agentAddr string) (opentracing.Tracer, io.Closer, error) {
	if agentAddr == "" {
		return opentracing.NoopTracer{}, nopCloser{}, nil
	}

	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:            false,
			BufferFlushInterval: time.Second,
			LocalAgentHostPort:  agentAddr,
		},
	}

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot initialize jaeger tracer for %s", serviceName)
	}

	return tracer, closer, nil
}
