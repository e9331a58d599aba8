// Package metrics counts requests, tokens and agent activity. Counters are
// kept both as OpenTelemetry instruments and as plain atomics for the JSON
// snapshot served by the gateway.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/volumeee/zenclaw-sub000/internal/agent"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/hooks"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/version"
)

const meterName = "zenclaw"

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	RequestsTotal   int64     `json:"requestsTotal"`
	RequestsSuccess int64     `json:"requestsSuccess"`
	RequestsError   int64     `json:"requestsError"`
	TokensIn        int64     `json:"tokensIn"`
	TokensOut       int64     `json:"tokensOut"`
	ToolCalls       int64     `json:"toolCalls"`
	RAGInjections   int64     `json:"ragInjections"`
	Retries         int64     `json:"retries"`
	RateLimits      int64     `json:"rateLimits"`
	ToolTimeouts    int64     `json:"toolTimeouts"`
	Truncations     int64     `json:"truncations"`
	StartedAt       time.Time `json:"startedAt"`
	UptimeSeconds   float64   `json:"uptimeSeconds"`
}

type counter struct {
	n    atomic.Int64
	inst metric.Int64Counter
}

func (c *counter) add(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	c.n.Add(v)
	c.inst.Add(ctx, v, metric.WithAttributes(attrs...))
}

// Recorder is safe for concurrent use.
type Recorder struct {
	start    time.Time
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader

	requests, success, failures counter
	tokensIn, tokensOut         counter
	toolCalls, rag              counter
	retries, rateLimits         counter
	timeouts, truncations       counter

	log *logging.Logger
}

// New creates a recorder with its own meter provider. Extra readers (an
// OTLP exporter, for instance) receive the same instruments.
func New(log *logging.Logger, readers ...sdkmetric.Reader) (*Recorder, error) {
	r := &Recorder{
		start:  time.Now(),
		reader: sdkmetric.NewManualReader(),
		log:    log.Sub("metrics"),
	}
	opts := []sdkmetric.Option{sdkmetric.WithReader(r.reader)}
	for _, rd := range readers {
		opts = append(opts, sdkmetric.WithReader(rd))
	}
	r.provider = sdkmetric.NewMeterProvider(opts...)

	meter := r.provider.Meter(meterName, metric.WithInstrumentationVersion(version.Version))
	instruments := []struct {
		c    *counter
		name string
		desc string
		unit string
	}{
		{&r.requests, "zenclaw.requests.total", "Messages processed", "{request}"},
		{&r.success, "zenclaw.requests.success", "Messages answered", "{request}"},
		{&r.failures, "zenclaw.requests.error", "Messages that ended in an error", "{request}"},
		{&r.tokensIn, "zenclaw.tokens.input", "Prompt tokens sent to providers", "{token}"},
		{&r.tokensOut, "zenclaw.tokens.output", "Completion tokens received from providers", "{token}"},
		{&r.toolCalls, "zenclaw.tool.calls", "Capability invocations requested by the model", "{call}"},
		{&r.rag, "zenclaw.rag.injections", "Turns that received retrieved knowledge", "{injection}"},
		{&r.retries, "zenclaw.provider.retries", "Provider call retries", "{retry}"},
		{&r.rateLimits, "zenclaw.provider.rate_limits", "Provider retries caused by rate limiting", "{retry}"},
		{&r.timeouts, "zenclaw.tool.timeouts", "Capability calls that hit the timeout", "{call}"},
		{&r.truncations, "zenclaw.history.truncations", "Turns whose history was cut to fit the budget", "{turn}"},
	}
	for _, in := range instruments {
		c, err := meter.Int64Counter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", in.name, err)
		}
		in.c.inst = c
	}
	return r, nil
}

// RecordRequest counts one processed message.
func (r *Recorder) RecordRequest(ctx context.Context, channel string, err error) {
	attr := attribute.String("channel", channel)
	r.requests.add(ctx, 1, attr)
	if err != nil {
		r.failures.add(ctx, 1, attr)
		return
	}
	r.success.add(ctx, 1, attr)
}

// RecordUsage counts provider tokens. It matches agent.UsageFunc.
func (r *Recorder) RecordUsage(model string, u domain.Usage) {
	ctx := context.Background()
	attr := attribute.String("model", model)
	r.tokensIn.add(ctx, int64(u.PromptTokens), attr)
	r.tokensOut.add(ctx, int64(u.CompletionTokens), attr)
}

// Observe counts the system events that carry metrics.
func (r *Recorder) Observe(ctx context.Context, ev domain.SystemEvent) {
	switch ev.EventType {
	case domain.EventToolUse:
		name, _ := ev.Data["capability"].(string)
		r.toolCalls.add(ctx, 1, attribute.String("capability", name))
	case domain.EventRAGInject:
		r.rag.add(ctx, 1)
	case domain.EventLLMRetry:
		r.retries.add(ctx, 1)
		if rl, _ := ev.Data["isRateLimit"].(bool); rl {
			r.rateLimits.add(ctx, 1)
		}
	case domain.EventToolTimeout:
		name, _ := ev.Data["capability"].(string)
		r.timeouts.add(ctx, 1, attribute.String("capability", name))
	case domain.EventMemoryTruncate:
		r.truncations.add(ctx, 1)
	}
}

// Hook adapts Observe for registration with hooks.AnyEvent.
func (r *Recorder) Hook() hooks.Handler {
	return func(ctx context.Context, ev domain.SystemEvent) error {
		r.Observe(ctx, ev)
		return nil
	}
}

// Snapshot returns the current counter values.
func (r *Recorder) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:   r.requests.n.Load(),
		RequestsSuccess: r.success.n.Load(),
		RequestsError:   r.failures.n.Load(),
		TokensIn:        r.tokensIn.n.Load(),
		TokensOut:       r.tokensOut.n.Load(),
		ToolCalls:       r.toolCalls.n.Load(),
		RAGInjections:   r.rag.n.Load(),
		Retries:         r.retries.n.Load(),
		RateLimits:      r.rateLimits.n.Load(),
		ToolTimeouts:    r.timeouts.n.Load(),
		Truncations:     r.truncations.n.Load(),
		StartedAt:       r.start,
		UptimeSeconds:   time.Since(r.start).Seconds(),
	}
}

// Collect reads the OpenTelemetry view of the counters.
func (r *Recorder) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := r.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.log.Debug().Msg("shutting down meter provider")
	return r.provider.Shutdown(ctx)
}

// Processor is the agent entry point that Instrument wraps.
type Processor interface {
	Process(ctx context.Context, userMessage, sessionKey string, opts ...agent.ProcessOption) (string, error)
}

type instrumented struct {
	next Processor
	rec  *Recorder
}

// Instrument counts every Process call made through p.
func (r *Recorder) Instrument(p Processor) Processor {
	return instrumented{next: p, rec: r}
}

func (i instrumented) Process(ctx context.Context, userMessage, sessionKey string, opts ...agent.ProcessOption) (string, error) {
	out, err := i.next.Process(ctx, userMessage, sessionKey, opts...)
	i.rec.RecordRequest(ctx, channelOf(sessionKey), err)
	return out, err
}

// channelOf returns the channel part of a "channel:chat" session key.
func channelOf(sessionKey string) string {
	channel, _, _ := strings.Cut(sessionKey, ":")
	return channel
}
