package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aiuj/faciliter-lib-go/internal/ctxkeys"
)

const instrumentationName = "github.com/Aiuj/faciliter-lib-go/tracing"

// Metadata is the only payload accepted by AddMetadata. Keeping it a
// closed struct of identifiers and counters guarantees conversation
// content never leaks into telemetry.
type Metadata struct {
	Provider         string
	Model            string
	SessionID        string
	UserID           string
	TenantID         string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Latency          time.Duration
	CacheHit         bool
	ErrorCode        string
}

// NewSessionID returns a fresh UUID for caller-supplied session correlation.
func NewSessionID() string {
	return uuid.NewString()
}

// StartSpan opens a span on the global tracer and returns the derived
// context plus an end function that records the outcome. Both sides are
// recover-guarded: without a working tracer the call degrades to a no-op
// and the original context is returned unchanged.
func StartSpan(ctx context.Context, name string) (octx context.Context, end func(error)) {
	octx = ctx
	end = func(error) {}

	defer func() { _ = recover() }()

	tracer := otel.Tracer(instrumentationName)
	newCtx, span := tracer.Start(ctx, name)

	// Correlation identifiers travel on the context.
	if sid, ok := ctxkeys.SessionID(ctx); ok && sid != "" {
		span.SetAttributes(attribute.String("session.id", sid))
	}
	if tid, ok := ctxkeys.TenantID(ctx); ok && tid != "" {
		span.SetAttributes(attribute.String("tenant.id", tid))
	}

	octx = newCtx
	end = func(err error) {
		defer func() { _ = recover() }()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return octx, end
}

// AddMetadata attaches request attributes to the active span and records
// the OTel meter instruments. Recover-guarded; without an active span only
// the instruments are touched, and those are noop before Setup.
func AddMetadata(ctx context.Context, md Metadata) {
	defer func() { _ = recover() }()

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(metadataAttrs(md)...)
	}

	recordInstruments(ctx, md)
}

func metadataAttrs(md Metadata) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 11)
	if md.Provider != "" {
		attrs = append(attrs, attribute.String("llm.provider", md.Provider))
	}
	if md.Model != "" {
		attrs = append(attrs, attribute.String("llm.model", md.Model))
	}
	if md.SessionID != "" {
		attrs = append(attrs, attribute.String("session.id", md.SessionID))
	}
	if md.UserID != "" {
		attrs = append(attrs, attribute.String("user.id", md.UserID))
	}
	if md.TenantID != "" {
		attrs = append(attrs, attribute.String("tenant.id", md.TenantID))
	}
	if md.TotalTokens > 0 || md.PromptTokens > 0 || md.CompletionTokens > 0 {
		attrs = append(attrs,
			attribute.Int("llm.tokens.prompt", md.PromptTokens),
			attribute.Int("llm.tokens.completion", md.CompletionTokens),
			attribute.Int("llm.tokens.total", md.TotalTokens),
		)
	}
	if md.Latency > 0 {
		attrs = append(attrs, attribute.Float64("llm.duration_ms", float64(md.Latency.Milliseconds())))
	}
	if md.CacheHit {
		attrs = append(attrs, attribute.Bool("llm.cache_hit", true))
	}
	if md.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error.code", md.ErrorCode))
	}
	return attrs
}

// =============================================================================
// Meter instruments
// =============================================================================

// instruments holds lazily created OTel instruments. The global meter
// delegates to the real provider once Setup runs, so creating them
// beforehand is safe.
type instruments struct {
	requestTotal    metric.Int64Counter
	tokenTotal      metric.Int64Counter
	requestDuration metric.Float64Histogram
}

var (
	instrOnce sync.Once
	instr     *instruments
)

func meterInstruments() *instruments {
	instrOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		i := &instruments{}
		var err error

		i.requestTotal, err = meter.Int64Counter("llm.request.total",
			metric.WithDescription("Total number of LLM requests"),
			metric.WithUnit("{request}"))
		if err != nil {
			return
		}

		i.tokenTotal, err = meter.Int64Counter("llm.token.total",
			metric.WithDescription("Total tokens consumed"),
			metric.WithUnit("{token}"))
		if err != nil {
			return
		}

		i.requestDuration, err = meter.Float64Histogram("llm.request.duration",
			metric.WithDescription("Request duration in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
		if err != nil {
			return
		}

		instr = i
	})
	return instr
}

func recordInstruments(ctx context.Context, md Metadata) {
	i := meterInstruments()
	if i == nil {
		return
	}

	status := "success"
	if md.ErrorCode != "" {
		status = "error"
	}
	commonAttrs := metric.WithAttributes(
		attribute.String("provider", md.Provider),
		attribute.String("model", md.Model),
		attribute.String("status", status),
	)

	i.requestTotal.Add(ctx, 1, commonAttrs)

	if md.Latency > 0 {
		i.requestDuration.Record(ctx, md.Latency.Seconds(), commonAttrs)
	}

	if md.PromptTokens > 0 {
		i.tokenTotal.Add(ctx, int64(md.PromptTokens), metric.WithAttributes(
			attribute.String("provider", md.Provider),
			attribute.String("model", md.Model),
			attribute.String("type", "prompt")))
	}
	if md.CompletionTokens > 0 {
		i.tokenTotal.Add(ctx, int64(md.CompletionTokens), metric.WithAttributes(
			attribute.String("provider", md.Provider),
			attribute.String("model", md.Model),
			attribute.String("type", "completion")))
	}
}
