// =============================================================================
// OpenTelemetry / Langfuse SDK Initialization
// =============================================================================
// Wraps OTel SDK setup for traces and metrics. Setup never fails: when
// tracing is disabled or an exporter cannot be built, global providers
// remain noop and the library keeps working.
//
// Langfuse is reached through its OTLP endpoint with basic authentication
// derived from the public/secret key pair.
// =============================================================================

package tracing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Providers holds the OTel SDK TracerProvider and MeterProvider.
// When tracing is disabled or setup failed, both fields are nil and
// Shutdown is a no-op.
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	setupOnce sync.Once
	setupDone *Providers
)

// Setup initializes the OTel SDK once per process and returns the active
// providers. Subsequent calls return the first result. It never returns
// an error and never panics: any failure degrades to noop providers with
// a warning.
func Setup(cfg *Config, logger *zap.Logger) *Providers {
	setupOnce.Do(func() {
		setupDone = newProviders(cfg, logger)
	})
	if setupDone == nil {
		setupDone = &Providers{}
	}
	return setupDone
}

// newProviders builds providers from cfg without touching the process-wide
// once guard. Split out for tests.
func newProviders(cfg *Config, logger *zap.Logger) (p *Providers) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = FromEnv()
	}

	p = &Providers{}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("tracing setup panicked, continuing without telemetry", zap.Any("panic", r))
			p = &Providers{}
		}
	}()

	if !cfg.Enabled {
		logger.Debug("tracing disabled, using noop providers")
		return p
	}

	endpoint, insecure := normalizeEndpoint(cfg.Endpoint, cfg.Insecure)
	if endpoint == "" {
		logger.Warn("tracing enabled but no endpoint configured, using noop providers")
		return p
	}

	ctx := context.Background()

	version := cfg.ServiceVersion
	if version == "" {
		version = buildVersion()
	}

	// Build resource with service metadata
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		logger.Warn("create otel resource failed, using noop providers", zap.Error(err))
		return p
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if cfg.langfuseAuth() {
		headers := map[string]string{"Authorization": basicAuth(cfg.PublicKey, cfg.SecretKey)}
		traceOpts = append(traceOpts, otlptracegrpc.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithHeaders(headers))
	}

	// Create OTLP gRPC trace exporter
	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		logger.Warn("create trace exporter failed, using noop providers", zap.Error(err))
		return p
	}

	// Create OTLP gRPC metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		logger.Warn("create metric exporter failed, using noop providers", zap.Error(err))
		return p
	}

	// Create TracerProvider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	// Create MeterProvider
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	// Register as global providers only after every step succeeded
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("endpoint", endpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Bool("langfuse_auth", cfg.langfuseAuth()),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Providers{tp: tp, mp: mp}
}

// Shutdown flushes pending spans/metrics and closes exporters.
// Safe to call on noop Providers (nil tp/mp).
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Active reports whether real (non-noop) providers were installed.
func (p *Providers) Active() bool {
	return p != nil && p.tp != nil
}

// basicAuth builds the Langfuse Authorization header value.
func basicAuth(publicKey, secretKey string) string {
	token := base64.StdEncoding.EncodeToString([]byte(publicKey + ":" + secretKey))
	return "Basic " + token
}

// normalizeEndpoint strips the URL scheme, infers TLS from it and appends
// a default port when missing. OTLP gRPC wants a bare host:port.
func normalizeEndpoint(endpoint string, insecure bool) (string, bool) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", insecure
	}

	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		insecure = true
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	// Local collectors are almost never TLS-terminated.
	if strings.HasPrefix(endpoint, "localhost") || strings.HasPrefix(endpoint, "127.0.0.1") {
		insecure = true
	}

	if !strings.Contains(endpoint, ":") {
		if insecure {
			endpoint += ":4317"
		} else {
			endpoint += ":443"
		}
	}
	return endpoint, insecure
}

// buildVersion extracts the module version from Go build info.
// Falls back to "dev" if unavailable.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
