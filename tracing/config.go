package tracing

import (
	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
)

// Config controls OTLP trace/metric export. The zero value is a valid
// disabled configuration.
type Config struct {
	// Enabled switches export on. When false, Setup installs no-op providers.
	Enabled bool `yaml:"enabled" json:"enabled" env:"TRACING_ENABLED"`

	// ServiceName identifies this service in trace backends.
	ServiceName string `yaml:"service_name" json:"service_name" env:"TRACING_SERVICE_NAME,OTEL_SERVICE_NAME"`

	// ServiceVersion is attached to the OTel resource. Empty means the
	// module build version is used.
	ServiceVersion string `yaml:"service_version" json:"service_version" env:"TRACING_SERVICE_VERSION"`

	// Environment tags spans with a deployment environment (development,
	// staging, production...).
	Environment string `yaml:"environment" json:"environment" env:"TRACING_ENVIRONMENT,ENVIRONMENT"`

	// Endpoint is the OTLP gRPC endpoint. A Langfuse host URL
	// (https://cloud.langfuse.com) works as-is; the scheme is stripped
	// and TLS inferred from it.
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT,LANGFUSE_HOST"`

	// PublicKey/SecretKey enable Langfuse basic authentication. Both must
	// be set for the Authorization header to be attached.
	PublicKey string `yaml:"public_key" json:"public_key" env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `yaml:"secret_key" json:"secret_key" env:"LANGFUSE_SECRET_KEY"`

	// Insecure forces plaintext gRPC regardless of the endpoint scheme.
	Insecure bool `yaml:"insecure" json:"insecure" env:"TRACING_INSECURE"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" env:"TRACING_SAMPLE_RATE"`
}

// DefaultConfig returns a disabled configuration with library defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     false,
		ServiceName: "faciliter-lib",
		Environment: "development",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
	}
}

// FromEnv builds a Config from environment variables on top of defaults.
// It never fails: unparsable values keep their defaults.
func FromEnv() *Config {
	cfg := DefaultConfig()
	_ = envutil.Apply(cfg)
	return cfg
}

// langfuseAuth reports whether both Langfuse keys are present.
func (c *Config) langfuseAuth() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}
