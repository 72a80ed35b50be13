package observability

import (
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/smallbiznis/railzway-braintree/internal/config"
)

const (
	defaultServiceName   = "railzway-braintree"
	defaultSamplingRatio = 0.1
)

// Config holds the logging and telemetry settings of the bridge. Standard
// OTEL_* variables win over the values in config.Config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), cfg.AppName, defaultServiceName),
		Environment: firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:     firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),

		LogLevel:  strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogFormat: strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),

		OtelEnabled:          envBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelSamplingRatio:    samplingRatio(os.Getenv("OTEL_SAMPLING_RATIO")),
	}
	// the traces-specific protocol overrides the shared one
	out.OtelExporterProtocol = strings.ToLower(firstNonEmpty(
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
		os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		"grpc",
	))
	return out
}

// Debug enables verbose request logs and gin debug mode.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return def
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return def
	}
	return parsed
}

// samplingRatio falls back to the default for unparsable values and clamps
// the rest into [0, 1].
func samplingRatio(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSamplingRatio
	}
	ratio, err := cast.ToFloat64E(raw)
	if err != nil {
		return defaultSamplingRatio
	}
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}
