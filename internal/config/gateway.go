package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultConnectionTimeout         = 30000 * time.Millisecond
	DefaultReadTimeout               = 60000 * time.Millisecond
	DefaultPendingExpiration         = 3 * 24 * time.Hour
	DefaultRedirectExpiration        = time.Hour
	DefaultChargeDescription         = "Railzway charge"
	DefaultChargeStatementDescriptor = "Railzway statement"

	descriptorMaxLength = 22
)

// Gateway setting keys. Tenant overrides stored by gatewayconfig use the same keys.
const (
	KeyEnvironment                     = "environment"
	KeyMerchantID                      = "merchant_id"
	KeyPublicKey                       = "public_key"
	KeyPrivateKey                      = "private_key"
	KeyBaseURL                         = "base_url"
	KeyConnectionTimeout               = "connection_timeout"
	KeyReadTimeout                     = "read_timeout"
	KeyPendingPaymentExpirationPeriod  = "pending_payment_expiration_period"
	KeyPendingRedirectExpirationPeriod = "pending_redirect_expiration_period"
	KeyChargeDescription               = "charge_description"
	KeyChargeStatementDescriptor       = "charge_statement_descriptor"
)

var gatewayKeys = []string{
	KeyEnvironment,
	KeyMerchantID,
	KeyPublicKey,
	KeyPrivateKey,
	KeyBaseURL,
	KeyConnectionTimeout,
	KeyReadTimeout,
	KeyPendingPaymentExpirationPeriod,
	KeyPendingRedirectExpirationPeriod,
	KeyChargeDescription,
	KeyChargeStatementDescriptor,
}

// GatewayKeys lists every recognised gateway setting key.
func GatewayKeys() []string {
	out := make([]string, len(gatewayKeys))
	copy(out, gatewayKeys)
	return out
}

// RawGatewayConfig is the string form of gateway settings as read from file,
// environment or a tenant override.
type RawGatewayConfig struct {
	Environment                     string `mapstructure:"environment"`
	MerchantID                      string `mapstructure:"merchant_id"`
	PublicKey                       string `mapstructure:"public_key"`
	PrivateKey                      string `mapstructure:"private_key"`
	BaseURL                         string `mapstructure:"base_url"`
	ConnectionTimeout               string `mapstructure:"connection_timeout"`
	ReadTimeout                     string `mapstructure:"read_timeout"`
	PendingPaymentExpirationPeriod  string `mapstructure:"pending_payment_expiration_period"`
	PendingRedirectExpirationPeriod string `mapstructure:"pending_redirect_expiration_period"`
	ChargeDescription               string `mapstructure:"charge_description"`
	ChargeStatementDescriptor       string `mapstructure:"charge_statement_descriptor"`
}

// Overlay returns a copy of r with every non-empty value of overrides applied.
func (r RawGatewayConfig) Overlay(overrides map[string]any) RawGatewayConfig {
	out := r
	for key, raw := range overrides {
		value := strings.TrimSpace(cast.ToString(raw))
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeyEnvironment:
			out.Environment = value
		case KeyMerchantID:
			out.MerchantID = value
		case KeyPublicKey:
			out.PublicKey = value
		case KeyPrivateKey:
			out.PrivateKey = value
		case KeyBaseURL:
			out.BaseURL = value
		case KeyConnectionTimeout:
			out.ConnectionTimeout = value
		case KeyReadTimeout:
			out.ReadTimeout = value
		case KeyPendingPaymentExpirationPeriod:
			out.PendingPaymentExpirationPeriod = value
		case KeyPendingRedirectExpirationPeriod:
			out.PendingRedirectExpirationPeriod = value
		case KeyChargeDescription:
			out.ChargeDescription = value
		case KeyChargeStatementDescriptor:
			out.ChargeStatementDescriptor = value
		}
	}
	return out
}

// GatewaySettings is the resolved, typed gateway configuration for one tenant.
type GatewaySettings struct {
	Environment string
	MerchantID  string
	PublicKey   string
	PrivateKey  string
	BaseURL     string

	ConnectionTimeout time.Duration
	ReadTimeout       time.Duration

	Expiration ExpirationSettings

	ChargeDescription         string
	ChargeStatementDescriptor string
}

// ExpirationSettings holds the windows after which a pending transaction is
// considered abandoned.
type ExpirationSettings struct {
	Pending                   time.Duration
	PerInstrument             map[string]time.Duration
	RedirectWithoutCompletion time.Duration
}

// PendingFor returns the pending window for the given instrument type.
func (e ExpirationSettings) PendingFor(instrument string) time.Duration {
	if d, ok := e.PerInstrument[strings.ToLower(strings.TrimSpace(instrument))]; ok && d > 0 {
		return d
	}
	if e.Pending > 0 {
		return e.Pending
	}
	return DefaultPendingExpiration
}

// Settings converts the raw values into typed settings, applying defaults.
func (r RawGatewayConfig) Settings() (GatewaySettings, error) {
	settings := GatewaySettings{
		Environment: strings.ToLower(strings.TrimSpace(r.Environment)),
		MerchantID:  strings.TrimSpace(r.MerchantID),
		PublicKey:   strings.TrimSpace(r.PublicKey),
		PrivateKey:  strings.TrimSpace(r.PrivateKey),
		BaseURL:     strings.TrimSpace(r.BaseURL),

		ChargeDescription:         TruncateDescriptor(orDefault(r.ChargeDescription, DefaultChargeDescription)),
		ChargeStatementDescriptor: TruncateDescriptor(orDefault(r.ChargeStatementDescriptor, DefaultChargeStatementDescriptor)),
	}
	if settings.Environment == "" {
		settings.Environment = "sandbox"
	}

	var err error
	if settings.ConnectionTimeout, err = parseTimeout(r.ConnectionTimeout, DefaultConnectionTimeout); err != nil {
		return GatewaySettings{}, err
	}
	if settings.ReadTimeout, err = parseTimeout(r.ReadTimeout, DefaultReadTimeout); err != nil {
		return GatewaySettings{}, err
	}

	settings.Expiration = ParsePendingExpiration(r.PendingPaymentExpirationPeriod)
	settings.Expiration.RedirectWithoutCompletion = DefaultRedirectExpiration
	if value := strings.TrimSpace(r.PendingRedirectExpirationPeriod); value != "" {
		if d, err := ParsePeriod(value); err == nil && d > 0 {
			settings.Expiration.RedirectWithoutCompletion = d
		}
	}
	return settings, nil
}

// Validate reports whether the settings are complete enough to reach the gateway.
func (s GatewaySettings) Validate() error {
	if s.MerchantID == "" {
		return errors.New("gateway merchant_id is required")
	}
	if s.PublicKey == "" || s.PrivateKey == "" {
		return errors.New("gateway public_key and private_key are required")
	}
	switch s.Environment {
	case "sandbox", "production", "development", "qa":
	default:
		return errors.New("gateway environment is invalid")
	}
	return nil
}

// ParsePendingExpiration parses "P3D" or "card#P1D|ach#P5D". When per-instrument
// entries are present the global window keeps its default.
func ParsePendingExpiration(value string) ExpirationSettings {
	out := ExpirationSettings{
		Pending:       DefaultPendingExpiration,
		PerInstrument: map[string]time.Duration{},
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return out
	}

	overrides := map[string]string{}
	for _, entry := range strings.Split(value, "|") {
		parts := strings.SplitN(entry, "#", 2)
		if len(parts) != 2 {
			continue
		}
		overrides[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}

	if len(overrides) == 0 {
		if d, err := ParsePeriod(value); err == nil && d > 0 {
			out.Pending = d
		}
		return out
	}
	for instrument, period := range overrides {
		if d, err := ParsePeriod(period); err == nil && d > 0 {
			out.PerInstrument[instrument] = d
		}
	}
	return out
}

// TruncateDescriptor shortens values longer than the gateway's 22 character limit.
func TruncateDescriptor(value string) string {
	runes := []rune(value)
	if len(runes) <= descriptorMaxLength {
		return value
	}
	return string(runes[:descriptorMaxLength-3]) + "..."
}

func parseTimeout(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if ms, err := cast.ToInt64E(value); err == nil {
		if ms <= 0 {
			return def, nil
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.New("invalid gateway timeout: " + value)
	}
	return d, nil
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// GatewayConfigHolder serves the process-wide gateway defaults and reloads
// them when the config file changes.
type GatewayConfigHolder struct {
	current atomic.Value // holds RawGatewayConfig
}

// NewStaticGatewayConfigHolder returns a holder that never reloads.
func NewStaticGatewayConfigHolder(raw RawGatewayConfig) *GatewayConfigHolder {
	holder := &GatewayConfigHolder{}
	holder.current.Store(raw)
	return holder
}

func NewGatewayConfigHolder(log *zap.Logger) (*GatewayConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("braintree")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/railzway/config")
	v.AddConfigPath("/etc/railzway")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BRAINTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range gatewayKeys {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var raw RawGatewayConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, err
	}
	if _, err := raw.Settings(); err != nil {
		return nil, err
	}

	holder := NewStaticGatewayConfigHolder(raw)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RawGatewayConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("gateway config reload failed", zap.Error(err))
			return
		}
		if _, err := updated.Settings(); err != nil {
			log.Warn("invalid gateway config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("gateway config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// Get returns the current global defaults.
func (h *GatewayConfigHolder) Get() RawGatewayConfig {
	return h.current.Load().(RawGatewayConfig)
}
