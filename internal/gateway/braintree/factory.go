package braintree

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

var environments = map[string]string{
	"production":  "https://api.braintreegateway.com:443",
	"sandbox":     "https://api.sandbox.braintreegateway.com:443",
	"qa":          "https://gateway.qa.braintreepayments.com:443",
	"development": "http://localhost:3000",
}

var Module = fx.Module("gateway.braintree",
	fx.Provide(
		fx.Annotate(NewFactory, fx.As(new(gateway.Factory))),
	),
)

type Factory struct {
	log *zap.Logger
}

func NewFactory(log *zap.Logger) *Factory {
	return &Factory{log: log.Named("gateway.braintree")}
}

// NewClient builds a client for the given merchant settings. Timeouts map to
// the dialer (connect) and the response header wait (read).
func (f *Factory) NewClient(settings config.GatewaySettings) (gateway.Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, &gateway.Error{Op: "configure", Message: err.Error(), Err: err}
	}

	baseURL := strings.TrimRight(settings.BaseURL, "/")
	if baseURL == "" {
		baseURL = environments[settings.Environment]
	}

	connect := settings.ConnectionTimeout
	if connect <= 0 {
		connect = config.DefaultConnectionTimeout
	}
	read := settings.ReadTimeout
	if read <= 0 {
		read = config.DefaultReadTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		http:       &http.Client{Transport: transport, Timeout: connect + read},
		baseURL:    baseURL,
		merchantID: settings.MerchantID,
		publicKey:  settings.PublicKey,
		privateKey: settings.PrivateKey,
		log:        f.log.With(zap.String("merchant_id", settings.MerchantID)),
		tracer:     defaultTracer(),
	}, nil
}
