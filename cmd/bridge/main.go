package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/account"
	"github.com/smallbiznis/railzway-braintree/internal/cache"
	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway/braintree"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig"
	"github.com/smallbiznis/railzway-braintree/internal/migration"
	"github.com/smallbiznis/railzway-braintree/internal/observability"
	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod"
	"github.com/smallbiznis/railzway-braintree/internal/ratelimit"
	"github.com/smallbiznis/railzway-braintree/internal/scheduler"
	"github.com/smallbiznis/railzway-braintree/internal/server"
	"github.com/smallbiznis/railzway-braintree/internal/transaction"
	"github.com/smallbiznis/railzway-braintree/pkg/db"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,

		// gateway and payment domains
		braintree.Module,
		gatewayconfig.Module,
		account.Module,
		paymentmethod.Module,
		transaction.Module,

		server.Module,
		scheduler.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
