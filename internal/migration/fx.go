package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/railzway-braintree/internal/account/domain"
	gatewayconfigdomain "github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
	pmdomain "github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
	transactiondomain "github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(Migrate),
)

// Models lists every table the bridge owns.
func Models() []any {
	return []any{
		&transactiondomain.TransactionRecord{},
		&transactiondomain.RedirectRequest{},
		&pmdomain.PaymentMethodRecord{},
		&accountdomain.CustomerMapping{},
		&gatewayconfigdomain.TenantConfig{},
	}
}

// Migrate applies the SQL migrations on postgres. Other dialects are meant
// for local runs and get the schema from the models.
func Migrate(conn *gorm.DB, log *zap.Logger) error {
	if conn.Dialector.Name() != "postgres" {
		log.Info("auto-migrating schema", zap.String("dialect", conn.Dialector.Name()))
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
