package transaction

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/railzway-braintree/internal/transaction/repository"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/service"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
