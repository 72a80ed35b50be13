package paymentmethod

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/repository"
	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/service"
)

var Module = fx.Module("paymentmethod.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewLocalRegistrar),
	fx.Provide(service.NewService),
)
