package gatewayconfig

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/repository"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/service"
)

var Module = fx.Module("gatewayconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) gateway.ClientProvider { return s }),
)
