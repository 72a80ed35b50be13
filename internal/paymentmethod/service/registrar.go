package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
)

// LocalRegistrar reuses tokens the bridge minted itself and assigns a fresh id
// to instruments created elsewhere.
type LocalRegistrar struct{}

func NewLocalRegistrar() domain.Registrar {
	return LocalRegistrar{}
}

func (LocalRegistrar) Register(_ context.Context, _, _ uuid.UUID, method gateway.Method) (uuid.UUID, error) {
	if id, err := uuid.Parse(method.Token); err == nil {
		return id, nil
	}
	return uuid.New(), nil
}
