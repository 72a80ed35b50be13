package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/account/domain"
	"github.com/smallbiznis/railzway-braintree/internal/cache"
	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
	Cache cache.CustomerIDCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
	cache cache.CustomerIDCache
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
		cache: p.Cache,
	}
}

func (s *Service) GetCustomerID(ctx context.Context, tenantID, accountID uuid.UUID) (string, bool, error) {
	if s.cache != nil {
		if customerID, ok := s.cache.Get(ctx, tenantID.String(), accountID.String()); ok {
			return customerID, true, nil
		}
	}
	mapping, err := s.repo.Find(ctx, s.db, tenantID, accountID)
	if err != nil {
		return "", false, payerr.Persistence("account.get_customer_id", "load customer mapping", err)
	}
	if mapping == nil {
		return "", false, nil
	}
	if s.cache != nil {
		s.cache.Set(ctx, tenantID.String(), accountID.String(), mapping.CustomerID)
	}
	return mapping.CustomerID, true, nil
}

func (s *Service) SetCustomerID(ctx context.Context, tenantID, accountID uuid.UUID, customerID string) error {
	const op = "account.set_customer_id"
	customerID = strings.TrimSpace(customerID)
	if domain.IsPlaceholder(customerID) {
		return nil
	}

	now := s.clock.Now()
	inserted, err := s.repo.Insert(ctx, s.db, &domain.CustomerMapping{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		AccountID:  accountID,
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return payerr.Persistence(op, "store customer mapping", err)
	}
	if inserted {
		s.log.Info("customer mapping created",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_id", accountID.String()),
		)
		return nil
	}

	existing, err := s.repo.Find(ctx, s.db, tenantID, accountID)
	if err != nil {
		return payerr.Persistence(op, "load customer mapping", err)
	}
	if existing == nil || existing.CustomerID == customerID {
		return nil
	}
	return payerr.Validation(op, "account is already mapped to a different gateway customer").
		With("account_id", accountID.String()).
		With("customer_id", existing.CustomerID)
}
