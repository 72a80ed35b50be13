package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
)

// Sync treats the gateway list as the source of truth: unknown tokens are
// registered, known ones refreshed, and local rows missing upstream are
// soft-deleted.
func (s *Service) Sync(ctx context.Context, tenantID, accountID uuid.UUID, methods []gateway.Method) (domain.SyncResult, error) {
	const op = "paymentmethod.sync"
	var result domain.SyncResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		local, err := s.repo.ListActive(ctx, tx, tenantID, accountID)
		if err != nil {
			return err
		}
		byToken := make(map[string]domain.PaymentMethodRecord, len(local))
		for _, r := range local {
			byToken[r.GatewayToken] = r
		}

		seen := make(map[string]struct{}, len(methods))
		now := s.clock.Now()
		for _, m := range methods {
			token := strings.TrimSpace(m.Token)
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			m.Token = token

			existing, ok := byToken[token]
			if !ok {
				paymentMethodID, err := s.registrar.Register(ctx, tenantID, accountID, m)
				if err != nil {
					return err
				}
				if _, err := s.upsertMirror(ctx, tx, tenantID, accountID, paymentMethodID, m, nil); err != nil {
					return err
				}
				s.log.Info("created local payment method from gateway",
					zap.String("tenant_id", tenantID.String()),
					zap.String("token", token),
				)
				result.Created++
				continue
			}
			delete(byToken, token)

			existing.Metadata = mergeMetadata(existing.Metadata, methodMetadata(m))
			existing.IsDefault = m.IsDefault
			if m.CustomerID != "" {
				existing.CustomerID = m.CustomerID
			}
			if m.InstrumentType != "" {
				existing.InstrumentType = string(m.InstrumentType)
			}
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, &existing); err != nil {
				return err
			}
			result.Updated++
		}

		for token, stale := range byToken {
			if _, err := s.repo.SoftDelete(ctx, tx, stale.ID, now); err != nil {
				return err
			}
			s.log.Info("deactivating local payment method missing in gateway",
				zap.String("tenant_id", tenantID.String()),
				zap.String("token", token),
			)
			result.Deleted++
		}
		return nil
	})
	if err != nil {
		return domain.SyncResult{}, payerr.Wrapf(payerr.KindPersistence, op, err, "sync payment methods for account %s", accountID)
	}
	return result, nil
}
