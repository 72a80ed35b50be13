package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
)

const selectColumns = `SELECT id, tenant_id, account_id, payment_method_id, gateway_token, customer_id,
	instrument_type, is_default, is_deleted, metadata, created_at, updated_at
	FROM payment_methods`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentMethodRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByPaymentMethodID(ctx context.Context, db *gorm.DB, tenantID, paymentMethodID uuid.UUID) (*domain.PaymentMethodRecord, error) {
	return r.findOne(ctx, db,
		selectColumns+` WHERE tenant_id = ? AND payment_method_id = ? AND is_deleted = ?
		 ORDER BY id DESC LIMIT 1`,
		tenantID, paymentMethodID, false,
	)
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, token string) (*domain.PaymentMethodRecord, error) {
	return r.findOne(ctx, db,
		selectColumns+` WHERE tenant_id = ? AND gateway_token = ? AND is_deleted = ?
		 LIMIT 1`,
		tenantID, token, false,
	)
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, tenantID, accountID uuid.UUID) ([]domain.PaymentMethodRecord, error) {
	var items []domain.PaymentMethodRecord
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE tenant_id = ? AND account_id = ? AND is_deleted = ?
		 ORDER BY id ASC`,
		tenantID, accountID, false,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.PaymentMethodRecord) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentMethodRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"customer_id":     record.CustomerID,
			"instrument_type": record.InstrumentType,
			"is_default":      record.IsDefault,
			"metadata":        record.Metadata,
			"updated_at":      record.UpdatedAt,
		}).Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_methods SET is_deleted = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = ?`,
		true, updatedAt, id, false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.PaymentMethodRecord, error) {
	var items []domain.PaymentMethodRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}
