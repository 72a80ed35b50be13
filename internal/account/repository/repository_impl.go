package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/account/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID, accountID uuid.UUID) (*domain.CustomerMapping, error) {
	var items []domain.CustomerMapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, account_id, customer_id, created_at, updated_at
		 FROM account_customer_mappings
		 WHERE tenant_id = ? AND account_id = ?
		 LIMIT 1`,
		tenantID,
		accountID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, mapping *domain.CustomerMapping) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO account_customer_mappings (
			id, tenant_id, account_id, customer_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, account_id) DO NOTHING`,
		mapping.ID,
		mapping.TenantID,
		mapping.AccountID,
		mapping.CustomerID,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
