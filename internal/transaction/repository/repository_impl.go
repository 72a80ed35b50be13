package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

const responseColumns = `record_id, tenant_id, account_id, payment_id, transaction_id, transaction_type,
	gateway_transaction_id, amount, currency, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) AddResponse(ctx context.Context, db *gorm.DB, record *domain.TransactionRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) UpdateResponse(ctx context.Context, db *gorm.DB, tenantID, transactionID uuid.UUID, props map[string]any) (*domain.TransactionRecord, error) {
	var previous *domain.TransactionRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.TransactionRecord
		err := lockForUpdate(tx).
			Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
			Order("record_id DESC").
			Limit(1).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		previous = &row
		if len(props) == 0 {
			return nil
		}
		return writeMetadata(tx, row.RecordID, row.Metadata.Merge(props))
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (r *repo) UpdateResponseRow(ctx context.Context, db *gorm.DB, row domain.TransactionRecord, overrides map[string]any) (*domain.TransactionRecord, error) {
	var updated domain.TransactionRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.TransactionRecord
		err := lockForUpdate(tx).
			Where("record_id = ? AND tenant_id = ?", row.RecordID, row.TenantID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		current.Metadata = current.Metadata.Merge(overrides)
		if err := writeMetadata(tx, current.RecordID, current.Metadata); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *repo) FindSuccessfulAuthorization(ctx context.Context, db *gorm.DB, tenantID, paymentID uuid.UUID) (*domain.TransactionRecord, error) {
	var items []domain.TransactionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+responseColumns+`
		 FROM gateway_responses
		 WHERE tenant_id = ? AND payment_id = ? AND transaction_type IN (?, ?)
		 ORDER BY record_id DESC
		 LIMIT 1`,
		tenantID,
		paymentID,
		domain.TransactionTypeAuthorize,
		domain.TransactionTypePurchase,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return first(items), nil
}

func (r *repo) FindLatestByTransaction(ctx context.Context, db *gorm.DB, tenantID, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	var items []domain.TransactionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+responseColumns+`
		 FROM gateway_responses
		 WHERE tenant_id = ? AND transaction_id = ?
		 ORDER BY record_id DESC
		 LIMIT 1`,
		tenantID,
		transactionID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return first(items), nil
}

func (r *repo) ListByPayment(ctx context.Context, db *gorm.DB, tenantID, paymentID uuid.UUID) ([]domain.TransactionRecord, error) {
	var items []domain.TransactionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+responseColumns+`
		 FROM gateway_responses
		 WHERE tenant_id = ? AND payment_id = ?
		 ORDER BY record_id ASC`,
		tenantID,
		paymentID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertRedirectRequest(ctx context.Context, db *gorm.DB, req *domain.RedirectRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO hpp_requests (
			id, tenant_id, account_id, payment_id, transaction_id, fields, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.TenantID,
		req.AccountID,
		req.PaymentID,
		req.TransactionID,
		req.Fields,
		req.CreatedAt,
	).Error
}

func (r *repo) FindRedirectRequest(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, id snowflake.ID) (*domain.RedirectRequest, error) {
	var items []domain.RedirectRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, account_id, payment_id, transaction_id, fields, created_at
		 FROM hpp_requests
		 WHERE tenant_id = ? AND id = ?
		 LIMIT 1`,
		tenantID,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func writeMetadata(tx *gorm.DB, recordID int64, metadata domain.Metadata) error {
	return tx.Exec(
		`UPDATE gateway_responses
		 SET metadata = ?, updated_at = ?
		 WHERE record_id = ?`,
		metadata,
		time.Now().UTC(),
		recordID,
	).Error
}

// lockForUpdate adds SELECT ... FOR UPDATE on engines that support it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func first(items []domain.TransactionRecord) *domain.TransactionRecord {
	if len(items) == 0 {
		return nil
	}
	return &items[0]
}
