package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/testutil"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

func setupRepo(t *testing.T) (*gorm.DB, domain.Repository) {
	t.Helper()
	db := testutil.OpenDB(t, &domain.TransactionRecord{}, &domain.RedirectRequest{})
	return db, Provide()
}

func newRecord(tenantID, paymentID uuid.UUID, typ domain.TransactionType, md domain.Metadata) *domain.TransactionRecord {
	currency := "USD"
	return &domain.TransactionRecord{
		TenantID:             tenantID,
		AccountID:            uuid.New(),
		PaymentID:            paymentID,
		TransactionID:        uuid.New(),
		TransactionType:      typ,
		GatewayTransactionID: "gw_" + uuid.NewString()[:8],
		Amount:               decimal.NewNullDecimal(decimal.RequireFromString("10.50")),
		Currency:             &currency,
		Metadata:             md,
	}
}

func TestAddResponseAssignsIncreasingSequence(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	tenantID, paymentID := uuid.New(), uuid.New()

	a := newRecord(tenantID, paymentID, domain.TransactionTypeAuthorize, domain.Metadata{GatewayStatus: "authorized"})
	b := newRecord(tenantID, paymentID, domain.TransactionTypeCapture, domain.Metadata{GatewayStatus: "submitted_for_settlement"})
	require.NoError(t, repo.AddResponse(ctx, db, a))
	require.NoError(t, repo.AddResponse(ctx, db, b))
	assert.Greater(t, b.RecordID, a.RecordID)

	rows, err := repo.ListByPayment(ctx, db, tenantID, paymentID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a.TransactionID, rows[0].TransactionID)
	assert.Equal(t, b.TransactionID, rows[1].TransactionID)
	assert.Equal(t, "authorized", rows[0].Metadata.GatewayStatus)
	assert.True(t, rows[0].Amount.Decimal.Equal(decimal.RequireFromString("10.5")))
	require.NotNil(t, rows[0].Currency)
	assert.Equal(t, "USD", *rows[0].Currency)
}

func TestAddResponseRejectsDuplicateTransaction(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	tenantID, paymentID := uuid.New(), uuid.New()

	a := newRecord(tenantID, paymentID, domain.TransactionTypeAuthorize, domain.Metadata{})
	require.NoError(t, repo.AddResponse(ctx, db, a))

	dup := newRecord(tenantID, paymentID, domain.TransactionTypeAuthorize, domain.Metadata{})
	dup.TransactionID = a.TransactionID
	assert.Error(t, repo.AddResponse(ctx, db, dup))

	otherTenant := newRecord(uuid.New(), paymentID, domain.TransactionTypeAuthorize, domain.Metadata{})
	otherTenant.TransactionID = a.TransactionID
	assert.NoError(t, repo.AddResponse(ctx, db, otherTenant))
}

func TestUpdateResponseMergesAndReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	tenantID := uuid.New()

	rec := newRecord(tenantID, uuid.New(), domain.TransactionTypePurchase, domain.Metadata{
		GatewayStatus: "settling",
		Extra:         map[string]any{"keep": "me", "override": "old"},
	})
	require.NoError(t, repo.AddResponse(ctx, db, rec))

	prev, err := repo.UpdateResponse(ctx, db, tenantID, rec.TransactionID, map[string]any{
		"override":                  "new",
		"added":                     "yes",
		domain.KeyRedirectCompleted: true,
	})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "old", prev.Metadata.Extra["override"])
	assert.False(t, prev.Metadata.RedirectCompleted)

	current, err := repo.FindLatestByTransaction(ctx, db, tenantID, rec.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "settling", current.Metadata.GatewayStatus)
	assert.Equal(t, "me", current.Metadata.Extra["keep"])
	assert.Equal(t, "new", current.Metadata.Extra["override"])
	assert.Equal(t, "yes", current.Metadata.Extra["added"])
	assert.True(t, current.Metadata.RedirectCompleted)
}

func TestUpdateResponseUnknownTransaction(t *testing.T) {
	db, repo := setupRepo(t)
	prev, err := repo.UpdateResponse(context.Background(), db, uuid.New(), uuid.New(), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestUpdateResponseRowOverridesStatus(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	tenantID := uuid.New()

	rec := newRecord(tenantID, uuid.New(), domain.TransactionTypeAuthorize, domain.Metadata{GatewayStatus: "settlement_pending"})
	require.NoError(t, repo.AddResponse(ctx, db, rec))

	updated, err := repo.UpdateResponseRow(ctx, db, *rec, map[string]any{
		domain.KeyOverriddenStatus: "CANCELED",
		domain.KeyMessage:          "expired",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, domain.StatusOf(*updated))
	assert.Equal(t, "settlement_pending", updated.Metadata.GatewayStatus)

	_, err = repo.UpdateResponseRow(ctx, db, domain.TransactionRecord{RecordID: 999, TenantID: tenantID}, nil)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestFindSuccessfulAuthorizationReturnsLatestInitial(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	tenantID, paymentID := uuid.New(), uuid.New()

	none, err := repo.FindSuccessfulAuthorization(ctx, db, tenantID, paymentID)
	require.NoError(t, err)
	assert.Nil(t, none)

	created := time.Now().UTC().Add(time.Hour)
	first := newRecord(tenantID, paymentID, domain.TransactionTypeAuthorize, domain.Metadata{})
	first.CreatedAt = created
	second := newRecord(tenantID, paymentID, domain.TransactionTypePurchase, domain.Metadata{})
	// an older timestamp must not change which row is latest
	second.CreatedAt = created.Add(-2 * time.Hour)
	capture := newRecord(tenantID, paymentID, domain.TransactionTypeCapture, domain.Metadata{})
	for _, rec := range []*domain.TransactionRecord{first, second, capture} {
		require.NoError(t, repo.AddResponse(ctx, db, rec))
	}

	got, err := repo.FindSuccessfulAuthorization(ctx, db, tenantID, paymentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.TransactionID, got.TransactionID)

	other, err := repo.FindSuccessfulAuthorization(ctx, db, uuid.New(), paymentID)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRedirectRequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, repo := setupRepo(t)
	node := testutil.Node(t)
	tenantID := uuid.New()

	req := &domain.RedirectRequest{
		ID:        node.Generate(),
		TenantID:  tenantID,
		AccountID: uuid.New(),
		PaymentID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Fields:    datatypes.JSONMap{"return_url": "https://example.com/done"},
	}
	require.NoError(t, repo.InsertRedirectRequest(ctx, db, req))

	got, err := repo.FindRedirectRequest(ctx, db, tenantID, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, req.AccountID, got.AccountID)
	assert.Equal(t, req.PaymentID, got.PaymentID)
	assert.False(t, got.TransactionID.Valid)
	assert.Equal(t, "https://example.com/done", got.Fields["return_url"])

	missing, err := repo.FindRedirectRequest(ctx, db, uuid.New(), req.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
