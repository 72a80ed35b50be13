package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/repository"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/testutil"
)

func newTestService(t *testing.T, secret string, factory gateway.Factory) domain.Service {
	t.Helper()
	db := testutil.OpenDB(t, &domain.TenantConfig{})
	holder := config.NewStaticGatewayConfigHolder(config.RawGatewayConfig{
		Environment: "sandbox",
		MerchantID:  "global-merchant",
		PublicKey:   "global-pub",
		PrivateKey:  "global-priv",
	})
	if factory == nil {
		factory = gateway.FactoryFunc(func(config.GatewaySettings) (gateway.Client, error) { return nil, nil })
	}
	svc, err := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   testutil.Node(t),
		Repo:    repository.Provide(),
		Cfg:     config.Config{GatewayConfigSecret: secret},
		Holder:  holder,
		Factory: factory,
	})
	require.NoError(t, err)
	return svc
}

func TestResolveWithoutOverrideUsesGlobalDefaults(t *testing.T) {
	svc := newTestService(t, "secret", nil)
	settings, err := svc.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "global-merchant", settings.MerchantID)
	assert.Equal(t, config.DefaultPendingExpiration, settings.Expiration.Pending)
}

func TestUpsertConfigOverlaysTenantValues(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, "secret", nil)
	tenantID := uuid.New()

	summary, err := svc.UpsertConfig(ctx, tenantID, map[string]any{
		"merchant_id":                       " tenant-merchant ",
		"private_key":                       "tenant-priv",
		"pending_payment_expiration_period": "ach#P7D",
		"public_key":                        "",
	})
	require.NoError(t, err)
	assert.True(t, summary.IsActive)
	assert.Equal(t, []string{"merchant_id", "pending_payment_expiration_period", "private_key"}, summary.Keys)

	settings, err := svc.Resolve(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-merchant", settings.MerchantID)
	assert.Equal(t, "global-pub", settings.PublicKey)
	assert.Equal(t, "tenant-priv", settings.PrivateKey)
	assert.Equal(t, 7*24*60*60, int(settings.Expiration.PendingFor("ach").Seconds()))

	_, err = svc.SetActive(ctx, tenantID, false)
	require.NoError(t, err)
	settings, err = svc.Resolve(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "global-merchant", settings.MerchantID)
}

func TestUpsertConfigRejectsUnknownKeysAndBadValues(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, "secret", nil)

	_, err := svc.UpsertConfig(ctx, uuid.New(), map[string]any{"webhook_secret": "x"})
	assert.Equal(t, payerr.KindValidation, payerr.KindOf(err))

	_, err = svc.UpsertConfig(ctx, uuid.New(), map[string]any{"read_timeout": "whenever"})
	assert.Equal(t, payerr.KindValidation, payerr.KindOf(err))

	_, err = svc.UpsertConfig(ctx, uuid.New(), map[string]any{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestUpsertConfigRequiresSecret(t *testing.T) {
	svc := newTestService(t, "", nil)
	_, err := svc.UpsertConfig(context.Background(), uuid.New(), map[string]any{"merchant_id": "m"})
	assert.ErrorIs(t, err, domain.ErrEncryptionKeyMissing)
}

func TestSetActiveUnknownTenant(t *testing.T) {
	svc := newTestService(t, "secret", nil)
	_, err := svc.SetActive(context.Background(), uuid.New(), true)
	assert.Equal(t, payerr.KindNotFound, payerr.KindOf(err))
}

func TestClientForPassesResolvedSettings(t *testing.T) {
	var seen config.GatewaySettings
	svc := newTestService(t, "secret", gateway.FactoryFunc(func(s config.GatewaySettings) (gateway.Client, error) {
		seen = s
		return nil, nil
	}))

	_, settings, err := svc.ClientFor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "global-merchant", seen.MerchantID)
	assert.Equal(t, seen, settings)
}

func TestEncryptionRoundTrip(t *testing.T) {
	key, err := deriveKey("secret")
	require.NoError(t, err)
	require.Len(t, key, 32)

	sealed, err := encryptConfig(key, map[string]any{"merchant_id": "m"})
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), `"m"`)

	values, err := decryptConfig(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "m", values["merchant_id"])

	other, err := deriveKey("other")
	require.NoError(t, err)
	_, err = decryptConfig(other, sealed)
	assert.Error(t, err)
}
