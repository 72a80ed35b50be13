package config

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePendingExpirationGlobal(t *testing.T) {
	exp := ParsePendingExpiration("P5D")
	assert.Equal(t, 5*24*time.Hour, exp.Pending)
	assert.Empty(t, exp.PerInstrument)
	assert.Equal(t, 5*24*time.Hour, exp.PendingFor("card"))
}

func TestParsePendingExpirationOverridesKeepDefaultGlobal(t *testing.T) {
	exp := ParsePendingExpiration("CARD#P1D|ach#P10D|bogus")
	assert.Equal(t, DefaultPendingExpiration, exp.Pending)
	assert.Equal(t, 24*time.Hour, exp.PendingFor("card"))
	assert.Equal(t, 10*24*time.Hour, exp.PendingFor("ACH"))
	assert.Equal(t, DefaultPendingExpiration, exp.PendingFor("paypal"))
}

func TestParsePendingExpirationInvalidFallsBack(t *testing.T) {
	exp := ParsePendingExpiration("soon")
	assert.Equal(t, DefaultPendingExpiration, exp.Pending)
}

func TestParsePendingExpirationIgnoresOverflowingPeriods(t *testing.T) {
	exp := ParsePendingExpiration("P300Y")
	assert.Equal(t, DefaultPendingExpiration, exp.Pending)

	exp = ParsePendingExpiration("ach#P300Y|card#P2D")
	assert.NotContains(t, exp.PerInstrument, "ach")
	assert.Equal(t, DefaultPendingExpiration, exp.PendingFor("ach"))
	assert.Equal(t, 48*time.Hour, exp.PendingFor("card"))
}

func TestPendingForSkipsNonPositiveWindows(t *testing.T) {
	exp := ExpirationSettings{PerInstrument: map[string]time.Duration{"ach": -time.Hour}}
	assert.Equal(t, DefaultPendingExpiration, exp.PendingFor("ach"))
}

func TestSettingsIgnoresOverflowingRedirectPeriod(t *testing.T) {
	settings, err := RawGatewayConfig{PendingRedirectExpirationPeriod: "P300Y"}.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultRedirectExpiration, settings.Expiration.RedirectWithoutCompletion)
}

func TestSettingsDefaults(t *testing.T) {
	settings, err := RawGatewayConfig{}.Settings()
	require.NoError(t, err)

	assert.Equal(t, "sandbox", settings.Environment)
	assert.Equal(t, 30*time.Second, settings.ConnectionTimeout)
	assert.Equal(t, 60*time.Second, settings.ReadTimeout)
	assert.Equal(t, time.Hour, settings.Expiration.RedirectWithoutCompletion)
	assert.Equal(t, DefaultPendingExpiration, settings.Expiration.Pending)
}

func TestSettingsTimeoutsAcceptMillisAndDurations(t *testing.T) {
	settings, err := RawGatewayConfig{ConnectionTimeout: "1500", ReadTimeout: "2s"}.Settings()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, settings.ConnectionTimeout)
	assert.Equal(t, 2*time.Second, settings.ReadTimeout)

	_, err = RawGatewayConfig{ReadTimeout: "forever"}.Settings()
	assert.Error(t, err)
}

func TestTruncateDescriptor(t *testing.T) {
	assert.Equal(t, "short", TruncateDescriptor("short"))
	assert.Equal(t, "exactly-twenty-two-ch!", TruncateDescriptor("exactly-twenty-two-ch!"))
	got := TruncateDescriptor("this descriptor is far too long")
	assert.Len(t, got, 22)
	assert.Equal(t, "this descriptor is ...", got)
}

func TestTruncateDescriptorKeepsMultiByteRunesWhole(t *testing.T) {
	assert.Equal(t, "Café Müller", TruncateDescriptor("Café Müller"))

	got := TruncateDescriptor("Cafés Müller Großhandel GmbH")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 22, utf8.RuneCountInString(got))
	assert.Equal(t, "Cafés Müller Großha...", got)
}

func TestOverlayAppliesNonEmptyValues(t *testing.T) {
	base := RawGatewayConfig{MerchantID: "global", PublicKey: "pub", PrivateKey: "priv"}
	out := base.Overlay(map[string]any{
		"merchant_id":        "tenant",
		"public_key":         "",
		"CONNECTION_TIMEOUT": 1000,
	})
	assert.Equal(t, "tenant", out.MerchantID)
	assert.Equal(t, "pub", out.PublicKey)
	assert.Equal(t, "1000", out.ConnectionTimeout)
	assert.Equal(t, "global", base.MerchantID)
}

func TestValidate(t *testing.T) {
	settings, err := RawGatewayConfig{MerchantID: "m", PublicKey: "p", PrivateKey: "k"}.Settings()
	require.NoError(t, err)
	assert.NoError(t, settings.Validate())

	settings.Environment = "moon"
	assert.Error(t, settings.Validate())

	settings.MerchantID = ""
	assert.Error(t, settings.Validate())
}
