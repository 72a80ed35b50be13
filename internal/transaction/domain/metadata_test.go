package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataMergePreservesUntouchedKeys(t *testing.T) {
	ok := true
	md := Metadata{
		GatewayStatus:  "authorized",
		GatewaySuccess: &ok,
		FromRedirect:   true,
		Extra:          map[string]any{"a": "1", "b": "2"},
	}

	merged := md.Merge(map[string]any{
		"b":                  "3",
		"c":                  "4",
		KeyRedirectCompleted: "true",
		KeyGatewayStatus:     "settling",
	})

	assert.Equal(t, "settling", merged.GatewayStatus)
	assert.True(t, merged.FromRedirect)
	assert.True(t, merged.RedirectCompleted)
	require.NotNil(t, merged.GatewaySuccess)
	assert.True(t, *merged.GatewaySuccess)
	assert.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, merged.Extra)

	// the receiver is not mutated
	assert.Equal(t, "2", md.Extra["b"])
	assert.Equal(t, "authorized", md.GatewayStatus)
}

func TestMetadataPersistedForm(t *testing.T) {
	md := MetadataFromMap(map[string]any{
		KeyGatewayStatus:    "processor_declined",
		KeyGatewaySuccess:   "false",
		KeyErrorCode:        "2000",
		KeyFromRedirect:     true,
		KeyOverriddenStatus: "canceled",
		"custom":            "x",
	})
	assert.Equal(t, "CANCELED", md.OverriddenStatus)

	value, err := md.Value()
	require.NoError(t, err)

	var scanned Metadata
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, md.ToMap(), scanned.ToMap())

	var empty Metadata
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty.ToMap())
	assert.Error(t, empty.Scan(42))
}

func TestNewViewTruncatesErrorCode(t *testing.T) {
	rec := TransactionRecord{
		TransactionType:      TransactionTypeAuthorize,
		GatewayTransactionID: "gw1",
		Metadata: Metadata{
			GatewayStatus:     "gateway_rejected",
			ErrorCode:         "0123456789012345678901234567890123456789",
			ErrorMessage:      "cvv",
			SecondReferenceID: "rrn",
		},
	}
	view := NewView(rec)
	assert.Equal(t, StatusError, view.Status)
	assert.Len(t, view.GatewayErrorCode, 32)
	assert.Equal(t, "gw1", view.FirstReferenceID)
	assert.Equal(t, "rrn", view.SecondReferenceID)
	assert.Nil(t, view.Amount)
	assert.Equal(t, "gateway_rejected", view.Properties[KeyGatewayStatus])
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", got)

	for _, bad := range []string{"", "US", "US1", "EURO"} {
		_, err := NormalizeCurrency(bad)
		assert.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}
