package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRefund(t *testing.T) {
	ten := decimal.RequireFromString("10.00")
	four := decimal.RequireFromString("4")

	action, err := ResolveRefund(Transaction{Status: StatusSettled, Amount: ten}, &four)
	require.NoError(t, err)
	assert.Equal(t, RefundActionRefund, action)

	action, err = ResolveRefund(Transaction{Status: StatusSettling, Amount: ten}, &ten)
	require.NoError(t, err)
	assert.Equal(t, RefundActionRefund, action)

	full := decimal.RequireFromString("10")
	action, err = ResolveRefund(Transaction{Status: StatusSubmittedForSettlement, Amount: ten}, &full)
	require.NoError(t, err)
	assert.Equal(t, RefundActionVoid, action)

	action, err = ResolveRefund(Transaction{Status: StatusAuthorized, Amount: ten}, nil)
	require.NoError(t, err)
	assert.Equal(t, RefundActionVoid, action)

	_, err = ResolveRefund(Transaction{Status: StatusAuthorized, Amount: ten}, &four)
	assert.ErrorIs(t, err, ErrPartialRefundUnsettled)
}

func TestParseInstrumentType(t *testing.T) {
	for input, want := range map[string]InstrumentType{
		"card":            InstrumentCard,
		" CARD ":          InstrumentCard,
		"credit_card":     InstrumentCard,
		"ACH":             InstrumentACH,
		"us_bank_account": InstrumentACH,
		"PayPal":          InstrumentPayPal,
	} {
		got, err := ParseInstrumentType(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseInstrumentType("bitcoin")
	assert.ErrorIs(t, err, ErrInvalidInstrumentType)
}
