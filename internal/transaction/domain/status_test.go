package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapGatewayStatus(t *testing.T) {
	expected := map[string]Status{
		"authorization_expired":    StatusError,
		"authorized":               StatusProcessed,
		"authorizing":              StatusProcessed,
		"settlement_pending":       StatusPending,
		"settlement_confirmed":     StatusProcessed,
		"settlement_declined":      StatusError,
		"failed":                   StatusError,
		"gateway_rejected":         StatusError,
		"processor_declined":       StatusError,
		"settled":                  StatusProcessed,
		"settling":                 StatusProcessed,
		"submitted_for_settlement": StatusProcessed,
		"voided":                   StatusProcessed,
		"SETTLED":                  StatusProcessed,
		"unrecognized":             StatusUndefined,
		"":                         StatusUndefined,
	}
	for code, want := range expected {
		assert.Equal(t, want, MapGatewayStatus(code), code)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal("settled"))
	assert.True(t, IsTerminal("voided"))
	for _, code := range []string{"authorized", "settling", "settlement_pending", "failed", ""} {
		assert.False(t, IsTerminal(code), code)
	}
}

func TestStatusOf(t *testing.T) {
	failed := false
	cases := []struct {
		name string
		md   Metadata
		want Status
	}{
		{"override wins", Metadata{GatewayStatus: "settled", OverriddenStatus: "CANCELED"}, StatusCanceled},
		{"redirect without gateway status", Metadata{FromRedirect: true}, StatusPending},
		{"redirect with gateway status", Metadata{FromRedirect: true, GatewayStatus: "authorized"}, StatusProcessed},
		{"explicit failure without status", Metadata{GatewaySuccess: &failed}, StatusError},
		{"nothing known", Metadata{}, StatusUndefined},
		{"unknown override ignored", Metadata{OverriddenStatus: "LOST", GatewayStatus: "voided"}, StatusProcessed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(TransactionRecord{Metadata: tc.md}))
		})
	}
}

func TestNeedsRefresh(t *testing.T) {
	assert.True(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "settlement_pending"}}))
	assert.True(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "weird"}}))
	assert.True(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "authorized"}}))
	assert.False(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "settled"}}))
	assert.False(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "processor_declined"}}))
	assert.False(t, NeedsRefresh(TransactionRecord{Metadata: Metadata{GatewayStatus: "authorized", OverriddenStatus: "CANCELED"}}))
}
