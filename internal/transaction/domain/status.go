package domain

import (
	"strings"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

// Status is the canonical status of a transaction.
type Status string

const (
	StatusProcessed Status = "PROCESSED"
	StatusPending   Status = "PENDING"
	StatusError     Status = "ERROR"
	StatusUndefined Status = "UNDEFINED"
	// StatusCanceled is only produced by an administrative override.
	StatusCanceled Status = "CANCELED"
)

// MapGatewayStatus maps a gateway status code to a canonical status.
// Unknown codes map to StatusUndefined.
func MapGatewayStatus(code string) Status {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case gateway.StatusSettled,
		gateway.StatusAuthorizing,
		gateway.StatusAuthorized,
		gateway.StatusSettling,
		gateway.StatusSettlementConfirmed,
		gateway.StatusSubmittedForSettlement,
		gateway.StatusVoided:
		return StatusProcessed
	case gateway.StatusSettlementPending:
		return StatusPending
	case gateway.StatusFailed,
		gateway.StatusSettlementDeclined,
		gateway.StatusAuthorizationExpired,
		gateway.StatusProcessorDeclined,
		gateway.StatusGatewayRejected:
		return StatusError
	default:
		return StatusUndefined
	}
}

// IsTerminal reports whether the gateway status can no longer change.
func IsTerminal(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case gateway.StatusSettled, gateway.StatusVoided:
		return true
	}
	return false
}

func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(value))); s {
	case StatusProcessed, StatusPending, StatusError, StatusUndefined, StatusCanceled:
		return s, true
	}
	return "", false
}

// StatusOf derives the canonical status of a stored record.
func StatusOf(r TransactionRecord) Status {
	md := r.Metadata
	if s, ok := ParseStatus(md.OverriddenStatus); ok {
		return s
	}
	if md.GatewayStatus == "" {
		if md.FromRedirect {
			return StatusPending
		}
		if md.GatewaySuccess != nil && !*md.GatewaySuccess {
			return StatusError
		}
		return StatusUndefined
	}
	return MapGatewayStatus(md.GatewayStatus)
}

// NeedsRefresh reports whether the reconciler should poll the gateway for r.
func NeedsRefresh(r TransactionRecord) bool {
	switch StatusOf(r) {
	case StatusPending, StatusUndefined:
		return true
	case StatusProcessed:
		return !IsTerminal(r.Metadata.GatewayStatus)
	}
	return false
}
