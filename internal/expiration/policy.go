// Package expiration decides when a pending authorization has been abandoned.
package expiration

import (
	"time"

	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

type Policy struct {
	clock    clock.Clock
	settings config.ExpirationSettings
}

func NewPolicy(clk clock.Clock, settings config.ExpirationSettings) Policy {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return Policy{clock: clk, settings: settings}
}

// Expired returns the latest record of a payment when it has outlived its
// window, or nil. Payments that already moved past authorize or purchase are
// never expired.
func (p Policy) Expired(records []domain.TransactionRecord) *domain.TransactionRecord {
	if len(records) == 0 {
		return nil
	}
	latest := 0
	for i, r := range records {
		switch r.TransactionType {
		case domain.TransactionTypeAuthorize, domain.TransactionTypePurchase:
		default:
			return nil
		}
		if r.RecordID > records[latest].RecordID {
			latest = i
		}
	}
	candidate := records[latest]
	if !p.IsExpired(candidate) {
		return nil
	}
	return &candidate
}

// IsExpired reports whether a single pending record is past its deadline.
func (p Policy) IsExpired(r domain.TransactionRecord) bool {
	if domain.StatusOf(r) != domain.StatusPending {
		return false
	}
	deadline := r.CreatedAt.Add(p.WindowFor(r))
	return p.clock.Now().After(deadline)
}

// WindowFor picks the allowed pending window for r: incomplete redirect
// attempts first, then the instrument type override, then the default.
func (p Policy) WindowFor(r domain.TransactionRecord) time.Duration {
	if r.Metadata.FromRedirect && !r.Metadata.RedirectCompleted {
		if p.settings.RedirectWithoutCompletion > 0 {
			return p.settings.RedirectWithoutCompletion
		}
		return config.DefaultRedirectExpiration
	}
	return p.settings.PendingFor(r.Metadata.InstrumentType)
}
