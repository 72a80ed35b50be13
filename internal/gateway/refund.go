package gateway

import "github.com/shopspring/decimal"

type RefundAction int

const (
	RefundActionRefund RefundAction = iota + 1
	RefundActionVoid
)

// ResolveRefund decides how a refund request against tx must be executed.
// Settling or settled transactions are refunded. Anything earlier can only be
// voided, which is allowed when the full amount is requested.
func ResolveRefund(tx Transaction, amount *decimal.Decimal) (RefundAction, error) {
	switch tx.Status {
	case StatusSettled, StatusSettling:
		return RefundActionRefund, nil
	}
	if amount == nil || amount.Equal(tx.Amount) {
		return RefundActionVoid, nil
	}
	return 0, ErrPartialRefundUnsettled
}
