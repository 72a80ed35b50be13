// Package gatewaytest provides an in-memory gateway for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

// Fake records every call and keeps transactions and vaulted methods in memory.
type Fake struct {
	mu sync.Mutex

	calls        map[string]int
	transactions map[string]*gateway.Transaction
	methods      map[string]gateway.Method
	seq          int

	// Err, when set, fails every call.
	Err error
	// DeclineNext makes the next sale or credit a processor decline.
	DeclineNext bool
}

func New() *Fake {
	return &Fake{
		calls:        map[string]int{},
		transactions: map[string]*gateway.Transaction{},
		methods:      map[string]gateway.Method{},
	}
}

// Provider returns a ClientProvider that always hands out f.
func (f *Fake) Provider(settings config.GatewaySettings) gateway.ClientProvider {
	return provider{client: f, settings: settings}
}

type provider struct {
	client   gateway.Client
	settings config.GatewaySettings
}

func (p provider) ClientFor(context.Context, uuid.UUID) (gateway.Client, config.GatewaySettings, error) {
	return p.client, p.settings, nil
}

// Calls reports how often the named method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Vault stores a payment method as if it had been created in the gateway.
func (f *Fake) Vault(m gateway.Method) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[m.Token] = m
}

func (f *Fake) HasMethod(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.methods[token]
	return ok
}

// SetStatus moves a transaction, e.g. to simulate settlement.
func (f *Fake) SetStatus(transactionID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.transactions[transactionID]; ok {
		tx.Status = status
	}
}

func (f *Fake) Transaction(transactionID string) (gateway.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[transactionID]
	if !ok {
		return gateway.Transaction{}, false
	}
	return *tx, true
}

func (f *Fake) enter(method string) error {
	f.calls[method]++
	return f.Err
}

func (f *Fake) newTransaction(txType, status string, amount decimal.Decimal, customerID string) *gateway.Transaction {
	f.seq++
	tx := &gateway.Transaction{
		ID:                       fmt.Sprintf("bt_%d", f.seq),
		Status:                   status,
		Type:                     txType,
		Amount:                   amount,
		CurrencyISOCode:          "USD",
		CustomerID:               customerID,
		PaymentInstrumentType:    "credit_card",
		RetrievalReferenceNumber: fmt.Sprintf("rrn_%d", f.seq),
		ProcessorResponseCode:    "1000",
		ProcessorResponseText:    "Approved",
	}
	f.transactions[tx.ID] = tx
	return tx
}

func (f *Fake) result(tx *gateway.Transaction) *gateway.TxResult {
	out := *tx
	return &gateway.TxResult{Success: true, Transaction: &out}
}

func (f *Fake) decline(tx *gateway.Transaction) *gateway.TxResult {
	f.DeclineNext = false
	tx.Status = gateway.StatusProcessorDeclined
	tx.ProcessorResponseCode = "2000"
	tx.ProcessorResponseText = "Do Not Honor"
	out := *tx
	return &gateway.TxResult{Success: false, Message: "Do Not Honor", Transaction: &out}
}

func (f *Fake) Sale(_ context.Context, amount decimal.Decimal, customerID, _ string, submitForSettlement bool) (*gateway.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Sale"); err != nil {
		return nil, err
	}
	status := gateway.StatusAuthorized
	if submitForSettlement {
		status = gateway.StatusSubmittedForSettlement
	}
	tx := f.newTransaction("sale", status, amount, customerID)
	if f.DeclineNext {
		return f.decline(tx), nil
	}
	return f.result(tx), nil
}

func (f *Fake) Credit(_ context.Context, amount decimal.Decimal, customerID, _ string) (*gateway.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Credit"); err != nil {
		return nil, err
	}
	tx := f.newTransaction("credit", gateway.StatusSubmittedForSettlement, amount, customerID)
	if f.DeclineNext {
		return f.decline(tx), nil
	}
	return f.result(tx), nil
}

func (f *Fake) SubmitForSettlement(_ context.Context, transactionID string, amount *decimal.Decimal) (*gateway.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SubmitForSettlement"); err != nil {
		return nil, err
	}
	tx, err := f.find(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != gateway.StatusAuthorized {
		return &gateway.TxResult{Success: false, Message: "Cannot submit for settlement unless status is authorized."}, nil
	}
	if amount != nil {
		tx.Amount = *amount
	}
	tx.Status = gateway.StatusSubmittedForSettlement
	return f.result(tx), nil
}

func (f *Fake) Void(_ context.Context, transactionID string) (*gateway.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Void"); err != nil {
		return nil, err
	}
	return f.void(transactionID)
}

func (f *Fake) void(transactionID string) (*gateway.TxResult, error) {
	tx, err := f.find(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == gateway.StatusVoided {
		return &gateway.TxResult{Success: false, Message: "Transaction can only be voided if status is authorized, submitted_for_settlement, or - for PayPal - settlement_pending."}, nil
	}
	tx.Status = gateway.StatusVoided
	return f.result(tx), nil
}

func (f *Fake) Refund(_ context.Context, transactionID string, amount *decimal.Decimal) (*gateway.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Refund"); err != nil {
		return nil, err
	}
	tx, err := f.find(transactionID)
	if err != nil {
		return nil, err
	}
	action, err := gateway.ResolveRefund(*tx, amount)
	if err != nil {
		return nil, err
	}
	if action == gateway.RefundActionVoid {
		f.calls["Refund.void"]++
		return f.void(transactionID)
	}
	value := tx.Amount
	if amount != nil {
		value = *amount
	}
	f.calls["Refund.refund"]++
	return f.result(f.newTransaction("credit", gateway.StatusSubmittedForSettlement, value, tx.CustomerID)), nil
}

func (f *Fake) GetTransactionStatus(_ context.Context, transactionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetTransactionStatus"); err != nil {
		return "", err
	}
	tx, err := f.find(transactionID)
	if err != nil {
		return "", err
	}
	return tx.Status, nil
}

func (f *Fake) CreatePaymentMethod(_ context.Context, customerID, token, nonce string, instrument gateway.InstrumentType) (*gateway.MethodResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePaymentMethod"); err != nil {
		return nil, err
	}
	if nonce == "" {
		return &gateway.MethodResult{Success: false, Message: "Payment method nonce is required."}, nil
	}
	m := gateway.Method{
		Token:          token,
		CustomerID:     customerID,
		InstrumentType: instrument,
		Details:        map[string]string{"last_4": "1111"},
	}
	f.methods[token] = m
	return &gateway.MethodResult{Success: true, Method: &m}, nil
}

func (f *Fake) UpdatePaymentMethod(_ context.Context, oldToken, newToken, newCustomerID string) (*gateway.MethodResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdatePaymentMethod"); err != nil {
		return nil, err
	}
	m, ok := f.methods[oldToken]
	if !ok {
		return &gateway.MethodResult{Success: false, Message: "Payment method not found."}, nil
	}
	delete(f.methods, oldToken)
	m.Token = newToken
	if newCustomerID != "" {
		m.CustomerID = newCustomerID
	}
	f.methods[newToken] = m
	return &gateway.MethodResult{Success: true, Method: &m}, nil
}

func (f *Fake) ListPaymentMethods(_ context.Context, customerID string) ([]gateway.Method, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPaymentMethods"); err != nil {
		return nil, err
	}
	var out []gateway.Method
	for _, m := range f.methods {
		if m.CustomerID == customerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) DeletePaymentMethod(_ context.Context, token string) (*gateway.MethodResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeletePaymentMethod"); err != nil {
		return nil, err
	}
	if _, ok := f.methods[token]; !ok {
		return nil, &gateway.Error{Op: "delete_payment_method", Err: gateway.ErrNotFound}
	}
	delete(f.methods, token)
	return &gateway.MethodResult{Success: true}, nil
}

func (f *Fake) CreateNonceFromToken(_ context.Context, token string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateNonceFromToken"); err != nil {
		return "", false, err
	}
	if _, ok := f.methods[token]; !ok {
		return "", false, nil
	}
	return "nonce-" + token, true, nil
}

func (f *Fake) find(transactionID string) (*gateway.Transaction, error) {
	tx, ok := f.transactions[transactionID]
	if !ok {
		return nil, &gateway.Error{Op: "find_transaction", Err: gateway.ErrNotFound}
	}
	return tx, nil
}

var _ gateway.Client = (*Fake)(nil)

// ErrUnavailable is a convenient connectivity failure for tests.
var ErrUnavailable = &gateway.Error{Op: "connect", Err: errors.New("connection refused")}
