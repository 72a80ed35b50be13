// Package braintree binds the gateway contract to the Braintree XML API.
package braintree

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

const (
	apiVersion      = "6"
	maxResponseSize = 4 << 20
)

// Client talks to one merchant account.
type Client struct {
	http       *http.Client
	baseURL    string
	merchantID string
	publicKey  string
	privateKey string
	log        *zap.Logger
	tracer     trace.Tracer
}

var _ gateway.Client = (*Client)(nil)

func (c *Client) Sale(ctx context.Context, amount decimal.Decimal, customerID, nonce string, submitForSettlement bool) (*gateway.TxResult, error) {
	req := transactionRequest{
		Type:               "sale",
		Amount:             amount.StringFixed(2),
		CustomerID:         customerID,
		PaymentMethodNonce: nonce,
		Options:            &transactionOptions{SubmitForSettlement: submitForSettlement},
	}
	return c.transactionCall(ctx, "sale", http.MethodPost, "/transactions", req)
}

func (c *Client) Credit(ctx context.Context, amount decimal.Decimal, customerID, nonce string) (*gateway.TxResult, error) {
	req := transactionRequest{
		Type:               "credit",
		Amount:             amount.StringFixed(2),
		CustomerID:         customerID,
		PaymentMethodNonce: nonce,
	}
	return c.transactionCall(ctx, "credit", http.MethodPost, "/transactions", req)
}

func (c *Client) SubmitForSettlement(ctx context.Context, transactionID string, amount *decimal.Decimal) (*gateway.TxResult, error) {
	var body any
	if amount != nil {
		body = transactionRequest{Amount: amount.StringFixed(2)}
	}
	return c.transactionCall(ctx, "submit_for_settlement", http.MethodPut, "/transactions/"+url.PathEscape(transactionID)+"/submit_for_settlement", body)
}

func (c *Client) Void(ctx context.Context, transactionID string) (*gateway.TxResult, error) {
	return c.transactionCall(ctx, "void", http.MethodPut, "/transactions/"+url.PathEscape(transactionID)+"/void", nil)
}

func (c *Client) Refund(ctx context.Context, transactionID string, amount *decimal.Decimal) (*gateway.TxResult, error) {
	current, err := c.findTransaction(ctx, "refund", transactionID)
	if err != nil {
		return nil, err
	}

	action, err := gateway.ResolveRefund(*current, amount)
	if err != nil {
		return nil, &gateway.Error{
			Op:      "refund",
			Message: "cannot refund transaction " + transactionID + " that has not begun settlement with a partial amount",
			Err:     err,
		}
	}
	if action == gateway.RefundActionVoid {
		c.log.Debug("voiding unsettled transaction instead of refund", zap.String("transaction_id", transactionID))
		return c.Void(ctx, transactionID)
	}

	var body any
	if amount != nil {
		body = transactionRequest{Amount: amount.StringFixed(2)}
	}
	return c.transactionCall(ctx, "refund", http.MethodPost, "/transactions/"+url.PathEscape(transactionID)+"/refund", body)
}

func (c *Client) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	tx, err := c.findTransaction(ctx, "find_transaction", transactionID)
	if err != nil {
		return "", err
	}
	return tx.Status, nil
}

func (c *Client) CreatePaymentMethod(ctx context.Context, customerID, token, nonce string, instrument gateway.InstrumentType) (*gateway.MethodResult, error) {
	req := paymentMethodRequest{
		CustomerID:         customerID,
		Token:              token,
		PaymentMethodNonce: nonce,
	}
	switch instrument {
	case gateway.InstrumentCard:
		req.Options = &paymentMethodOptions{VerifyCard: true}
	case gateway.InstrumentACH:
		req.Options = &paymentMethodOptions{USBankAccountVerificationMethod: "network_check"}
	case gateway.InstrumentPayPal:
	default:
		return nil, &gateway.Error{Op: "create_payment_method", Err: gateway.ErrInvalidInstrumentType}
	}

	result, raw, err := c.methodCall(ctx, "create_payment_method", http.MethodPost, "/payment_methods", req)
	if err != nil {
		return nil, err
	}
	if instrument == gateway.InstrumentACH && result.Success && raw != nil && !raw.Verified {
		code := ""
		if len(raw.Verifications) > 0 {
			code = raw.Verifications[0].ProcessorResponseCode
		}
		return nil, &gateway.Error{
			Op:      "create_payment_method",
			Message: "could not verify US bank account, processor response code: " + code,
		}
	}
	return result, nil
}

func (c *Client) UpdatePaymentMethod(ctx context.Context, oldToken, newToken, newCustomerID string) (*gateway.MethodResult, error) {
	req := paymentMethodRequest{CustomerID: newCustomerID, Token: newToken}
	result, _, err := c.methodCall(ctx, "update_payment_method", http.MethodPut, "/payment_methods/any/"+url.PathEscape(oldToken), req)
	return result, err
}

func (c *Client) DeletePaymentMethod(ctx context.Context, token string) (*gateway.MethodResult, error) {
	status, body, err := c.do(ctx, "delete_payment_method", http.MethodDelete, "/payment_methods/any/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity {
		return &gateway.MethodResult{Success: false, Message: apiErrorMessage(body)}, nil
	}
	return &gateway.MethodResult{Success: true, Method: &gateway.Method{Token: token}}, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]gateway.Method, error) {
	_, body, err := c.do(ctx, "find_customer", http.MethodGet, "/customers/"+url.PathEscape(customerID), nil)
	if err != nil {
		return nil, err
	}
	var customer customerXML
	if err := xml.Unmarshal(body, &customer); err != nil {
		return nil, &gateway.Error{Op: "find_customer", Message: "malformed customer response", Err: err}
	}

	methods := make([]gateway.Method, 0, len(customer.CreditCards)+len(customer.USBankAccounts)+len(customer.PayPalAccounts))
	for _, group := range [][]paymentMethodXML{customer.CreditCards, customer.USBankAccounts, customer.PayPalAccounts} {
		for _, pm := range group {
			m := pm.toDomain()
			if m.CustomerID == "" {
				m.CustomerID = customer.ID
			}
			methods = append(methods, m)
		}
	}
	return methods, nil
}

func (c *Client) CreateNonceFromToken(ctx context.Context, token string) (string, bool, error) {
	_, body, err := c.do(ctx, "create_nonce", http.MethodPost, "/payment_methods/"+url.PathEscape(token)+"/nonces", nil)
	if errors.Is(err, gateway.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var nonce nonceXML
	if err := xml.Unmarshal(body, &nonce); err != nil {
		return "", false, &gateway.Error{Op: "create_nonce", Message: "malformed nonce response", Err: err}
	}
	if nonce.Nonce == "" {
		return "", false, nil
	}
	return nonce.Nonce, true, nil
}

func (c *Client) findTransaction(ctx context.Context, op, transactionID string) (*gateway.Transaction, error) {
	_, body, err := c.do(ctx, op, http.MethodGet, "/transactions/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}
	var tx transactionXML
	if err := xml.Unmarshal(body, &tx); err != nil {
		return nil, &gateway.Error{Op: op, Message: "malformed transaction response", Err: err}
	}
	return tx.toDomain(), nil
}

// transactionCall maps both successful and validation-failed responses to a
// TxResult. Declines come back as 422 with the transaction embedded.
func (c *Client) transactionCall(ctx context.Context, op, method, path string, body any) (*gateway.TxResult, error) {
	status, payload, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnprocessableEntity {
		var apiErr apiErrorResponse
		if err := xml.Unmarshal(payload, &apiErr); err != nil {
			return nil, &gateway.Error{Op: op, Message: "malformed error response", Err: err}
		}
		result := &gateway.TxResult{Success: false, Message: apiErr.Message}
		if apiErr.Transaction != nil && apiErr.Transaction.ID != "" {
			result.Transaction = apiErr.Transaction.toDomain()
		}
		return result, nil
	}

	var tx transactionXML
	if err := xml.Unmarshal(payload, &tx); err != nil {
		return nil, &gateway.Error{Op: op, Message: "malformed transaction response", Err: err}
	}
	return &gateway.TxResult{Success: true, Transaction: tx.toDomain()}, nil
}

func (c *Client) methodCall(ctx context.Context, op, method, path string, body any) (*gateway.MethodResult, *paymentMethodXML, error) {
	status, payload, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return nil, nil, err
	}
	if status == http.StatusUnprocessableEntity {
		return &gateway.MethodResult{Success: false, Message: apiErrorMessage(payload)}, nil, nil
	}
	var pm paymentMethodXML
	if err := xml.Unmarshal(payload, &pm); err != nil {
		return nil, nil, &gateway.Error{Op: op, Message: "malformed payment method response", Err: err}
	}
	m := pm.toDomain()
	return &gateway.MethodResult{Success: true, Method: &m}, &pm, nil
}

// do performs one API call. It returns the status and body for 2xx and 422
// responses; every other outcome is an error.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (int, []byte, error) {
	ctx, span := c.tracer.Start(ctx, "braintree."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		encoded, err := xml.Marshal(body)
		if err != nil {
			return 0, nil, &gateway.Error{Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(append([]byte(xml.Header), encoded...))
	}

	endpoint := c.baseURL + "/merchants/" + url.PathEscape(c.merchantID) + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, &gateway.Error{Op: op, Message: "build request", Err: err}
	}
	req.SetBasicAuth(c.publicKey, c.privateKey)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-ApiVersion", apiVersion)
	req.Header.Set("User-Agent", "railzway-braintree")
	if reader != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return 0, nil, &gateway.Error{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, &gateway.Error{Op: op, Message: "read response", Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return resp.StatusCode, payload, nil
	case resp.StatusCode == http.StatusNotFound:
		span.SetStatus(codes.Error, "not found")
		return resp.StatusCode, nil, &gateway.Error{Op: op, Message: "resource not found", Err: gateway.ErrNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		span.SetStatus(codes.Error, "unauthorized")
		return resp.StatusCode, nil, &gateway.Error{Op: op, Message: "authentication failed", Err: gateway.ErrUnauthorized}
	default:
		span.SetStatus(codes.Error, resp.Status)
		c.log.Warn("unexpected gateway response",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return resp.StatusCode, nil, &gateway.Error{Op: op, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
}

func apiErrorMessage(payload []byte) string {
	var apiErr apiErrorResponse
	if err := xml.Unmarshal(payload, &apiErr); err != nil {
		return strings.TrimSpace(string(payload))
	}
	return apiErr.Message
}

func defaultTracer() trace.Tracer {
	return otel.Tracer("github.com/smallbiznis/railzway-braintree/internal/gateway/braintree")
}
