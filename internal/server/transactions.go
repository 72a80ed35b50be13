package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	txdomain "github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

type transactionRequest struct {
	AccountID       string         `json:"account_id"`
	TransactionID   string         `json:"transaction_id"`
	PaymentMethodID string         `json:"payment_method_id"`
	Amount          string         `json:"amount"`
	Currency        string         `json:"currency"`
	Properties      map[string]any `json:"properties"`

	// only read by the redirect endpoint
	TransactionType string `json:"transaction_type"`
}

type transactionCall func(ctx context.Context, req txdomain.Request) (*txdomain.TransactionView, error)

func (s *Server) Authorize(c *gin.Context) { s.handleTransaction(c, s.transactionSvc.Authorize) }
func (s *Server) Purchase(c *gin.Context)  { s.handleTransaction(c, s.transactionSvc.Purchase) }
func (s *Server) Credit(c *gin.Context)    { s.handleTransaction(c, s.transactionSvc.Credit) }
func (s *Server) Capture(c *gin.Context)   { s.handleTransaction(c, s.transactionSvc.Capture) }
func (s *Server) Void(c *gin.Context)      { s.handleTransaction(c, s.transactionSvc.Void) }
func (s *Server) Refund(c *gin.Context)    { s.handleTransaction(c, s.transactionSvc.Refund) }

func (s *Server) handleTransaction(c *gin.Context, call transactionCall) {
	req, ok := bindTransactionRequest(c, nil)
	if !ok {
		return
	}

	resp, err := call(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegisterRedirect(c *gin.Context) {
	var txType txdomain.TransactionType
	req, ok := bindTransactionRequest(c, &txType)
	if !ok {
		return
	}

	resp, err := s.transactionSvc.RegisterRedirect(c.Request.Context(), txType, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentInfo(c *gin.Context) {
	paymentID, err := parseUUID(c.Param("payment_id"))
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_payment_id", "invalid payment_id"))
		return
	}
	accountID, err := parseUUID(c.Query("account_id"))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
		return
	}

	resp, err := s.transactionSvc.GetPaymentInfo(c.Request.Context(), tenantFromContext(c), accountID, paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type formRequest struct {
	AccountID     string         `json:"account_id"`
	PaymentID     string         `json:"payment_id"`
	TransactionID string         `json:"transaction_id"`
	Fields        map[string]any `json:"fields"`
}

func (s *Server) BuildFormDescriptor(c *gin.Context) {
	var body formRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseUUID(body.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
		return
	}
	paymentID, err := parseOptionalUUID(body.PaymentID)
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_payment_id", "invalid payment_id"))
		return
	}
	transactionID, err := parseOptionalUUID(body.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return
	}

	resp, err := s.transactionSvc.BuildFormDescriptor(c.Request.Context(), txdomain.FormRequest{
		TenantID:      tenantFromContext(c),
		AccountID:     accountID,
		PaymentID:     paymentID,
		TransactionID: transactionID,
		Fields:        body.Fields,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindTransactionRequest parses the body and path of a transaction call. When
// txType is non-nil the body must name an initial transaction type.
func bindTransactionRequest(c *gin.Context, txType *txdomain.TransactionType) (txdomain.Request, bool) {
	var body transactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return txdomain.Request{}, false
	}

	paymentID, err := parseUUID(c.Param("payment_id"))
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_payment_id", "invalid payment_id"))
		return txdomain.Request{}, false
	}
	accountID, err := parseUUID(body.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
		return txdomain.Request{}, false
	}
	transactionID, err := parseUUID(body.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return txdomain.Request{}, false
	}
	paymentMethodID, err := parseOptionalUUID(body.PaymentMethodID)
	if err != nil {
		AbortWithError(c, newValidationError("payment_method_id", "invalid_payment_method_id", "invalid payment_method_id"))
		return txdomain.Request{}, false
	}
	amount, err := parseOptionalAmount(body.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return txdomain.Request{}, false
	}

	if txType != nil {
		*txType = txdomain.TransactionType(strings.ToUpper(strings.TrimSpace(body.TransactionType)))
		if !txType.IsInitial() {
			AbortWithError(c, newValidationError("transaction_type", "invalid_transaction_type", "transaction_type must be AUTHORIZE, PURCHASE or CREDIT"))
			return txdomain.Request{}, false
		}
	}

	return txdomain.Request{
		TenantID:        tenantFromContext(c),
		AccountID:       accountID,
		PaymentID:       paymentID,
		TransactionID:   transactionID,
		PaymentMethodID: paymentMethodID.UUID,
		Amount:          amount,
		Currency:        strings.TrimSpace(body.Currency),
		Properties:      body.Properties,
	}, true
}
