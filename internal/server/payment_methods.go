package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pmdomain "github.com/smallbiznis/railzway-braintree/internal/paymentmethod/domain"
)

type addPaymentMethodRequest struct {
	PaymentMethodID string            `json:"payment_method_id"`
	ExternalID      string            `json:"external_id"`
	IsDefault       bool              `json:"is_default"`
	Properties      map[string]string `json:"properties"`
}

func (s *Server) AddPaymentMethod(c *gin.Context) {
	var req addPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	paymentMethodID, err := parseUUID(req.PaymentMethodID)
	if err != nil {
		AbortWithError(c, newValidationError("payment_method_id", "invalid_payment_method_id", "invalid payment_method_id"))
		return
	}

	resp, err := s.paymentMethodSvc.AddPaymentMethod(c.Request.Context(), pmdomain.AddRequest{
		TenantID:        tenantFromContext(c),
		AccountID:       accountID,
		PaymentMethodID: paymentMethodID,
		ExternalID:      strings.TrimSpace(req.ExternalID),
		IsDefault:       req.IsDefault,
		Properties:      req.Properties,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPaymentMethods(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	refresh, err := parseOptionalBool(c.Query("refresh"))
	if err != nil {
		AbortWithError(c, newValidationError("refresh", "invalid_refresh", "invalid refresh"))
		return
	}

	resp, err := s.paymentMethodSvc.GetPaymentMethods(c.Request.Context(), tenantFromContext(c), accountID, refresh != nil && *refresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentMethod(c *gin.Context) {
	accountID, paymentMethodID, ok := paymentMethodParams(c)
	if !ok {
		return
	}

	resp, err := s.paymentMethodSvc.GetPaymentMethodDetail(c.Request.Context(), tenantFromContext(c), accountID, paymentMethodID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePaymentMethod(c *gin.Context) {
	accountID, paymentMethodID, ok := paymentMethodParams(c)
	if !ok {
		return
	}

	if err := s.paymentMethodSvc.DeletePaymentMethod(c.Request.Context(), tenantFromContext(c), accountID, paymentMethodID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func accountIDParam(c *gin.Context) (uuid.UUID, bool) {
	accountID, err := parseUUID(c.Param("account_id"))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
		return uuid.Nil, false
	}
	return accountID, true
}

func paymentMethodParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	paymentMethodID, err := parseUUID(c.Param("payment_method_id"))
	if err != nil {
		AbortWithError(c, newValidationError("payment_method_id", "invalid_payment_method_id", "invalid payment_method_id"))
		return uuid.Nil, uuid.Nil, false
	}
	return accountID, paymentMethodID, true
}
