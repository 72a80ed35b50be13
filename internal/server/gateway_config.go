package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) UpsertGatewayConfig(c *gin.Context) {
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil || len(values) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gatewayConfigSvc.UpsertConfig(c.Request.Context(), tenantFromContext(c), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type gatewayConfigStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) SetGatewayConfigStatus(c *gin.Context) {
	var req gatewayConfigStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, newValidationError("is_active", "required", "is_active is required"))
		return
	}

	resp, err := s.gatewayConfigSvc.SetActive(c.Request.Context(), tenantFromContext(c), *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
