package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smallbiznis/railzway-braintree/pkg/tenantctx"
)

const (
	HeaderTenant       = "X-Tenant-ID"
	contextTenantIDKey = "tenant_id"
)

// TenantRequired resolves the calling tenant from the X-Tenant-ID header.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := parseUUID(c.GetHeader(HeaderTenant))
		if err != nil {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "X-Tenant-ID must be a UUID"))
			return
		}

		c.Set(contextTenantIDKey, tenantID)
		c.Request = c.Request.WithContext(tenantctx.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func tenantFromContext(c *gin.Context) uuid.UUID {
	if value, ok := c.Get(contextTenantIDKey); ok {
		if tenantID, ok := value.(uuid.UUID); ok {
			return tenantID
		}
	}
	tenantID, _ := tenantctx.TenantID(c.Request.Context())
	return tenantID
}
