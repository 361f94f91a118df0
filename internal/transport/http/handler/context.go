package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"docindex/internal/model"
	"docindex/internal/transport/http/middleware"
)

// identity is the authenticated caller extracted from JWT claims.
type identity struct {
	UserID   uint
	TenantID string
}

func getIdentityFromContext(c *gin.Context) (identity, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return identity{}, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		return identity{}, false
	}
	tenantAny, exists := c.Get(middleware.ContextTenantIDKey)
	if !exists {
		return identity{}, false
	}
	tenantID, ok := tenantAny.(string)
	if !ok || tenantID == "" {
		return identity{}, false
	}
	return identity{UserID: userID, TenantID: tenantID}, true
}

// scopeFor builds the owner scope for a request: shared documents have
// no user in their namespace, private ones are namespaced under the
// caller.
func (id identity) scopeFor(collection string, shared bool) (model.OwnerScope, error) {
	userID := ""
	if !shared {
		userID = strconv.FormatUint(uint64(id.UserID), 10)
	}
	return model.NewOwnerScope(id.TenantID, userID, collection, shared)
}
