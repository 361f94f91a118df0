package model

import "strings"

// OwnerScope identifies the storage namespace a document belongs to:
// tenant, optional user, optional collection, shared-vs-private.
type OwnerScope struct {
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id,omitempty"`
	Collection string `json:"collection,omitempty"`
	Shared     bool   `json:"shared"`
}

// NewOwnerScope validates the scope invariants at construction:
// a private scope always has a user id, a shared scope never does.
func NewOwnerScope(tenantID, userID, collection string, shared bool) (OwnerScope, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	collection = strings.TrimSpace(collection)

	if tenantID == "" {
		return OwnerScope{}, ErrInvalidScope
	}
	if shared && userID != "" {
		return OwnerScope{}, ErrInvalidScope
	}
	if !shared && userID == "" {
		return OwnerScope{}, ErrInvalidScope
	}
	return OwnerScope{
		TenantID:   tenantID,
		UserID:     userID,
		Collection: collection,
		Shared:     shared,
	}, nil
}
