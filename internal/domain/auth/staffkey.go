// Package auth holds the staff key model gating the admin surface. Customer
// and door flows need no key.
package auth

import "context"

// Admin scopes.
const (
	// ScopeCatalogWrite allows catalog imports.
	ScopeCatalogWrite = "catalog:write"
	// ScopeAnalyticsRead allows reading sales analytics and the
	// transaction export.
	ScopeAnalyticsRead = "analytics:read"
)

// StaffKeyInfo holds the identity and permission data for a validated staff key.
type StaffKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *StaffKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of active staff keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*StaffKeyInfo, error)
}
