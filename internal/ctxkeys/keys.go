// Package ctxkeys defines typed context keys shared between middleware and handlers.
// Both middleware and handlers import this package, but neither imports the
// other for context key types.
package ctxkeys

import (
	"context"

	"complaintdesk/internal/session"
)

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	SessionID Key = "sessionID"
	Principal Key = "principal"
)

// WithSession stores the session id and its principal in ctx.
func WithSession(ctx context.Context, sessionID string, p *session.Principal) context.Context {
	ctx = context.WithValue(ctx, SessionID, sessionID)
	return context.WithValue(ctx, Principal, p)
}

// GetSessionID returns the authenticated session id, or "".
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionID).(string)
	return id
}

// GetPrincipal returns the authenticated principal, or nil.
func GetPrincipal(ctx context.Context) *session.Principal {
	p, _ := ctx.Value(Principal).(*session.Principal)
	return p
}

// GetCompanyScope returns the tenant the current user is confined to.
// Returns "" for platform admins and citizens, who are not tenant-bound.
func GetCompanyScope(ctx context.Context) string {
	p := GetPrincipal(ctx)
	if p == nil || !p.Role.RequiresCompany() {
		return ""
	}
	return p.CompanyID
}

// IsGlobalScope returns true if the user may act across all tenants.
func IsGlobalScope(ctx context.Context) bool {
	p := GetPrincipal(ctx)
	return p != nil && p.Role.IsPlatformAdmin()
}
