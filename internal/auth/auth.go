// Package auth carries the authenticated principal through a request and maps
// roles to their landing pages.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type Role string

const (
	RoleCustomer      Role = "customer"
	RoleRider         Role = "rider"
	RoleBranchManager Role = "branch_manager"
	RoleBranchStaff   Role = "branch_staff"
	RoleAdmin         Role = "admin"
)

var Roles = []Role{RoleCustomer, RoleRider, RoleBranchManager, RoleBranchStaff, RoleAdmin}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// HomePath is the only place a role is mapped to its landing page.
func HomePath(r Role) string {
	switch r {
	case RoleCustomer:
		return "/dashboard"
	case RoleRider:
		return "/rider"
	case RoleBranchManager, RoleBranchStaff:
		return "/branch"
	case RoleAdmin:
		return "/admin"
	default:
		return "/login"
	}
}

// Principal is the caller as reported by the upstream auth proxy.
type Principal struct {
	UserID string
	Role   Role
	Token  string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Middleware attaches the principal found in the request headers. Requests
// without a bearer token, a user id and a known role pass through anonymously;
// handlers decide whether that is acceptable.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		role, ok := ParseRole(r.Header.Get("X-User-Role"))
		if token == "" || userID == "" || !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{UserID: userID, Role: role, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
