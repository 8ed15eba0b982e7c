package security

import (
	"context"
	"strings"
)

const (
	// DefaultTenant is the global tenant used when no tenant is requested.
	DefaultTenant = ""
	// PrivateTenant marks resources visible only to their creating user.
	PrivateTenant = "__user__"

	userTag        = "User:"
	roleTag        = "Role:"
	backendRoleTag = "BERole:"
)

// User is the authenticated identity forwarded by the security layer in front
// of this service. A nil *User means security is disabled.
type User struct {
	Name            string
	Roles           []string
	BackendRoles    []string
	RequestedTenant string
}

// UserFromPrincipals rebuilds a User from a stored access principal list.
func UserFromPrincipals(access []string) *User {
	if len(access) == 0 {
		return nil
	}
	u := &User{}
	for _, entry := range access {
		switch {
		case strings.HasPrefix(entry, userTag):
			u.Name = strings.TrimPrefix(entry, userTag)
		case strings.HasPrefix(entry, roleTag):
			u.Roles = append(u.Roles, strings.TrimPrefix(entry, roleTag))
		case strings.HasPrefix(entry, backendRoleTag):
			u.BackendRoles = append(u.BackendRoles, strings.TrimPrefix(entry, backendRoleTag))
		}
	}
	return u
}

type userContextKey struct{}

// WithUser stores the request user on the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// FromContext returns the request user, or nil when security is disabled or
// the request is unauthenticated.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
