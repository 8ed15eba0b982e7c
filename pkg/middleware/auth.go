package middleware

import (
	"strings"

	"reporting-scheduler/pkg/security"

	"github.com/gin-gonic/gin"
)

// Identity headers forwarded by the authenticating proxy in front of this
// service. Absent headers mean security is disabled.
const (
	HeaderUser         = "X-Auth-User"
	HeaderRoles        = "X-Auth-Roles"
	HeaderBackendRoles = "X-Auth-Backend-Roles"
	HeaderTenant       = "X-Tenant"
)

// Auth builds the request user from the forwarded identity headers and stores
// it on the request context.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := userFromHeaders(c)
		if u != nil {
			ctx := security.WithUser(c.Request.Context(), u)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func userFromHeaders(c *gin.Context) *security.User {
	name := c.GetHeader(HeaderUser)
	roles := splitCSV(c.GetHeader(HeaderRoles))
	backendRoles := splitCSV(c.GetHeader(HeaderBackendRoles))
	tenant := c.GetHeader(HeaderTenant)

	if name == "" && len(roles) == 0 && len(backendRoles) == 0 && tenant == "" {
		return nil
	}
	return &security.User{
		Name:            name,
		Roles:           roles,
		BackendRoles:    backendRoles,
		RequestedTenant: tenant,
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
