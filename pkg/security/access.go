package security

import (
	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/errutil"
)

// AccessManager derives tenants and access principal lists from the request
// user and enforces the embedded tenant/backend-role checks.
type AccessManager struct {
	cfg *config.Config
}

func NewAccessManager(cfg *config.Config) *AccessManager {
	return &AccessManager{cfg: cfg}
}

// Tenant returns the tenant the request operates under.
func (m *AccessManager) Tenant(u *User) string {
	if u == nil {
		return DefaultTenant
	}
	return u.RequestedTenant
}

// AllAccessPrincipals returns the tagged principals stamped onto a resource at
// creation time.
func (m *AccessManager) AllAccessPrincipals(u *User) []string {
	if u == nil { // security disabled
		return nil
	}
	var out []string
	if u.Name != "" {
		out = append(out, userTag+u.Name)
	}
	for _, r := range u.Roles {
		out = append(out, roleTag+r)
	}
	for _, br := range u.BackendRoles {
		out = append(out, backendRoleTag+br)
	}
	return out
}

// SearchAccessPrincipals returns the principals used to filter list queries.
// An empty result means "no access filtering".
func (m *AccessManager) SearchAccessPrincipals(u *User) []string {
	if u == nil { // security disabled
		return nil
	}
	if m.isPrivateTenant(u) {
		// No sharing inside a private tenant.
		return []string{userTag + u.Name}
	}
	if !m.cfg.Reports.RbacEnabled {
		return nil
	}
	out := make([]string, 0, len(u.BackendRoles))
	for _, br := range u.BackendRoles {
		out = append(out, backendRoleTag+br)
	}
	return out
}

// HasAccess checks the requester against a resource's tenant and access list.
func (m *AccessManager) HasAccess(u *User, tenant string, access []string) bool {
	if u == nil { // security disabled
		return true
	}
	if m.Tenant(u) != tenant {
		return false
	}
	if !m.cfg.Reports.RbacEnabled {
		return true
	}
	for _, br := range u.BackendRoles {
		tagged := backendRoleTag + br
		for _, entry := range access {
			if entry == tagged {
				return true
			}
		}
	}
	return false
}

// ValidateUser rejects request identities that cannot own resources: anonymous
// users in a private tenant, and users without backend roles when RBAC is on.
func (m *AccessManager) ValidateUser(u *User) error {
	if u == nil { // security disabled
		return nil
	}
	if m.isPrivateTenant(u) && u.Name == "" {
		return errutil.Forbidden("user name not provided for private tenant access")
	}
	if m.cfg.Reports.RbacEnabled && len(u.BackendRoles) == 0 {
		return errutil.Forbidden("user doesn't have backend roles configured, contact administrator")
	}
	return nil
}

// ValidatePollingUser gates the poll operation to the background worker
// identity. Unlike ValidateUser this path never accepts ordinary tenants.
func (m *AccessManager) ValidatePollingUser(u *User) error {
	if u == nil { // security disabled
		return nil
	}
	if u.Name != m.cfg.Reports.PollAccessUser {
		return errutil.Forbidden("permission denied for polling")
	}
	return nil
}

func (m *AccessManager) isPrivateTenant(u *User) bool {
	return m.Tenant(u) == PrivateTenant
}
