package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/errutil"
)

func newConfig(rbac bool) *config.Config {
	cfg := &config.Config{}
	cfg.Reports.RbacEnabled = rbac
	cfg.Reports.PollAccessUser = "reports_worker"
	return cfg
}

func TestTenantResolution(t *testing.T) {
	m := NewAccessManager(newConfig(false))

	assert.Equal(t, DefaultTenant, m.Tenant(nil))
	assert.Equal(t, DefaultTenant, m.Tenant(&User{Name: "alice"}))
	assert.Equal(t, "finance", m.Tenant(&User{Name: "alice", RequestedTenant: "finance"}))
}

func TestAllAccessPrincipals(t *testing.T) {
	m := NewAccessManager(newConfig(false))

	assert.Nil(t, m.AllAccessPrincipals(nil))

	got := m.AllAccessPrincipals(&User{
		Name:         "alice",
		Roles:        []string{"analyst"},
		BackendRoles: []string{"sales", "ops"},
	})
	assert.Equal(t, []string{"User:alice", "Role:analyst", "BERole:sales", "BERole:ops"}, got)
}

func TestSearchAccessPrincipals(t *testing.T) {
	t.Run("security disabled", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		assert.Nil(t, m.SearchAccessPrincipals(nil))
	})

	t.Run("private tenant sees only own documents", func(t *testing.T) {
		m := NewAccessManager(newConfig(false))
		u := &User{Name: "alice", RequestedTenant: PrivateTenant, BackendRoles: []string{"sales"}}
		assert.Equal(t, []string{"User:alice"}, m.SearchAccessPrincipals(u))
	})

	t.Run("rbac filters by backend roles", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		u := &User{Name: "alice", BackendRoles: []string{"sales", "ops"}}
		assert.Equal(t, []string{"BERole:sales", "BERole:ops"}, m.SearchAccessPrincipals(u))
	})

	t.Run("no rbac means no filter", func(t *testing.T) {
		m := NewAccessManager(newConfig(false))
		u := &User{Name: "alice", BackendRoles: []string{"sales"}}
		assert.Empty(t, m.SearchAccessPrincipals(u))
	})
}

func TestHasAccess(t *testing.T) {
	access := []string{"User:bob", "BERole:sales"}

	t.Run("nil user always passes", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		assert.True(t, m.HasAccess(nil, "finance", access))
	})

	t.Run("tenant mismatch fails", func(t *testing.T) {
		m := NewAccessManager(newConfig(false))
		u := &User{Name: "alice", RequestedTenant: "hr"}
		assert.False(t, m.HasAccess(u, "finance", access))
	})

	t.Run("matching tenant without rbac passes", func(t *testing.T) {
		m := NewAccessManager(newConfig(false))
		u := &User{Name: "alice", RequestedTenant: "finance"}
		assert.True(t, m.HasAccess(u, "finance", access))
	})

	t.Run("rbac requires a shared backend role", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		reader := &User{Name: "carol", RequestedTenant: "finance", BackendRoles: []string{"sales"}}
		stranger := &User{Name: "dave", RequestedTenant: "finance", BackendRoles: []string{"hr"}}
		assert.True(t, m.HasAccess(reader, "finance", access))
		assert.False(t, m.HasAccess(stranger, "finance", access))
	})
}

func TestValidateUser(t *testing.T) {
	t.Run("nil user passes", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		assert.NoError(t, m.ValidateUser(nil))
	})

	t.Run("anonymous private tenant is forbidden", func(t *testing.T) {
		m := NewAccessManager(newConfig(false))
		err := m.ValidateUser(&User{RequestedTenant: PrivateTenant})
		require.Error(t, err)
		assert.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))
	})

	t.Run("rbac requires backend roles", func(t *testing.T) {
		m := NewAccessManager(newConfig(true))
		err := m.ValidateUser(&User{Name: "alice"})
		require.Error(t, err)
		assert.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))

		assert.NoError(t, m.ValidateUser(&User{Name: "alice", BackendRoles: []string{"sales"}}))
	})
}

func TestValidatePollingUser(t *testing.T) {
	m := NewAccessManager(newConfig(false))

	assert.NoError(t, m.ValidatePollingUser(nil))
	assert.NoError(t, m.ValidatePollingUser(&User{Name: "reports_worker"}))

	err := m.ValidatePollingUser(&User{Name: "alice"})
	require.Error(t, err)
	assert.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))
}

func TestUserFromPrincipals(t *testing.T) {
	assert.Nil(t, UserFromPrincipals(nil))

	u := UserFromPrincipals([]string{"User:alice", "Role:analyst", "BERole:sales"})
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, []string{"analyst"}, u.Roles)
	assert.Equal(t, []string{"sales"}, u.BackendRoles)
}
