package definition

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/db/pagination"
	"reporting-scheduler/pkg/errutil"
	"reporting-scheduler/pkg/metrics"
	"reporting-scheduler/pkg/security"
	"reporting-scheduler/services/testutil"
)

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Record{}, &AccessEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	mgr := security.NewAccessManager(cfg)
	return NewService(ServiceParams{
		Repo:      NewRepository(db),
		Access:    mgr,
		Selector:  security.NewSelector(mgr, security.NewConfigSharingClient(cfg)),
		Node:      node,
		Config:    cfg,
		Metrics:   metrics.NewUnregistered(),
		Registrar: NewNoopRegistrar(),
		Logger:    zap.NewNop(),
	})
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reports.DefaultItemsQueryCount = 100
	cfg.Reports.PollAccessUser = "reports_worker"
	return cfg
}

func TestCreateStampsOwnership(t *testing.T) {
	svc := newTestService(t, testConfig())
	u := &security.User{Name: "alice", RequestedTenant: "finance", BackendRoles: []string{"sales"}}

	report := validReport()
	d, err := svc.Create(context.Background(), u, &report)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "finance", d.Tenant)
	assert.Equal(t, []string{"User:alice", "BERole:sales"}, d.Access)

	got, err := svc.Get(context.Background(), u, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, report.Name, got.Report.Name)
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	svc := newTestService(t, testConfig())

	report := validReport()
	report.Name = ""
	_, err := svc.Create(context.Background(), nil, &report)
	require.Error(t, err)
	assert.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestGetEnforcesTenantIsolation(t *testing.T) {
	svc := newTestService(t, testConfig())
	owner := &security.User{Name: "alice", RequestedTenant: "finance"}
	outsider := &security.User{Name: "bob", RequestedTenant: "hr"}

	report := validReport()
	d, err := svc.Create(context.Background(), owner, &report)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), outsider, d.ID)
	require.Error(t, err)
	assert.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))
}

func TestGetUnknownDefinition(t *testing.T) {
	svc := newTestService(t, testConfig())

	_, err := svc.Get(context.Background(), nil, "missing")
	require.Error(t, err)
	assert.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestUpdateReplacesReportAndKeepsOwnership(t *testing.T) {
	svc := newTestService(t, testConfig())
	u := &security.User{Name: "alice", RequestedTenant: "finance"}

	report := validReport()
	d, err := svc.Create(context.Background(), u, &report)
	require.NoError(t, err)

	updated := validReport()
	updated.Name = "monthly sales"
	got, err := svc.Update(context.Background(), u, d.ID, &updated)
	require.NoError(t, err)
	assert.Equal(t, "monthly sales", got.Report.Name)
	assert.Equal(t, d.Access, got.Access)
	assert.WithinDuration(t, d.CreatedTime, got.CreatedTime, time.Second)

	reread, err := svc.Get(context.Background(), u, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "monthly sales", reread.Report.Name)
}

func TestUpdateUnknownDefinition(t *testing.T) {
	svc := newTestService(t, testConfig())

	report := validReport()
	_, err := svc.Update(context.Background(), nil, "missing", &report)
	require.Error(t, err)
	assert.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeleteRemovesDefinition(t *testing.T) {
	svc := newTestService(t, testConfig())
	u := &security.User{Name: "alice"}

	report := validReport()
	d, err := svc.Create(context.Background(), u, &report)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), u, d.ID))

	_, err = svc.Get(context.Background(), u, d.ID)
	require.Error(t, err)
	assert.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestListAppliesDefaultPageSize(t *testing.T) {
	cfg := testConfig()
	cfg.Reports.DefaultItemsQueryCount = 2
	svc := newTestService(t, cfg)
	u := &security.User{Name: "alice"}

	for i := 0; i < 3; i++ {
		report := validReport()
		_, err := svc.Create(context.Background(), u, &report)
		require.NoError(t, err)
	}

	total, items, err := svc.List(context.Background(), u, pagination.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)

	total, items, err = svc.List(context.Background(), u, pagination.Pagination{FromIndex: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 1)
}

func TestListFiltersByBackendRoleUnderRbac(t *testing.T) {
	cfg := testConfig()
	cfg.Reports.RbacEnabled = true
	svc := newTestService(t, cfg)

	owner := &security.User{Name: "alice", BackendRoles: []string{"sales"}}
	peer := &security.User{Name: "bob", BackendRoles: []string{"sales"}}
	outsider := &security.User{Name: "carol", BackendRoles: []string{"hr"}}

	report := validReport()
	_, err := svc.Create(context.Background(), owner, &report)
	require.NoError(t, err)

	total, _, err := svc.List(context.Background(), peer, pagination.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	total, _, err = svc.List(context.Background(), outsider, pagination.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
