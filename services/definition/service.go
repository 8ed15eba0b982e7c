package definition

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/db/pagination"
	"reporting-scheduler/pkg/errutil"
	"reporting-scheduler/pkg/metrics"
	"reporting-scheduler/pkg/security"
)

const (
	opCreate = "definition.create"
	opGet    = "definition.get"
	opUpdate = "definition.update"
	opDelete = "definition.delete"
	opList   = "definition.list"
)

type Service struct {
	repo      Repository
	access    *security.AccessManager
	selector  *security.Selector
	node      *snowflake.Node
	cfg       *config.Config
	metrics   *metrics.Metrics
	registrar Registrar
	logger    *zap.Logger
}

type ServiceParams struct {
	fx.In
	Repo      Repository
	Access    *security.AccessManager
	Selector  *security.Selector
	Node      *snowflake.Node
	Config    *config.Config
	Metrics   *metrics.Metrics `optional:"true"`
	Registrar Registrar        `optional:"true"`
	Logger    *zap.Logger      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = zap.L()
	}
	if p.Registrar == nil {
		p.Registrar = NewNoopRegistrar()
	}
	return &Service{
		repo:      p.Repo,
		access:    p.Access,
		selector:  p.Selector,
		node:      p.Node,
		cfg:       p.Config,
		metrics:   p.Metrics,
		registrar: p.Registrar,
		logger:    p.Logger,
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return s.logger
	}
	return s.logger.With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// Create validates and persists a new definition, stamping the requester's
// tenant and access principals, and registers it with the scheduler when it
// carries an enabled schedule.
func (s *Service) Create(ctx context.Context, u *security.User, report *ReportDefinition) (d *Details, err error) {
	defer func() { s.metrics.Observe(opCreate, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	if err = report.Validate(); err != nil {
		return nil, err
	}

	strategy := s.selector.ForResource(security.ReportDefinitionType)
	now := time.Now().UTC()
	d = &Details{
		ID:          s.node.Generate().String(),
		CreatedTime: now,
		UpdatedTime: now,
		Tenant:      s.access.Tenant(u),
		Access:      strategy.CreationPrincipals(u),
		Report:      *report,
	}

	rec, err := d.toRecord()
	if err != nil {
		return nil, errutil.Internal("failed to encode report definition", errutil.WithErr(err))
	}
	if err = s.repo.Create(ctx, rec); err != nil {
		return nil, errutil.Internal("report definition creation failed", errutil.WithErr(err))
	}

	if rerr := s.registrar.Sync(d); rerr != nil {
		s.log(ctx).Error("failed to register definition schedule", zap.String("id", d.ID), zap.Error(rerr))
	}

	s.log(ctx).Info("created report definition", zap.String("id", d.ID))
	return d, nil
}

// Get returns a definition after the access check for its resource type.
func (s *Service) Get(ctx context.Context, u *security.User, id string) (d *Details, err error) {
	defer func() { s.metrics.Observe(opGet, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	d, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.selector.ForResource(security.ReportDefinitionType).CheckAccess(u, d.Tenant, d.Access); err != nil {
		return nil, err
	}
	return d, nil
}

// Update replaces the report template while preserving ownership metadata,
// then re-syncs the scheduler entry.
func (s *Service) Update(ctx context.Context, u *security.User, id string, report *ReportDefinition) (d *Details, err error) {
	defer func() { s.metrics.Observe(opUpdate, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	if err = report.Validate(); err != nil {
		return nil, err
	}

	current, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.selector.ForResource(security.ReportDefinitionType).CheckAccess(u, current.Tenant, current.Access); err != nil {
		return nil, err
	}

	current.Report = *report
	current.UpdatedTime = time.Now().UTC()

	rec, err := current.toRecord()
	if err != nil {
		return nil, errutil.Internal("failed to encode report definition", errutil.WithErr(err))
	}
	if err = s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("report definition " + id + " not found")
		}
		return nil, errutil.Internal("report definition update failed", errutil.WithErr(err))
	}

	if rerr := s.registrar.Sync(current); rerr != nil {
		s.log(ctx).Error("failed to re-register definition schedule", zap.String("id", id), zap.Error(rerr))
	}
	return current, nil
}

// Delete removes a definition and its scheduler entry.
func (s *Service) Delete(ctx context.Context, u *security.User, id string) (err error) {
	defer func() { s.metrics.Observe(opDelete, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return err
	}
	d, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err = s.selector.ForResource(security.ReportDefinitionType).CheckAccess(u, d.Tenant, d.Access); err != nil {
		return err
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("report definition " + id + " not found")
		}
		return errutil.Internal("report definition deletion failed", errutil.WithErr(err))
	}

	if rerr := s.registrar.Remove(id); rerr != nil {
		s.log(ctx).Error("failed to unregister definition schedule", zap.String("id", id), zap.Error(rerr))
	}
	return nil
}

// List pages through the requester's definitions. Under delegated sharing the
// access filter is empty and filtering happens beneath this layer.
func (s *Service) List(ctx context.Context, u *security.User, p pagination.Pagination) (total int64, out []*Details, err error) {
	defer func() { s.metrics.Observe(opList, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return 0, nil, err
	}

	p = p.WithDefaults(s.cfg.Reports.DefaultItemsQueryCount)
	filter := s.selector.ForResource(security.ReportDefinitionType).SearchFilter(u)

	total, recs, err := s.repo.List(ctx, s.access.Tenant(u), filter, p)
	if err != nil {
		return 0, nil, errutil.Internal("failed to list report definitions", errutil.WithErr(err))
	}

	out = make([]*Details, 0, len(recs))
	for i := range recs {
		d, derr := detailsFromRecord(&recs[i])
		if derr != nil {
			s.log(ctx).Warn("skipping corrupt definition record", zap.String("id", recs[i].ID), zap.Error(derr))
			continue
		}
		out = append(out, d)
	}
	return total, out, nil
}

// GetInternal loads a definition without a user access check. Used by the
// worker when a schedule fires: the firing itself is the authorization.
func (s *Service) GetInternal(ctx context.Context, id string) (*Details, error) {
	return s.fetch(ctx, id)
}

func (s *Service) fetch(ctx context.Context, id string) (*Details, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("report definition " + id + " not found")
		}
		return nil, errutil.Internal("failed to load report definition", errutil.WithErr(err))
	}
	d, err := detailsFromRecord(rec)
	if err != nil {
		return nil, errutil.Internal("corrupt report definition", errutil.WithErr(err))
	}
	return d, nil
}
