package instance

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
	"reporting-scheduler/services/definition"
)

const (
	opOnDemand  = "instance.on_demand"
	opInContext = "instance.in_context"
	opGet       = "instance.get"
	opUpdate    = "instance.update"
	opList      = "instance.list"
	opPoll      = "instance.poll"
)

// Notifier delivers completion notifications for an instance. Delivery is
// best effort and never blocks or fails the originating operation.
type Notifier interface {
	Dispatch(ctx context.Context, inst *Instance)
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) Dispatch(context.Context, *Instance) {}

// InContextRequest records a report the caller already produced elsewhere,
// typically a dashboard export. It arrives with its final state attached.
type InContextRequest struct {
	BeginTime                time.Time `json:"beginTime"`
	EndTime                  time.Time `json:"endTime"`
	Status                   Status    `json:"status"`
	StatusText               string    `json:"statusText,omitempty"`
	InContextDownloadURLPath string    `json:"inContextDownloadUrlPath,omitempty"`
}

// UpdateStatusRequest moves an instance to a new lifecycle state.
type UpdateStatusRequest struct {
	Status     Status `json:"status"`
	StatusText string `json:"statusText,omitempty"`
}

// DefinitionLoader is the slice of the definition service the instance
// service needs: loading with and without an access check.
type DefinitionLoader interface {
	Get(ctx context.Context, u *security.User, id string) (*definition.Details, error)
	GetInternal(ctx context.Context, id string) (*definition.Details, error)
}

type Service struct {
	repo     Repository
	poller   *Poller
	access   *security.AccessManager
	selector *security.Selector
	node     *snowflake.Node
	cfg      *config.Config
	metrics  *metrics.Metrics
	notifier Notifier
	defs     DefinitionLoader
	logger   *zap.Logger
}

type ServiceParams struct {
	fx.In
	Repo        Repository
	Poller      *Poller
	Access      *security.AccessManager
	Selector    *security.Selector
	Node        *snowflake.Node
	Config      *config.Config
	Definitions DefinitionLoader
	Metrics     *metrics.Metrics `optional:"true"`
	Notifier    Notifier         `optional:"true"`
	Logger      *zap.Logger      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = zap.L()
	}
	if p.Notifier == nil {
		p.Notifier = NewNoopNotifier()
	}
	return &Service{
		repo:     p.Repo,
		poller:   p.Poller,
		access:   p.Access,
		selector: p.Selector,
		node:     p.Node,
		cfg:      p.Config,
		metrics:  p.Metrics,
		notifier: p.Notifier,
		defs:     p.Definitions,
		logger:   p.Logger,
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

// CreateOnDemand runs a definition immediately on the caller's behalf. The
// instance is persisted already Executing; the worker pool does not get
// involved, the caller's request is the execution. When the definition's
// format pins timeFrom/timeTo the window is taken verbatim, otherwise it is
// the format duration ending now.
func (s *Service) CreateOnDemand(ctx context.Context, u *security.User, definitionID string) (inst *Instance, err error) {
	defer func() { s.metrics.Observe(opOnDemand, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	def, err := s.defs.Get(ctx, u, definitionID)
	if err != nil {
		return nil, err
	}

	beginTime, endTime, ok := def.Report.Format.ExplicitWindow()
	if !ok {
		endTime = time.Now().UTC()
		beginTime = endTime.Add(-time.Duration(def.Report.Format.Duration))
	}
	inst, err = s.persist(ctx, &Instance{
		BeginTime:  beginTime,
		EndTime:    endTime,
		Tenant:     s.access.Tenant(u),
		Access:     s.selector.ForResource(security.ReportInstanceType).CreationPrincipals(u),
		Definition: def,
		Status:     Executing,
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("created on-demand report instance",
		zap.String("id", inst.ID), zap.String("definition_id", definitionID))
	return inst, nil
}

// CreateInContext records an externally produced report. The caller supplies
// the final status, so only a valid one is accepted.
func (s *Service) CreateInContext(ctx context.Context, u *security.User, req *InContextRequest) (inst *Instance, err error) {
	defer func() { s.metrics.Observe(opInContext, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, errutil.ValidationFailed("invalid status value",
			errutil.WithDetails(errutil.Detail{Field: "status", Message: "unknown status " + string(req.Status)}))
	}
	if req.EndTime.Before(req.BeginTime) {
		return nil, errutil.ValidationFailed("endTime must not precede beginTime")
	}

	inst, err = s.persist(ctx, &Instance{
		BeginTime:                req.BeginTime,
		EndTime:                  req.EndTime,
		Tenant:                   s.access.Tenant(u),
		Access:                   s.selector.ForResource(security.ReportInstanceType).CreationPrincipals(u),
		Status:                   req.Status,
		StatusText:               req.StatusText,
		InContextDownloadURLPath: req.InContextDownloadURLPath,
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("created in-context report instance", zap.String("id", inst.ID))
	return inst, nil
}

// CreateFromSchedule materializes a pending instance when a schedule fires.
// The window ends at the expected execution time, not at the moment the task
// actually ran, so delayed firings still report on the intended interval.
// The instance inherits tenant and access from its definition and waits in
// Scheduled for a poller to claim it.
func (s *Service) CreateFromSchedule(ctx context.Context, definitionID string, expectedExecutionTime time.Time) (*Instance, error) {
	def, err := s.defs.GetInternal(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.IsEnabled() {
		s.log(ctx).Info("skipping fire of disabled definition", zap.String("definition_id", definitionID))
		return nil, nil
	}

	endTime := expectedExecutionTime.UTC()
	inst, err := s.persist(ctx, &Instance{
		BeginTime:  endTime.Add(-time.Duration(def.Report.Format.Duration)),
		EndTime:    endTime,
		Tenant:     def.Tenant,
		Access:     def.Access,
		Definition: def,
		Status:     Scheduled,
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("created scheduled report instance",
		zap.String("id", inst.ID), zap.String("definition_id", definitionID))
	return inst, nil
}

// Get returns an instance after the access check for its resource type.
func (s *Service) Get(ctx context.Context, u *security.User, id string) (inst *Instance, err error) {
	defer func() { s.metrics.Observe(opGet, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	inst, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.selector.ForResource(security.ReportInstanceType).CheckAccess(u, inst.Tenant, inst.Access); err != nil {
		return nil, err
	}
	return inst, nil
}

// UpdateStatus moves an instance forward in its lifecycle. Scheduled is a
// creation-only state and can never be written back; claiming work happens
// through Poll, not through this operation. A version conflict surfaces as
// Conflict so the caller can re-read and retry.
func (s *Service) UpdateStatus(ctx context.Context, u *security.User, id string, req *UpdateStatusRequest) (inst *Instance, err error) {
	defer func() { s.metrics.Observe(opUpdate, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, errutil.ValidationFailed("invalid status value",
			errutil.WithDetails(errutil.Detail{Field: "status", Message: "unknown status " + string(req.Status)}))
	}
	if req.Status == Scheduled {
		return nil, errutil.ValidationFailed("status cannot be set back to " + string(Scheduled))
	}

	inst, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.selector.ForResource(security.ReportInstanceType).CheckAccess(u, inst.Tenant, inst.Access); err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatusIfSeqNo(ctx, id, inst.SeqNo(), req.Status, req.StatusText)
	if err != nil {
		return nil, errutil.Internal("report instance update failed", errutil.WithErr(err))
	}
	if !ok {
		return nil, errutil.Conflict("report instance " + id + " was modified concurrently")
	}

	inst, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.Status == Success {
		s.notifier.Dispatch(ctx, inst)
	}
	return inst, nil
}

// List pages through the requester's instances.
func (s *Service) List(ctx context.Context, u *security.User, p pagination.Pagination) (total int64, out []*Instance, err error) {
	defer func() { s.metrics.Observe(opList, err) }()

	if err = s.access.ValidateUser(u); err != nil {
		return 0, nil, err
	}

	p = p.WithDefaults(s.cfg.Reports.DefaultItemsQueryCount)
	filter := s.selector.ForResource(security.ReportInstanceType).SearchFilter(u)

	total, recs, err := s.repo.List(ctx, s.access.Tenant(u), filter, p)
	if err != nil {
		return 0, nil, errutil.Internal("failed to list report instances", errutil.WithErr(err))
	}

	out = make([]*Instance, 0, len(recs))
	for i := range recs {
		inst, ierr := instanceFromRecord(&recs[i])
		if ierr != nil {
			s.log(ctx).Warn("skipping corrupt instance record", zap.String("id", recs[i].ID), zap.Error(ierr))
			continue
		}
		out = append(out, inst)
	}
	return total, out, nil
}

// Poll lets a worker claim one pending instance. Only the configured polling
// identity may call it.
func (s *Service) Poll(ctx context.Context, u *security.User) (res *PollResult, err error) {
	defer func() { s.metrics.Observe(opPoll, err) }()

	if err = s.access.ValidatePollingUser(u); err != nil {
		return nil, err
	}
	res, err = s.poller.Poll(ctx)
	if err != nil {
		return nil, errutil.Internal("report instance poll failed", errutil.WithErr(err))
	}
	return res, nil
}

// Finish records the outcome of an execution the worker just completed. The
// write is conditional on the version claimed at poll time, so an operator
// who cancelled the instance in the meantime wins over the worker.
func (s *Service) Finish(ctx context.Context, inst *Instance, status Status, statusText string) error {
	if !status.Terminal() {
		return errutil.Internal("finish requires a terminal status, got " + string(status))
	}
	ok, err := s.repo.UpdateStatusIfSeqNo(ctx, inst.ID, inst.SeqNo(), status, statusText)
	if err != nil {
		return errutil.Internal("report instance finish failed", errutil.WithErr(err))
	}
	if !ok {
		s.log(ctx).Warn("instance changed while executing, dropping worker result",
			zap.String("id", inst.ID))
		return nil
	}
	if status == Success {
		done, ferr := s.fetch(ctx, inst.ID)
		if ferr != nil {
			s.log(ctx).Warn("could not reload instance for notification",
				zap.String("id", inst.ID), zap.Error(ferr))
			return nil
		}
		s.notifier.Dispatch(ctx, done)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, inst *Instance) (*Instance, error) {
	now := time.Now().UTC()
	inst.ID = s.node.Generate().String()
	inst.CreatedTime = now
	inst.UpdatedTime = now

	rec, err := inst.toRecord()
	if err != nil {
		return nil, errutil.Internal("failed to encode report instance", errutil.WithErr(err))
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, errutil.Internal("report instance creation failed", errutil.WithErr(err))
	}
	return inst, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*Instance, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("report instance " + id + " not found")
		}
		return nil, errutil.Internal("failed to load report instance", errutil.WithErr(err))
	}
	inst, err := instanceFromRecord(rec)
	if err != nil {
		return nil, errutil.Internal("corrupt report instance", errutil.WithErr(err))
	}
	return inst, nil
}
