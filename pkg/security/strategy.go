package security

import (
	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/errutil"

	"go.uber.org/fx"
)

var Module = fx.Module("security",
	fx.Provide(
		NewAccessManager,
		NewConfigSharingClient,
		NewSelector,
	),
)

// ResourceType identifies a shareable resource kind.
type ResourceType string

const (
	ReportDefinitionType ResourceType = "report_definition"
	ReportInstanceType   ResourceType = "report_instance"
)

// ResourceSharingClient is the external resource-sharing authority. When it
// owns a resource type, document-level authorization happens beneath this
// service and the embedded checks must be skipped.
type ResourceSharingClient interface {
	IsFeatureEnabledForType(t ResourceType) bool
}

// Strategy decides how a single operation is authorized for one resource type.
// Exactly one of the two modes applies; running both would either double-filter
// shared resources or leak access.
type Strategy interface {
	// CheckAccess authorizes a direct read/update/delete against a resource's
	// tenant and access list. Returns a Forbidden error on mismatch.
	CheckAccess(u *User, tenant string, access []string) error
	// CreationPrincipals returns the access list stamped on a new resource.
	CreationPrincipals(u *User) []string
	// SearchFilter returns the principal filter for list queries. Empty means
	// no local filtering.
	SearchFilter(u *User) []string
}

// Selector picks the embedded or delegated strategy per resource type.
type Selector struct {
	mgr     *AccessManager
	sharing ResourceSharingClient
}

func NewSelector(mgr *AccessManager, sharing ResourceSharingClient) *Selector {
	return &Selector{mgr: mgr, sharing: sharing}
}

func (s *Selector) ForResource(t ResourceType) Strategy {
	if s.sharing != nil && s.sharing.IsFeatureEnabledForType(t) {
		return delegatedStrategy{}
	}
	return embeddedStrategy{mgr: s.mgr}
}

type embeddedStrategy struct {
	mgr *AccessManager
}

func (e embeddedStrategy) CheckAccess(u *User, tenant string, access []string) error {
	if !e.mgr.HasAccess(u, tenant, access) {
		return errutil.Forbidden("permission denied")
	}
	return nil
}

func (e embeddedStrategy) CreationPrincipals(u *User) []string {
	return e.mgr.AllAccessPrincipals(u)
}

func (e embeddedStrategy) SearchFilter(u *User) []string {
	return e.mgr.SearchAccessPrincipals(u)
}

// delegatedStrategy trusts the external authority: it has already filtered
// search results and authorized document access before calls reach this layer.
type delegatedStrategy struct{}

func (delegatedStrategy) CheckAccess(*User, string, []string) error { return nil }

func (delegatedStrategy) CreationPrincipals(*User) []string { return nil }

func (delegatedStrategy) SearchFilter(*User) []string { return nil }

// configSharingClient enables delegation per resource type from static
// configuration. Deployments with a real sharing authority provide their own
// client through fx.
type configSharingClient struct {
	cfg *config.Config
}

func NewConfigSharingClient(cfg *config.Config) ResourceSharingClient {
	return &configSharingClient{cfg: cfg}
}

func (c *configSharingClient) IsFeatureEnabledForType(t ResourceType) bool {
	switch t {
	case ReportDefinitionType:
		return c.cfg.Reports.ResourceSharing.ReportDefinition
	case ReportInstanceType:
		return c.cfg.Reports.ResourceSharing.ReportInstance
	default:
		return false
	}
}
