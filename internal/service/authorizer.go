package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

// Authorization objects.
const (
	ObjectGrid    = "grid"
	ObjectFilters = "filters"
	ObjectCharts  = "charts"
	ObjectExport  = "export"
	ObjectSession = "session"
)

// Authorization actions.
const (
	ActionView        = "view"
	ActionEdit        = "edit"
	ActionSave        = "save"
	ActionLock        = "lock"
	ActionImpersonate = "impersonate"
)

const authzModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicy grants each role its grid operations.
var DefaultPolicy = []string{
	"p, BP, grid, ^(view|edit|save|lock)$",
	"p, BP, filters, ^(view|save)$",
	"p, BP, charts, ^view$",
	"p, BP, export, ^view$",
	"p, MA, grid, ^(view|edit|save)$",
	"p, MA, filters, ^(view|save)$",
	"p, MA, charts, ^view$",
	"p, MA, export, ^view$",
	"p, LC, grid, ^view$",
	"p, LC, filters, ^(view|save)$",
	"p, LC, charts, ^view$",
	"p, LC, export, ^view$",
	"p, DEV, *, .*",
	"p, TEST, *, .*",
}

// Authorizer decides which role may perform which grid operation.
type Authorizer struct {
	enforcer *casbin.Enforcer
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewAuthorizer builds the enforcer from policy lines, DefaultPolicy when
// none are given.
func NewAuthorizer(policy []string, logger *zap.Logger) (*Authorizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(policy) == 0 {
		policy = DefaultPolicy
	}
	m, err := model.NewModelFromString(authzModel)
	if err != nil {
		return nil, fmt.Errorf("authz: invalid model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(strings.Join(policy, "\n")))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	return &Authorizer{enforcer: enf, logger: logger.With(zap.String("component", "authz"))}, nil
}

// Check evaluates a request without returning an authorization error.
func (a *Authorizer) Check(role models.Role, object, action string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	allowed, err := a.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return allowed, nil
}

// Authorize returns ErrForbidden when role may not perform action on object.
func (a *Authorizer) Authorize(role models.Role, object, action string) error {
	allowed, err := a.Check(role, object, action)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInternal, "authorization check failed")
	}
	if !allowed {
		a.logger.Warn("authz denied request", zap.String("role", string(role)), zap.String("object", object), zap.String("action", action))
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not %s %s", role, action, object))
	}
	return nil
}
