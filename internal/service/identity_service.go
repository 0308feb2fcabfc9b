package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

// Identity is the resolved user behind a request.
type Identity struct {
	Email string
	Role  models.Role
	// Actor is set when a privileged user acts as someone else.
	Actor string
}

type permissionChecker interface {
	Authorize(role models.Role, object, action string) error
}

// IdentityConfig maps platform role ids to roles.
type IdentityConfig struct {
	RoleIDs          map[string]string
	AllowImpersonate bool

	// Permissions decides who may impersonate. Without it only DEV and TEST may.
	Permissions permissionChecker
}

// IdentityService resolves the platform identity headers.
type IdentityService struct {
	roles            map[string]models.Role
	allowImpersonate bool
	permissions      permissionChecker
	logger           *zap.Logger
}

// NewIdentityService constructs an IdentityService. Unknown role names in
// the mapping are ignored.
func NewIdentityService(cfg IdentityConfig, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := make(map[string]models.Role, len(cfg.RoleIDs))
	for id, name := range cfg.RoleIDs {
		role := models.ParseRole(name)
		if role == models.RoleUnknown {
			logger.Warn("ignoring mapping for unknown role", zap.String("role", name))
			continue
		}
		roles[strings.TrimSpace(id)] = role
	}
	return &IdentityService{roles: roles, allowImpersonate: cfg.AllowImpersonate, permissions: cfg.Permissions, logger: logger}
}

// ResolveRole maps a comma separated role id header onto the first
// configured role, UNKNOWN when none matches.
func (s *IdentityService) ResolveRole(header string) models.Role {
	for _, id := range strings.Split(header, ",") {
		if role, ok := s.roles[strings.TrimSpace(id)]; ok {
			return role
		}
	}
	return models.RoleUnknown
}

// Resolve builds the identity of a request. A privileged identity may act as
// another role and email when impersonation is allowed.
func (s *IdentityService) Resolve(rolesHeader, emailHeader string, actAs *models.Impersonation) (Identity, error) {
	role := s.ResolveRole(rolesHeader)
	if role == models.RoleUnknown {
		s.logger.Warn("role could not be resolved", zap.String("roles", rolesHeader))
		return Identity{}, appErrors.ErrRoleUnknown
	}
	email := models.NormalizeEmail(emailHeader)
	if email == "" {
		return Identity{}, appErrors.Clone(appErrors.ErrUnauthorized, "user email header is missing")
	}
	identity := Identity{Email: email, Role: role}
	if actAs == nil || (actAs.Role == "" && actAs.Email == "") {
		return identity, nil
	}

	if !s.allowImpersonate || !s.mayImpersonate(role) {
		return Identity{}, appErrors.Clone(appErrors.ErrForbidden, "impersonation is not allowed")
	}
	if actAs.Role != "" {
		target := models.ParseRole(actAs.Role)
		if target == models.RoleUnknown {
			return Identity{}, appErrors.ErrRoleUnknown
		}
		identity.Role = target
	}
	if actAs.Email != "" {
		identity.Email = models.NormalizeEmail(actAs.Email)
	}
	identity.Actor = email
	s.logger.Info("impersonating", zap.String("actor", email), zap.String("role", string(identity.Role)), zap.String("email", identity.Email))
	return identity, nil
}

func (s *IdentityService) mayImpersonate(role models.Role) bool {
	if s.permissions == nil {
		return role.Privileged()
	}
	return s.permissions.Authorize(role, ObjectSession, ActionImpersonate) == nil
}
