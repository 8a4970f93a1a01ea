package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/observability"
)

// Rejection bodies returned by the gate.
const (
	MessageAuthenticationRequired = "Authentication required"
	MessageInsufficientPermission = "Insufficient permissions"
)

// Decorator wraps a handler with an authorization check.
type Decorator func(fiber.Handler) fiber.Handler

// Gate authorizes requests before they reach protected handlers. It only
// reads the request: it never renews credentials or stores anything.
type Gate struct {
	extractor CredentialExtractor
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewGate constructs a gate.
func NewGate(extractor CredentialExtractor, logger *zap.Logger, metrics *observability.Metrics) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{extractor: extractor, logger: logger, metrics: metrics}
}

// RequireRole admits callers whose role equals role.
func (g *Gate) RequireRole(role domain.Role) Decorator {
	return g.guard("role:"+role.String(), func(cred domain.Credential) bool {
		return cred.Role == role
	})
}

// RequireAnyRole admits callers whose role is one of roles. An empty list admits nobody.
func (g *Gate) RequireAnyRole(roles ...domain.Role) Decorator {
	allowed := make(map[domain.Role]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		names = append(names, role.String())
	}
	return g.guard("roles:"+strings.Join(names, ","), func(cred domain.Credential) bool {
		_, ok := allowed[cred.Role]
		return ok
	})
}

// RequirePermissions admits callers holding every listed permission. Roles
// never imply permissions.
func (g *Gate) RequirePermissions(perms ...domain.Permission) Decorator {
	required := domain.NewPermissionSet(perms...)
	return g.guard("permissions:"+strings.Join(required.Strings(), ","), func(cred domain.Credential) bool {
		return cred.Permissions.Contains(required)
	})
}

// RequireAuthenticated admits any caller with a usable credential.
func (g *Gate) RequireAuthenticated() Decorator {
	return g.guard("authenticated", func(domain.Credential) bool { return true })
}

// Credential returns the caller's credential for handlers behind the gate.
func (g *Gate) Credential(c *fiber.Ctx) (domain.Credential, bool) {
	cred, ok := g.extractor.Extract(c)
	if !ok || !cred.Authenticated() {
		return domain.Credential{}, false
	}
	return cred, true
}

func (g *Gate) guard(rule string, authorize func(domain.Credential) bool) Decorator {
	return func(next fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			cred, ok := g.extractor.Extract(c)
			if !ok || !cred.Authenticated() {
				g.metrics.RecordGateDecision("unauthenticated")
				g.logger.Debug("gate rejected unauthenticated request",
					zap.String("rule", rule),
					zap.String("path", c.Path()),
					zap.String("credential_error", cred.Error),
				)
				return reject(c, fiber.StatusUnauthorized, MessageAuthenticationRequired)
			}
			if !authorize(cred) {
				g.metrics.RecordGateDecision("forbidden")
				g.logger.Debug("gate rejected unauthorized request",
					zap.String("rule", rule),
					zap.String("path", c.Path()),
					zap.String("subject_id", cred.SubjectID),
					zap.String("role", cred.Role.String()),
				)
				return reject(c, fiber.StatusForbidden, MessageInsufficientPermission)
			}
			g.metrics.RecordGateDecision("allow")
			return next(c)
		}
	}
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
