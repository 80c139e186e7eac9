package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-routing-service/internal/domain"
	apperrors "github.com/spec-kit/query-routing-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller as asserted by the identity
// service: who they are, which role tier they hold, and which institute they
// act for.
type Principal struct {
	UserID      string
	RoleID      string
	RoleName    domain.RoleName
	InstituteID string
}

// IsAdmin reports whether the principal holds the administrative role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.RoleName == domain.RoleAdmin
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.SubjectID == "" || claims.InstituteID == "" {
		return apperrors.NewUnauthorized("incomplete token claims")
	}

	c.Locals(principalKey, &Principal{
		UserID:      claims.SubjectID,
		RoleID:      claims.RoleID,
		RoleName:    claims.RoleName,
		InstituteID: claims.InstituteID,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
