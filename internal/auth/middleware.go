package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

// Middleware validates bearer tokens on the trigger API.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// RequireScope rejects callers whose token lacks scope. It must run after Handle.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !claims.HasScope(scope) {
			return apperrors.NewDomainError(apperrors.CodeForbidden, "insufficient scope", fiber.StatusForbidden,
				map[string]any{"required": scope})
		}
		return c.Next()
	}
}

// ClaimsFromContext retrieves the authenticated token claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok
}
