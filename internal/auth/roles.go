package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/inspection-audit/internal/domain"
	apperrors "github.com/spec-kit/inspection-audit/pkg/util/errorutil"
)

// RequireActiveUser ensures the caller is an authenticated, active inspector.
func RequireActiveUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.User.Status != domain.UserStatusActive {
			return apperrors.NewForbidden("account suspended")
		}
		return c.Next()
	}
}
