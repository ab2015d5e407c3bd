package auth

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/errorutil"
)

// PermissionReader lists the permission names granted to a staff member.
type PermissionReader interface {
	PermissionsForStaff(ctx context.Context, staffID string) ([]string, error)
}

// RequirePermission admits the request only if the principal holds
// "<resource>.<action>", where the action follows from the HTTP method.
func RequirePermission(reader PermissionReader, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Staff == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		action, ok := domain.ActionForMethod(c.Method())
		if !ok {
			return apperrors.NewForbidden(fmt.Sprintf("method %s is not permitted", c.Method()))
		}
		required := domain.Permission(resource, action)

		granted, err := reader.PermissionsForStaff(c.UserContext(), principal.Staff.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		for _, name := range granted {
			if name == required {
				return c.Next()
			}
		}
		return apperrors.NewDomainError("FORBIDDEN", "missing permission", fiber.StatusForbidden,
			map[string]any{"required": required})
	}
}
