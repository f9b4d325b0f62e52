package middleware

import (
	"net/http"
	"strings"

	"educrm/internal/auth"
	"educrm/pkg/models"

	"github.com/labstack/echo/v4"
)

// JWTAuth middleware validates JWT tokens and attaches identity to the
// request context
func JWTAuth(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := authHeader[7:]
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if claims.Type != "access" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token type")
			}

			c.Set("claims", claims)
			c.Set("user_id", claims.UserID)
			c.Set("user_email", claims.Email)
			c.Set("user_role", claims.Role)

			if claims.OfficeID != nil {
				c.Set("office_id", *claims.OfficeID)
			}

			return next(c)
		}
	}
}

// RequireRole middleware ensures the user has one of the given roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := c.Get("user_role")
			if userRole == nil {
				return echo.NewHTTPError(http.StatusForbidden, "User role not found")
			}

			roleStr := userRole.(string)
			for _, role := range roles {
				if roleStr == role {
					return next(c)
				}
			}

			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// SuperAdminOnly restricts a route to super admins
func SuperAdminOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleSuperAdmin)
}

// ManagerOrAbove allows office managers and super admins
func ManagerOrAbove() echo.MiddlewareFunc {
	return RequireRole(models.RoleSuperAdmin, models.RoleManager)
}

// StaffOnly allows every staff role, excluding leads
func StaffOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleSuperAdmin, models.RoleManager, models.RoleConsultant, models.RoleReceptionist)
}

// RequireOfficeScope ensures the user carries an office context. Super
// admins pass without one.
func RequireOfficeScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := c.Get("user_role")
			if userRole == nil {
				return echo.NewHTTPError(http.StatusForbidden, "User role not found")
			}
			if userRole.(string) == models.RoleSuperAdmin {
				return next(c)
			}
			if c.Get("office_id") == nil {
				return echo.NewHTTPError(http.StatusForbidden, "Office context required")
			}
			return next(c)
		}
	}
}
