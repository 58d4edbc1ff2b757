package auth

import (
	"context"
	"strings"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// Middleware creates authentication middleware. Requests must carry a
// valid bearer token; the user id and role from its claims are stored in
// the request context for handlers.
func Middleware(validator JWTValidator, log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return controller.Error(c, controller.NewUnauthorizedError("missing or malformed authorization header"))
			}

			claims, err := validator.Validate(c.Request().Context(), token)
			if err != nil {
				log.Debug("token rejected", "error", err)
				return controller.Error(c, controller.NewUnauthorizedError("invalid or expired token"))
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, middleware.UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, middleware.UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(middleware.UserIDKey), claims.Subject)
			c.Set(string(middleware.UserRoleKey), claims.Role)

			return next(c)
		}
	}
}

// RequireRole creates middleware that rejects authenticated requests
// whose role is not in the allowed set. It must run after Middleware.
func RequireRole(roles ...string) router.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			role := middleware.GetUserRole(c.Request().Context())
			if role == "" {
				return controller.Error(c, controller.NewUnauthorizedError("authentication required"))
			}
			if _, ok := allowed[role]; !ok {
				return controller.Error(c, controller.NewForbiddenError("insufficient role"))
			}
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
