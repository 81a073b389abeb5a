package echoapi

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const sweepKeyHeader = "X-Sweep-Key"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins and teachers through.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsAdmin || claims.IsTeacher {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

func studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsStudent {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// sweepAuthMiddleware accepts either the X-Sweep-Key shared with the external scheduler
// or an admin JWT. An empty triggerKey disables key authentication.
func sweepAuthMiddleware(triggerKey string, jwt echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		asAdmin := jwt(adminMiddleware()(next))
		return func(ctx echo.Context) error {
			key := ctx.Request().Header.Get(sweepKeyHeader)
			if key == "" {
				return asAdmin(ctx)
			}
			if triggerKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(triggerKey)) == 1 {
				return next(ctx)
			}
			return errInvalidSweepKey
		}
	}
}
