package echoapi

import (
	"github.com/labstack/echo/v4"
)

// requireAuth rejects requests whose identity could not be resolved.
func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !identity(ctx).Authenticated {
			return errUnauthorized
		}
		return next(ctx)
	}
}
