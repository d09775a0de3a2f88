package echoapi

import (
	"github.com/labstack/echo/v4"
)

// tabMiddleware resolves the portal of the TabHeader and stores it in the echo.Context.
func tabMiddleware(t *tabs) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Request().Header.Get(TabHeader)
			if id == "" {
				return errHttpMissingTab
			}
			p, ok := t.get(id)
			if !ok {
				return errHttpUnknownTab
			}
			ctx.Set(contextTabKey, p)
			return next(ctx)
		}
	}
}
