package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"StockForecaster/pkg/logger"

	"github.com/labstack/echo/v4"
)

// errorBody mirrors the API envelope without importing pkg/http.
func errorBody(status int, data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status":  status,
		"message": http.StatusText(status),
		"data":    data,
	}
}

// Recover turns a handler panic into a logged 500.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				l.Error("panic recovered",
					logger.String("route", c.Path()),
					logger.String("method", c.Request().Method),
					logger.Error(perr),
					logger.String("stack", string(debug.Stack())),
				)
				if !c.Response().Committed {
					err = c.JSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, "Something went wrong"))
				}
			}()
			return next(c)
		}
	}
}
