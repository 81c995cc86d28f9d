package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"

	applogger "SignalFlow/pkg/logger"
)

const panicStackBytes = 8 << 10

// Recover logs a handler panic with a truncated stack and answers 500.
// If the handler already wrote a response, only the log is emitted.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	log := l.Component("http-recover")
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

				stack := make([]byte, panicStackBytes)
				stack = stack[:runtime.Stack(stack, false)]
				log.Error("handler panic",
					applogger.String("method", c.Request().Method),
					applogger.String("route", routeOf(c)),
					applogger.String("panic", fmt.Sprint(r)),
					applogger.String("stack", string(stack)),
				)

				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"code":    "ERR_INTERNAL",
					"message": http.StatusText(http.StatusInternalServerError),
				})
			}()
			return next(c)
		}
	}
}
