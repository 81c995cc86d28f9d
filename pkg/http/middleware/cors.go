package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the header.
	MaxAge int
}

// CORS reflects allowed origins back to the browser and short-circuits
// preflight requests. An origin of "*" matches everything.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	wildcard := false
	origins := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[strings.ToLower(o)] = struct{}{}
	}
	preflight := map[string]string{
		echo.HeaderAccessControlAllowMethods: strings.Join(cfg.AllowMethods, ", "),
		echo.HeaderAccessControlAllowHeaders: strings.Join(cfg.AllowHeaders, ", "),
	}
	if cfg.MaxAge > 0 {
		preflight[echo.HeaderAccessControlMaxAge] = strconv.Itoa(cfg.MaxAge)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return next(c)
			}
			if _, ok := origins[strings.ToLower(origin)]; !ok && !wildcard {
				return next(c)
			}

			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			for k, v := range preflight {
				if v != "" {
					h.Set(k, v)
				}
			}

			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
