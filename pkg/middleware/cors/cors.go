// Package cors implements cross-origin resource sharing headers.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// Config configures CORS middleware behavior. AllowAllOrigins and
// AllowCredentials are mutually exclusive; enabling both drops credentials.
type Config struct {
	Enabled bool

	AllowAllOrigins  bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultConfig returns CORS middleware defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		MaxAge:       12 * time.Hour,
	}
}

// Middleware returns a router middleware implementing CORS.
func Middleware(cfg Config) router.MiddlewareFunc {
	cfg = normalize(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !cfg.Enabled {
				return next(c)
			}

			req := c.Request()
			res := c.Response()
			origin := req.Header.Get("Origin")
			if origin == "" {
				return next(c)
			}

			if !cfg.isOriginAllowed(origin) {
				if isPreflight(req) {
					res.WriteHeader(http.StatusForbidden)
					return nil
				}
				return next(c)
			}

			applyVary(res.Header())
			cfg.setOriginHeaders(res.Header(), origin)

			if len(cfg.ExposeHeaders) > 0 {
				res.Header().Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
			}

			if isPreflight(req) {
				res.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
				if len(cfg.AllowHeaders) > 0 {
					res.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
				} else if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
					res.Header().Set("Access-Control-Allow-Headers", requested)
				}
				if cfg.MaxAge > 0 {
					res.Header().Set("Access-Control-Max-Age", formatMaxAge(cfg.MaxAge))
				}
				res.WriteHeader(http.StatusNoContent)
				return nil
			}

			return next(c)
		}
	}
}

func normalize(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AllowMethods == nil {
		cfg.AllowMethods = defaults.AllowMethods
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaults.MaxAge
	}

	for i := range cfg.AllowMethods {
		cfg.AllowMethods[i] = strings.ToUpper(strings.TrimSpace(cfg.AllowMethods[i]))
	}
	for i := range cfg.AllowOrigins {
		cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
	}
	for i := range cfg.AllowHeaders {
		cfg.AllowHeaders[i] = strings.TrimSpace(cfg.AllowHeaders[i])
	}
	for i := range cfg.ExposeHeaders {
		cfg.ExposeHeaders[i] = strings.TrimSpace(cfg.ExposeHeaders[i])
	}

	if cfg.AllowAllOrigins {
		cfg.AllowCredentials = false
	}

	return cfg
}

func isPreflight(req *http.Request) bool {
	return req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != ""
}

func (cfg Config) isOriginAllowed(origin string) bool {
	if cfg.AllowAllOrigins {
		return true
	}

	for _, allowed := range cfg.AllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (cfg Config) setOriginHeaders(h http.Header, origin string) {
	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		return
	}
	if cfg.AllowAllOrigins || cfg.isAllowAllOriginsList() {
		h.Set("Access-Control-Allow-Origin", "*")
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
}

func (cfg Config) isAllowAllOriginsList() bool {
	for _, allowed := range cfg.AllowOrigins {
		if strings.TrimSpace(allowed) == "*" {
			return true
		}
	}
	return false
}

func applyVary(h http.Header) {
	appendVary(h, "Origin")
	appendVary(h, "Access-Control-Request-Method")
	appendVary(h, "Access-Control-Request-Headers")
}

func appendVary(h http.Header, value string) {
	current := h.Get("Vary")
	if current == "" {
		h.Set("Vary", value)
		return
	}

	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	h.Set("Vary", current+", "+value)
}

func formatMaxAge(duration time.Duration) string {
	seconds := int(duration / time.Second)
	if seconds < 0 {
		return "0"
	}
	return strconv.Itoa(seconds)
}
