package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"stockpost/pkg/logger"
)

// EdgeConfig configures the net/http layer in front of the router.
type EdgeConfig struct {
	Production         bool
	RateLimitPerMinute int
}

// Edge wraps the API handler with security headers and per-IP rate limiting.
// Ops endpoints are not rate limited.
func Edge(next http.Handler, cfg EdgeConfig) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	handler := next
	if cfg.RateLimitPerMinute > 0 {
		limited := httprate.Limit(cfg.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))(next)
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOpsPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := secureMiddleware.Process(w, r); err != nil {
			logger.Warn(r.Context(), "secure headers blocked request", "error", err)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func isOpsPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
