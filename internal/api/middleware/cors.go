package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"taskhub/internal/platform/config"
)

// CORS allows the configured browser origins. Credentials are only allowed
// for explicit origins since "*" cannot be combined with them.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		MaxAge:         cfg.MaxAge,
	}

	opts.AllowCredentials = len(cfg.AllowedOrigins) > 0
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			opts.AllowCredentials = false
			break
		}
	}

	return cors.Handler(opts)
}
