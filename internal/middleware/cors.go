package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"route-recon/internal/config"
)

// NewCORS answers OPTIONS preflights with 200, which browser clients of the
// exec endpoint expect.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       cfg.Server.CorsAllowedOrigins,
		AllowedMethods:       cfg.Server.CorsAllowedMethods,
		AllowedHeaders:       cfg.Server.CorsAllowedHeaders,
		OptionsSuccessStatus: http.StatusOK,
		MaxAge:               300, // 5 minutes
	})

	return c.Handler
}
