package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"route-recon/internal/models"
	"route-recon/pkg/utils"
)

func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[Recovery] PANIC RECOVERED: %v\n%s", err, debug.Stack())
				utils.JSON(w, http.StatusInternalServerError, models.Envelope{
					Status:  models.StatusError,
					Message: "Internal server error",
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
