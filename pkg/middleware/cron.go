package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

// CronSecret guards the scheduler trigger endpoints with a shared bearer
// secret. Responds 401 on a missing or mismatched secret.
func CronSecret(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Error("Cron secret is not configured, rejecting trigger",
					zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Cron trigger is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.ResponseUnauthorized(w, "Missing cron secret. Use: Bearer <secret>")
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(secret)) != 1 {
				logger.Warn("Cron trigger with bad secret",
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr))
				utils.ResponseUnauthorized(w, "Invalid cron secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
