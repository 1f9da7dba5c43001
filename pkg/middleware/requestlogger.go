package middleware

import (
	"log/slog"
	"net/http"

	"github.com/KavyaGunapati/TypeFromProject/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context. The logger carries
// correlation_id, trace_id and span_id, plus user_id on routes behind Auth.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Only identities asserted by a verified bearer token are logged.
			if userID := UserIDFromContext(ctx); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
