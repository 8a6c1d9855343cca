package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/micheleDibi/StyleForge-sub000/pkg/requestid"
)

// RequestID takes the request ID from the X-Request-ID header or generates
// one, stores it in the request context for both pkg/requestid and chi, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestid.Header)
		if requestID == "" {
			requestID = requestid.Generate()
		}

		ctx := requestid.ToContext(r.Context(), requestID)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, requestID)
		w.Header().Set(requestid.Header, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
