package middleware

import (
	"net/http"

	reqcontext "github.com/prajwalbharadwajbm/mailproof/internal/context"
)

// RequestIDMiddleware adds request IDs to incoming requests
type RequestIDMiddleware struct{}

// NewRequestIDMiddleware creates a new request ID middleware
func NewRequestIDMiddleware() *RequestIDMiddleware {
	return &RequestIDMiddleware{}
}

// Middleware keeps an upstream X-Request-ID or generates one, and echoes it back.
func (m *RequestIDMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqcontext.NewRequestContext(r.Context(), r.Header.Get(reqcontext.RequestIDHeader), r.UserAgent(), r.RemoteAddr)

		w.Header().Set(reqcontext.RequestIDHeader, reqcontext.GetRequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
