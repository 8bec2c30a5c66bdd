// Package context carries per-request metadata (request id, caller, timing) from the
// HTTP layer down to the service middlewares.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is read from upstream proxies and echoed on every response.
const RequestIDHeader = "X-Request-ID"

type requestInfoKey struct{}

// RequestInfo holds information about the current request
type RequestInfo struct {
	ID         string    `json:"request_id"`
	StartTime  time.Time `json:"start_time"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// WithRequestInfo stores info in ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// GetRequestInfo extracts the request information, or the zero value.
func GetRequestInfo(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// NewRequestContext attaches request metadata to ctx. An empty requestID gets a fresh uuid.
func NewRequestContext(ctx context.Context, requestID, userAgent, remoteAddr string) context.Context {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return WithRequestInfo(ctx, RequestInfo{
		ID:         requestID,
		StartTime:  time.Now(),
		UserAgent:  userAgent,
		RemoteAddr: remoteAddr,
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return GetRequestInfo(ctx).ID
}

func GetUserAgent(ctx context.Context) string {
	return GetRequestInfo(ctx).UserAgent
}

func GetRemoteAddr(ctx context.Context) string {
	return GetRequestInfo(ctx).RemoteAddr
}

// Elapsed returns the time since the request started, or zero outside a request.
func Elapsed(ctx context.Context) time.Duration {
	start := GetRequestInfo(ctx).StartTime
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
