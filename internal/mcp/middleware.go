package mcp

import (
	"context"
	"strconv"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallerHeader carries the id of the user a command runs for.
const CallerHeader = "X-User-Id"

type contextKey int

const callerIDKey contextKey = iota

// WithCallerID stores the caller id in ctx.
func WithCallerID(ctx context.Context, callerID int64) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// CallerIDFromContext returns the caller id from ctx, if present.
func CallerIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(callerIDKey).(int64)
	return v, ok && v != 0
}

// ParseCallerID parses a caller id header value.
func ParseCallerID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// callerMiddleware reads the caller id from the X-User-Id header of the
// HTTP request carrying the call.
func callerMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if _, ok := CallerIDFromContext(ctx); ok {
				return next(ctx, method, req)
			}
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				if id, ok := ParseCallerID(extra.Header.Get(CallerHeader)); ok {
					ctx = WithCallerID(ctx, id)
				}
			}
			return next(ctx, method, req)
		}
	}
}
