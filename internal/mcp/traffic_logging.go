package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

func trafficLoggingMiddleware(logger zerolog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger.GetLevel() > zerolog.DebugLevel {
				return next(ctx, method, req)
			}

			callerID, _ := CallerIDFromContext(ctx)
			logger.Debug().
				Str("direction", direction).
				Str("stage", "request").
				Str("method", method).
				Int64("caller_id", callerID).
				Str("params", formatPayload(safeParams(req))).
				Msg("mcp traffic")

			result, err := next(ctx, method, req)
			if !strings.HasPrefix(method, "notifications/") {
				logger.Debug().
					Str("direction", direction).
					Str("stage", "response").
					Str("method", method).
					Int64("caller_id", callerID).
					Str("result", formatPayload(result)).
					Err(err).
					Msg("mcp traffic")
			}
			return result, err
		}
	}
}

func safeParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	return string(data)
}
