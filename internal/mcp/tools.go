package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type emptyParams struct{}

func registerTools(server *sdkmcp.Server, h *Handler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "help",
		Description: "Explain how packets are formed and list the available commands",
	}, callerTool(func(_ context.Context, callerID int64, _ emptyParams) (HelpResult, error) {
		return h.Help(callerID), nil
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "new_packet",
		Description: "Close the caller's open packet and send its summary; the next message starts a new packet",
	}, callerTool(func(ctx context.Context, callerID int64, _ emptyParams) (NewPacketResult, error) {
		return h.NewPacket(ctx, callerID)
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "stats",
		Description: "Packet and message totals for the caller, plus the packet still open",
	}, callerTool(func(ctx context.Context, callerID int64, _ emptyParams) (StatsResult, error) {
		return h.Stats(ctx, callerID)
	}))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "packets",
		Description: "List the caller's latest packets, newest first",
	}, callerTool(h.Packets))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_packet",
		Description: "Send the transcript of one of the caller's packets to the caller",
	}, callerTool(h.GetPacket))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "admin_packet",
		Description: "Admin only: send the transcript of any packet to the caller",
	}, callerTool(h.AdminPacket))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "admin_user",
		Description: "Admin only: list the packets of a user",
	}, callerTool(h.AdminUser))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "admin_search",
		Description: "Admin only: find packets by owner username",
	}, callerTool(h.AdminSearch))
}

// callerTool adapts a command method to a typed tool handler, resolving the
// caller from the request context.
func callerTool[In, Out any](fn func(context.Context, int64, In) (Out, error)) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input In) (*sdkmcp.CallToolResult, Out, error) {
		var zero Out
		callerID, ok := CallerIDFromContext(ctx)
		if !ok {
			return nil, zero, mapError(ErrNoCaller)
		}
		out, err := fn(ctx, callerID, input)
		if err != nil {
			return nil, zero, mapError(err)
		}
		return nil, out, nil
	}
}
