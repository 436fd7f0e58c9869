package mcp

import (
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const serverInstructions = `packetd groups forwarded messages into packets by idle gaps and
sends one summary per packet. Tools run for the user named in the X-User-Id
header. Read packetd://docs/commands for the command list.`

// Config contains server configuration.
type Config struct {
	Handler *Handler
	Version string
	Idle    time.Duration
	Logger  zerolog.Logger
}

// NewServer creates an MCP server exposing the packet commands as tools.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "packetd",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
	})

	registerDocResources(server, cfg.Idle)

	server.AddReceivingMiddleware(callerMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Handler)

	return server
}
