package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const commandsDocURI = "packetd://docs/commands"

var commandCatalog = []CommandInfo{
	{Name: "new_packet", Usage: "/new_packet", Description: "close the current packet now"},
	{Name: "stats", Usage: "/stats", Description: "your packet statistics"},
	{Name: "get_packet", Usage: "/get_packet <number>", Description: "show the conversation in a packet"},
	{Name: "packets", Usage: "/packets", Description: "list your latest packets"},
	{Name: "admin_packet", Usage: "/ap <number>", Description: "show any packet by id", Admin: true},
	{Name: "admin_user", Usage: "/auser <user_id>", Description: "list a user's packets", Admin: true},
	{Name: "admin_search", Usage: "/asearch <username>", Description: "search packets by username", Admin: true},
}

func helpText(idle time.Duration, admin bool) string {
	var b strings.Builder
	b.WriteString("👋 I keep the conversations you forward to me.\n\n")
	b.WriteString("📝 How it works:\n")
	b.WriteString("1. Forward me messages from a conversation\n")
	b.WriteString("2. I group them into packets by the time they reach ME\n")
	fmt.Fprintf(&b, "3. Messages sent within %s of each other land in one packet\n", idle)
	b.WriteString("4. When a packet closes I send ONE summary with its stats\n\n")
	b.WriteString("Commands:\n")
	for _, cmd := range commandCatalog {
		if cmd.Admin {
			continue
		}
		fmt.Fprintf(&b, "%s - %s\n", cmd.Usage, cmd.Description)
	}
	if admin {
		b.WriteString("\n🔐 Admin commands:\n")
		for _, cmd := range commandCatalog {
			if cmd.Admin {
				fmt.Fprintf(&b, "%s - %s\n", cmd.Usage, cmd.Description)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func visibleCommands(admin bool) []CommandInfo {
	cmds := make([]CommandInfo, 0, len(commandCatalog))
	for _, cmd := range commandCatalog {
		if cmd.Admin && !admin {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func registerDocResources(server *sdkmcp.Server, idle time.Duration) {
	content := helpText(idle, true)
	server.AddResource(&sdkmcp.Resource{
		URI:         commandsDocURI,
		Name:        "commands",
		Title:       "packetd commands",
		Description: "How packets are formed and the commands that read them",
		MIMEType:    "text/markdown",
		Size:        int64(len(content)),
	}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		uri := commandsDocURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     content,
			}},
		}, nil
	})
}
