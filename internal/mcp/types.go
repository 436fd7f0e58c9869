package mcp

import (
	"time"

	"github.com/rpggio/packetd/internal/domain/packet"
)

type PacketsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of packets to list (default 10)"`
}

type PacketIDParams struct {
	PacketID int64 `json:"packet_id" jsonschema:"packet number"`
}

type AdminUserParams struct {
	UserID int64 `json:"user_id" jsonschema:"id of the packet owner"`
}

type AdminSearchParams struct {
	Username string `json:"username" jsonschema:"username or a fragment of it, with or without @"`
}

type CommandInfo struct {
	Name        string `json:"name"`
	Usage       string `json:"usage"`
	Description string `json:"description"`
	Admin       bool   `json:"admin,omitempty"`
}

type HelpResult struct {
	Text     string        `json:"text"`
	Commands []CommandInfo `json:"commands"`
}

type NewPacketResult struct {
	ClosedPacketID   int64  `json:"closed_packet_id,omitempty" jsonschema:"packet that was closed, if any"`
	SummaryDelivered bool   `json:"summary_delivered" jsonschema:"whether the closing summary reached the user"`
	Message          string `json:"message"`
}

// CurrentPacket describes the packet still accepting messages.
type CurrentPacket struct {
	PacketID        int64   `json:"packet_id"`
	Messages        int     `json:"messages"`
	Participants    int     `json:"participants"`
	ClosesInSeconds float64 `json:"closes_in_seconds" jsonschema:"seconds until the idle window closes"`
	Notified        bool    `json:"notified"`
}

type StatsResult struct {
	PacketCount     int            `json:"packet_count"`
	MessageCount    int            `json:"message_count"`
	OwnMessages     int            `json:"own_messages"`
	ForeignMessages int            `json:"foreign_messages"`
	Current         *CurrentPacket `json:"current,omitempty"`
}

type PacketRefResponse struct {
	ID               int64  `json:"id"`
	OwnerID          int64  `json:"owner_id"`
	OwnerUsername    string `json:"owner_username,omitempty"`
	CreatedAt        string `json:"created_at" jsonschema:"RFC3339 timestamp when the packet opened"`
	MessageCount     int    `json:"message_count"`
	ParticipantCount int    `json:"participant_count"`
}

type PacketsResult struct {
	Packets []PacketRefResponse `json:"packets"`
}

// DeliveryResult reports a transcript sent to the caller.
type DeliveryResult struct {
	PacketID      int64  `json:"packet_id"`
	Messages      int    `json:"messages"`
	OwnerID       int64  `json:"owner_id,omitempty"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

type UserPackets struct {
	UserID   int64               `json:"user_id"`
	Username string              `json:"username,omitempty"`
	Packets  []PacketRefResponse `json:"packets"`
}

type AdminSearchResult struct {
	Query string        `json:"query"`
	Users []UserPackets `json:"users"`
}

func toRefResponses(refs []packet.PacketRef) []PacketRefResponse {
	resp := make([]PacketRefResponse, 0, len(refs))
	for _, ref := range refs {
		resp = append(resp, PacketRefResponse{
			ID:               ref.ID,
			OwnerID:          ref.OwnerID,
			OwnerUsername:    ref.OwnerUsername,
			CreatedAt:        ref.CreatedAt.Format(time.RFC3339),
			MessageCount:     ref.MessageCount,
			ParticipantCount: ref.ParticipantCount,
		})
	}
	return resp
}

// groupByOwner keeps the first-seen owner order of refs.
func groupByOwner(refs []packet.PacketRef) []UserPackets {
	index := make(map[int64]int)
	var users []UserPackets
	for _, ref := range refs {
		i, ok := index[ref.OwnerID]
		if !ok {
			i = len(users)
			index[ref.OwnerID] = i
			users = append(users, UserPackets{UserID: ref.OwnerID, Username: ref.OwnerUsername})
		}
		users[i].Packets = append(users[i].Packets, toRefResponses([]packet.PacketRef{ref})...)
	}
	return users
}
