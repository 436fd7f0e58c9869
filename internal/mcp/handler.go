package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/domain/session"
	"github.com/rs/zerolog"
)

// PacketService defines packet queries needed by commands.
type PacketService interface {
	Stats(ctx context.Context, userID int64) (packet.UserStats, error)
	Recent(ctx context.Context, userID int64, limit int) ([]packet.PacketRef, error)
	Content(ctx context.Context, userID, packetID int64) ([]packet.Message, error)
	AdminContent(ctx context.Context, packetID int64) (*packet.AdminView, error)
	Summary(ctx context.Context, packetID int64) (*packet.Summary, error)
	SearchByUser(ctx context.Context, opts packet.SearchOptions) ([]packet.PacketRef, error)
}

// SessionControl exposes the live packet window of a user.
type SessionControl interface {
	ForceClose(ctx context.Context, userID int64) (int64, error)
	ActivePacketStatus(userID int64) (session.Status, bool)
}

// ContentSender delivers packet transcripts to a user.
type ContentSender interface {
	SendContent(ctx context.Context, userID, packetID int64, messages []packet.Message, viewer packet.Viewer) error
}

// AdminChecker decides who may run admin commands.
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// Services contains the collaborators commands dispatch to.
type Services struct {
	Packets  PacketService
	Sessions SessionControl
	Content  ContentSender
	Admins   AdminChecker
}

// Handler dispatches packet commands.
type Handler struct {
	packets  PacketService
	sessions SessionControl
	content  ContentSender
	admins   AdminChecker
	idle     time.Duration
	logger   zerolog.Logger
}

// NewHandler creates a new command handler. idle is the packet idle
// threshold quoted by help.
func NewHandler(svc Services, idle time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		packets:  svc.Packets,
		sessions: svc.Sessions,
		content:  svc.Content,
		admins:   svc.Admins,
		idle:     idle,
		logger:   logger,
	}
}

// Handle decodes params and runs method on behalf of callerID.
func (h *Handler) Handle(ctx context.Context, callerID int64, method string, params json.RawMessage) (any, error) {
	if callerID == 0 {
		return nil, mapError(ErrNoCaller)
	}

	var (
		result any
		err    error
	)
	switch method {
	case "help", "start":
		result = h.Help(callerID)
	case "new_packet":
		result, err = h.NewPacket(ctx, callerID)
	case "stats":
		result, err = h.Stats(ctx, callerID)
	case "packets":
		var req PacketsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		result, err = h.Packets(ctx, callerID, req)
	case "get_packet":
		var req PacketIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		result, err = h.GetPacket(ctx, callerID, req)
	case "admin_packet", "ap":
		var req PacketIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		result, err = h.AdminPacket(ctx, callerID, req)
	case "admin_user", "auser":
		var req AdminUserParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		result, err = h.AdminUser(ctx, callerID, req)
	case "admin_search", "asearch":
		var req AdminSearchParams
		if err := decodeParams(params, &req); err != nil {
			return nil, mapError(err)
		}
		result, err = h.AdminSearch(ctx, callerID, req)
	default:
		return nil, mapError(fmt.Errorf("%w: %s", ErrUnknownMethod, method))
	}
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// Help lists the commands visible to callerID.
func (h *Handler) Help(callerID int64) HelpResult {
	admin := h.isAdmin(callerID)
	return HelpResult{
		Text:     helpText(h.idle, admin),
		Commands: visibleCommands(admin),
	}
}

// NewPacket closes the caller's active packet so the next message starts a
// fresh one.
func (h *Handler) NewPacket(ctx context.Context, callerID int64) (NewPacketResult, error) {
	packetID, err := h.sessions.ForceClose(ctx, callerID)
	if packetID == 0 {
		return NewPacketResult{Message: "✅ Ready for messages!"}, err
	}

	result := NewPacketResult{
		ClosedPacketID:   packetID,
		SummaryDelivered: err == nil,
		Message:          "✅ New packet started!",
	}
	if err != nil {
		if !errors.Is(err, aggregator.ErrNotify) {
			return NewPacketResult{}, err
		}
		h.logger.Warn().Err(err).
			Int64("user_id", callerID).
			Int64("packet_id", packetID).
			Msg("packet closed without summary")
	}
	return result, nil
}

// Stats returns the caller's totals and the packet still open, if any.
func (h *Handler) Stats(ctx context.Context, callerID int64) (StatsResult, error) {
	stats, err := h.packets.Stats(ctx, callerID)
	if err != nil {
		return StatsResult{}, err
	}
	result := StatsResult{
		PacketCount:     stats.PacketCount,
		MessageCount:    stats.MessageCount,
		OwnMessages:     stats.OwnMessages,
		ForeignMessages: stats.ForeignMessages,
	}

	status, ok := h.sessions.ActivePacketStatus(callerID)
	if !ok {
		return result, nil
	}
	current := &CurrentPacket{
		PacketID:        status.PacketID,
		ClosesInSeconds: status.TimeRemaining.Seconds(),
		Notified:        status.Notified,
	}
	summary, err := h.packets.Summary(ctx, status.PacketID)
	if err != nil {
		h.logger.Warn().Err(err).
			Int64("user_id", callerID).
			Int64("packet_id", status.PacketID).
			Msg("current packet summary unavailable")
	} else {
		current.Messages = summary.TotalMessages
		current.Participants = summary.ParticipantCount
	}
	result.Current = current
	return result, nil
}

// Packets lists the caller's latest packets.
func (h *Handler) Packets(ctx context.Context, callerID int64, req PacketsParams) (PacketsResult, error) {
	refs, err := h.packets.Recent(ctx, callerID, req.Limit)
	if err != nil {
		return PacketsResult{}, err
	}
	return PacketsResult{Packets: toRefResponses(refs)}, nil
}

// GetPacket sends one of the caller's packets back to them.
func (h *Handler) GetPacket(ctx context.Context, callerID int64, req PacketIDParams) (DeliveryResult, error) {
	messages, err := h.packets.Content(ctx, callerID, req.PacketID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if err := h.content.SendContent(ctx, callerID, req.PacketID, messages, packet.Viewer{}); err != nil {
		return DeliveryResult{}, err
	}
	return DeliveryResult{PacketID: req.PacketID, Messages: len(messages)}, nil
}

// AdminPacket sends any packet to an admin caller, headed by its owner.
func (h *Handler) AdminPacket(ctx context.Context, callerID int64, req PacketIDParams) (DeliveryResult, error) {
	if err := h.requireAdmin(callerID); err != nil {
		return DeliveryResult{}, err
	}
	view, err := h.packets.AdminContent(ctx, req.PacketID)
	if err != nil {
		return DeliveryResult{}, err
	}

	owner := view.Summary.OwnerUsername
	if owner == "" {
		owner = "no username"
	}
	viewer := packet.Viewer{
		Admin:    true,
		UserInfo: fmt.Sprintf("👤 User: %s (ID: %d)", owner, view.Summary.OwnerID),
	}
	if err := h.content.SendContent(ctx, callerID, req.PacketID, view.Messages, viewer); err != nil {
		return DeliveryResult{}, err
	}

	h.logger.Info().
		Int64("admin_id", callerID).
		Int64("packet_id", req.PacketID).
		Msg("admin packet sent")
	return DeliveryResult{
		PacketID:      req.PacketID,
		Messages:      len(view.Messages),
		OwnerID:       view.Summary.OwnerID,
		OwnerUsername: view.Summary.OwnerUsername,
	}, nil
}

// AdminUser lists the packets of one user.
func (h *Handler) AdminUser(ctx context.Context, callerID int64, req AdminUserParams) (PacketsResult, error) {
	if err := h.requireAdmin(callerID); err != nil {
		return PacketsResult{}, err
	}
	refs, err := h.packets.SearchByUser(ctx, packet.SearchOptions{OwnerID: req.UserID})
	if err != nil {
		return PacketsResult{}, err
	}
	return PacketsResult{Packets: toRefResponses(refs)}, nil
}

// AdminSearch finds packets whose owner username contains req.Username.
func (h *Handler) AdminSearch(ctx context.Context, callerID int64, req AdminSearchParams) (AdminSearchResult, error) {
	if err := h.requireAdmin(callerID); err != nil {
		return AdminSearchResult{}, err
	}
	query := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
	refs, err := h.packets.SearchByUser(ctx, packet.SearchOptions{Username: query})
	if err != nil {
		return AdminSearchResult{}, err
	}
	return AdminSearchResult{Query: query, Users: groupByOwner(refs)}, nil
}

func (h *Handler) isAdmin(userID int64) bool {
	return h.admins != nil && h.admins.IsAdmin(userID)
}

func (h *Handler) requireAdmin(callerID int64) error {
	if !h.isAdmin(callerID) {
		h.logger.Warn().Int64("user_id", callerID).Msg("admin command refused")
		return ErrForbidden
	}
	return nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
