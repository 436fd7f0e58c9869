// Package notify renders packet notifications and hands them to a delivery
// channel.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/render"
	"github.com/rs/zerolog"
)

const (
	KindSummary = "packet.summary"
	KindContent = "packet.content"
)

var (
	// ErrNoSubscribers indicates nobody is listening for the user's deliveries.
	ErrNoSubscribers = errors.New("no subscribers")
	// ErrDeliveryRejected indicates the gateway refused a delivery.
	ErrDeliveryRejected = errors.New("delivery rejected")
)

// Delivery is one chat message bound for a user.
type Delivery struct {
	UserID   int64  `json:"user_id"`
	PacketID int64  `json:"packet_id"`
	Kind     string `json:"type"`
	Text     string `json:"text"`
	Part     int    `json:"part"`
	Parts    int    `json:"parts"`
}

// Deliverer sends rendered messages to a user.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// PacketReader loads what a summary needs.
type PacketReader interface {
	GetPacketSummary(ctx context.Context, packetID int64) (*packet.Summary, error)
	GetParticipants(ctx context.Context, packetID int64) ([]string, error)
}

// Notifier renders packet summaries and transcripts.
type Notifier struct {
	packets   PacketReader
	deliverer Deliverer
	logger    zerolog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(packets PacketReader, deliverer Deliverer, logger zerolog.Logger) *Notifier {
	return &Notifier{
		packets:   packets,
		deliverer: deliverer,
		logger:    logger,
	}
}

// SendSummary delivers the closing summary for packetID. When the packet
// details cannot be loaded a short fallback is sent instead.
func (n *Notifier) SendSummary(ctx context.Context, userID, packetID int64) error {
	text, err := n.summaryText(ctx, packetID)
	if err != nil {
		n.logger.Warn().Err(err).
			Int64("user_id", userID).
			Int64("packet_id", packetID).
			Msg("summary details unavailable, sending fallback")
		text = render.SummaryFallback(packetID)
	}

	d := Delivery{UserID: userID, PacketID: packetID, Kind: KindSummary, Text: text, Part: 1, Parts: 1}
	if err := n.deliverer.Deliver(ctx, d); err != nil {
		return fmt.Errorf("delivering summary: %w", err)
	}
	n.logger.Info().Int64("user_id", userID).Int64("packet_id", packetID).Msg("summary sent")
	return nil
}

func (n *Notifier) summaryText(ctx context.Context, packetID int64) (string, error) {
	info, err := n.packets.GetPacketSummary(ctx, packetID)
	if err != nil {
		return "", fmt.Errorf("loading summary: %w", err)
	}
	participants, err := n.packets.GetParticipants(ctx, packetID)
	if err != nil {
		return "", fmt.Errorf("loading participants: %w", err)
	}
	return render.Summary(*info, participants), nil
}

// SendContent delivers the transcript of packetID, split into chat-sized parts.
func (n *Notifier) SendContent(ctx context.Context, userID, packetID int64, messages []packet.Message, viewer packet.Viewer) error {
	if len(messages) == 0 {
		return packet.ErrPacketEmpty
	}

	parts := render.Split(render.Content(packetID, messages, viewer), render.MaxMessageLength)
	for i, part := range parts {
		d := Delivery{
			UserID:   userID,
			PacketID: packetID,
			Kind:     KindContent,
			Text:     part,
			Part:     i + 1,
			Parts:    len(parts),
		}
		if err := n.deliverer.Deliver(ctx, d); err != nil {
			return fmt.Errorf("delivering content part %d/%d: %w", i+1, len(parts), err)
		}
	}

	n.logger.Info().
		Int64("user_id", userID).
		Int64("packet_id", packetID).
		Int("parts", len(parts)).
		Bool("admin", viewer.Admin).
		Msg("content sent")
	return nil
}
