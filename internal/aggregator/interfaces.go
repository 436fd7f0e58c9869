package aggregator

import (
	"context"

	"github.com/rpggio/packetd/internal/domain/packet"
)

// PacketStore persists packets and their messages.
type PacketStore interface {
	CreatePacket(ctx context.Context, ownerID int64) (int64, error)
	AppendMessage(ctx context.Context, packetID int64, msg packet.Message) error
}

// Notifier delivers packet notifications to users.
// Implementations own formatting and payload chunking.
type Notifier interface {
	SendSummary(ctx context.Context, userID, packetID int64) error
	SendContent(ctx context.Context, userID, packetID int64, messages []packet.Message, viewer packet.Viewer) error
}

// CloseReason tells why a packet was closed.
type CloseReason string

const (
	ReasonSweep      CloseReason = "sweep"
	ReasonSuperseded CloseReason = "superseded"
	ReasonForce      CloseReason = "force"
)

// Failure operations reported to the Observer.
const (
	OpCreatePacket  = "create_packet"
	OpAppendMessage = "append_message"
	OpNotify        = "notify"
	OpSweep         = "sweep"
)

// Failure describes a non-fatal error seen by the aggregator.
type Failure struct {
	Op       string
	UserID   int64
	PacketID int64
	Err      error
}

// Observer receives packet lifecycle events and failures.
type Observer interface {
	PacketOpened(userID, packetID int64)
	PacketClosed(userID, packetID int64, reason CloseReason)
	Failure(f Failure)
}

type nopObserver struct{}

func (nopObserver) PacketOpened(int64, int64)              {}
func (nopObserver) PacketClosed(int64, int64, CloseReason) {}
func (nopObserver) Failure(Failure)                        {}
