package packet

import "context"

// Repository provides packet persistence for queries.
type Repository interface {
	GetPacket(ctx context.Context, packetID int64) (*Packet, error)
	GetPacketSummary(ctx context.Context, packetID int64) (*Summary, error)
	GetParticipants(ctx context.Context, packetID int64) ([]string, error)
	GetMessages(ctx context.Context, packetID int64) ([]Message, error)
	ListRecent(ctx context.Context, ownerID int64, limit int) ([]PacketRef, error)
	Search(ctx context.Context, opts SearchOptions) ([]PacketRef, error)
	Stats(ctx context.Context, ownerID int64) (UserStats, error)
}

// UserRepository provides user persistence.
type UserRepository interface {
	Upsert(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
}
