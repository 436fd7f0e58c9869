package mocks

import (
	"context"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/stretchr/testify/mock"
)

// PacketRepository is a mock for the packet store and query repository.
type PacketRepository struct {
	mock.Mock
}

func (m *PacketRepository) CreatePacket(ctx context.Context, ownerID int64) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PacketRepository) AppendMessage(ctx context.Context, packetID int64, msg packet.Message) error {
	args := m.Called(ctx, packetID, msg)
	return args.Error(0)
}

func (m *PacketRepository) GetPacket(ctx context.Context, packetID int64) (*packet.Packet, error) {
	args := m.Called(ctx, packetID)
	if p, ok := args.Get(0).(*packet.Packet); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) GetPacketSummary(ctx context.Context, packetID int64) (*packet.Summary, error) {
	args := m.Called(ctx, packetID)
	if s, ok := args.Get(0).(*packet.Summary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) GetParticipants(ctx context.Context, packetID int64) ([]string, error) {
	args := m.Called(ctx, packetID)
	if names, ok := args.Get(0).([]string); ok {
		return names, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) GetMessages(ctx context.Context, packetID int64) ([]packet.Message, error) {
	args := m.Called(ctx, packetID)
	if msgs, ok := args.Get(0).([]packet.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) ListRecent(ctx context.Context, ownerID int64, limit int) ([]packet.PacketRef, error) {
	args := m.Called(ctx, ownerID, limit)
	if refs, ok := args.Get(0).([]packet.PacketRef); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) Search(ctx context.Context, opts packet.SearchOptions) ([]packet.PacketRef, error) {
	args := m.Called(ctx, opts)
	if refs, ok := args.Get(0).([]packet.PacketRef); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PacketRepository) Stats(ctx context.Context, ownerID int64) (packet.UserStats, error) {
	args := m.Called(ctx, ownerID)
	if stats, ok := args.Get(0).(packet.UserStats); ok {
		return stats, args.Error(1)
	}
	return packet.UserStats{}, args.Error(1)
}

// UserRepository is a mock for packet.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Upsert(ctx context.Context, user *packet.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) Get(ctx context.Context, id int64) (*packet.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*packet.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// Notifier is a mock for aggregator.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) SendSummary(ctx context.Context, userID, packetID int64) error {
	args := m.Called(ctx, userID, packetID)
	return args.Error(0)
}

func (m *Notifier) SendContent(ctx context.Context, userID, packetID int64, messages []packet.Message, viewer packet.Viewer) error {
	args := m.Called(ctx, userID, packetID, messages, viewer)
	return args.Error(0)
}

// Deliverer is a mock for notify.Deliverer.
type Deliverer struct {
	mock.Mock
}

func (m *Deliverer) Deliver(ctx context.Context, d notify.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}
