package packet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
	"github.com/rpggio/packetd/internal/repository/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPacketService_RegisterUser_StripsAt(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserRepository{}
	users.On("Upsert", ctx, mock.MatchedBy(func(u *packet.User) bool {
		return u.ID == 7 && u.Username == "alice"
	})).Return(nil)

	svc := packet.NewService(&mocks.PacketRepository{}, users, zerolog.Nop())
	require.NoError(t, svc.RegisterUser(ctx, 7, " @alice "))
	users.AssertExpectations(t)

	require.ErrorIs(t, svc.RegisterUser(ctx, 0, "x"), packet.ErrInvalidInput)
}

func TestPacketService_User_NotFound(t *testing.T) {
	ctx := context.Background()
	users := &mocks.UserRepository{}
	users.On("Get", ctx, int64(9)).Return(nil, repository.ErrNotFound)

	svc := packet.NewService(&mocks.PacketRepository{}, users, zerolog.Nop())
	_, err := svc.User(ctx, 9)
	require.ErrorIs(t, err, packet.ErrUserNotFound)
}

func TestPacketService_Content_Ownership(t *testing.T) {
	ctx := context.Background()
	packets := &mocks.PacketRepository{}
	packets.On("GetPacket", ctx, int64(1)).Return(&packet.Packet{ID: 1, OwnerID: 10}, nil)
	packets.On("GetMessages", ctx, int64(1)).Return([]packet.Message{{ID: 1, Text: "hi"}}, nil)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())

	messages, err := svc.Content(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	_, err = svc.Content(ctx, 11, 1)
	require.ErrorIs(t, err, packet.ErrPacketNotFound)

	_, err = svc.Content(ctx, 10, 0)
	require.ErrorIs(t, err, packet.ErrInvalidInput)
}

func TestPacketService_Content_MissingOrEmpty(t *testing.T) {
	ctx := context.Background()
	packets := &mocks.PacketRepository{}
	packets.On("GetPacket", ctx, int64(2)).Return(nil, repository.ErrNotFound)
	packets.On("GetPacket", ctx, int64(3)).Return(&packet.Packet{ID: 3, OwnerID: 10}, nil)
	packets.On("GetMessages", ctx, int64(3)).Return([]packet.Message{}, nil)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())

	_, err := svc.Content(ctx, 10, 2)
	require.ErrorIs(t, err, packet.ErrPacketNotFound)

	_, err = svc.Content(ctx, 10, 3)
	require.ErrorIs(t, err, packet.ErrPacketNotFound)
}

func TestPacketService_AdminContent(t *testing.T) {
	ctx := context.Background()
	packets := &mocks.PacketRepository{}
	packets.On("GetPacketSummary", ctx, int64(4)).Return(&packet.Summary{PacketID: 4, OwnerID: 99, TotalMessages: 1}, nil)
	packets.On("GetMessages", ctx, int64(4)).Return([]packet.Message{{ID: 1}}, nil)
	packets.On("GetPacketSummary", ctx, int64(5)).Return(&packet.Summary{PacketID: 5}, nil)
	packets.On("GetMessages", ctx, int64(5)).Return(nil, nil)
	packets.On("GetPacketSummary", ctx, int64(6)).Return(nil, repository.ErrNotFound)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())

	view, err := svc.AdminContent(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(99), view.Summary.OwnerID)
	require.Len(t, view.Messages, 1)

	_, err = svc.AdminContent(ctx, 5)
	require.ErrorIs(t, err, packet.ErrPacketEmpty)

	_, err = svc.AdminContent(ctx, 6)
	require.ErrorIs(t, err, packet.ErrPacketNotFound)
}

func TestPacketService_Recent_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	packets := &mocks.PacketRepository{}
	packets.On("ListRecent", ctx, int64(10), packet.DefaultRecentLimit).Return([]packet.PacketRef{{ID: 3}, {ID: 2}}, nil)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())
	refs, err := svc.Recent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	packets.AssertExpectations(t)
}

func TestPacketService_SearchByUser(t *testing.T) {
	ctx := context.Background()
	packets := &mocks.PacketRepository{}
	packets.On("Search", ctx, packet.SearchOptions{Username: "bob", Limit: packet.DefaultSearchLimit}).
		Return([]packet.PacketRef{{ID: 1, OwnerUsername: "bobby"}}, nil)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())

	refs, err := svc.SearchByUser(ctx, packet.SearchOptions{Username: "@bob"})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	_, err = svc.SearchByUser(ctx, packet.SearchOptions{Username: "  "})
	require.ErrorIs(t, err, packet.ErrInvalidInput)
}

func TestPacketService_Stats_WrapsErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	packets := &mocks.PacketRepository{}
	packets.On("Stats", ctx, int64(1)).Return(packet.UserStats{}, boom)

	svc := packet.NewService(packets, &mocks.UserRepository{}, zerolog.Nop())
	_, err := svc.Stats(ctx, 1)
	require.ErrorIs(t, err, boom)
}
