package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
	"github.com/stretchr/testify/require"
)

// newTestDB connects to PACKETD_TEST_POSTGRES_URL and resets the schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("PACKETD_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PACKETD_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Pool.Exec(ctx, `DROP TABLE IF EXISTS messages, packets, users`)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func TestPacketRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	packets := NewPacketRepository(db)
	users := NewUserRepository(db)
	ctx := context.Background()
	at := time.Now().Truncate(time.Microsecond)

	require.NoError(t, users.Upsert(ctx, &packet.User{ID: 42, Username: "Owner", CreatedAt: at}))

	id, err := packets.CreatePacket(ctx, 42)
	require.NoError(t, err)

	messages := []packet.Message{
		{SenderName: "Alice", Text: "a", Type: packet.TypeText, ReceivedAt: at},
		{SenderName: "Me", IsOwn: true, Text: "b", Type: packet.TypeText, ReceivedAt: at.Add(1500 * time.Millisecond)},
		{SenderName: "Bob", Text: "[Photo]", Type: packet.TypePhoto, AttachmentRef: "f1", ReceivedAt: at.Add(2 * time.Second)},
	}
	for _, m := range messages {
		require.NoError(t, packets.AppendMessage(ctx, id, m))
	}

	s, err := packets.GetPacketSummary(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 3, s.TotalMessages)
	require.Equal(t, 1, s.OwnMessages)
	require.Equal(t, 3, s.ParticipantCount)
	require.Equal(t, "Owner", s.OwnerUsername)
	require.Equal(t, 2*time.Second, s.Duration())

	names, err := packets.GetParticipants(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob", packet.OwnParticipantName}, names)

	got, err := packets.GetMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "f1", got[2].AttachmentRef)

	refs, err := packets.Search(ctx, packet.SearchOptions{Username: "own", Limit: 5})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	stats, err := packets.Stats(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, packet.UserStats{PacketCount: 1, MessageCount: 3, OwnMessages: 1, ForeignMessages: 2}, stats)
}

func TestPacketRepository_Errors(t *testing.T) {
	db := newTestDB(t)
	packets := NewPacketRepository(db)
	ctx := context.Background()

	err := packets.AppendMessage(ctx, 999, packet.Message{SenderName: "x", Text: "x", Type: packet.TypeText, ReceivedAt: time.Now()})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)

	_, err = packets.GetPacket(ctx, 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
