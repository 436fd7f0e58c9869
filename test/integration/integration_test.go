package integration_test

import (
	"testing"
	"time"

	"github.com/rpggio/packetd/internal/mcp"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/rpggio/packetd/internal/testserver"
	"github.com/stretchr/testify/require"
)

const (
	alice int64 = 101
	bob   int64 = 202
	admin int64 = 900
)

func waitFor(t *testing.T, ts *testserver.TestServer, userID int64, kind string, n int) []notify.Delivery {
	t.Helper()
	var got []notify.Delivery
	require.Eventually(t, func() bool {
		got = ts.Deliveries.Deliveries(userID, kind)
		return len(got) >= n
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestIntegration_BurstBecomesOnePacket(t *testing.T) {
	ts := testserver.New(t, "token")

	first := ts.Forward(t, alice, "alice", "Bob", "one")
	second := ts.Forward(t, alice, "alice", "Carol", "two")
	third := ts.Forward(t, alice, "alice", "Bob", "three")
	require.Equal(t, first, second)
	require.Equal(t, first, third)

	summaries := waitFor(t, ts, alice, notify.KindSummary, 1)
	require.Equal(t, first, summaries[0].PacketID)
	require.Contains(t, summaries[0].Text, "Bob")
	require.Contains(t, summaries[0].Text, "Carol")

	// The sweeper sends each summary once.
	time.Sleep(5 * testserver.Sweep)
	require.Len(t, ts.Deliveries.Deliveries(alice, notify.KindSummary), 1)

	next := ts.Forward(t, alice, "alice", "Dave", "four")
	require.NotEqual(t, first, next)
}

func TestIntegration_UsersAreIsolated(t *testing.T) {
	ts := testserver.New(t, "")

	a := ts.Forward(t, alice, "alice", "Bob", "for alice")
	b := ts.Forward(t, bob, "bob", "Eve", "for bob")
	require.NotEqual(t, a, b)

	require.Equal(t, a, waitFor(t, ts, alice, notify.KindSummary, 1)[0].PacketID)
	require.Equal(t, b, waitFor(t, ts, bob, notify.KindSummary, 1)[0].PacketID)
}

func TestIntegration_NewPacketCommand(t *testing.T) {
	ts := testserver.New(t, "token")

	var res mcp.NewPacketResult
	require.Nil(t, ts.Command(t, alice, "new_packet", nil, &res))
	require.Zero(t, res.ClosedPacketID)

	id := ts.Forward(t, alice, "alice", "Bob", "hello")
	require.Nil(t, ts.Command(t, alice, "start", nil, &res))
	require.Equal(t, id, res.ClosedPacketID)
	require.True(t, res.SummaryDelivered)

	summaries := ts.Deliveries.Deliveries(alice, notify.KindSummary)
	require.Len(t, summaries, 1)
	require.Equal(t, id, summaries[0].PacketID)

	next := ts.Forward(t, alice, "alice", "Bob", "again")
	require.NotEqual(t, id, next)
}

func TestIntegration_StatsAndPackets(t *testing.T) {
	ts := testserver.New(t, "token")

	id := ts.Forward(t, alice, "alice", "Bob", "one")
	ts.Forward(t, alice, "alice", "Carol", "two")

	var stats mcp.StatsResult
	require.Nil(t, ts.Command(t, alice, "stats", nil, &stats))
	require.Equal(t, 1, stats.PacketCount)
	require.Equal(t, 2, stats.MessageCount)
	require.NotNil(t, stats.Current)
	require.Equal(t, id, stats.Current.PacketID)
	require.Equal(t, 2, stats.Current.Participants)

	waitFor(t, ts, alice, notify.KindSummary, 1)

	var list mcp.PacketsResult
	require.Nil(t, ts.Command(t, alice, "packets", map[string]any{"limit": 5}, &list))
	require.Len(t, list.Packets, 1)
	require.Equal(t, id, list.Packets[0].ID)
	require.Equal(t, 2, list.Packets[0].MessageCount)
}

func TestIntegration_GetPacket(t *testing.T) {
	ts := testserver.New(t, "token")

	id := ts.Forward(t, alice, "alice", "Bob", "the secret plan")
	waitFor(t, ts, alice, notify.KindSummary, 1)

	var res mcp.DeliveryResult
	require.Nil(t, ts.Command(t, alice, "get_packet", map[string]any{"packet_id": id}, &res))
	require.Equal(t, 1, res.Messages)

	content := ts.Deliveries.Deliveries(alice, notify.KindContent)
	require.NotEmpty(t, content)
	require.Contains(t, content[0].Text, "the secret plan")

	rpcErr := ts.Command(t, bob, "get_packet", map[string]any{"packet_id": id}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, "PACKET_NOT_FOUND", rpcErr.Data["code"])

	rpcErr = ts.Command(t, alice, "get_packet", map[string]any{"packet_id": id + 100}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, "PACKET_NOT_FOUND", rpcErr.Data["code"])
}

func TestIntegration_AdminCommands(t *testing.T) {
	ts := testserver.New(t, "token", admin)

	id := ts.Forward(t, alice, "alice", "Bob", "hi")
	ts.Forward(t, bob, "bobby", "Eve", "yo")

	rpcErr := ts.Command(t, alice, "admin_user", map[string]any{"user_id": bob}, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, "FORBIDDEN", rpcErr.Data["code"])

	var userPackets mcp.PacketsResult
	require.Nil(t, ts.Command(t, admin, "auser", map[string]any{"user_id": alice}, &userPackets))
	require.Len(t, userPackets.Packets, 1)
	require.Equal(t, id, userPackets.Packets[0].ID)

	var search mcp.AdminSearchResult
	require.Nil(t, ts.Command(t, admin, "asearch", map[string]any{"username": "@bob"}, &search))
	require.Equal(t, "bob", search.Query)
	require.Len(t, search.Users, 1)
	require.Equal(t, bob, search.Users[0].UserID)

	var delivered mcp.DeliveryResult
	require.Nil(t, ts.Command(t, admin, "ap", map[string]any{"packet_id": id}, &delivered))
	require.Equal(t, alice, delivered.OwnerID)

	content := ts.Deliveries.Deliveries(admin, notify.KindContent)
	require.NotEmpty(t, content)
	require.Contains(t, content[0].Text, "👤 User: alice")
}

func TestIntegration_HelpAndUnknownMethod(t *testing.T) {
	ts := testserver.New(t, "token", admin)

	var help mcp.HelpResult
	require.Nil(t, ts.Command(t, alice, "help", nil, &help))
	for _, cmd := range help.Commands {
		require.False(t, cmd.Admin, "admin command %s shown to a regular user", cmd.Name)
	}

	require.Nil(t, ts.Command(t, admin, "help", nil, &help))
	var admins int
	for _, cmd := range help.Commands {
		if cmd.Admin {
			admins++
		}
	}
	require.Equal(t, 3, admins)

	rpcErr := ts.Command(t, alice, "nope", nil, nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
}
