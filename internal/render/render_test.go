package render_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/render"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)

func TestSummary(t *testing.T) {
	info := packet.Summary{
		PacketID:         12,
		TotalMessages:    9,
		OwnMessages:      2,
		ParticipantCount: 7,
		FirstTime:        start,
		LastTime:         start.Add(12500 * time.Millisecond),
	}
	names := []string{"Alice", "Bob", "Carol", "Dan", "Eve", "Frank", "You"}

	out := render.Summary(info, names)
	require.Contains(t, out, "Packet #12 saved!")
	require.Contains(t, out, "• Messages: 9")
	require.Contains(t, out, "Yours: 2")
	require.Contains(t, out, "Others: 7")
	require.Contains(t, out, "• Participants: 7")
	require.Contains(t, out, "Alice, Bob, Carol, Dan, Eve and 2 more")
	require.Contains(t, out, "• Duration: 12.5 s")
	require.Contains(t, out, "• Start: 14:05:09")
	require.Contains(t, out, "• End: 14:05:21")
	require.True(t, strings.HasSuffix(out, "/get_packet 12 to view"))
}

func TestSummary_FewParticipants(t *testing.T) {
	out := render.Summary(packet.Summary{PacketID: 3, TotalMessages: 1, ParticipantCount: 1, FirstTime: start, LastTime: start}, []string{"You"})
	require.Contains(t, out, "  You\n")
	require.NotContains(t, out, "more")
	require.Contains(t, out, "Duration: 0.0 s")
}

func TestSummaryFallback(t *testing.T) {
	require.Equal(t, "📦 Packet #4 saved!\nUse /get_packet 4 to view", render.SummaryFallback(4))
}

func TestContent(t *testing.T) {
	messages := []packet.Message{
		{SenderName: "Alice", Text: "hello", Type: packet.TypeText, ReceivedAt: start},
		{IsOwn: true, SenderName: "Me", Text: "hi back", Type: packet.TypeText, ReceivedAt: start.Add(500 * time.Millisecond)},
		{SenderName: "Bob", Text: "[Photo]", Type: packet.TypePhoto, ReceivedAt: start.Add(3200 * time.Millisecond)},
	}

	out := render.Content(7, messages, packet.Viewer{})
	require.NotContains(t, out, "ADMIN VIEW")
	require.Contains(t, out, "📦 Packet #7\n")
	require.Contains(t, out, "📅 Start: 01.03.2026 14:05:09\n")
	require.Contains(t, out, "📊 Total: 3 messages\n")
	require.Contains(t, out, "👥 Participants: Alice, Bob, You\n")
	require.Contains(t, out, "[1] 👥 Alice [14:05:09]:\nhello\n--------------------\n")
	require.Contains(t, out, "[2] 👤 You [14:05:09]:\nhi back\npause 2.7 s\n")
	require.Contains(t, out, "[3] 👥 Bob [14:05:12]:\n[Photo]\n[Type: photo]\n--------------------")
	require.Equal(t, 1, strings.Count(out, "pause"))
}

func TestContent_AdminHeader(t *testing.T) {
	messages := []packet.Message{{SenderName: "Alice", Text: "x", Type: packet.TypeText, ReceivedAt: start}}

	out := render.Content(7, messages, packet.Viewer{Admin: true, UserInfo: "Owner: @alice (42)"})
	require.True(t, strings.HasPrefix(out, "🔐 ADMIN VIEW\nOwner: @alice (42)\n"))
}

func TestSplit(t *testing.T) {
	require.Nil(t, render.Split("", 10))
	require.Equal(t, []string{"short"}, render.Split("short", 10))

	parts := render.Split("aaaa\nbbbb\ncccc", 10)
	require.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, parts)

	parts = render.Split(strings.Repeat("x", 25), 10)
	require.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}

func TestSplit_RuneSafe(t *testing.T) {
	text := strings.Repeat("пакет📦", 1000)
	parts := render.Split(text, render.MaxMessageLength)
	require.Greater(t, len(parts), 1)

	var joined strings.Builder
	for _, p := range parts {
		require.True(t, utf8.ValidString(p))
		require.LessOrEqual(t, utf8.RuneCountInString(p), render.MaxMessageLength)
		joined.WriteString(p)
	}
	require.Equal(t, text, joined.String())
}
