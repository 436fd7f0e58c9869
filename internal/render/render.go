// Package render formats packets as chat text.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/packetd/internal/domain/packet"
)

// MaxMessageLength is the largest chat message, in runes.
const MaxMessageLength = 4096

const (
	maxSummaryNames = 5
	pauseThreshold  = time.Second
	timeLayout      = "15:04:05"
	dateLayout      = "02.01.2006 15:04:05"
)

var (
	heavyRule = strings.Repeat("=", 30)
	adminRule = strings.Repeat("═", 30)
	lightRule = strings.Repeat("-", 20)
)

// Summary renders the closing notification for a packet.
func Summary(info packet.Summary, participants []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Packet #%d saved!\n", info.PacketID)
	b.WriteString(heavyRule + "\n")
	b.WriteString("📊 Stats:\n")
	fmt.Fprintf(&b, "• Messages: %d\n", info.TotalMessages)
	fmt.Fprintf(&b, "  👤 Yours: %d\n", info.OwnMessages)
	fmt.Fprintf(&b, "  👥 Others: %d\n", info.ForeignMessages())
	fmt.Fprintf(&b, "• Participants: %d\n", info.ParticipantCount)
	if len(participants) > 0 {
		shown := participants
		if len(shown) > maxSummaryNames {
			shown = shown[:maxSummaryNames]
		}
		line := strings.Join(shown, ", ")
		if extra := len(participants) - len(shown); extra > 0 {
			line += fmt.Sprintf(" and %d more", extra)
		}
		fmt.Fprintf(&b, "  %s\n", line)
	}
	fmt.Fprintf(&b, "• Duration: %.1f s\n", info.Duration().Seconds())
	fmt.Fprintf(&b, "• Start: %s\n", formatTime(info.FirstTime))
	fmt.Fprintf(&b, "• End: %s\n", formatTime(info.LastTime))
	b.WriteString(heavyRule + "\n")
	fmt.Fprintf(&b, "💡 Use /get_packet %d to view", info.PacketID)
	return b.String()
}

// SummaryFallback is sent when the packet details cannot be loaded.
func SummaryFallback(packetID int64) string {
	return fmt.Sprintf("📦 Packet #%d saved!\nUse /get_packet %d to view", packetID, packetID)
}

// Content renders the full transcript of a packet. messages must be in
// arrival order and non-empty.
func Content(packetID int64, messages []packet.Message, viewer packet.Viewer) string {
	var b strings.Builder
	if viewer.Admin {
		b.WriteString("🔐 ADMIN VIEW\n")
		if viewer.UserInfo != "" {
			b.WriteString(viewer.UserInfo + "\n")
		}
		b.WriteString(adminRule + "\n")
	}

	fmt.Fprintf(&b, "📦 Packet #%d\n", packetID)
	if len(messages) > 0 {
		fmt.Fprintf(&b, "📅 Start: %s\n", formatDate(messages[0].ReceivedAt))
	}
	fmt.Fprintf(&b, "📊 Total: %d messages\n", len(messages))
	fmt.Fprintf(&b, "👥 Participants: %s\n", strings.Join(participantNames(messages), ", "))
	b.WriteString(heavyRule + "\n\n")

	for i, msg := range messages {
		sender := "👥 " + msg.SenderName
		if msg.IsOwn {
			sender = "👤 " + packet.OwnParticipantName
		}
		fmt.Fprintf(&b, "[%d] %s [%s]:\n", i+1, sender, formatTime(msg.ReceivedAt))
		b.WriteString(msg.Text + "\n")
		if msg.Type != packet.TypeText && msg.Type != "" {
			fmt.Fprintf(&b, "[Type: %s]\n", msg.Type)
		}
		if i+1 < len(messages) {
			if gap := messages[i+1].ReceivedAt.Sub(msg.ReceivedAt); gap > pauseThreshold {
				fmt.Fprintf(&b, "pause %.1f s\n", gap.Seconds())
			}
		}
		b.WriteString(lightRule)
		if i+1 < len(messages) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Split breaks text into chunks of at most limit runes, preferring line
// boundaries. Multi-byte characters are never cut.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if text == "" {
		return nil
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func participantNames(messages []packet.Message) []string {
	seen := make(map[string]struct{}, len(messages))
	names := make([]string, 0, len(messages))
	for _, msg := range messages {
		name := msg.DisplayName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Format(timeLayout)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
