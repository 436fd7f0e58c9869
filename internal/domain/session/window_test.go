package session_test

import (
	"testing"
	"time"

	"github.com/rpggio/packetd/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	idle := 5 * time.Second
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	active := session.Session{UserID: 42, ActivePacketID: 7, LastEventTime: base}

	tests := []struct {
		name     string
		sess     session.Session
		ok       bool
		at       time.Time
		action   session.Action
		packetID int64
	}{
		{name: "no session", ok: false, at: base, action: session.ActionStartNew},
		{name: "no active packet", sess: session.Session{UserID: 42, LastEventTime: base}, ok: true, at: base, action: session.ActionStartNew},
		{name: "within threshold", sess: active, ok: true, at: base.Add(2 * time.Second), action: session.ActionReuse, packetID: 7},
		{name: "exactly at threshold", sess: active, ok: true, at: base.Add(idle), action: session.ActionReuse, packetID: 7},
		{name: "one nanosecond past threshold", sess: active, ok: true, at: base.Add(idle + time.Nanosecond), action: session.ActionStartNew},
		{name: "event before last", sess: active, ok: true, at: base.Add(-time.Second), action: session.ActionReuse, packetID: 7},
		{
			name:     "notified session still reused",
			sess:     session.Session{UserID: 42, ActivePacketID: 7, LastEventTime: base, Notified: true},
			ok:       true,
			at:       base.Add(time.Second),
			action:   session.ActionReuse,
			packetID: 7,
		},
		{
			name:   "notified session past threshold",
			sess:   session.Session{UserID: 42, ActivePacketID: 7, LastEventTime: base, Notified: true},
			ok:     true,
			at:     base.Add(6 * time.Second),
			action: session.ActionStartNew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := session.Decide(tt.sess, tt.ok, tt.at, idle)
			require.Equal(t, tt.action, d.Action)
			require.Equal(t, tt.packetID, d.PacketID)
		})
	}
}

func TestDecide_ZeroThreshold(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := session.Session{UserID: 1, ActivePacketID: 3, LastEventTime: base}

	require.Equal(t, session.ActionReuse, session.Decide(sess, true, base, 0).Action)
	require.Equal(t, session.ActionStartNew, session.Decide(sess, true, base.Add(time.Nanosecond), 0).Action)
}

func TestAction_String(t *testing.T) {
	require.Equal(t, "reuse", session.ActionReuse.String())
	require.Equal(t, "start_new", session.ActionStartNew.String())
}
