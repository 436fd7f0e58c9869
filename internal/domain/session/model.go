package session

import "time"

// Session is the live per-user state tracking the open packet and its idle clock
type Session struct {
	UserID         int64     `json:"user_id"`
	ActivePacketID int64     `json:"active_packet_id,omitempty"`
	LastEventTime  time.Time `json:"last_event_time"`
	Notified       bool      `json:"notified"`
}

// HasActivePacket reports whether the session has a packet accepting events.
func (s Session) HasActivePacket() bool {
	return s.ActivePacketID != 0
}

// IdleFor returns how long the session has been idle at now.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastEventTime)
}

// Status is a consistent point-in-time view of a user's active packet
type Status struct {
	PacketID      int64         `json:"packet_id"`
	LastEventTime time.Time     `json:"last_event_time"`
	TimeRemaining time.Duration `json:"time_remaining"`
	Notified      bool          `json:"notified"`
}
