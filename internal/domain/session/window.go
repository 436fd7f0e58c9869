package session

import "time"

// Action is the outcome of a window decision
type Action int

const (
	ActionStartNew Action = iota
	ActionReuse
)

func (a Action) String() string {
	if a == ActionReuse {
		return "reuse"
	}
	return "start_new"
}

// Decision tells the caller which packet an event belongs to.
// PacketID is set only for ActionReuse.
type Decision struct {
	Action   Action
	PacketID int64
	Gap      time.Duration
}

// Decide applies the idle-gap window to an event at eventTime.
// ok is false when the user has no session yet.
//
// The gap is measured against the event's own timestamp and the threshold is
// inclusive. Reuse does not consult Notified: an event within the threshold of
// the previous one always joins its packet.
func Decide(sess Session, ok bool, eventTime time.Time, idle time.Duration) Decision {
	if !ok || !sess.HasActivePacket() {
		return Decision{Action: ActionStartNew}
	}
	gap := eventTime.Sub(sess.LastEventTime)
	if gap <= idle {
		return Decision{Action: ActionReuse, PacketID: sess.ActivePacketID, Gap: gap}
	}
	return Decision{Action: ActionStartNew, Gap: gap}
}
