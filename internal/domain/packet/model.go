package packet

import "time"

// MessageType classifies the payload of a forwarded message
type MessageType string

const (
	TypeText      MessageType = "text"
	TypePhoto     MessageType = "photo"
	TypeVideo     MessageType = "video"
	TypeDocument  MessageType = "document"
	TypeVoice     MessageType = "voice"
	TypeAudio     MessageType = "audio"
	TypeSticker   MessageType = "sticker"
	TypeVideoNote MessageType = "video_note"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypePhoto, TypeVideo, TypeDocument, TypeVoice, TypeAudio, TypeSticker, TypeVideoNote:
		return true
	}
	return false
}

// OwnParticipantName is the display name used for the packet owner's own messages.
const OwnParticipantName = "You"

// Packet is a contiguous run of messages grouped by idle-gap proximity
type Packet struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft is a decoded inbound message before it is filed under a packet.
type Draft struct {
	SenderID      int64       `json:"sender_id"`
	SenderName    string      `json:"sender_name"`
	IsOwn         bool        `json:"is_own"`
	Text          string      `json:"text"`
	Type          MessageType `json:"type"`
	AttachmentRef string      `json:"attachment_ref,omitempty"`
}

// Message is a single entry of a packet, in arrival order
type Message struct {
	ID            int64       `json:"id"`
	PacketID      int64       `json:"packet_id"`
	SenderID      int64       `json:"sender_id"`
	SenderName    string      `json:"sender_name"`
	IsOwn         bool        `json:"is_own"`
	Text          string      `json:"text"`
	Type          MessageType `json:"type"`
	AttachmentRef string      `json:"attachment_ref,omitempty"`
	ReceivedAt    time.Time   `json:"received_at"`
}

// NewMessage files a draft under packetID at receivedAt.
func NewMessage(packetID int64, draft Draft, receivedAt time.Time) Message {
	msgType := draft.Type
	if msgType == "" {
		msgType = TypeText
	}
	return Message{
		PacketID:      packetID,
		SenderID:      draft.SenderID,
		SenderName:    draft.SenderName,
		IsOwn:         draft.IsOwn,
		Text:          draft.Text,
		Type:          msgType,
		AttachmentRef: draft.AttachmentRef,
		ReceivedAt:    receivedAt,
	}
}

// DisplayName returns the participant name shown for the message sender.
func (m Message) DisplayName() string {
	if m.IsOwn {
		return OwnParticipantName
	}
	return m.SenderName
}

// Summary aggregates packet metadata for closing notifications
type Summary struct {
	PacketID         int64     `json:"packet_id"`
	OwnerID          int64     `json:"owner_id"`
	OwnerUsername    string    `json:"owner_username,omitempty"`
	TotalMessages    int       `json:"total_messages"`
	OwnMessages      int       `json:"own_messages"`
	ParticipantCount int       `json:"participant_count"`
	FirstTime        time.Time `json:"first_time"`
	LastTime         time.Time `json:"last_time"`
}

// ForeignMessages returns the number of messages not sent by the owner.
func (s Summary) ForeignMessages() int {
	return s.TotalMessages - s.OwnMessages
}

// Duration returns the time between the first and last message.
func (s Summary) Duration() time.Duration {
	if s.FirstTime.IsZero() || s.LastTime.IsZero() {
		return 0
	}
	return s.LastTime.Sub(s.FirstTime)
}

// PacketRef is a lightweight listing entry
type PacketRef struct {
	ID               int64     `json:"id"`
	OwnerID          int64     `json:"owner_id"`
	OwnerUsername    string    `json:"owner_username,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	MessageCount     int       `json:"message_count"`
	ParticipantCount int       `json:"participant_count"`
}

// UserStats summarises a user's stored packets
type UserStats struct {
	PacketCount     int `json:"packet_count"`
	MessageCount    int `json:"message_count"`
	OwnMessages     int `json:"own_messages"`
	ForeignMessages int `json:"foreign_messages"`
}

// User is an ingesting user as known to the store
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Viewer describes who packet content is rendered for.
type Viewer struct {
	Admin    bool   `json:"admin"`
	UserInfo string `json:"user_info,omitempty"`
}
