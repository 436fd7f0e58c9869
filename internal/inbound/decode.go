// Package inbound decodes chat updates into packet drafts.
package inbound

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/domain/packet"
)

// UnknownSender names a forwarded message whose origin is hidden.
const UnknownSender = "Unknown"

var (
	// ErrMalformed indicates the payload is not a decodable update.
	ErrMalformed = errors.New("malformed update")
	// ErrNoSender indicates the update has no sending user.
	ErrNoSender = errors.New("update has no sender")
)

// Ignore reasons.
const (
	ReasonNotForwarded = "not_forwarded"
	ReasonCommand      = "command"
)

// Event is a decoded update.
type Event struct {
	UserID   int64
	Username string
	Time     time.Time
	Draft    packet.Draft
	// Ignored is set for updates that do not belong in a packet.
	Ignored bool
	Reason  string
}

type user struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u user) fullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type chat struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type file struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

type message struct {
	From              *user  `json:"from"`
	Date              int64  `json:"date"`
	Text              string `json:"text"`
	Caption           string `json:"caption"`
	ForwardFrom       *user  `json:"forward_from"`
	ForwardFromChat   *chat  `json:"forward_from_chat"`
	ForwardSenderName string `json:"forward_sender_name"`
	ForwardDate       int64  `json:"forward_date"`
	Photo             []file `json:"photo"`
	Video             *file  `json:"video"`
	Document          *file  `json:"document"`
	Voice             *file  `json:"voice"`
	Audio             *file  `json:"audio"`
	Sticker           *file  `json:"sticker"`
	VideoNote         *file  `json:"video_note"`
}

type envelope struct {
	UpdateID   int64      `json:"update_id"`
	ReceivedAt *time.Time `json:"received_at"`
	Message    *message   `json:"message"`
}

func (m *message) forwarded() bool {
	return m.ForwardFrom != nil || m.ForwardFromChat != nil || m.ForwardSenderName != "" || m.ForwardDate != 0
}

// Decode parses a bare message or an update envelope. receivedAt is used as
// the event time unless the envelope carries its own receipt time.
func Decode(raw []byte, receivedAt time.Time) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg := env.Message
	if msg == nil {
		msg = &message{}
		if err := json.Unmarshal(raw, msg); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if msg.From == nil || msg.From.ID == 0 {
		return Event{}, ErrNoSender
	}

	ev := Event{
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		Time:     receivedAt,
	}
	if env.ReceivedAt != nil && !env.ReceivedAt.IsZero() {
		ev.Time = *env.ReceivedAt
	}

	if !msg.forwarded() {
		ev.Ignored = true
		ev.Reason = ReasonNotForwarded
		if strings.HasPrefix(msg.Text, "/") {
			ev.Reason = ReasonCommand
		}
		return ev, nil
	}

	ev.Draft = draftFrom(msg)
	return ev, nil
}

func draftFrom(msg *message) packet.Draft {
	d := packet.Draft{SenderName: UnknownSender}
	switch {
	case msg.ForwardFrom != nil:
		d.SenderID = msg.ForwardFrom.ID
		d.SenderName = msg.ForwardFrom.fullName()
		d.IsOwn = msg.ForwardFrom.ID == msg.From.ID
	case msg.ForwardFromChat != nil:
		d.SenderID = msg.ForwardFromChat.ID
		d.SenderName = msg.ForwardFromChat.Title
	case msg.ForwardSenderName != "":
		d.SenderName = msg.ForwardSenderName
	}
	if d.SenderName == "" {
		d.SenderName = UnknownSender
	}

	d.Type, d.AttachmentRef, d.Text = classify(msg)
	return d
}

// classify picks the message type by media precedence. Photo, video and
// document keep their caption; other media get a fixed placeholder.
func classify(msg *message) (packet.MessageType, string, string) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	orPlaceholder := func(placeholder string) string {
		if text != "" {
			return text
		}
		return placeholder
	}

	switch {
	case len(msg.Photo) > 0:
		return packet.TypePhoto, msg.Photo[len(msg.Photo)-1].FileID, orPlaceholder("[Photo]")
	case msg.Video != nil:
		return packet.TypeVideo, msg.Video.FileID, orPlaceholder("[Video]")
	case msg.Document != nil:
		return packet.TypeDocument, msg.Document.FileID, orPlaceholder(fmt.Sprintf("[Document: %s]", msg.Document.FileName))
	case msg.Voice != nil:
		return packet.TypeVoice, msg.Voice.FileID, "[Voice]"
	case msg.Audio != nil:
		return packet.TypeAudio, msg.Audio.FileID, "[Audio]"
	case msg.Sticker != nil:
		return packet.TypeSticker, msg.Sticker.FileID, "[Sticker]"
	case msg.VideoNote != nil:
		return packet.TypeVideoNote, msg.VideoNote.FileID, "[Video note]"
	}
	return packet.TypeText, "", text
}
