package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
)

// PacketRepository stores packets and messages in SQLite
type PacketRepository struct {
	db  *DB
	now func() time.Time
}

// NewPacketRepository creates a new PacketRepository
func NewPacketRepository(db *DB) *PacketRepository {
	return &PacketRepository{db: db, now: time.Now}
}

// CreatePacket opens an empty packet for ownerID
func (r *PacketRepository) CreatePacket(ctx context.Context, ownerID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO packets (owner_id, created_at) VALUES (?, ?)`,
		ownerID, toNanos(r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to create packet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read packet id: %w", err)
	}
	return id, nil
}

// AppendMessage adds a message to the end of a packet
func (r *PacketRepository) AppendMessage(ctx context.Context, packetID int64, msg packet.Message) error {
	if !msg.Type.Valid() {
		return fmt.Errorf("%w: message type %q", repository.ErrInvalidInput, msg.Type)
	}

	query := `
		INSERT INTO messages (packet_id, sender_id, sender_name, is_own, text, type, attachment_ref, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		packetID,
		msg.SenderID,
		msg.SenderName,
		msg.IsOwn,
		msg.Text,
		string(msg.Type),
		msg.AttachmentRef,
		toNanos(msg.ReceivedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// GetPacket retrieves a packet by ID
func (r *PacketRepository) GetPacket(ctx context.Context, packetID int64) (*packet.Packet, error) {
	var p packet.Packet
	var created int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, created_at FROM packets WHERE id = ?`,
		packetID).Scan(&p.ID, &p.OwnerID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get packet: %w", err)
	}
	p.CreatedAt = fromNanos(created)
	return &p, nil
}

// GetPacketSummary aggregates message counts and time bounds of a packet
func (r *PacketRepository) GetPacketSummary(ctx context.Context, packetID int64) (*packet.Summary, error) {
	query := `
		SELECT
			p.id,
			p.owner_id,
			COALESCE(u.username, ''),
			COUNT(m.id),
			COALESCE(SUM(m.is_own), 0),
			COUNT(DISTINCT CASE WHEN m.is_own = 1 THEN '' ELSE m.sender_name END),
			COALESCE(MIN(m.received_at), 0),
			COALESCE(MAX(m.received_at), 0)
		FROM packets p
		LEFT JOIN users u ON u.id = p.owner_id
		LEFT JOIN messages m ON m.packet_id = p.id
		WHERE p.id = ?
		GROUP BY p.id, p.owner_id, u.username
	`

	var s packet.Summary
	var first, last int64
	err := r.db.QueryRowContext(ctx, query, packetID).Scan(
		&s.PacketID,
		&s.OwnerID,
		&s.OwnerUsername,
		&s.TotalMessages,
		&s.OwnMessages,
		&s.ParticipantCount,
		&first,
		&last,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get packet summary: %w", err)
	}
	s.FirstTime = fromNanos(first)
	s.LastTime = fromNanos(last)
	return &s, nil
}

// GetParticipants lists the distinct display names of a packet, sorted
func (r *PacketRepository) GetParticipants(ctx context.Context, packetID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT CASE WHEN is_own = 1 THEN ? ELSE sender_name END AS participant
		FROM messages
		WHERE packet_id = ?
		ORDER BY participant
	`, packet.OwnParticipantName, packetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetMessages returns a packet's messages in arrival order
func (r *PacketRepository) GetMessages(ctx context.Context, packetID int64) ([]packet.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, packet_id, sender_id, sender_name, is_own, text, type, attachment_ref, received_at
		FROM messages
		WHERE packet_id = ?
		ORDER BY id ASC
	`, packetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []packet.Message{}
	for rows.Next() {
		var m packet.Message
		var msgType string
		var received int64
		if err := rows.Scan(&m.ID, &m.PacketID, &m.SenderID, &m.SenderName, &m.IsOwn, &m.Text, &msgType, &m.AttachmentRef, &received); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Type = packet.MessageType(msgType)
		m.ReceivedAt = fromNanos(received)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const refColumns = `
	SELECT
		p.id,
		p.owner_id,
		COALESCE(u.username, ''),
		p.created_at,
		COUNT(m.id),
		COUNT(DISTINCT CASE WHEN m.is_own = 1 THEN '' ELSE m.sender_name END)
	FROM packets p
	LEFT JOIN users u ON u.id = p.owner_id
	LEFT JOIN messages m ON m.packet_id = p.id
`

// ListRecent returns the owner's latest packets, newest first
func (r *PacketRepository) ListRecent(ctx context.Context, ownerID int64, limit int) ([]packet.PacketRef, error) {
	query := refColumns + `
		WHERE p.owner_id = ?
		GROUP BY p.id, p.owner_id, u.username, p.created_at
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?
	`
	return r.queryRefs(ctx, query, ownerID, limit)
}

// Search finds packets by owner id and/or a case-insensitive username fragment
func (r *PacketRepository) Search(ctx context.Context, opts packet.SearchOptions) ([]packet.PacketRef, error) {
	var where []string
	var args []any
	if opts.OwnerID != 0 {
		where = append(where, "p.owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.Username != "" {
		where = append(where, "LOWER(u.username) LIKE ?")
		args = append(args, "%"+strings.ToLower(opts.Username)+"%")
	}
	if len(where) == 0 {
		return nil, repository.ErrInvalidInput
	}

	query := refColumns + `
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY p.id, p.owner_id, u.username, p.created_at
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?
	`
	args = append(args, opts.Limit)
	return r.queryRefs(ctx, query, args...)
}

func (r *PacketRepository) queryRefs(ctx context.Context, query string, args ...any) ([]packet.PacketRef, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packets: %w", err)
	}
	defer rows.Close()

	refs := []packet.PacketRef{}
	for rows.Next() {
		var ref packet.PacketRef
		var created int64
		if err := rows.Scan(&ref.ID, &ref.OwnerID, &ref.OwnerUsername, &created, &ref.MessageCount, &ref.ParticipantCount); err != nil {
			return nil, fmt.Errorf("failed to scan packet: %w", err)
		}
		ref.CreatedAt = fromNanos(created)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Stats counts the owner's packets and messages
func (r *PacketRepository) Stats(ctx context.Context, ownerID int64) (packet.UserStats, error) {
	var stats packet.UserStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM packets WHERE owner_id = ?`, ownerID).Scan(&stats.PacketCount)
	if err != nil {
		return packet.UserStats{}, fmt.Errorf("failed to count packets: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(m.id), COALESCE(SUM(m.is_own), 0)
		FROM messages m
		JOIN packets p ON p.id = m.packet_id
		WHERE p.owner_id = ?
	`, ownerID).Scan(&stats.MessageCount, &stats.OwnMessages)
	if err != nil {
		return packet.UserStats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	stats.ForeignMessages = stats.MessageCount - stats.OwnMessages
	return stats, nil
}
