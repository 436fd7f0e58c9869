package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
)

// PacketRepository stores packets and messages in PostgreSQL
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
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO packets (owner_id, created_at) VALUES ($1, $2) RETURNING id`,
		ownerID, r.now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create packet: %w", err)
	}
	return id, nil
}

// AppendMessage adds a message to the end of a packet
func (r *PacketRepository) AppendMessage(ctx context.Context, packetID int64, msg packet.Message) error {
	if !msg.Type.Valid() {
		return fmt.Errorf("%w: message type %q", repository.ErrInvalidInput, msg.Type)
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO messages (packet_id, sender_id, sender_name, is_own, text, type, attachment_ref, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, packetID, msg.SenderID, msg.SenderName, msg.IsOwn, msg.Text, string(msg.Type), msg.AttachmentRef, msg.ReceivedAt)
	if err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation:
			return repository.ErrForeignKeyViolation
		case codeCheckViolation:
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// GetPacket retrieves a packet by ID
func (r *PacketRepository) GetPacket(ctx context.Context, packetID int64) (*packet.Packet, error) {
	var p packet.Packet
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, owner_id, created_at FROM packets WHERE id = $1`, packetID).
		Scan(&p.ID, &p.OwnerID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get packet: %w", err)
	}
	return &p, nil
}

// GetPacketSummary aggregates message counts and time bounds of a packet
func (r *PacketRepository) GetPacketSummary(ctx context.Context, packetID int64) (*packet.Summary, error) {
	var s packet.Summary
	var first, last *time.Time
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			p.id,
			p.owner_id,
			COALESCE(u.username, ''),
			COUNT(m.id),
			COUNT(m.id) FILTER (WHERE m.is_own),
			COUNT(DISTINCT CASE WHEN m.is_own THEN '' ELSE m.sender_name END),
			MIN(m.received_at),
			MAX(m.received_at)
		FROM packets p
		LEFT JOIN users u ON u.id = p.owner_id
		LEFT JOIN messages m ON m.packet_id = p.id
		WHERE p.id = $1
		GROUP BY p.id, p.owner_id, u.username
	`, packetID).Scan(
		&s.PacketID,
		&s.OwnerID,
		&s.OwnerUsername,
		&s.TotalMessages,
		&s.OwnMessages,
		&s.ParticipantCount,
		&first,
		&last,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get packet summary: %w", err)
	}
	if first != nil {
		s.FirstTime = *first
	}
	if last != nil {
		s.LastTime = *last
	}
	return &s, nil
}

// GetParticipants lists the distinct display names of a packet, sorted
func (r *PacketRepository) GetParticipants(ctx context.Context, packetID int64) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT CASE WHEN is_own THEN $1 ELSE sender_name END AS participant
		FROM messages
		WHERE packet_id = $2
		ORDER BY participant
	`, packet.OwnParticipantName, packetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan participants: %w", err)
	}
	return names, nil
}

// GetMessages returns a packet's messages in arrival order
func (r *PacketRepository) GetMessages(ctx context.Context, packetID int64) ([]packet.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, packet_id, sender_id, sender_name, is_own, text, type, attachment_ref, received_at
		FROM messages
		WHERE packet_id = $1
		ORDER BY id ASC
	`, packetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (packet.Message, error) {
		var m packet.Message
		var msgType string
		err := row.Scan(&m.ID, &m.PacketID, &m.SenderID, &m.SenderName, &m.IsOwn, &m.Text, &msgType, &m.AttachmentRef, &m.ReceivedAt)
		m.Type = packet.MessageType(msgType)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}

const refColumns = `
	SELECT
		p.id,
		p.owner_id,
		COALESCE(u.username, ''),
		p.created_at,
		COUNT(m.id),
		COUNT(DISTINCT CASE WHEN m.is_own THEN '' ELSE m.sender_name END)
	FROM packets p
	LEFT JOIN users u ON u.id = p.owner_id
	LEFT JOIN messages m ON m.packet_id = p.id
`

// ListRecent returns the owner's latest packets, newest first
func (r *PacketRepository) ListRecent(ctx context.Context, ownerID int64, limit int) ([]packet.PacketRef, error) {
	return r.queryRefs(ctx, refColumns+`
		WHERE p.owner_id = $1
		GROUP BY p.id, p.owner_id, u.username, p.created_at
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2
	`, ownerID, limit)
}

// Search finds packets by owner id and/or a case-insensitive username fragment
func (r *PacketRepository) Search(ctx context.Context, opts packet.SearchOptions) ([]packet.PacketRef, error) {
	var where []string
	var args []any
	if opts.OwnerID != 0 {
		args = append(args, opts.OwnerID)
		where = append(where, fmt.Sprintf("p.owner_id = $%d", len(args)))
	}
	if opts.Username != "" {
		args = append(args, "%"+opts.Username+"%")
		where = append(where, fmt.Sprintf("u.username ILIKE $%d", len(args)))
	}
	if len(where) == 0 {
		return nil, repository.ErrInvalidInput
	}
	args = append(args, opts.Limit)

	query := refColumns + `
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY p.id, p.owner_id, u.username, p.created_at
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ` + fmt.Sprintf("$%d", len(args))
	return r.queryRefs(ctx, query, args...)
}

func (r *PacketRepository) queryRefs(ctx context.Context, query string, args ...any) ([]packet.PacketRef, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packets: %w", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (packet.PacketRef, error) {
		var ref packet.PacketRef
		err := row.Scan(&ref.ID, &ref.OwnerID, &ref.OwnerUsername, &ref.CreatedAt, &ref.MessageCount, &ref.ParticipantCount)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan packets: %w", err)
	}
	return refs, nil
}

// Stats counts the owner's packets and messages
func (r *PacketRepository) Stats(ctx context.Context, ownerID int64) (packet.UserStats, error) {
	var stats packet.UserStats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM packets WHERE owner_id = $1),
			COUNT(m.id),
			COUNT(m.id) FILTER (WHERE m.is_own)
		FROM messages m
		JOIN packets p ON p.id = m.packet_id
		WHERE p.owner_id = $1
	`, ownerID).Scan(&stats.PacketCount, &stats.MessageCount, &stats.OwnMessages)
	if err != nil {
		return packet.UserStats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	stats.ForeignMessages = stats.MessageCount - stats.OwnMessages
	return stats, nil
}
