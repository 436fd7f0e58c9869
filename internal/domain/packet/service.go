package packet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/packetd/internal/repository"
	"github.com/rs/zerolog"
)

// Service handles packet queries for the command surface.
type Service struct {
	packets Repository
	users   UserRepository
	logger  zerolog.Logger
}

// NewService creates a new packet service.
func NewService(packets Repository, users UserRepository, logger zerolog.Logger) *Service {
	return &Service{
		packets: packets,
		users:   users,
		logger:  logger,
	}
}

// AdminView holds a packet fetched without ownership checks.
type AdminView struct {
	Summary  Summary
	Messages []Message
}

// RegisterUser records the user and their latest username.
func (s *Service) RegisterUser(ctx context.Context, userID int64, username string) error {
	if userID == 0 {
		return ErrInvalidInput
	}
	user := &User{
		ID:        userID,
		Username:  strings.TrimPrefix(strings.TrimSpace(username), "@"),
		CreatedAt: time.Now(),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// User returns a registered user.
func (s *Service) User(ctx context.Context, userID int64) (*User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

// Stats returns aggregate counts for a user's packets.
func (s *Service) Stats(ctx context.Context, userID int64) (UserStats, error) {
	stats, err := s.packets.Stats(ctx, userID)
	if err != nil {
		return UserStats{}, fmt.Errorf("loading stats: %w", err)
	}
	return stats, nil
}

// Recent lists a user's latest packets, newest first.
func (s *Service) Recent(ctx context.Context, userID int64, limit int) ([]PacketRef, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	refs, err := s.packets.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing packets: %w", err)
	}
	return refs, nil
}

// Content returns the messages of a packet owned by userID.
// Packets owned by someone else are reported as not found.
func (s *Service) Content(ctx context.Context, userID, packetID int64) ([]Message, error) {
	if packetID <= 0 {
		return nil, ErrInvalidInput
	}

	p, err := s.packets.GetPacket(ctx, packetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPacketNotFound
		}
		return nil, fmt.Errorf("loading packet: %w", err)
	}
	if p.OwnerID != userID {
		s.logger.Debug().
			Int64("user_id", userID).
			Int64("packet_id", packetID).
			Msg("packet requested by non-owner")
		return nil, ErrPacketNotFound
	}

	messages, err := s.packets.GetMessages(ctx, packetID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrPacketNotFound
	}
	return messages, nil
}

// AdminContent returns any packet with its summary.
func (s *Service) AdminContent(ctx context.Context, packetID int64) (*AdminView, error) {
	if packetID <= 0 {
		return nil, ErrInvalidInput
	}

	summary, err := s.Summary(ctx, packetID)
	if err != nil {
		return nil, err
	}

	messages, err := s.packets.GetMessages(ctx, packetID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrPacketEmpty
	}

	return &AdminView{Summary: *summary, Messages: messages}, nil
}

// Summary returns packet metadata.
func (s *Service) Summary(ctx context.Context, packetID int64) (*Summary, error) {
	summary, err := s.packets.GetPacketSummary(ctx, packetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPacketNotFound
		}
		return nil, fmt.Errorf("loading summary: %w", err)
	}
	return summary, nil
}

// Participants returns the distinct display names of a packet.
func (s *Service) Participants(ctx context.Context, packetID int64) ([]string, error) {
	names, err := s.packets.GetParticipants(ctx, packetID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	return names, nil
}

// SearchByUser finds packets by owner id or username.
func (s *Service) SearchByUser(ctx context.Context, opts SearchOptions) ([]PacketRef, error) {
	opts.Username = strings.TrimPrefix(strings.TrimSpace(opts.Username), "@")
	if opts.OwnerID == 0 && opts.Username == "" {
		return nil, ErrInvalidInput
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	refs, err := s.packets.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("searching packets: %w", err)
	}
	return refs, nil
}
