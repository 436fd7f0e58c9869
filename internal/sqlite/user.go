package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
)

// UserRepository stores ingesting users in SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert records a user, refreshing the username when one is given
func (r *UserRepository) Upsert(ctx context.Context, user *packet.User) error {
	if user.ID == 0 {
		return repository.ErrInvalidInput
	}

	query := `
		INSERT INTO users (id, username, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE users.username END,
			updated_at = excluded.updated_at
	`
	ts := toNanos(user.CreatedAt)
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Username, ts, ts); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*packet.User, error) {
	var u packet.User
	var created int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}
