package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/repository"
)

// UserRepository stores ingesting users in PostgreSQL
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
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, username, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END,
			updated_at = EXCLUDED.updated_at
	`, user.ID, user.Username, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*packet.User, error) {
	var u packet.User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
