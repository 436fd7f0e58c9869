package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/config"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/postgres"
	"github.com/rpggio/packetd/internal/sqlite"
)

type packetRepository interface {
	aggregator.PacketStore
	packet.Repository
}

type stores struct {
	packets packetRepository
	users   packet.UserRepository
	closer  func() error
}

func (s stores) close() {
	if s.closer != nil {
		_ = s.closer()
	}
}

// openStores connects to the configured database and migrates it.
func openStores(ctx context.Context, cfg config.DBConfig) (stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return stores{}, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("migrate postgres: %w", err)
		}
		return stores{
			packets: postgres.NewPacketRepository(db),
			users:   postgres.NewUserRepository(db),
			closer:  db.Close,
		}, nil
	default:
		if err := ensureDBDir(cfg.Path); err != nil {
			return stores{}, fmt.Errorf("create database directory: %w", err)
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return stores{}, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("migrate sqlite: %w", err)
		}
		return stores{
			packets: sqlite.NewPacketRepository(db),
			users:   sqlite.NewUserRepository(db),
			closer:  db.Close,
		}, nil
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
