package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/config"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/mcp"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/rpggio/packetd/internal/sse"
	"github.com/rpggio/packetd/internal/telemetry"
	"github.com/rpggio/packetd/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "packetd",
		Short:        "Group forwarded messages into packets and summarize them",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server and the packet sweeper",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
				return err
			},
		},
	)
	return rootCmd
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStores(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.close()

	logger.Info().Str("driver", cfg.DB.Driver).Msg("schema is up to date")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.DB)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		return err
	}
	defer st.close()

	var (
		deliverer notify.Deliverer
		streams   *sse.Broadcaster
	)
	switch cfg.Delivery.Mode {
	case config.DeliveryWebhook:
		deliverer = notify.NewWebhook(cfg.Delivery.WebhookURL, cfg.Delivery.Token, cfg.Delivery.Timeout, nil)
	default:
		streams = sse.NewBroadcaster(logger.With().Str("component", "sse").Logger())
		deliverer = streams
	}
	notifier := notify.NewNotifier(st.packets, deliverer, logger.With().Str("component", "notify").Logger())

	observer, err := telemetry.NewObserver(logger.With().Str("component", "telemetry").Logger())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	agg := aggregator.New(st.packets, notifier, aggregator.Config{
		IdleThreshold:       cfg.Packets.IdleThreshold,
		SweepInterval:       cfg.Packets.SweepInterval,
		MaxConcurrentCloses: cfg.Packets.MaxConcurrentCloses,
		EvictAfter:          cfg.Packets.EvictAfter,
	}, logger.With().Str("component", "aggregator").Logger(), aggregator.WithObserver(observer))

	packetSvc := packet.NewService(st.packets, st.users, logger.With().Str("component", "packets").Logger())
	handler := mcp.NewHandler(mcp.Services{
		Packets:  packetSvc,
		Sessions: agg,
		Content:  notifier,
		Admins:   cfg.Admin,
	}, cfg.Packets.IdleThreshold, logger.With().Str("component", "commands").Logger())

	mcpServer := mcp.NewServer(mcp.Config{
		Handler: handler,
		Version: version,
		Idle:    cfg.Packets.IdleThreshold,
		Logger:  logger.With().Str("component", "mcp").Logger(),
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)

	deps := transport.Deps{
		Ingestor:  agg,
		Users:     packetSvc,
		Commands:  handler,
		MCP:       mcpHandler,
		AuthToken: cfg.Auth.Token,
		Logger:    logger.With().Str("component", "http").Logger(),
	}
	if streams != nil {
		deps.Streams = streams
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           transport.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agg.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("delivery", cfg.Delivery.Mode).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	return nil
}
