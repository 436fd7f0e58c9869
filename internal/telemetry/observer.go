// Package telemetry reports packet lifecycle events as logs and metrics.
package telemetry

import (
	"context"

	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rpggio/packetd"

// Observer implements aggregator.Observer with zerolog and otel counters.
type Observer struct {
	logger   zerolog.Logger
	opened   metric.Int64Counter
	closed   metric.Int64Counter
	failures metric.Int64Counter
}

// NewObserver creates an Observer on the global meter provider.
func NewObserver(logger zerolog.Logger) (*Observer, error) {
	return NewObserverWithMeter(logger, otel.Meter(meterName))
}

// NewObserverWithMeter creates an Observer on meter.
func NewObserverWithMeter(logger zerolog.Logger, meter metric.Meter) (*Observer, error) {
	opened, err := meter.Int64Counter("packetd.packets.opened",
		metric.WithDescription("Packets opened by ingestion"))
	if err != nil {
		return nil, err
	}
	closed, err := meter.Int64Counter("packetd.packets.closed",
		metric.WithDescription("Packets closed with a summary attempt"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("packetd.failures",
		metric.WithDescription("Store, notify and sweep failures"))
	if err != nil {
		return nil, err
	}
	return &Observer{logger: logger, opened: opened, closed: closed, failures: failures}, nil
}

func (o *Observer) PacketOpened(userID, packetID int64) {
	o.opened.Add(context.Background(), 1)
	o.logger.Info().Int64("user_id", userID).Int64("packet_id", packetID).Msg("packet opened")
}

func (o *Observer) PacketClosed(userID, packetID int64, reason aggregator.CloseReason) {
	o.closed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	o.logger.Info().
		Int64("user_id", userID).
		Int64("packet_id", packetID).
		Str("reason", string(reason)).
		Msg("packet closed")
}

func (o *Observer) Failure(f aggregator.Failure) {
	o.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", f.Op)))
	o.logger.Error().
		Err(f.Err).
		Str("op", f.Op).
		Int64("user_id", f.UserID).
		Int64("packet_id", f.PacketID).
		Msg("packet operation failed")
}

var _ aggregator.Observer = (*Observer)(nil)
