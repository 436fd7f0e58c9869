// Package aggregator groups inbound messages into idle-gap packets and
// closes each packet with one summary notification.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/domain/session"
	"github.com/rs/zerolog"
)

const (
	DefaultIdleThreshold       = 5 * time.Second
	DefaultSweepInterval       = 500 * time.Millisecond
	DefaultMaxConcurrentCloses = 16
)

// Config tunes windowing and closing.
type Config struct {
	// IdleThreshold is the largest gap between consecutive events of one packet.
	IdleThreshold time.Duration
	// SweepInterval is the sweeper tick.
	SweepInterval time.Duration
	// MaxConcurrentCloses bounds concurrent summary sends.
	MaxConcurrentCloses int
	// EvictAfter removes notified sessions idle for longer. Zero keeps them.
	EvictAfter time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		IdleThreshold:       DefaultIdleThreshold,
		SweepInterval:       DefaultSweepInterval,
		MaxConcurrentCloses: DefaultMaxConcurrentCloses,
	}
}

func (c Config) withDefaults() Config {
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxConcurrentCloses <= 0 {
		c.MaxConcurrentCloses = DefaultMaxConcurrentCloses
	}
	if c.EvictAfter < 0 {
		c.EvictAfter = 0
	}
	return c
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock replaces the wall clock used by the sweeper and status queries.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithSessionStore shares an existing session store.
func WithSessionStore(s *session.Store) Option {
	return func(a *Aggregator) { a.sessions = s }
}

// Aggregator assigns events to packets and closes idle packets.
type Aggregator struct {
	cfg      Config
	sessions *session.Store
	packets  PacketStore
	notifier Notifier
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time

	// closing holds packet ids with a summary send claimed or in flight.
	closingMu sync.Mutex
	closing   map[int64]struct{}
	// superseded holds claimed packets replaced before the sweeper saw them idle.
	superseded []candidate

	// dispatchMu serializes sweeper dispatch passes.
	dispatchMu sync.Mutex
}

// New creates an Aggregator.
func New(packets PacketStore, notifier Notifier, cfg Config, logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:      cfg.withDefaults(),
		sessions: session.NewStore(),
		packets:  packets,
		notifier: notifier,
		observer: nopObserver{},
		logger:   logger,
		now:      time.Now,
		closing:  make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Ingest files a message for userID under the packet its event time falls in
// and returns that packet id. A store failure leaves the session unchanged.
// A zero eventTime is replaced by the current time.
func (a *Aggregator) Ingest(ctx context.Context, userID int64, eventTime time.Time, draft packet.Draft) (int64, error) {
	if eventTime.IsZero() {
		eventTime = a.now()
	}

	txn, err := a.sessions.Acquire(userID)
	if err != nil {
		return 0, err
	}
	defer txn.Release()

	prev := txn.Session()
	decision := session.Decide(prev, true, eventTime, a.cfg.IdleThreshold)

	packetID := decision.PacketID
	if decision.Action == session.ActionStartNew {
		packetID, err = a.packets.CreatePacket(ctx, userID)
		if err != nil {
			a.observer.Failure(Failure{Op: OpCreatePacket, UserID: userID, Err: err})
			return 0, fmt.Errorf("%w: creating packet: %w", ErrStore, err)
		}
	}

	if err := a.packets.AppendMessage(ctx, packetID, packet.NewMessage(packetID, draft, eventTime)); err != nil {
		a.observer.Failure(Failure{Op: OpAppendMessage, UserID: userID, PacketID: packetID, Err: err})
		return 0, fmt.Errorf("%w: appending message: %w", ErrStore, err)
	}

	next := session.Session{
		ActivePacketID: packetID,
		LastEventTime:  eventTime,
		Notified:       false,
	}
	if decision.Action != session.ActionStartNew {
		txn.Commit(next)
		return packetID, nil
	}

	a.commitReplacing(txn, next)
	a.observer.PacketOpened(userID, packetID)
	a.logger.Debug().
		Int64("user_id", userID).
		Int64("packet_id", packetID).
		Dur("gap", decision.Gap).
		Msg("packet opened")

	return packetID, nil
}

// ForceClose sends the summary of userID's active packet and clears the
// session. It returns 0 without notifying when no packet is active. The
// session is cleared even if the send fails. When a sweep is already sending
// the packet's summary, ForceClose leaves that send to finish and returns the
// packet id without sending again.
func (a *Aggregator) ForceClose(ctx context.Context, userID int64) (int64, error) {
	txn, ok := a.sessions.AcquireExisting(userID)
	if !ok {
		return 0, nil
	}
	defer txn.Release()

	sess := txn.Session()
	if !sess.HasActivePacket() {
		return 0, nil
	}
	packetID := sess.ActivePacketID

	if !a.claim(packetID) {
		txn.Remove()
		a.logger.Debug().
			Int64("user_id", userID).
			Int64("packet_id", packetID).
			Msg("summary already in flight")
		a.observer.PacketClosed(userID, packetID, ReasonForce)
		return packetID, nil
	}
	err := a.notifier.SendSummary(ctx, userID, packetID)
	txn.Remove()
	a.release(packetID)

	a.observer.PacketClosed(userID, packetID, ReasonForce)
	if err != nil {
		a.observer.Failure(Failure{Op: OpNotify, UserID: userID, PacketID: packetID, Err: err})
		return packetID, fmt.Errorf("%w: sending summary: %w", ErrNotify, err)
	}
	return packetID, nil
}

// ActivePacketStatus returns a consistent view of userID's active packet.
func (a *Aggregator) ActivePacketStatus(userID int64) (session.Status, bool) {
	sess, ok := a.sessions.Get(userID)
	if !ok || !sess.HasActivePacket() {
		return session.Status{}, false
	}

	remaining := a.cfg.IdleThreshold - sess.IdleFor(a.now())
	if remaining < 0 {
		remaining = 0
	}
	return session.Status{
		PacketID:      sess.ActivePacketID,
		LastEventTime: sess.LastEventTime,
		TimeRemaining: remaining,
		Notified:      sess.Notified,
	}, true
}

// SessionCount returns the number of tracked sessions.
func (a *Aggregator) SessionCount() int {
	return a.sessions.Len()
}

// commitReplacing commits a new packet and queues the packet it replaced when
// that one was never summarized. The commit and the check share closingMu
// with finish, so the replaced state reflects every finished sweep and a
// sweep still in flight holds its claim.
func (a *Aggregator) commitReplacing(txn *session.Txn, next session.Session) {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()

	replaced := txn.Commit(next)
	if !replaced.HasActivePacket() || replaced.Notified {
		return
	}
	if _, busy := a.closing[replaced.ActivePacketID]; busy {
		return
	}
	a.closing[replaced.ActivePacketID] = struct{}{}
	a.superseded = append(a.superseded, candidate{
		userID:   replaced.UserID,
		packetID: replaced.ActivePacketID,
		reason:   ReasonSuperseded,
	})
}

// finish ends a close: a swept session is marked notified and the claim is
// dropped in one step.
func (a *Aggregator) finish(c candidate) {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()
	if c.reason == ReasonSweep {
		a.sessions.MarkNotified(c.userID, c.packetID)
	}
	delete(a.closing, c.packetID)
}

func (a *Aggregator) claim(packetID int64) bool {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()
	if _, busy := a.closing[packetID]; busy {
		return false
	}
	a.closing[packetID] = struct{}{}
	return true
}

// claimCurrent claims packetID for a sweep only if it is still userID's
// active, unnotified packet. A snapshot can be stale by the time it is
// dispatched.
func (a *Aggregator) claimCurrent(userID, packetID int64) bool {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()
	if _, busy := a.closing[packetID]; busy {
		return false
	}
	cur, ok := a.sessions.Get(userID)
	if !ok || cur.ActivePacketID != packetID || cur.Notified {
		return false
	}
	a.closing[packetID] = struct{}{}
	return true
}

func (a *Aggregator) release(packetID int64) {
	a.closingMu.Lock()
	delete(a.closing, packetID)
	a.closingMu.Unlock()
}

func (a *Aggregator) drainSuperseded() []candidate {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()
	out := a.superseded
	a.superseded = nil
	return out
}
