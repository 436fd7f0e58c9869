package aggregator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

type candidate struct {
	userID   int64
	packetID int64
	reason   CloseReason
}

// Run sweeps on every tick until ctx is done, then sends the summaries of
// queued superseded packets and waits for in-flight closes. A tick never
// waits for sends started by earlier ticks; candidates that find no free
// slot are picked up again on the next tick.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	var closers errgroup.Group
	closers.SetLimit(a.cfg.MaxConcurrentCloses)
	sendCtx := context.WithoutCancel(ctx)

	a.logger.Info().
		Dur("idle_threshold", a.cfg.IdleThreshold).
		Dur("sweep_interval", a.cfg.SweepInterval).
		Int("max_concurrent_closes", a.cfg.MaxConcurrentCloses).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			// Superseded packets have no session left to sweep.
			a.dispatchMu.Lock()
			flushed := a.dispatchSuperseded(sendCtx, func(f func() error) bool {
				closers.Go(f)
				return true
			})
			a.dispatchMu.Unlock()
			_ = closers.Wait()
			a.logger.Info().Int("flushed", flushed).Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			a.tick(sendCtx, a.now(), closers.TryGo)
		}
	}
}

// Sweep runs one pass at now and waits for the closes it started.
// It returns the number of closes started.
func (a *Aggregator) Sweep(ctx context.Context, now time.Time) int {
	var closers errgroup.Group
	closers.SetLimit(a.cfg.MaxConcurrentCloses)
	n := a.tick(ctx, now, func(f func() error) bool {
		closers.Go(f)
		return true
	})
	_ = closers.Wait()
	return n
}

func (a *Aggregator) tick(ctx context.Context, now time.Time, launch func(func() error) bool) (started int) {
	defer func() {
		if r := recover(); r != nil {
			a.observer.Failure(Failure{Op: OpSweep, Err: fmt.Errorf("sweep panic: %v", r)})
			a.logger.Error().Interface("panic", r).Msg("sweep pass panicked")
		}
	}()

	started = a.dispatch(ctx, now, launch)
	if a.cfg.EvictAfter > 0 {
		if n := a.evict(now); n > 0 {
			a.logger.Debug().Int("evicted", n).Msg("idle sessions evicted")
		}
	}
	return started
}

// dispatch launches a close for every superseded packet and every session
// idle past the threshold that has not been notified. Superseded packets are
// drained before the snapshot so a packet queued after the snapshot is only
// launched by a later pass.
func (a *Aggregator) dispatch(ctx context.Context, now time.Time, launch func(func() error) bool) int {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()

	started := a.dispatchSuperseded(ctx, launch)
	for _, sess := range a.sessions.Snapshot() {
		if sess.Notified || sess.IdleFor(now) <= a.cfg.IdleThreshold {
			continue
		}
		if !a.claimCurrent(sess.UserID, sess.ActivePacketID) {
			continue
		}
		c := candidate{userID: sess.UserID, packetID: sess.ActivePacketID, reason: ReasonSweep}
		if !a.start(ctx, c, launch) {
			a.release(c.packetID)
			continue
		}
		started++
	}
	return started
}

// dispatchSuperseded launches a close for every queued superseded packet.
// Packets that find no free slot stay queued.
func (a *Aggregator) dispatchSuperseded(ctx context.Context, launch func(func() error) bool) int {
	started := 0
	var requeue []candidate
	for _, c := range a.drainSuperseded() {
		if a.start(ctx, c, launch) {
			started++
		} else {
			requeue = append(requeue, c)
		}
	}
	if len(requeue) > 0 {
		a.closingMu.Lock()
		a.superseded = append(requeue, a.superseded...)
		a.closingMu.Unlock()
	}
	return started
}

func (a *Aggregator) start(ctx context.Context, c candidate, launch func(func() error) bool) bool {
	return launch(func() error {
		defer a.finish(c)
		a.close(ctx, c)
		return nil
	})
}

// close sends one summary. finish marks the session after any attempt,
// including a failed or panicking one.
func (a *Aggregator) close(ctx context.Context, c candidate) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrNotify, r)
		}
		if err != nil {
			a.observer.Failure(Failure{Op: OpNotify, UserID: c.userID, PacketID: c.packetID, Err: err})
		}
		a.observer.PacketClosed(c.userID, c.packetID, c.reason)
	}()

	err = a.notifier.SendSummary(ctx, c.userID, c.packetID)
}

func (a *Aggregator) evict(now time.Time) int {
	cutoff := now.Add(-a.cfg.EvictAfter)
	evicted := 0
	for _, sess := range a.sessions.Snapshot() {
		if !sess.Notified || !sess.LastEventTime.Before(cutoff) {
			continue
		}
		if a.sessions.Evict(sess.UserID, sess.ActivePacketID, cutoff) {
			evicted++
		}
	}
	return evicted
}
