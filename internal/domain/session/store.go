package session

import (
	"sync"
	"time"
)

// shardBits sets the shard count of a Store (1 << shardBits).
const shardBits = 5

// Store maps user ids to sessions with per-user exclusive access.
//
// Each entry has two locks. The operation lock serializes read-modify-write
// sequences for one user and may be held across slow store calls. The state
// lock guards the Session fields only and is held for copies and single
// writes, so snapshots and compare-and-set never wait on an in-flight
// operation. Removed entries are tombstoned; acquirers that lose the race
// retry the lookup.
type Store struct {
	shards [1 << shardBits]shard
}

type shard struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	op      sync.Mutex
	mu      sync.Mutex
	state   Session
	removed bool
}

// NewStore creates an empty session store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entries = make(map[int64]*entry)
	}
	return s
}

func (s *Store) shardFor(userID int64) *shard {
	h := uint64(userID) * 0x9E3779B97F4A7C15
	return &s.shards[h>>(64-shardBits)]
}

// Txn is exclusive access to one user's session. Callers must Release it.
type Txn struct {
	store     *Store
	userID    int64
	e         *entry
	committed bool
	done      bool
}

// Acquire locks userID's session for an operation, creating an empty one if
// none exists.
func (s *Store) Acquire(userID int64) (*Txn, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	txn, _ := s.acquire(userID, true)
	return txn, nil
}

// AcquireExisting locks userID's session only if one exists.
func (s *Store) AcquireExisting(userID int64) (*Txn, bool) {
	if userID == 0 {
		return nil, false
	}
	return s.acquire(userID, false)
}

func (s *Store) acquire(userID int64, create bool) (*Txn, bool) {
	sh := s.shardFor(userID)
	for {
		sh.mu.Lock()
		e, ok := sh.entries[userID]
		if !ok {
			if !create {
				sh.mu.Unlock()
				return nil, false
			}
			e = &entry{state: Session{UserID: userID}}
			sh.entries[userID] = e
		}
		sh.mu.Unlock()

		e.op.Lock()
		e.mu.Lock()
		removed := e.removed
		e.mu.Unlock()
		if removed {
			e.op.Unlock()
			continue
		}
		return &Txn{store: s, userID: userID, e: e}, true
	}
}

// Session returns the current state of the locked session.
func (t *Txn) Session() Session {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return t.e.state
}

// Commit replaces the session state as a single transition and returns the
// state it replaced, including any Notified flag set since the transaction
// began.
func (t *Txn) Commit(next Session) Session {
	next.UserID = t.userID
	t.e.mu.Lock()
	replaced := t.e.state
	t.e.state = next
	t.e.mu.Unlock()
	t.committed = true
	return replaced
}

// Remove deletes the session. Later acquirers start fresh.
func (t *Txn) Remove() {
	t.store.remove(t.userID, t.e)
}

// Release unlocks the session. A session created by this transaction that
// never received a packet is dropped so failed first events leave no state.
func (t *Txn) Release() {
	if t.done {
		return
	}
	t.done = true
	if !t.committed && !t.Session().HasActivePacket() {
		t.store.remove(t.userID, t.e)
	}
	t.e.op.Unlock()
}

func (s *Store) remove(userID int64, e *entry) {
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	sh := s.shardFor(userID)
	sh.mu.Lock()
	if cur, ok := sh.entries[userID]; ok && cur == e {
		delete(sh.entries, userID)
	}
	sh.mu.Unlock()
}

func (s *Store) lookup(userID int64) *entry {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.entries[userID]
}

// Get returns a copy of userID's session.
func (s *Store) Get(userID int64) (Session, bool) {
	e := s.lookup(userID)
	if e == nil {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Session{}, false
	}
	return e.state, true
}

// Snapshot copies every session that has an active packet. Each copy is
// atomic on its own; the set as a whole is not a single instant.
func (s *Store) Snapshot() []Session {
	var entries []*entry
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, e := range sh.entries {
			entries = append(entries, e)
		}
		sh.mu.Unlock()
	}

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed && e.state.HasActivePacket() {
			out = append(out, e.state)
		}
		e.mu.Unlock()
	}
	return out
}

// MarkNotified sets Notified if the session still has packetID active and
// has not been notified. It reports whether the flag was set.
func (s *Store) MarkNotified(userID, packetID int64) bool {
	e := s.lookup(userID)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.state.ActivePacketID != packetID || e.state.Notified {
		return false
	}
	e.state.Notified = true
	return true
}

// Evict removes userID's session if it is notified, still on packetID and
// idle since before cutoff. Sessions with an operation in flight are skipped.
func (s *Store) Evict(userID, packetID int64, cutoff time.Time) bool {
	e := s.lookup(userID)
	if e == nil {
		return false
	}
	if !e.op.TryLock() {
		return false
	}
	defer e.op.Unlock()

	e.mu.Lock()
	st := e.state
	removed := e.removed
	e.mu.Unlock()
	if removed || !st.Notified || st.ActivePacketID != packetID || !st.LastEventTime.Before(cutoff) {
		return false
	}
	s.remove(userID, e)
	return true
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
