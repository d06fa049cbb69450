// Package arena is the single authoritative match orchestrator: it owns
// the connection directory, the matchmaking queue, the active-session
// set and the grace timers, and serializes every mutation of them under
// one lock so timer callbacks, transport events and settlement results
// never interleave mid-transition.
package arena

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Puci-G/rpsServer/internal/dependencies/clock"
	"github.com/Puci-G/rpsServer/internal/dependencies/random"
	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

// Sender is the outbound half of the connection layer. Send must not
// block: the arena calls it while holding its lock.
type Sender interface {
	// Send delivers a named event to one live channel
	Send(conn model.ConnID, event string, payload any)

	// Close forces a channel closed, e.g. when a resume evicts it
	Close(conn model.ConnID)
}

// Config holds the contest rules and timing constants
type Config struct {
	EntryFee        int64
	StartingBalance int64
	RoundTime       time.Duration
	RoundsToWin     int
	GracePeriod     time.Duration
	MatchLeadIn     time.Duration
	InterRoundDelay time.Duration

	// Settlement credit retry policy: a failed pot credit is retried
	// up to SettleRetries times, SettleRetryDelay apart, before the
	// session is torn down with the failure surfaced
	SettleRetries    int
	SettleRetryDelay time.Duration
}

// DefaultConfig returns the standard contest rules
func DefaultConfig() Config {
	return Config{
		EntryFee:         5,
		StartingBalance:  20,
		RoundTime:        7 * time.Second,
		RoundsToWin:      3,
		GracePeriod:      10 * time.Second,
		MatchLeadIn:      2 * time.Second,
		InterRoundDelay:  3 * time.Second,
		SettleRetries:    3,
		SettleRetryDelay: 2 * time.Second,
	}
}

// Deps are the arena's injected collaborators
type Deps struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Random  random.Random
	Store   storage.IdentityStore
	Gateway storage.SettlementGateway
	Sender  Sender

	// Dispatch runs settlement gateway calls off the arena lock.
	// Defaults to a goroutine; tests may run jobs inline.
	Dispatch func(func())
}

// client is the runtime record for one live connection handle
type client struct {
	conn      model.ConnID
	identity  model.Identity  // balance is a write-through cache
	sessionID model.SessionID // empty when not in a session
}

// session pairs the pure session state with its generation counter and
// the single pending timer (lead-in, round deadline, inter-round delay
// or settlement retry - never more than one at a time).
type session struct {
	state model.Session
	gen   uint64
	timer clock.Timer
}

// forfeit is a pending grace countdown for one absent identity
type forfeit struct {
	sessionID model.SessionID
	gen       uint64
	expiresAt time.Time
	timer     clock.Timer
}

// Arena is the orchestrator. All state behind mu; see package comment.
type Arena struct {
	cfg     Config
	logger  *slog.Logger
	clock   clock.Clock
	random  random.Random
	store   storage.IdentityStore
	gateway storage.SettlementGateway
	sender  Sender
	spawn   func(func())

	mu        sync.Mutex
	conns     map[model.ConnID]*client
	online    map[model.IdentityID]*client
	names     map[string]model.IdentityID // normalized name -> online identity
	claiming  map[string]bool             // name keys reserved during a login's store round-trip
	queue     []model.IdentityID
	queued    map[model.IdentityID]bool
	pairing   map[model.IdentityID]bool // popped from queue, debit in flight
	sessions  map[model.SessionID]*session
	inSession map[model.IdentityID]model.SessionID
	forfeits  map[model.IdentityID]*forfeit
	loggedOut map[model.IdentityID]bool // explicit logout blocks silent resume
	genSeq    uint64
	jobs      []func() // gateway calls queued while the lock is held
}

// New creates an arena with the given rules and collaborators
func New(cfg Config, deps Deps) *Arena {
	spawn := deps.Dispatch
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}
	return &Arena{
		cfg:       cfg,
		logger:    deps.Logger,
		clock:     deps.Clock,
		random:    deps.Random,
		store:     deps.Store,
		gateway:   deps.Gateway,
		sender:    deps.Sender,
		spawn:     spawn,
		conns:     make(map[model.ConnID]*client),
		online:    make(map[model.IdentityID]*client),
		names:     make(map[string]model.IdentityID),
		claiming:  make(map[string]bool),
		queued:    make(map[model.IdentityID]bool),
		pairing:   make(map[model.IdentityID]bool),
		sessions:  make(map[model.SessionID]*session),
		inSession: make(map[model.IdentityID]model.SessionID),
		forfeits:  make(map[model.IdentityID]*forfeit),
		loggedOut: make(map[model.IdentityID]bool),
	}
}

// ActiveSessions returns the number of sessions not yet torn down
func (a *Arena) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// QueueLen returns the current matchmaking queue length
func (a *Arena) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// nextGenLocked advances the shared generation sequence. Every deferred
// callback captures the generation current at scheduling time and
// discards itself if the live one has moved on.
func (a *Arena) nextGenLocked() uint64 {
	a.genSeq++
	return a.genSeq
}

// enqueueJobLocked defers a gateway call until the lock is released
func (a *Arena) enqueueJobLocked(f func()) {
	a.jobs = append(a.jobs, f)
}

// unlockAndDispatch releases the lock and runs any deferred gateway
// calls. Every code path that may enqueue jobs must unlock through it.
func (a *Arena) unlockAndDispatch() {
	jobs := a.jobs
	a.jobs = nil
	a.mu.Unlock()
	for _, job := range jobs {
		a.spawn(job)
	}
}

// sendToSlot delivers an event to a slot's channel, skipping absent sides
func (a *Arena) sendToSlot(slot model.Slot, event string, payload any) {
	if slot.Conn != "" {
		a.sender.Send(slot.Conn, event, payload)
	}
}

// secondsCeil converts a duration to whole seconds, rounding up
func secondsCeil(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
