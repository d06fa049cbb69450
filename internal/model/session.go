package model

import "time"

// SessionID uniquely identifies a game session. It is minted by the
// settlement gateway when the entry fees are debited.
type SessionID string

// SessionPhase represents the current phase of a session
type SessionPhase string

const (
	PhaseCreated     SessionPhase = "created"      // Debited, waiting for lead-in delay
	PhaseRoundActive SessionPhase = "round_active" // Round in progress, accepting choices
	PhaseRoundResult SessionPhase = "round_result" // Round evaluated, waiting for next round
	PhaseCompleted   SessionPhase = "completed"    // Win threshold reached, pot owed to winner
	PhaseForfeited   SessionPhase = "forfeited"    // Grace expired, pot owed to survivor
	PhaseCancelled   SessionPhase = "cancelled"    // Legacy refund path
)

// Terminal reports whether the phase accepts no further round activity
func (p SessionPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseForfeited || p == PhaseCancelled
}

// Slot is one side of a session: an identity plus its current channel.
// Conn is empty while that side is disconnected.
type Slot struct {
	Identity Identity
	Conn     ConnID
}

// Session is the state of one two-party contest. It is treated as a
// value: the game package's transition functions take a Session and
// return an updated copy, leaving side effects to the orchestrator.
type Session struct {
	ID       SessionID
	Slot1    Slot
	Slot2    Slot
	Round    int
	Score1   int
	Score2   int
	Choices  map[IdentityID]Choice // submitted choices for the current round
	Deadline time.Time             // round deadline; zero when no round is active
	Pot      int64                 // 2 x entry fee, fixed at creation
	EntryFee int64
	Phase    SessionPhase
}

// SlotOf returns 1 or 2 for the given identity, or 0 if it is not in
// the session.
func (s *Session) SlotOf(id IdentityID) int {
	switch id {
	case s.Slot1.Identity.ID:
		return 1
	case s.Slot2.Identity.ID:
		return 2
	default:
		return 0
	}
}

// Opponent returns the other side's slot for the given identity
func (s *Session) Opponent(id IdentityID) *Slot {
	if s.Slot1.Identity.ID == id {
		return &s.Slot2
	}
	return &s.Slot1
}

// Leader returns the slot number with the higher score (0 on a tie)
func (s *Session) Leader() int {
	switch {
	case s.Score1 > s.Score2:
		return 1
	case s.Score2 > s.Score1:
		return 2
	default:
		return 0
	}
}
