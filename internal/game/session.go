// Package game holds the side-effect-free session transitions. Each
// function takes a session value and returns an updated copy; timer
// scheduling and outbound notifications are the orchestrator's job.
package game

import (
	"time"

	"github.com/Puci-G/rpsServer/internal/model"
)

// RoundReport summarizes one evaluated round for the orchestrator to
// turn into notifications.
type RoundReport struct {
	Round      int
	Choice1    model.Choice
	Choice2    model.Choice
	Result1    model.Result
	Result2    model.Result
	Score1     int
	Score2     int
	Decided    bool // a side reached the win threshold this round
	WinnerSlot int  // 1 or 2 when Decided
}

// New builds a session in the Created phase with its pot fixed.
// Slot conns may be empty if a side dropped while the debit was in flight.
func New(id model.SessionID, slot1, slot2 model.Slot, entryFee int64) model.Session {
	return model.Session{
		ID:       id,
		Slot1:    slot1,
		Slot2:    slot2,
		Round:    1,
		Choices:  map[model.IdentityID]model.Choice{},
		Pot:      entryFee * 2,
		EntryFee: entryFee,
		Phase:    model.PhaseCreated,
	}
}

// StartRound clears the round choices and opens the round with the
// given deadline.
func StartRound(s model.Session, deadline time.Time) model.Session {
	s.Choices = map[model.IdentityID]model.Choice{}
	s.Deadline = deadline
	s.Phase = model.PhaseRoundActive
	return s
}

// Submit records a choice for the given identity. Resubmitting before
// the deadline overwrites the previous choice; the last write wins.
// ok is false if the session is not in an active round or the identity
// is not a participant.
func Submit(s model.Session, id model.IdentityID, c model.Choice) (out model.Session, ok bool) {
	if s.Phase != model.PhaseRoundActive || s.SlotOf(id) == 0 {
		return s, false
	}
	choices := make(map[model.IdentityID]model.Choice, 2)
	for k, v := range s.Choices {
		choices[k] = v
	}
	choices[id] = c
	s.Choices = choices
	return s, true
}

// Evaluate resolves the round with two concrete choices, updating the
// scores and moving the session to the RoundResult phase. Absent
// submissions must already have been replaced; callers use the choices
// from s.Choices or a random substitute.
func Evaluate(s model.Session, c1, c2 model.Choice, winThreshold int) (model.Session, RoundReport) {
	r1, r2 := model.Judge(c1, c2)
	if r1 == model.ResultWin {
		s.Score1++
	} else if r2 == model.ResultWin {
		s.Score2++
	}

	report := RoundReport{
		Round:   s.Round,
		Choice1: c1,
		Choice2: c2,
		Result1: r1,
		Result2: r2,
		Score1:  s.Score1,
		Score2:  s.Score2,
	}
	if s.Score1 >= winThreshold {
		report.Decided = true
		report.WinnerSlot = 1
	} else if s.Score2 >= winThreshold {
		report.Decided = true
		report.WinnerSlot = 2
	}

	s.Deadline = time.Time{}
	s.Phase = model.PhaseRoundResult
	return s, report
}

// AdvanceRound moves an undecided session to the next round number.
// The next StartRound opens it.
func AdvanceRound(s model.Session) model.Session {
	s.Round++
	return s
}

// Finish marks the session terminal. Scoring stops the instant a side
// first reaches the threshold, so the leader is always unambiguous for
// a completed session.
func Finish(s model.Session, phase model.SessionPhase) model.Session {
	s.Deadline = time.Time{}
	s.Phase = phase
	return s
}
