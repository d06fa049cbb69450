package arena

import (
	"context"
	"log/slog"
	"time"

	"github.com/Puci-G/rpsServer/internal/game"
	"github.com/Puci-G/rpsServer/internal/model"
)

// MakeChoice records the caller's throw for the current round. Each
// submission before the deadline overwrites the previous one; both
// sides get an anonymous acknowledgement and the submitter an echo.
// The round still runs its full duration even with both choices in.
func (a *Arena) MakeChoice(conn model.ConnID, choice model.Choice) error {
	if !choice.Valid() {
		return model.ErrInvalidChoice
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.conns[conn]
	if !ok {
		return model.ErrNotConnected
	}
	if c.sessionID == "" {
		return model.ErrSessionNotFound
	}
	s, ok := a.sessions[c.sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}

	state, ok := game.Submit(s.state, c.identity.ID, choice)
	if !ok {
		return model.ErrRoundNotActive
	}
	s.state = state

	ack := model.ChoiceAck{IdentityID: c.identity.ID}
	a.sendToSlot(s.state.Slot1, model.EventChoiceAck, ack)
	a.sendToSlot(s.state.Slot2, model.EventChoiceAck, ack)
	a.sender.Send(conn, model.EventChoiceConfirmed, model.ChoiceConfirmed{Choice: choice})
	return nil
}

// CancelSession is the legacy refund path: the survivor gets a single
// entry fee back and the session is torn down without a pot transfer.
// Not reachable from normal play; retained alongside the gateway op.
func (a *Arena) CancelSession(sid model.SessionID, survivor model.IdentityID) error {
	a.mu.Lock()
	s, ok := a.sessions[sid]
	if !ok || s.state.Phase.Terminal() {
		a.mu.Unlock()
		return model.ErrSessionNotFound
	}

	s.gen = a.nextGenLocked()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = game.Finish(s.state, model.PhaseCancelled)

	fee := s.state.EntryFee
	a.enqueueJobLocked(func() {
		balance, err := a.gateway.CancelMatch(context.Background(), sid, survivor, fee)
		a.cancelled(sid, survivor, balance, err)
	})
	a.unlockAndDispatch()
	return nil
}

func (a *Arena) cancelled(sid model.SessionID, survivor model.IdentityID, balance int64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.logger.Error("cancel refund failed",
			slog.String("session_id", string(sid)),
			slog.String("error", err.Error()),
		)
	} else if c, ok := a.online[survivor]; ok {
		c.identity.Balance = balance
	}

	if s, ok := a.sessions[sid]; ok {
		a.teardownLocked(s)
	}
}

// scheduleLocked replaces the session's pending timer with a new step.
// The callback captures the current generation; if a later transition
// supersedes it, the fired callback observes the mismatch and discards
// itself.
func (a *Arena) scheduleLocked(s *session, d time.Duration, step func(*session)) {
	if s.timer != nil {
		s.timer.Stop()
	}
	sid, gen := s.state.ID, s.gen
	s.timer = a.clock.AfterFunc(d, func() {
		a.sessionStep(sid, gen, step)
	})
}

// sessionStep is the entry point for every session timer callback
func (a *Arena) sessionStep(sid model.SessionID, gen uint64, step func(*session)) {
	a.mu.Lock()
	s, ok := a.sessions[sid]
	if !ok || s.gen != gen {
		// Stale: the session was settled, forfeited or advanced by a
		// competing event since this timer was scheduled
		a.mu.Unlock()
		return
	}
	step(s)
	a.unlockAndDispatch()
}

// startRoundStep opens a round: fresh choices, a deadline a full round
// duration away, and a roundStart for each side in its own perspective.
func (a *Arena) startRoundStep(s *session) {
	s.gen = a.nextGenLocked()
	s.state = game.StartRound(s.state, a.clock.Now().Add(a.cfg.RoundTime))

	timerSeconds := secondsCeil(a.cfg.RoundTime)
	a.sendToSlot(s.state.Slot1, model.EventRoundStart, model.RoundStart{
		Round:         s.state.Round,
		YourScore:     s.state.Score1,
		OpponentScore: s.state.Score2,
		TimerSeconds:  timerSeconds,
	})
	a.sendToSlot(s.state.Slot2, model.EventRoundStart, model.RoundStart{
		Round:         s.state.Round,
		YourScore:     s.state.Score2,
		OpponentScore: s.state.Score1,
		TimerSeconds:  timerSeconds,
	})

	a.scheduleLocked(s, a.cfg.RoundTime, a.evaluateRoundStep)
}

// evaluateRoundStep fires at the round deadline: any missing choice is
// replaced by a uniformly random one, the round is judged, and the
// session either schedules the next round or heads into settlement.
func (a *Arena) evaluateRoundStep(s *session) {
	s.gen = a.nextGenLocked()

	c1, ok := s.state.Choices[s.state.Slot1.Identity.ID]
	if !ok {
		c1 = model.Choices[a.random.Intn(len(model.Choices))]
	}
	c2, ok := s.state.Choices[s.state.Slot2.Identity.ID]
	if !ok {
		c2 = model.Choices[a.random.Intn(len(model.Choices))]
	}

	state, report := game.Evaluate(s.state, c1, c2, a.cfg.RoundsToWin)
	s.state = state

	a.sendToSlot(s.state.Slot1, model.EventRoundResult, model.RoundResult{
		YourChoice:     report.Choice1,
		OpponentChoice: report.Choice2,
		Result:         report.Result1,
		YourScore:      report.Score1,
		OpponentScore:  report.Score2,
		Round:          report.Round,
	})
	a.sendToSlot(s.state.Slot2, model.EventRoundResult, model.RoundResult{
		YourChoice:     report.Choice2,
		OpponentChoice: report.Choice1,
		Result:         report.Result2,
		YourScore:      report.Score2,
		OpponentScore:  report.Score1,
		Round:          report.Round,
	})

	if report.Decided {
		a.scheduleLocked(s, a.cfg.InterRoundDelay, a.completeStep)
		return
	}
	s.state = game.AdvanceRound(s.state)
	a.scheduleLocked(s, a.cfg.InterRoundDelay, a.startRoundStep)
}

// completeStep fires after the result delay once a side has reached the
// win threshold: the session goes terminal and the pot credit is
// dispatched to the settlement gateway.
func (a *Arena) completeStep(s *session) {
	s.gen = a.nextGenLocked()

	winner := &s.state.Slot1
	if s.state.Leader() == 2 {
		winner = &s.state.Slot2
	}
	s.state = game.Finish(s.state, model.PhaseCompleted)
	a.enqueueSettleLocked(s, winner.Identity.ID, 1)
}

// enqueueSettleLocked defers the pot credit for the session's winner
// (or forfeit survivor). The job captures the current generation so a
// torn-down session's late result is discarded.
func (a *Arena) enqueueSettleLocked(s *session, winner model.IdentityID, attempt int) {
	sid, gen, fee := s.state.ID, s.gen, s.state.EntryFee
	a.enqueueJobLocked(func() {
		balance, err := a.gateway.CompleteMatch(context.Background(), sid, winner, fee)
		a.settled(sid, gen, winner, balance, err, attempt)
	})
}

// settled receives the result of a pot credit. Failures are retried on
// the clock up to the configured limit; only a successful credit emits
// the final matchEnd/opponentForfeited and tears the session down.
func (a *Arena) settled(sid model.SessionID, gen uint64, winner model.IdentityID, balance int64, err error, attempt int) {
	a.mu.Lock()
	s, ok := a.sessions[sid]
	if !ok || s.gen != gen {
		a.mu.Unlock()
		return
	}

	if err != nil {
		if attempt < a.cfg.SettleRetries {
			a.logger.Warn("settlement credit failed, retrying",
				slog.String("session_id", string(sid)),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			a.scheduleLocked(s, a.cfg.SettleRetryDelay, func(s *session) {
				s.gen = a.nextGenLocked()
				a.enqueueSettleLocked(s, winner, attempt+1)
			})
			a.unlockAndDispatch()
			return
		}

		// Out of retries: surface the fault and tear down. The ledger
		// carries the debits for out-of-band reconciliation.
		a.logger.Error("settlement credit failed permanently",
			slog.String("session_id", string(sid)),
			slog.String("winner", string(winner)),
			slog.String("error", err.Error()),
		)
		fault := model.ErrorInfo{Message: "Settlement failed"}
		a.sendToSlot(s.state.Slot1, model.EventQueueError, fault)
		a.sendToSlot(s.state.Slot2, model.EventQueueError, fault)
		a.teardownLocked(s)
		a.unlockAndDispatch()
		return
	}

	if c, ok := a.online[winner]; ok {
		c.identity.Balance = balance
	}
	winnerSlot := &s.state.Slot1
	if s.state.SlotOf(winner) == 2 {
		winnerSlot = &s.state.Slot2
	}
	winnerSlot.Identity.Balance = balance

	if s.state.Phase == model.PhaseForfeited {
		a.sendToSlot(*winnerSlot, model.EventOpponentForfeited, model.OpponentForfeited{
			SessionID:  sid,
			CoinsWon:   s.state.Pot,
			NewBalance: balance,
		})
	} else {
		a.sendMatchEndLocked(s, winner)
	}

	a.logger.Info("session settled",
		slog.String("session_id", string(sid)),
		slog.String("winner", string(winner)),
		slog.Int64("pot", s.state.Pot),
		slog.String("phase", string(s.state.Phase)),
	)
	a.teardownLocked(s)
	a.unlockAndDispatch()
}

func (a *Arena) sendMatchEndLocked(s *session, winner model.IdentityID) {
	slots := []*model.Slot{&s.state.Slot1, &s.state.Slot2}
	scores := []int{s.state.Score1, s.state.Score2}
	for i, slot := range slots {
		outcome := "opponent"
		var coinsWon int64
		if slot.Identity.ID == winner {
			outcome = "you"
			coinsWon = s.state.Pot
		}
		a.sendToSlot(*slot, model.EventMatchEnd, model.MatchEnd{
			Outcome:    outcome,
			FinalScore: model.FinalScore{You: scores[i], Opponent: scores[1-i]},
			CoinsWon:   coinsWon,
			NewBalance: slot.Identity.Balance,
		})
	}
}

// teardownLocked removes the session from the active set and releases
// both slots. Any pending timer or forfeit tied to it dies here.
func (a *Arena) teardownLocked(s *session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	delete(a.sessions, s.state.ID)

	for _, slot := range []model.Slot{s.state.Slot1, s.state.Slot2} {
		id := slot.Identity.ID
		if cur, ok := a.inSession[id]; ok && cur == s.state.ID {
			delete(a.inSession, id)
		}
		if f, ok := a.forfeits[id]; ok && f.sessionID == s.state.ID {
			f.timer.Stop()
			delete(a.forfeits, id)
		}
		if c, ok := a.online[id]; ok && c.sessionID == s.state.ID {
			c.sessionID = ""
		}
	}
}
