package arena

import (
	"log/slog"

	"github.com/Puci-G/rpsServer/internal/game"
	"github.com/Puci-G/rpsServer/internal/model"
)

// scheduleForfeitLocked starts (or restarts) the disconnect grace
// countdown for one absent identity. The session keeps playing through
// the grace window; only expiry ends it.
func (a *Arena) scheduleForfeitLocked(offender model.IdentityID, sid model.SessionID) {
	s, ok := a.sessions[sid]
	if !ok || s.state.Phase.Terminal() {
		return
	}

	if prev, ok := a.forfeits[offender]; ok {
		prev.timer.Stop()
	}

	gen := a.nextGenLocked()
	expiresAt := a.clock.Now().Add(a.cfg.GracePeriod)
	f := &forfeit{
		sessionID: sid,
		gen:       gen,
		expiresAt: expiresAt,
		timer: a.clock.AfterFunc(a.cfg.GracePeriod, func() {
			a.forfeitExpired(offender, gen)
		}),
	}
	a.forfeits[offender] = f

	a.sendToSlot(*s.state.Opponent(offender), model.EventOpponentAway, model.OpponentAway{
		SessionID:    sid,
		ExpiresAt:    expiresAt.UnixMilli(),
		GraceSeconds: secondsCeil(a.cfg.GracePeriod),
	})

	a.logger.Info("grace period started",
		slog.String("identity_id", string(offender)),
		slog.String("session_id", string(sid)),
	)
}

// forfeitExpired fires when a grace window runs out without a
// reattach: the absent side forfeits and the survivor takes the pot.
func (a *Arena) forfeitExpired(offender model.IdentityID, gen uint64) {
	a.mu.Lock()

	f, ok := a.forfeits[offender]
	if !ok || f.gen != gen {
		// A reattach or teardown cancelled this countdown
		a.mu.Unlock()
		return
	}
	delete(a.forfeits, offender)

	s, ok := a.sessions[f.sessionID]
	if !ok || s.state.Phase.Terminal() {
		a.mu.Unlock()
		return
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen = a.nextGenLocked()
	s.state = game.Finish(s.state, model.PhaseForfeited)

	survivor := s.state.Opponent(offender).Identity.ID
	a.logger.Info("session forfeited",
		slog.String("session_id", string(f.sessionID)),
		slog.String("offender", string(offender)),
		slog.String("survivor", string(survivor)),
	)
	a.enqueueSettleLocked(s, survivor, 1)
	a.unlockAndDispatch()
}
