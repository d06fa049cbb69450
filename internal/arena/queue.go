package arena

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Puci-G/rpsServer/internal/game"
	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

// JoinQueue appends the caller to the matchmaking queue and runs a
// pairing pass. Rejected if the identity is already queued, already in
// a session, or its cached balance cannot cover the entry fee.
func (a *Arena) JoinQueue(conn model.ConnID) error {
	a.mu.Lock()
	c, ok := a.conns[conn]
	if !ok {
		a.mu.Unlock()
		return model.ErrNotConnected
	}
	id := c.identity.ID

	var reject error
	switch {
	case a.queued[id] || a.pairing[id]:
		reject = model.ErrAlreadyQueued
	case c.sessionID != "":
		reject = model.ErrAlreadyInSession
	case c.identity.Balance < a.cfg.EntryFee:
		reject = model.ErrInsufficientFunds
	}
	if reject != nil {
		a.mu.Unlock()
		a.sender.Send(conn, model.EventQueueError, model.ErrorInfo{Message: queueMessage(reject)})
		return reject
	}

	a.queue = append(a.queue, id)
	a.queued[id] = true
	a.sender.Send(conn, model.EventQueueJoined, model.QueueJoined{
		Position:  len(a.queue),
		QueueSize: len(a.queue),
	})

	a.matchmakeLocked()
	a.unlockAndDispatch()
	return nil
}

// LeaveQueue removes the caller from the queue if present; no-op otherwise
func (a *Arena) LeaveQueue(conn model.ConnID) {
	a.mu.Lock()
	c, ok := a.conns[conn]
	if !ok || !a.queued[c.identity.ID] {
		a.mu.Unlock()
		return
	}
	a.removeFromQueueLocked(c.identity.ID)
	a.mu.Unlock()

	a.sender.Send(conn, model.EventQueueLeft, struct{}{})
}

func (a *Arena) removeFromQueueLocked(id model.IdentityID) {
	if !a.queued[id] {
		return
	}
	delete(a.queued, id)
	for i, queuedID := range a.queue {
		if queuedID == id {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			return
		}
	}
}

// matchmakeLocked pops pairs of waiting identities oldest-first and
// defers an atomic entry-fee debit for each pair. Candidates are marked
// pairing while the debit is in flight so they cannot re-queue.
func (a *Arena) matchmakeLocked() {
	for len(a.queue) >= 2 {
		identA := a.online[a.queue[0]].identity
		identB := a.online[a.queue[1]].identity
		a.queue = a.queue[2:]
		delete(a.queued, identA.ID)
		delete(a.queued, identB.ID)
		a.pairing[identA.ID] = true
		a.pairing[identB.ID] = true

		fee := a.cfg.EntryFee
		a.enqueueJobLocked(func() {
			started, err := a.gateway.StartMatch(context.Background(), identA.ID, identB.ID, fee)
			a.matchStarted(identA, identB, started, err)
		})
	}
}

// matchStarted receives the result of an atomic entry-fee debit. On
// success the session is created and its lead-in scheduled; on failure
// both candidates are left un-queued and notified.
func (a *Arena) matchStarted(identA, identB model.Identity, started *storage.MatchStart, err error) {
	a.mu.Lock()
	delete(a.pairing, identA.ID)
	delete(a.pairing, identB.ID)

	if err != nil {
		a.logger.Warn("match start failed",
			slog.String("identity_a", string(identA.ID)),
			slog.String("identity_b", string(identB.ID)),
			slog.String("error", err.Error()),
		)
		msg := "Match start failed"
		if errors.Is(err, model.ErrInsufficientFunds) {
			msg = "Not enough coins"
		}
		for _, id := range []model.IdentityID{identA.ID, identB.ID} {
			if c, ok := a.online[id]; ok {
				a.sender.Send(c.conn, model.EventQueueError, model.ErrorInfo{Message: msg})
			}
		}
		a.unlockAndDispatch()
		return
	}

	identA.Balance = started.Balance1
	identB.Balance = started.Balance2

	slot1 := model.Slot{Identity: identA}
	slot2 := model.Slot{Identity: identB}
	ca, okA := a.online[identA.ID]
	cb, okB := a.online[identB.ID]
	if okA {
		slot1.Conn = ca.conn
		ca.identity.Balance = identA.Balance
		ca.sessionID = started.SessionID
	}
	if okB {
		slot2.Conn = cb.conn
		cb.identity.Balance = identB.Balance
		cb.sessionID = started.SessionID
	}

	s := &session{
		state: game.New(started.SessionID, slot1, slot2, a.cfg.EntryFee),
		gen:   a.nextGenLocked(),
	}
	a.sessions[started.SessionID] = s
	a.inSession[identA.ID] = started.SessionID
	a.inSession[identB.ID] = started.SessionID

	a.sendToSlot(slot1, model.EventMatchFound, model.MatchFound{
		SessionID:    started.SessionID,
		OpponentName: identB.Name,
		NewBalance:   identA.Balance,
	})
	a.sendToSlot(slot2, model.EventMatchFound, model.MatchFound{
		SessionID:    started.SessionID,
		OpponentName: identA.Name,
		NewBalance:   identB.Balance,
	})

	a.logger.Info("session created",
		slog.String("session_id", string(started.SessionID)),
		slog.String("identity_a", string(identA.ID)),
		slog.String("identity_b", string(identB.ID)),
		slog.Int64("pot", s.state.Pot),
	)

	// A candidate that dropped while the debit was in flight starts
	// the session already under a grace countdown
	if !okA {
		a.scheduleForfeitLocked(identA.ID, started.SessionID)
	}
	if !okB {
		a.scheduleForfeitLocked(identB.ID, started.SessionID)
	}

	a.scheduleLocked(s, a.cfg.MatchLeadIn, a.startRoundStep)
	a.unlockAndDispatch()
}

func queueMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrAlreadyQueued):
		return "Already in queue"
	case errors.Is(err, model.ErrAlreadyInSession):
		return "Already in a match"
	case errors.Is(err, model.ErrInsufficientFunds):
		return "Not enough coins"
	default:
		return "Cannot join queue"
	}
}
