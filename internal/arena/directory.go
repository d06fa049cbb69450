package arena

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Puci-G/rpsServer/internal/model"
)

// Login binds a connection to the identity with the given display name,
// creating the identity with the starting balance on first login. The
// name must not already be bound to another live channel. A returning
// identity with a pending grace countdown or an active session is
// reattached in place.
func (a *Arena) Login(ctx context.Context, conn model.ConnID, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: "Name required"})
		return model.ErrNameRequired
	}
	key := model.NormalizeName(name)

	// Reserve the name key for the duration of the store round-trip so a
	// concurrent login with the same name cannot slip past the online
	// check and insert a second identity record.
	a.mu.Lock()
	if _, taken := a.names[key]; taken || a.claiming[key] {
		a.mu.Unlock()
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: "Name already taken"})
		return model.ErrNameTaken
	}
	a.claiming[key] = true
	a.mu.Unlock()

	identity, err := a.lookupOrCreate(ctx, key, trimmed)

	a.mu.Lock()
	delete(a.claiming, key)
	if err != nil {
		a.mu.Unlock()
		msg := "Login failed"
		if errors.Is(err, model.ErrNameTaken) {
			msg = "Name already taken"
		}
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: msg})
		return err
	}
	delete(a.loggedOut, identity.ID)
	a.registerLocked(conn, *identity, key)
	a.mu.Unlock()

	a.sender.Send(conn, model.EventIdentityInfo, model.IdentityInfo{
		ID:      identity.ID,
		Name:    identity.Name,
		Balance: identity.Balance,
	})
	return nil
}

// lookupOrCreate resolves a display name to its persisted identity,
// minting one with the starting balance on first login. The store's
// insert is check-and-insert, so a duplicate name surfaces as
// ErrNameTaken rather than overwriting the index.
func (a *Arena) lookupOrCreate(ctx context.Context, key, name string) (*model.Identity, error) {
	identity, err := a.store.GetByName(ctx, key)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, err
	}

	fresh := model.Identity{
		ID:      model.IdentityID(uuid.NewString()),
		Name:    name,
		Balance: a.cfg.StartingBalance,
	}
	if err := a.store.Insert(ctx, fresh); err != nil {
		return nil, err
	}
	a.logger.Info("identity created",
		slog.String("identity_id", string(fresh.ID)),
		slog.String("name", fresh.Name),
	)
	return &fresh, nil
}

// Resume binds a connection to a known identity by id, evicting any
// other live channel for it first. An identity that explicitly logged
// out cannot silently resume; it must log in again by name.
func (a *Arena) Resume(ctx context.Context, conn model.ConnID, id model.IdentityID) error {
	if id == "" {
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: "Missing id"})
		return model.ErrIdentityNotFound
	}

	a.mu.Lock()
	blocked := a.loggedOut[id]
	a.mu.Unlock()
	if blocked {
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: "Unknown id, please login"})
		return model.ErrNotResumable
	}

	identity, err := a.store.GetByID(ctx, id)
	if err != nil {
		a.sender.Send(conn, model.EventLoginError, model.ErrorInfo{Message: "Unknown id, please login"})
		return err
	}

	a.mu.Lock()
	a.registerLocked(conn, *identity, model.NormalizeName(identity.Name))
	a.mu.Unlock()

	a.sender.Send(conn, model.EventIdentityInfo, model.IdentityInfo{
		ID:      identity.ID,
		Name:    identity.Name,
		Balance: identity.Balance,
	})
	return nil
}

// Logout releases the handle like a disconnect and additionally clears
// the resume state so the identity cannot silently reattach later.
func (a *Arena) Logout(conn model.ConnID) {
	a.mu.Lock()
	if c, ok := a.conns[conn]; ok {
		a.releaseLocked(c)
		a.loggedOut[c.identity.ID] = true
	}
	a.mu.Unlock()

	a.sender.Send(conn, model.EventLoggedOut, struct{}{})
	a.sender.Close(conn)
}

// Disconnect handles loss of a live channel: the identity leaves the
// queue if present, and a grace countdown starts if it is in a session.
func (a *Arena) Disconnect(conn model.ConnID) {
	a.mu.Lock()
	if c, ok := a.conns[conn]; ok {
		a.releaseLocked(c)
	}
	a.mu.Unlock()
}

// registerLocked binds a new handle: evicts any previous handle for the
// same identity, cancels a pending forfeit, and reattaches the identity
// to its active session if it has one.
func (a *Arena) registerLocked(conn model.ConnID, identity model.Identity, nameKey string) {
	if old, ok := a.online[identity.ID]; ok && old.conn != conn {
		delete(a.conns, old.conn)
		a.sender.Close(old.conn)
	}

	c := &client{conn: conn, identity: identity}
	a.conns[conn] = c
	a.online[identity.ID] = c
	a.names[nameKey] = identity.ID

	a.cancelForfeitLocked(identity.ID)

	sid, ok := a.inSession[identity.ID]
	if !ok {
		return
	}
	s, ok := a.sessions[sid]
	if !ok || s.state.Phase.Terminal() {
		// A terminal session can linger while a settlement retry is
		// pending; a reattach must not rejoin it
		return
	}

	// Swap the fresh handle into the session slot and resynchronize
	slot := &s.state.Slot1
	opponent := &s.state.Slot2
	if s.state.SlotOf(identity.ID) == 2 {
		slot, opponent = opponent, slot
	}
	slot.Conn = conn
	slot.Identity.Balance = identity.Balance
	c.sessionID = sid

	a.sender.Send(conn, model.EventMatchFound, model.MatchFound{
		SessionID:    sid,
		OpponentName: opponent.Identity.Name,
		NewBalance:   identity.Balance,
	})

	if s.state.Phase == model.PhaseRoundActive {
		remaining := secondsCeil(s.state.Deadline.Sub(a.clock.Now()))
		if remaining < 1 {
			remaining = 1
		}
		yourScore, oppScore := s.state.Score1, s.state.Score2
		if s.state.SlotOf(identity.ID) == 2 {
			yourScore, oppScore = oppScore, yourScore
		}
		a.sender.Send(conn, model.EventRoundStart, model.RoundStart{
			Round:         s.state.Round,
			YourScore:     yourScore,
			OpponentScore: oppScore,
			TimerSeconds:  remaining,
		})
	}
}

// cancelForfeitLocked stops a pending grace countdown, if any, and
// tells the survivor the opponent is back.
func (a *Arena) cancelForfeitLocked(id model.IdentityID) {
	f, ok := a.forfeits[id]
	if !ok {
		return
	}
	f.timer.Stop()
	delete(a.forfeits, id)

	s, ok := a.sessions[f.sessionID]
	if !ok {
		return
	}
	a.sendToSlot(*s.state.Opponent(id), model.EventOpponentBack, model.OpponentBack{
		SessionID: f.sessionID,
	})
}

// releaseLocked unbinds a handle: frees the name, retracts any queue
// membership, clears the session slot and starts the grace countdown
// if the identity is mid-session.
func (a *Arena) releaseLocked(c *client) {
	delete(a.conns, c.conn)
	if cur, ok := a.online[c.identity.ID]; ok && cur == c {
		delete(a.online, c.identity.ID)
		delete(a.names, model.NormalizeName(c.identity.Name))
	}

	a.removeFromQueueLocked(c.identity.ID)

	if c.sessionID == "" {
		return
	}
	if s, ok := a.sessions[c.sessionID]; ok && !s.state.Phase.Terminal() {
		slot := &s.state.Slot1
		if s.state.SlotOf(c.identity.ID) == 2 {
			slot = &s.state.Slot2
		}
		slot.Conn = ""
		a.scheduleForfeitLocked(c.identity.ID, c.sessionID)
	}
}
