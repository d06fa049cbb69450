package arena

import (
	"context"
	"sync"

	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
	"github.com/Puci-G/rpsServer/internal/testutil"
)

func (s *ArenaSuite) TestLoginCreatesIdentityWithStartingBalance() {
	ident := s.login("conn-1", "Alice")

	s.Equal("Alice", ident.Name)
	s.Equal(s.cfg.StartingBalance, ident.Balance)

	stored, err := s.bank.GetByID(s.ctx, ident.ID)
	s.Require().NoError(err)
	s.Equal(s.cfg.StartingBalance, stored.Balance)
}

func (s *ArenaSuite) TestLoginEmptyNameRejected() {
	err := s.arena.Login(s.ctx, "conn-1", "   ")
	s.ErrorIs(err, model.ErrNameRequired)

	payload, ok := s.sender.last("conn-1", model.EventLoginError)
	s.Require().True(ok)
	s.Equal("Name required", payload.(model.ErrorInfo).Message)
}

func (s *ArenaSuite) TestLoginNameBoundToLiveHandleRejected() {
	s.login("conn-1", "Alice")

	err := s.arena.Login(s.ctx, "conn-2", "Alice")
	s.ErrorIs(err, model.ErrNameTaken)
}

func (s *ArenaSuite) TestLoginNameCollisionIsCaseInsensitive() {
	s.login("conn-1", "Alice")

	err := s.arena.Login(s.ctx, "conn-2", "  ALICE ")
	s.ErrorIs(err, model.ErrNameTaken)
}

func (s *ArenaSuite) TestLoginReusesPersistedIdentity() {
	ident := s.login("conn-1", "Alice")
	s.arena.Disconnect("conn-1")

	again := s.login("conn-2", "Alice")
	s.Equal(ident.ID, again.ID)
}

func (s *ArenaSuite) TestResumeEvictsPreviousHandle() {
	ident := s.login("conn-1", "Alice")

	s.Require().NoError(s.arena.Resume(s.ctx, "conn-2", ident.ID))

	s.True(s.sender.wasClosed("conn-1"), "old handle must be forced closed")
	payload, ok := s.sender.last("conn-2", model.EventIdentityInfo)
	s.Require().True(ok)
	s.Equal(ident.ID, payload.(model.IdentityInfo).ID)
}

func (s *ArenaSuite) TestResumeUnknownIDRejected() {
	err := s.arena.Resume(s.ctx, "conn-1", "no-such-id")
	s.ErrorIs(err, model.ErrIdentityNotFound)

	_, ok := s.sender.last("conn-1", model.EventLoginError)
	s.True(ok)
}

func (s *ArenaSuite) TestLogoutBlocksSilentResume() {
	ident := s.login("conn-1", "Alice")
	s.arena.Logout("conn-1")

	_, ok := s.sender.last("conn-1", model.EventLoggedOut)
	s.True(ok)
	s.True(s.sender.wasClosed("conn-1"))

	err := s.arena.Resume(s.ctx, "conn-2", ident.ID)
	s.ErrorIs(err, model.ErrNotResumable)
}

func (s *ArenaSuite) TestExplicitLoginAfterLogoutWorks() {
	ident := s.login("conn-1", "Alice")
	s.arena.Logout("conn-1")

	again := s.login("conn-2", "Alice")
	s.Equal(ident.ID, again.ID)

	// Login clears the logout flag, so resume works again afterwards
	s.Require().NoError(s.arena.Resume(s.ctx, "conn-3", ident.ID))
}

func (s *ArenaSuite) TestResumeAfterDisconnectWorks() {
	ident := s.login("conn-1", "Alice")
	s.arena.Disconnect("conn-1")

	s.Require().NoError(s.arena.Resume(s.ctx, "conn-2", ident.ID))
}

func (s *ArenaSuite) TestDisconnectFreesName() {
	s.login("conn-1", "Alice")
	s.arena.Disconnect("conn-1")

	// A different connection can take the name once the handle is gone
	s.Require().NoError(s.arena.Login(s.ctx, "conn-2", "Alice"))
}

// interceptStore wraps the bank so another login can be injected in the
// middle of a login's store round-trip
type interceptStore struct {
	storage.Bank
	mu          sync.Mutex
	onGetByName func()
}

func (i *interceptStore) GetByName(ctx context.Context, key string) (*model.Identity, error) {
	i.mu.Lock()
	hook := i.onGetByName
	i.onGetByName = nil
	i.mu.Unlock()
	if hook != nil {
		hook()
	}
	return i.Bank.GetByName(ctx, key)
}

func (s *ArenaSuite) TestSimultaneousFirstLoginsInsertOneIdentity() {
	store := &interceptStore{Bank: s.bank}
	arena := New(s.cfg, Deps{
		Logger:   testutil.NopLogger(),
		Clock:    s.clock,
		Random:   s.random,
		Store:    store,
		Gateway:  s.gateway,
		Sender:   s.sender,
		Dispatch: func(f func()) { f() },
	})

	// The rival runs while the first login is between its online-name
	// check and its insert
	var rivalErr error
	store.onGetByName = func() {
		rivalErr = arena.Login(s.ctx, "conn-2", "Alice")
	}

	s.Require().NoError(arena.Login(s.ctx, "conn-1", "Alice"))
	s.Require().ErrorIs(rivalErr, model.ErrNameTaken)

	payload, ok := s.sender.last("conn-2", model.EventLoginError)
	s.Require().True(ok)
	s.Equal("Name already taken", payload.(model.ErrorInfo).Message)

	// The persisted name index must resolve to the identity that won
	payload, ok = s.sender.last("conn-1", model.EventIdentityInfo)
	s.Require().True(ok)
	winner := payload.(model.IdentityInfo)

	persisted, err := s.bank.GetByName(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(winner.ID, persisted.ID)
}
