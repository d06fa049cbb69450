package arena

import (
	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

func (s *ArenaSuite) TestJoinQueueAlone() {
	s.login("conn-1", "Alice")

	s.Require().NoError(s.arena.JoinQueue("conn-1"))

	payload, ok := s.sender.last("conn-1", model.EventQueueJoined)
	s.Require().True(ok)
	joined := payload.(model.QueueJoined)
	s.Equal(1, joined.Position)
	s.Equal(1, joined.QueueSize)
	s.Equal(1, s.arena.QueueLen())
	s.Equal(0, s.arena.ActiveSessions())
}

func (s *ArenaSuite) TestPairingDebitsBothAndCreatesSession() {
	identA, identB, sessionID := s.pairMatch("conn-a", "conn-b")

	s.NotEmpty(sessionID)
	s.Equal(s.cfg.StartingBalance-s.cfg.EntryFee, identA.Balance)
	s.Equal(s.cfg.StartingBalance-s.cfg.EntryFee, identB.Balance)
	s.Equal(identA.Balance, s.balance(identA.ID))
	s.Equal(identB.Balance, s.balance(identB.ID))
	s.Equal(1, s.arena.ActiveSessions())
	s.Equal(0, s.arena.QueueLen())

	payload, _ := s.sender.last("conn-a", model.EventMatchFound)
	s.Equal("Bob", payload.(model.MatchFound).OpponentName)

	// Both debits carry a ledger entry tied to the session
	var fees int
	for _, entry := range s.bank.Ledger() {
		if entry.Kind == storage.LedgerEntryFee {
			fees++
			s.Equal(-s.cfg.EntryFee, entry.Amount)
		}
	}
	s.Equal(2, fees)
}

func (s *ArenaSuite) TestJoinQueueWhileQueuedRejected() {
	s.login("conn-1", "Alice")
	s.Require().NoError(s.arena.JoinQueue("conn-1"))

	err := s.arena.JoinQueue("conn-1")
	s.ErrorIs(err, model.ErrAlreadyQueued)

	payload, ok := s.sender.last("conn-1", model.EventQueueError)
	s.Require().True(ok)
	s.Equal("Already in queue", payload.(model.ErrorInfo).Message)
}

func (s *ArenaSuite) TestJoinQueueWhileInSessionRejected() {
	s.pairMatch("conn-a", "conn-b")

	err := s.arena.JoinQueue("conn-a")
	s.ErrorIs(err, model.ErrAlreadyInSession)
}

func (s *ArenaSuite) TestJoinQueueInsufficientFundsRejected() {
	broke := model.Identity{ID: "id-broke", Name: "Mallory", Balance: s.cfg.EntryFee - 1}
	s.Require().NoError(s.bank.Insert(s.ctx, broke))
	s.login("conn-1", "Mallory")

	err := s.arena.JoinQueue("conn-1")
	s.ErrorIs(err, model.ErrInsufficientFunds)

	payload, _ := s.sender.last("conn-1", model.EventQueueError)
	s.Equal("Not enough coins", payload.(model.ErrorInfo).Message)
	s.Equal(0, s.arena.QueueLen())
}

func (s *ArenaSuite) TestJoinQueueNotLoggedInRejected() {
	err := s.arena.JoinQueue("conn-unknown")
	s.ErrorIs(err, model.ErrNotConnected)
}

func (s *ArenaSuite) TestLeaveQueue() {
	s.login("conn-1", "Alice")
	s.Require().NoError(s.arena.JoinQueue("conn-1"))

	s.arena.LeaveQueue("conn-1")

	_, ok := s.sender.last("conn-1", model.EventQueueLeft)
	s.True(ok)
	s.Equal(0, s.arena.QueueLen())

	// Leaving again is a silent no-op
	s.sender.reset()
	s.arena.LeaveQueue("conn-1")
	_, ok = s.sender.last("conn-1", model.EventQueueLeft)
	s.False(ok)
}

func (s *ArenaSuite) TestDisconnectRemovesFromQueue() {
	s.login("conn-1", "Alice")
	s.Require().NoError(s.arena.JoinQueue("conn-1"))
	s.arena.Disconnect("conn-1")
	s.Equal(0, s.arena.QueueLen())

	// The departed identity must not be paired with a later joiner
	s.login("conn-2", "Bob")
	s.Require().NoError(s.arena.JoinQueue("conn-2"))
	s.Equal(0, s.arena.ActiveSessions())
	s.Equal(1, s.arena.QueueLen())
}

func (s *ArenaSuite) TestQueuePairsFIFO() {
	first := s.login("conn-1", "Alice")
	s.login("conn-2", "Bob")
	s.login("conn-3", "Carol")

	s.Require().NoError(s.arena.JoinQueue("conn-1"))
	s.Require().NoError(s.arena.JoinQueue("conn-2"))
	s.Require().NoError(s.arena.JoinQueue("conn-3"))

	// The two oldest entries are paired; the third keeps waiting
	s.Equal(1, s.arena.ActiveSessions())
	s.Equal(1, s.arena.QueueLen())

	payload, ok := s.sender.last("conn-2", model.EventMatchFound)
	s.Require().True(ok)
	s.Equal(first.Name, payload.(model.MatchFound).OpponentName)
	_, ok = s.sender.last("conn-3", model.EventMatchFound)
	s.False(ok)
}

func (s *ArenaSuite) TestFailedDebitLeavesBothUnqueued() {
	// Bob has exactly one fee but spends it in a concurrent debit;
	// simplest stand-in is an identity the bank does not know
	s.login("conn-1", "Alice")
	s.Require().NoError(s.bank.Insert(s.ctx, model.Identity{ID: "id-poor", Name: "Bob", Balance: s.cfg.EntryFee}))
	s.login("conn-2", "Bob")

	// Drain Bob's funds behind the arena's back so the cached balance
	// passes the pre-check but the atomic debit fails
	_, err := s.bank.CancelMatch(s.ctx, "drain", "id-poor", -s.cfg.EntryFee)
	s.Require().NoError(err)

	s.Require().NoError(s.arena.JoinQueue("conn-1"))
	s.Require().NoError(s.arena.JoinQueue("conn-2"))

	s.Equal(0, s.arena.ActiveSessions())
	s.Equal(0, s.arena.QueueLen())

	payload, ok := s.sender.last("conn-1", model.EventQueueError)
	s.Require().True(ok)
	s.Equal("Not enough coins", payload.(model.ErrorInfo).Message)

	// Alice's balance is untouched by the failed pairing
	ident, _ := s.bank.GetByName(s.ctx, "alice")
	s.Equal(s.cfg.StartingBalance, ident.Balance)
}
