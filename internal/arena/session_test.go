package arena

import (
	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

func (s *ArenaSuite) TestLeadInThenFirstRoundStarts() {
	s.pairMatch("conn-a", "conn-b")

	// No round before the lead-in delay elapses
	_, ok := s.sender.last("conn-a", model.EventRoundStart)
	s.False(ok)

	s.clock.Advance(s.cfg.MatchLeadIn)

	payload, ok := s.sender.last("conn-a", model.EventRoundStart)
	s.Require().True(ok)
	start := payload.(model.RoundStart)
	s.Equal(1, start.Round)
	s.Equal(0, start.YourScore)
	s.Equal(0, start.OpponentScore)
	s.Equal(7, start.TimerSeconds)
}

func (s *ArenaSuite) TestChoiceBeforeRoundStartsRejected() {
	s.pairMatch("conn-a", "conn-b")

	err := s.arena.MakeChoice("conn-a", model.ChoiceRock)
	s.ErrorIs(err, model.ErrRoundNotActive)
}

func (s *ArenaSuite) TestInvalidChoiceRejected() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	err := s.arena.MakeChoice("conn-a", "lizard")
	s.ErrorIs(err, model.ErrInvalidChoice)
}

func (s *ArenaSuite) TestChoiceAcknowledgedToBothSides() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.Require().NoError(s.arena.MakeChoice("conn-a", model.ChoiceRock))

	// Both sides learn a choice is locked in, without its value
	_, ok := s.sender.last("conn-b", model.EventChoiceAck)
	s.True(ok)

	// Only the submitter gets the echo
	payload, ok := s.sender.last("conn-a", model.EventChoiceConfirmed)
	s.Require().True(ok)
	s.Equal(model.ChoiceRock, payload.(model.ChoiceConfirmed).Choice)
	_, ok = s.sender.last("conn-b", model.EventChoiceConfirmed)
	s.False(ok)
}

func (s *ArenaSuite) TestRoundResultIsPerspectiveSwapped() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.playRound("conn-a", "conn-b", model.ChoiceRock, model.ChoiceScissors)

	payload, ok := s.sender.last("conn-a", model.EventRoundResult)
	s.Require().True(ok)
	resultA := payload.(model.RoundResult)
	s.Equal(model.ChoiceRock, resultA.YourChoice)
	s.Equal(model.ChoiceScissors, resultA.OpponentChoice)
	s.Equal(model.ResultWin, resultA.Result)
	s.Equal(1, resultA.YourScore)
	s.Equal(0, resultA.OpponentScore)

	payload, _ = s.sender.last("conn-b", model.EventRoundResult)
	resultB := payload.(model.RoundResult)
	s.Equal(model.ChoiceScissors, resultB.YourChoice)
	s.Equal(model.ResultLose, resultB.Result)
	s.Equal(0, resultB.YourScore)
	s.Equal(1, resultB.OpponentScore)
}

func (s *ArenaSuite) TestRoundRunsFullDurationEvenWithBothChoicesIn() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.Require().NoError(s.arena.MakeChoice("conn-a", model.ChoiceRock))
	s.Require().NoError(s.arena.MakeChoice("conn-b", model.ChoiceScissors))

	// Partway through the round nothing is evaluated yet
	s.clock.Advance(s.cfg.RoundTime / 2)
	_, ok := s.sender.last("conn-a", model.EventRoundResult)
	s.False(ok)

	s.clock.Advance(s.cfg.RoundTime / 2)
	_, ok = s.sender.last("conn-a", model.EventRoundResult)
	s.True(ok)
}

func (s *ArenaSuite) TestLastSubmissionBeforeDeadlineWins() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.Require().NoError(s.arena.MakeChoice("conn-a", model.ChoicePaper))
	s.Require().NoError(s.arena.MakeChoice("conn-a", model.ChoiceRock))
	s.Require().NoError(s.arena.MakeChoice("conn-b", model.ChoiceScissors))
	s.clock.Advance(s.cfg.RoundTime)

	payload, _ := s.sender.last("conn-a", model.EventRoundResult)
	s.Equal(model.ChoiceRock, payload.(model.RoundResult).YourChoice)
	s.Equal(model.ResultWin, payload.(model.RoundResult).Result)
}

func (s *ArenaSuite) TestMissingChoicesAreRandomized() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	// Neither side submits: slot1 draws rock, slot2 draws scissors
	s.random.QueueIntn(0, 2)
	s.clock.Advance(s.cfg.RoundTime)

	payload, ok := s.sender.last("conn-a", model.EventRoundResult)
	s.Require().True(ok)
	result := payload.(model.RoundResult)
	s.Equal(model.ChoiceRock, result.YourChoice)
	s.Equal(model.ChoiceScissors, result.OpponentChoice)
	s.Equal(model.ResultWin, result.Result)
}

func (s *ArenaSuite) TestTiedRoundRepeatsWithoutScoring() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.playRound("conn-a", "conn-b", model.ChoiceRock, model.ChoiceRock)

	payload, _ := s.sender.last("conn-a", model.EventRoundResult)
	s.Equal(model.ResultTie, payload.(model.RoundResult).Result)

	s.clock.Advance(s.cfg.InterRoundDelay)

	payload, _ = s.sender.last("conn-a", model.EventRoundStart)
	start := payload.(model.RoundStart)
	s.Equal(2, start.Round)
	s.Equal(0, start.YourScore)
	s.Equal(0, start.OpponentScore)
}

func (s *ArenaSuite) TestFullMatchThreeStraightWins() {
	identA, identB, sessionID := s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	for round := 1; round <= 3; round++ {
		s.playRound("conn-a", "conn-b", model.ChoiceRock, model.ChoiceScissors)
		if round < 3 {
			s.clock.Advance(s.cfg.InterRoundDelay)
		}
	}

	// The result display delay runs before settlement
	_, ok := s.sender.last("conn-a", model.EventMatchEnd)
	s.False(ok)
	s.clock.Advance(s.cfg.InterRoundDelay)

	payload, ok := s.sender.last("conn-a", model.EventMatchEnd)
	s.Require().True(ok)
	endA := payload.(model.MatchEnd)
	s.Equal("you", endA.Outcome)
	s.Equal(3, endA.FinalScore.You)
	s.Equal(0, endA.FinalScore.Opponent)
	s.Equal(int64(10), endA.CoinsWon)
	s.Equal(int64(25), endA.NewBalance)

	payload, _ = s.sender.last("conn-b", model.EventMatchEnd)
	endB := payload.(model.MatchEnd)
	s.Equal("opponent", endB.Outcome)
	s.Equal(0, endB.FinalScore.You)
	s.Equal(3, endB.FinalScore.Opponent)
	s.Equal(int64(0), endB.CoinsWon)
	s.Equal(int64(15), endB.NewBalance)

	// Session gone, balances settled, win recorded in the ledger
	s.Equal(0, s.arena.ActiveSessions())
	s.Equal(int64(25), s.balance(identA.ID))
	s.Equal(int64(15), s.balance(identB.ID))

	var wins int
	for _, entry := range s.bank.Ledger() {
		if entry.Kind == storage.LedgerWin {
			wins++
			s.Equal(identA.ID, entry.Identity)
			s.Equal(int64(10), entry.Amount)
		}
	}
	s.Equal(1, wins)

	// Both sides can queue again for a fresh match
	s.Require().NoError(s.arena.JoinQueue("conn-a"))
	s.Require().NoError(s.arena.JoinQueue("conn-b"))
	s.Equal(1, s.arena.ActiveSessions())
	_ = sessionID
}

func (s *ArenaSuite) TestComebackMatch() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	// B takes two rounds, then A takes three straight
	rounds := []struct {
		choiceA, choiceB model.Choice
	}{
		{model.ChoiceRock, model.ChoicePaper},
		{model.ChoiceScissors, model.ChoiceRock},
		{model.ChoicePaper, model.ChoiceRock},
		{model.ChoiceRock, model.ChoiceScissors},
		{model.ChoiceScissors, model.ChoicePaper},
	}
	for i, r := range rounds {
		s.playRound("conn-a", "conn-b", r.choiceA, r.choiceB)
		if i < len(rounds)-1 {
			s.clock.Advance(s.cfg.InterRoundDelay)
		}
	}
	s.clock.Advance(s.cfg.InterRoundDelay)

	payload, ok := s.sender.last("conn-a", model.EventMatchEnd)
	s.Require().True(ok)
	endA := payload.(model.MatchEnd)
	s.Equal("you", endA.Outcome)
	s.Equal(3, endA.FinalScore.You)
	s.Equal(2, endA.FinalScore.Opponent)
}

func (s *ArenaSuite) TestCancelSessionRefundsSurvivor() {
	identA, identB, sessionID := s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	s.Require().NoError(s.arena.CancelSession(sessionID, identA.ID))

	// A single entry fee comes back; the opponent's debit stands
	s.Equal(0, s.arena.ActiveSessions())
	s.Equal(0, s.clock.PendingTimers())
	s.Equal(s.cfg.StartingBalance, s.balance(identA.ID))
	s.Equal(s.cfg.StartingBalance-s.cfg.EntryFee, s.balance(identB.ID))

	var refunds int
	for _, entry := range s.bank.Ledger() {
		if entry.Kind == storage.LedgerRefund {
			refunds++
			s.Equal(identA.ID, entry.Identity)
			s.Equal(s.cfg.EntryFee, entry.Amount)
		}
	}
	s.Equal(1, refunds)

	err := s.arena.CancelSession(sessionID, identA.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ArenaSuite) TestNoPendingTimersAfterSettlement() {
	s.pairMatch("conn-a", "conn-b")
	s.clock.Advance(s.cfg.MatchLeadIn)

	for round := 1; round <= 3; round++ {
		s.playRound("conn-a", "conn-b", model.ChoiceRock, model.ChoiceScissors)
		s.clock.Advance(s.cfg.InterRoundDelay)
	}

	s.Equal(0, s.arena.ActiveSessions())
	s.Equal(0, s.clock.PendingTimers())
}
