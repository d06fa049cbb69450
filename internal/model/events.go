package model

// Outbound event names. These are the wire names delivered through the
// connection layer's send(identity, eventName, payload).
const (
	EventIdentityInfo      = "identityInfo"
	EventLoginError        = "loginError"
	EventLoggedOut         = "loggedOut"
	EventQueueJoined       = "queueJoined"
	EventQueueLeft         = "queueLeft"
	EventQueueError        = "queueError"
	EventMatchFound        = "matchFound"
	EventRoundStart        = "roundStart"
	EventChoiceAck         = "choiceAck"
	EventChoiceConfirmed   = "choiceConfirmed"
	EventRoundResult       = "roundResult"
	EventMatchEnd          = "matchEnd"
	EventOpponentAway      = "opponentAway"
	EventOpponentBack      = "opponentBack"
	EventOpponentForfeited = "opponentForfeited"
)

// IdentityInfo is sent after a successful login or resume
type IdentityInfo struct {
	ID      IdentityID `json:"id"`
	Name    string     `json:"name"`
	Balance int64      `json:"balance"`
}

// ErrorInfo carries a user-facing failure message (loginError, queueError)
type ErrorInfo struct {
	Message string `json:"message"`
}

// QueueJoined confirms queue entry with the 1-based position
type QueueJoined struct {
	Position  int `json:"position"`
	QueueSize int `json:"queueSize"`
}

// MatchFound announces a new session to one side
type MatchFound struct {
	SessionID    SessionID `json:"sessionId"`
	OpponentName string    `json:"opponentName"`
	NewBalance   int64     `json:"newBalance"`
}

// RoundStart announces a round from the receiver's perspective. It is
// also used to resynchronize a reattached side, with TimerSeconds set
// to the remaining round time (floored to at least one second).
type RoundStart struct {
	Round         int `json:"round"`
	YourScore     int `json:"yourScore"`
	OpponentScore int `json:"opponentScore"`
	TimerSeconds  int `json:"timerSeconds"`
}

// ChoiceAck tells both sides that an identity has a choice locked in,
// without revealing its value
type ChoiceAck struct {
	IdentityID IdentityID `json:"identityId"`
}

// ChoiceConfirmed echoes the submitted choice back to the submitter only
type ChoiceConfirmed struct {
	Choice Choice `json:"choice"`
}

// RoundResult reveals both choices after the deadline, from the
// receiver's perspective
type RoundResult struct {
	YourChoice     Choice `json:"yourChoice"`
	OpponentChoice Choice `json:"opponentChoice"`
	Result         Result `json:"result"`
	YourScore      int    `json:"yourScore"`
	OpponentScore  int    `json:"opponentScore"`
	Round          int    `json:"round"`
}

// FinalScore is the receiver-perspective score pair in MatchEnd
type FinalScore struct {
	You      int `json:"you"`
	Opponent int `json:"opponent"`
}

// MatchEnd announces the final outcome of a completed session
type MatchEnd struct {
	Outcome    string     `json:"outcome"` // "you" or "opponent"
	FinalScore FinalScore `json:"finalScore"`
	CoinsWon   int64      `json:"coinsWon"`
	NewBalance int64      `json:"newBalance"`
}

// OpponentAway tells the survivor a grace countdown has started
type OpponentAway struct {
	SessionID    SessionID `json:"sessionId"`
	ExpiresAt    int64     `json:"expiresAt"` // ms epoch
	GraceSeconds int       `json:"graceSeconds"`
}

// OpponentBack tells the survivor the opponent reattached in time
type OpponentBack struct {
	SessionID SessionID `json:"sessionId"`
}

// OpponentForfeited tells the survivor the grace period expired and the
// pot was credited to them
type OpponentForfeited struct {
	SessionID  SessionID `json:"sessionId"`
	CoinsWon   int64     `json:"coinsWon"`
	NewBalance int64     `json:"newBalance"`
}
