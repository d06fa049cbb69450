package storage

import (
	"context"

	"github.com/Puci-G/rpsServer/internal/model"
)

// IdentityStore is the identity lookup/creation surface, consumed only
// at the login/resume boundary. The bank owns the canonical balance;
// the orchestrator caches it while the identity is online.
type IdentityStore interface {
	// GetByName looks up an identity by its normalized name key.
	// Returns model.ErrIdentityNotFound if absent.
	GetByName(ctx context.Context, nameKey string) (*model.Identity, error)

	// GetByID looks up an identity by id.
	// Returns model.ErrIdentityNotFound if absent.
	GetByID(ctx context.Context, id model.IdentityID) (*model.Identity, error)

	// Insert creates a new identity record with its starting balance
	Insert(ctx context.Context, identity model.Identity) error
}

// MatchStart is the result of a successful atomic entry-fee debit
type MatchStart struct {
	SessionID model.SessionID
	Balance1  int64
	Balance2  int64
}

// SettlementGateway performs the atomic balance movements tied to
// session lifecycle events. Every operation either fully applies or
// leaves all balances untouched; a one-sided debit must never be
// observable.
type SettlementGateway interface {
	// StartMatch debits the entry fee from both identities and mints a
	// session reference. Returns model.ErrInsufficientFunds if either
	// side cannot cover the fee, model.ErrIdentityNotFound if either id
	// is unknown; in both cases no balance moves.
	StartMatch(ctx context.Context, a, b model.IdentityID, fee int64) (*MatchStart, error)

	// CompleteMatch credits the pot (2 x feePerPlayer) to the winner
	// and returns the winner's new balance.
	CompleteMatch(ctx context.Context, session model.SessionID, winner model.IdentityID, feePerPlayer int64) (int64, error)

	// CancelMatch refunds a single entry fee to the survivor. Legacy
	// path, not reachable from normal play.
	CancelMatch(ctx context.Context, session model.SessionID, survivor model.IdentityID, fee int64) (int64, error)
}

// Bank combines identity storage and settlement over one backing store
type Bank interface {
	IdentityStore
	SettlementGateway
}

// LedgerKind classifies a ledger entry
type LedgerKind string

const (
	LedgerEntryFee LedgerKind = "entry_fee"
	LedgerWin      LedgerKind = "win"
	LedgerRefund   LedgerKind = "refund"
)

// LedgerEntry records one balance movement for reconciliation
type LedgerEntry struct {
	Identity model.IdentityID `json:"identity"`
	Kind     LedgerKind       `json:"kind"`
	Amount   int64            `json:"amount"` // negative for debits
	Ref      string           `json:"ref"`    // session reference
}
