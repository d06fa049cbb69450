package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

// Bank is an in-memory implementation of the bank interface. A single
// mutex makes every settlement operation atomic.
type Bank struct {
	mu sync.Mutex

	identities map[model.IdentityID]*model.Identity
	nameIndex  map[string]model.IdentityID
	ledger     []storage.LedgerEntry
}

// New creates a new in-memory bank
func New() *Bank {
	return &Bank{
		identities: make(map[model.IdentityID]*model.Identity),
		nameIndex:  make(map[string]model.IdentityID),
	}
}

// Ensure Bank implements the interface
var _ storage.Bank = (*Bank)(nil)

// Identity operations

func (b *Bank) GetByName(ctx context.Context, nameKey string) (*model.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.nameIndex[nameKey]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	identity := *b.identities[id]
	return &identity, nil
}

func (b *Bank) GetByID(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	identity, ok := b.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	out := *identity
	return &out, nil
}

// Insert is check-and-insert: an already indexed name key is rejected
// rather than repointed at the new record.
func (b *Bank) Insert(ctx context.Context, identity model.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := model.NormalizeName(identity.Name)
	if _, exists := b.nameIndex[key]; exists {
		return model.ErrNameTaken
	}
	stored := identity
	b.identities[identity.ID] = &stored
	b.nameIndex[key] = identity.ID
	return nil
}

// Settlement operations

func (b *Bank) StartMatch(ctx context.Context, a, p model.IdentityID, fee int64) (*storage.MatchStart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ia, ok := b.identities[a]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	ib, ok := b.identities[p]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	if ia.Balance < fee || ib.Balance < fee {
		return nil, model.ErrInsufficientFunds
	}

	session := model.SessionID(uuid.NewString())
	ia.Balance -= fee
	ib.Balance -= fee
	b.ledger = append(b.ledger,
		storage.LedgerEntry{Identity: a, Kind: storage.LedgerEntryFee, Amount: -fee, Ref: entryRef(session)},
		storage.LedgerEntry{Identity: p, Kind: storage.LedgerEntryFee, Amount: -fee, Ref: entryRef(session)},
	)

	return &storage.MatchStart{
		SessionID: session,
		Balance1:  ia.Balance,
		Balance2:  ib.Balance,
	}, nil
}

func (b *Bank) CompleteMatch(ctx context.Context, session model.SessionID, winner model.IdentityID, feePerPlayer int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	identity, ok := b.identities[winner]
	if !ok {
		return 0, model.ErrIdentityNotFound
	}
	pot := feePerPlayer * 2
	identity.Balance += pot
	b.ledger = append(b.ledger, storage.LedgerEntry{
		Identity: winner, Kind: storage.LedgerWin, Amount: pot, Ref: winRef(session),
	})
	return identity.Balance, nil
}

func (b *Bank) CancelMatch(ctx context.Context, session model.SessionID, survivor model.IdentityID, fee int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	identity, ok := b.identities[survivor]
	if !ok {
		return 0, model.ErrIdentityNotFound
	}
	identity.Balance += fee
	b.ledger = append(b.ledger, storage.LedgerEntry{
		Identity: survivor, Kind: storage.LedgerRefund, Amount: fee, Ref: refundRef(session),
	})
	return identity.Balance, nil
}

// Ledger returns a copy of the recorded balance movements, oldest first
func (b *Bank) Ledger() []storage.LedgerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]storage.LedgerEntry, len(b.ledger))
	copy(out, b.ledger)
	return out
}

func entryRef(session model.SessionID) string {
	return fmt.Sprintf("session:%s:entry", session)
}

func winRef(session model.SessionID) string {
	return fmt.Sprintf("session:%s:win", session)
}

func refundRef(session model.SessionID) string {
	return fmt.Sprintf("session:%s:cancel_refund", session)
}
