package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

// Script result codes, first element of every settlement script reply
const (
	codeOK                = 0
	codeNotFound          = 1
	codeInsufficientFunds = 2
)

// startMatchScript atomically debits both entry fees. Either both
// balances move and both ledger rows are pushed, or nothing changes.
// KEYS: balanceA, balanceB, ledgerA, ledgerB
// ARGV: fee, ledgerEntryA, ledgerEntryB
var startMatchScript = redis.NewScript(`
local balA = redis.call('GET', KEYS[1])
local balB = redis.call('GET', KEYS[2])
if not balA or not balB then
  return {1, 0, 0}
end
local fee = tonumber(ARGV[1])
if tonumber(balA) < fee or tonumber(balB) < fee then
  return {2, 0, 0}
end
local newA = redis.call('DECRBY', KEYS[1], fee)
local newB = redis.call('DECRBY', KEYS[2], fee)
redis.call('RPUSH', KEYS[3], ARGV[2])
redis.call('RPUSH', KEYS[4], ARGV[3])
return {0, newA, newB}
`)

// creditScript atomically credits an amount and records the ledger row.
// KEYS: balance, ledger
// ARGV: amount, ledgerEntry
var creditScript = redis.NewScript(`
local bal = redis.call('GET', KEYS[1])
if not bal then
  return {1, 0}
end
local new = redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
redis.call('RPUSH', KEYS[2], ARGV[2])
return {0, new}
`)

// identityRecord is the stored shape of an identity; the balance lives
// in its own key so settlement scripts can do integer arithmetic on it
type identityRecord struct {
	ID   model.IdentityID `json:"id"`
	Name string           `json:"name"`
}

// Bank is a Redis-backed implementation of the bank interface
type Bank struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis bank
func New(cfg Config) (*Bank, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Bank{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis bank with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Bank {
	return &Bank{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (b *Bank) Close() error {
	return b.client.Close()
}

// Ensure Bank implements the interface
var _ storage.Bank = (*Bank)(nil)

// Identity operations

func (b *Bank) GetByName(ctx context.Context, nameKey string) (*model.Identity, error) {
	id, err := b.client.Get(ctx, nameIndexKey(nameKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}
	return b.GetByID(ctx, model.IdentityID(id))
}

func (b *Bank) GetByID(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	data, err := b.client.Get(ctx, identityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}

	var rec identityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	balance, err := b.client.Get(ctx, balanceKey(id)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return &model.Identity{ID: rec.ID, Name: rec.Name, Balance: balance}, nil
}

func (b *Bank) Insert(ctx context.Context, identity model.Identity) error {
	data, err := json.Marshal(identityRecord{ID: identity.ID, Name: identity.Name})
	if err != nil {
		return err
	}

	// Claim the name index entry first; losing the claim means another
	// record already owns this name
	claimed, err := b.client.SetNX(ctx, nameIndexKey(model.NormalizeName(identity.Name)), string(identity.ID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrNameTaken
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, identityKey(identity.ID), data, 0)
	pipe.Set(ctx, balanceKey(identity.ID), identity.Balance, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Settlement operations

func (b *Bank) StartMatch(ctx context.Context, a, p model.IdentityID, fee int64) (*storage.MatchStart, error) {
	session := model.SessionID(uuid.NewString())

	entryA, err := marshalLedger(a, storage.LedgerEntryFee, -fee, fmt.Sprintf("session:%s:entry", session))
	if err != nil {
		return nil, err
	}
	entryB, err := marshalLedger(p, storage.LedgerEntryFee, -fee, fmt.Sprintf("session:%s:entry", session))
	if err != nil {
		return nil, err
	}

	keys := []string{balanceKey(a), balanceKey(p), ledgerKey(a), ledgerKey(p)}
	res, err := startMatchScript.Run(ctx, b.client, keys, fee, entryA, entryB).Int64Slice()
	if err != nil {
		return nil, err
	}
	if err := codeToError(res[0]); err != nil {
		return nil, err
	}

	return &storage.MatchStart{
		SessionID: session,
		Balance1:  res[1],
		Balance2:  res[2],
	}, nil
}

func (b *Bank) CompleteMatch(ctx context.Context, session model.SessionID, winner model.IdentityID, feePerPlayer int64) (int64, error) {
	pot := feePerPlayer * 2
	return b.credit(ctx, winner, storage.LedgerWin, pot, fmt.Sprintf("session:%s:win", session))
}

func (b *Bank) CancelMatch(ctx context.Context, session model.SessionID, survivor model.IdentityID, fee int64) (int64, error) {
	return b.credit(ctx, survivor, storage.LedgerRefund, fee, fmt.Sprintf("session:%s:cancel_refund", session))
}

func (b *Bank) credit(ctx context.Context, id model.IdentityID, kind storage.LedgerKind, amount int64, ref string) (int64, error) {
	entry, err := marshalLedger(id, kind, amount, ref)
	if err != nil {
		return 0, err
	}

	keys := []string{balanceKey(id), ledgerKey(id)}
	res, err := creditScript.Run(ctx, b.client, keys, amount, entry).Int64Slice()
	if err != nil {
		return 0, err
	}
	if err := codeToError(res[0]); err != nil {
		return 0, err
	}
	return res[1], nil
}

// Ledger returns an identity's recorded balance movements, oldest first
func (b *Bank) Ledger(ctx context.Context, id model.IdentityID) ([]storage.LedgerEntry, error) {
	raw, err := b.client.LRange(ctx, ledgerKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]storage.LedgerEntry, 0, len(raw))
	for _, item := range raw {
		var entry storage.LedgerEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func marshalLedger(id model.IdentityID, kind storage.LedgerKind, amount int64, ref string) (string, error) {
	data, err := json.Marshal(storage.LedgerEntry{Identity: id, Kind: kind, Amount: amount, Ref: ref})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func codeToError(code int64) error {
	switch code {
	case codeOK:
		return nil
	case codeNotFound:
		return model.ErrIdentityNotFound
	case codeInsufficientFunds:
		return model.ErrInsufficientFunds
	default:
		return fmt.Errorf("unexpected settlement script result %d", code)
	}
}
