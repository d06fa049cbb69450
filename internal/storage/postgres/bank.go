package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Puci-G/rpsServer/internal/model"
	"github.com/Puci-G/rpsServer/internal/storage"
)

// Bank is a Postgres-backed implementation of the bank interface.
// Settlement operations run inside a single transaction so either both
// entry fees move or neither does.
type Bank struct {
	db *sql.DB
}

// New opens a connection pool and verifies connectivity
func New(databaseURL string) (*Bank, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Bank{db: db}, nil
}

// NewWithDB wraps an existing database handle (for testing)
func NewWithDB(db *sql.DB) *Bank {
	return &Bank{db: db}
}

// Close closes the underlying pool
func (b *Bank) Close() error {
	return b.db.Close()
}

// Ensure Bank implements the interface
var _ storage.Bank = (*Bank)(nil)

// InitSchema creates the identity and ledger tables if absent
func (b *Bank) InitSchema(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			name_key TEXT NOT NULL UNIQUE,
			balance  BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ledger (
			id          BIGSERIAL PRIMARY KEY,
			identity_id TEXT NOT NULL REFERENCES identities(id),
			kind        TEXT NOT NULL,
			amount      BIGINT NOT NULL,
			ref         TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// Identity operations

func (b *Bank) GetByName(ctx context.Context, nameKey string) (*model.Identity, error) {
	return b.scanIdentity(b.db.QueryRowContext(ctx,
		`SELECT id, name, balance FROM identities WHERE name_key = $1`, nameKey))
}

func (b *Bank) GetByID(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	return b.scanIdentity(b.db.QueryRowContext(ctx,
		`SELECT id, name, balance FROM identities WHERE id = $1`, string(id)))
}

func (b *Bank) Insert(ctx context.Context, identity model.Identity) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO identities (id, name, name_key, balance) VALUES ($1, $2, $3, $4)`,
		string(identity.ID), identity.Name, model.NormalizeName(identity.Name), identity.Balance)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return model.ErrNameTaken
	}
	return err
}

func (b *Bank) scanIdentity(row *sql.Row) (*model.Identity, error) {
	var identity model.Identity
	err := row.Scan(&identity.ID, &identity.Name, &identity.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Settlement operations

func (b *Bank) StartMatch(ctx context.Context, a, p model.IdentityID, fee int64) (result *storage.MatchStart, err error) {
	session := model.SessionID(uuid.NewString())

	err = b.withTx(ctx, func(tx *sql.Tx) error {
		// Lock both rows in a fixed order to avoid deadlocks between
		// concurrent pairings sharing an identity
		first, second := a, p
		if second < first {
			first, second = second, first
		}
		balances := map[model.IdentityID]int64{}
		for _, id := range []model.IdentityID{first, second} {
			var bal int64
			err := tx.QueryRowContext(ctx,
				`SELECT balance FROM identities WHERE id = $1 FOR UPDATE`, string(id)).Scan(&bal)
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrIdentityNotFound
			}
			if err != nil {
				return err
			}
			balances[id] = bal
		}
		if balances[a] < fee || balances[p] < fee {
			return model.ErrInsufficientFunds
		}

		var balA, balB int64
		if err := tx.QueryRowContext(ctx,
			`UPDATE identities SET balance = balance - $1 WHERE id = $2 RETURNING balance`,
			fee, string(a)).Scan(&balA); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`UPDATE identities SET balance = balance - $1 WHERE id = $2 RETURNING balance`,
			fee, string(p)).Scan(&balB); err != nil {
			return err
		}

		ref := fmt.Sprintf("session:%s:entry", session)
		if err := insertLedger(ctx, tx, a, storage.LedgerEntryFee, -fee, ref); err != nil {
			return err
		}
		if err := insertLedger(ctx, tx, p, storage.LedgerEntryFee, -fee, ref); err != nil {
			return err
		}

		result = &storage.MatchStart{SessionID: session, Balance1: balA, Balance2: balB}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Bank) CompleteMatch(ctx context.Context, session model.SessionID, winner model.IdentityID, feePerPlayer int64) (int64, error) {
	pot := feePerPlayer * 2
	return b.credit(ctx, winner, storage.LedgerWin, pot, fmt.Sprintf("session:%s:win", session))
}

func (b *Bank) CancelMatch(ctx context.Context, session model.SessionID, survivor model.IdentityID, fee int64) (int64, error) {
	return b.credit(ctx, survivor, storage.LedgerRefund, fee, fmt.Sprintf("session:%s:cancel_refund", session))
}

func (b *Bank) credit(ctx context.Context, id model.IdentityID, kind storage.LedgerKind, amount int64, ref string) (int64, error) {
	var balance int64
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE identities SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
			amount, string(id)).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		return insertLedger(ctx, tx, id, kind, amount, ref)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (b *Bank) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertLedger(ctx context.Context, tx *sql.Tx, id model.IdentityID, kind storage.LedgerKind, amount int64, ref string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger (identity_id, kind, amount, ref) VALUES ($1, $2, $3, $4)`,
		string(id), string(kind), amount, ref)
	return err
}
