package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no wallet matches.
	ErrNotFound = errors.New("wallet not found")
	// ErrWalletExists is returned when the derived address is already provisioned.
	ErrWalletExists = errors.New("wallet exists")
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, address string) (Wallet, error)
	// GetByOwner returns the owner's most recently provisioned wallet.
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record; the address primary key makes it create-if-absent.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	ownerID, err := uuid.Parse(wallet.OwnerID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO wallets (address, owner_id, bump, salt_fingerprint, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (address) DO NOTHING`,
		wallet.Address, ownerID, int16(wallet.Bump), wallet.SaltFingerprint, wallet.Status, wallet.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWalletExists
	}
	return nil
}

// Get fetches wallet metadata by address.
func (r *PostgresRepository) Get(ctx context.Context, address string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT address, owner_id, bump, salt_fingerprint, status, created_at
        FROM wallets WHERE address = $1`, address)
	return scanWallet(row)
}

// GetByOwner fetches the newest wallet for an owner.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT address, owner_id, bump, salt_fingerprint, status, created_at
        FROM wallets WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 1`, ownerUUID)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		owner     uuid.UUID
		bump      int16
		createdAt time.Time
	)
	if err := row.Scan(&w.Address, &owner, &bump, &w.SaltFingerprint, &w.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.OwnerID = owner.String()
	w.Bump = uint8(bump)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
