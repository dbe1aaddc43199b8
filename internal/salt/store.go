package salt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the single current salt.
type Store interface {
	Load(ctx context.Context) (Salt, error)
	// Create stores the first salt and fails with ErrAlreadyInitialized if one exists.
	Create(ctx context.Context, s Salt) error
	// Replace overwrites the salt and fails with ErrNotInitialized if none exists.
	Replace(ctx context.Context, s Salt) error
}

type memoryStore struct {
	mu   sync.Mutex
	salt *Salt
}

// NewMemoryStore builds an in-process salt store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(_ context.Context) (Salt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt == nil {
		return Salt{}, ErrNotInitialized
	}
	return *s.salt, nil
}

func (s *memoryStore) Create(_ context.Context, v Salt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt != nil {
		return ErrAlreadyInitialized
	}
	s.salt = &v
	return nil
}

func (s *memoryStore) Replace(_ context.Context, v Salt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt == nil {
		return ErrNotInitialized
	}
	s.salt = &v
	return nil
}

// PostgresStore keeps the salt in the single-row salt_config table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed salt store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads the current salt.
func (s *PostgresStore) Load(ctx context.Context) (Salt, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT salt FROM salt_config WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Salt{}, ErrNotInitialized
		}
		return Salt{}, err
	}
	return FromBytes(raw)
}

// Create inserts the row if absent.
func (s *PostgresStore) Create(ctx context.Context, v Salt) error {
	cmd, err := s.db.Exec(ctx, `INSERT INTO salt_config (id, salt, rotated_at) VALUES (1, $1, $2)
        ON CONFLICT (id) DO NOTHING`, v.Bytes(), time.Now().UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

// Replace updates the row in a single statement so concurrent rotations from
// several instances are ordered by the database.
func (s *PostgresStore) Replace(ctx context.Context, v Salt) error {
	cmd, err := s.db.Exec(ctx, `UPDATE salt_config SET salt = $1, rotated_at = $2 WHERE id = 1`, v.Bytes(), time.Now().UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotInitialized
	}
	return nil
}
