package alias

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/simwallet/internal/derive"
)

// Store persists reservations keyed by reservation address.
type Store interface {
	// Create inserts b unless a record already exists at b.Reservation, in
	// which case it returns ErrAlreadyTaken. Check and insert are atomic.
	Create(ctx context.Context, b Binding) error
	Get(ctx context.Context, reservation derive.Address) (Binding, error)
	// Delete removes the record. When owner is non-nil the record is only
	// removed if it is still held by *owner; otherwise ErrNotFound.
	Delete(ctx context.Context, reservation derive.Address, owner *derive.Address) error
}

type memoryStore struct {
	mu       sync.Mutex
	bindings map[derive.Address]Binding
}

// NewMemoryStore builds an in-memory reservation store.
func NewMemoryStore() Store {
	return &memoryStore{bindings: make(map[derive.Address]Binding)}
}

func (s *memoryStore) Create(_ context.Context, b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bindings[b.Reservation]; exists {
		return ErrAlreadyTaken
	}
	s.bindings[b.Reservation] = b
	return nil
}

func (s *memoryStore) Get(_ context.Context, reservation derive.Address) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[reservation]
	if !ok {
		return Binding{}, ErrNotFound
	}
	return b, nil
}

func (s *memoryStore) Delete(_ context.Context, reservation derive.Address, owner *derive.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[reservation]
	if !ok || (owner != nil && b.Owner != *owner) {
		return ErrNotFound
	}
	delete(s.bindings, reservation)
	return nil
}

// PostgresStore keeps reservations in alias_reservations, whose primary key
// is the reservation address.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed reservation store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the reservation if absent.
func (s *PostgresStore) Create(ctx context.Context, b Binding) error {
	cmd, err := s.db.Exec(ctx, `INSERT INTO alias_reservations (reservation, alias, bump, owner, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (reservation) DO NOTHING`,
		b.Reservation.String(), b.Alias, int16(b.Bump), b.Owner.String(), b.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyTaken
	}
	return nil
}

// Get fetches the reservation.
func (s *PostgresStore) Get(ctx context.Context, reservation derive.Address) (Binding, error) {
	row := s.db.QueryRow(ctx, `SELECT alias, bump, owner, created_at FROM alias_reservations WHERE reservation = $1`, reservation.String())
	var (
		b         Binding
		bump      int16
		owner     string
		createdAt time.Time
	)
	if err := row.Scan(&b.Alias, &bump, &owner, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Binding{}, ErrNotFound
		}
		return Binding{}, err
	}
	ownerAddr, err := derive.ParseAddress(owner)
	if err != nil {
		return Binding{}, err
	}
	b.Reservation = reservation
	b.Bump = uint8(bump)
	b.Owner = ownerAddr
	b.CreatedAt = createdAt.UTC()
	return b, nil
}

// Delete removes the reservation, optionally only for the expected owner.
func (s *PostgresStore) Delete(ctx context.Context, reservation derive.Address, owner *derive.Address) error {
	var expected string
	if owner != nil {
		expected = owner.String()
	}
	cmd, err := s.db.Exec(ctx, `DELETE FROM alias_reservations WHERE reservation = $1 AND ($2 = '' OR owner = $2)`,
		reservation.String(), expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const redisKeyPrefix = "alias:v1:"

var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'alias', ARGV[1], 'bump', ARGV[2], 'owner', ARGV[3], 'created_at', ARGV[4])
return 1
`)

	deleteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if ARGV[1] ~= '' and redis.call('HGET', KEYS[1], 'owner') ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)
)

// RedisStore keeps reservations as Redis hashes. Create and Delete run as Lua
// scripts so each check-and-write executes atomically on the server. Keys
// carry no TTL; reservations only disappear through Delete.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed reservation store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create inserts the reservation if absent.
func (s *RedisStore) Create(ctx context.Context, b Binding) error {
	created, err := createScript.Run(ctx, s.client, []string{redisKey(b.Reservation)},
		b.Alias, strconv.Itoa(int(b.Bump)), b.Owner.String(), b.CreatedAt.UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return ErrAlreadyTaken
	}
	return nil
}

// Get fetches the reservation.
func (s *RedisStore) Get(ctx context.Context, reservation derive.Address) (Binding, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(reservation)).Result()
	if err != nil {
		return Binding{}, err
	}
	if len(fields) == 0 {
		return Binding{}, ErrNotFound
	}
	bump, err := strconv.Atoi(fields["bump"])
	if err != nil {
		return Binding{}, err
	}
	owner, err := derive.ParseAddress(fields["owner"])
	if err != nil {
		return Binding{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		Alias:       fields["alias"],
		Reservation: reservation,
		Bump:        uint8(bump),
		Owner:       owner,
		CreatedAt:   createdAt,
	}, nil
}

// Delete removes the reservation, optionally only for the expected owner.
func (s *RedisStore) Delete(ctx context.Context, reservation derive.Address, owner *derive.Address) error {
	var expected string
	if owner != nil {
		expected = owner.String()
	}
	deleted, err := deleteScript.Run(ctx, s.client, []string{redisKey(reservation)}, expected).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func redisKey(reservation derive.Address) string {
	return redisKeyPrefix + reservation.String()
}
