package salt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/metrics"
	"github.com/congo-pay/simwallet/internal/notification"
)

// Manager is the single source of truth for the current salt. Derivations
// read through Current; only Initialize and Rotate write.
type Manager struct {
	store    Store
	notifier notification.Notifier
	logger   *slog.Logger

	// writeMu serializes Initialize and Rotate with each other.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current Salt
	loaded  bool
}

// NewManager builds a manager over store. notifier may be nil.
func NewManager(store Store, notifier notification.Notifier, logger *slog.Logger) *Manager {
	return &Manager{store: store, notifier: notifier, logger: logger}
}

// Load reads the persisted salt into memory. A store without a salt is not an
// error here; Current keeps failing until Initialize succeeds.
func (m *Manager) Load(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if errors.Is(err, ErrNotInitialized) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load salt: %w", err)
	}
	m.set(s)
	return nil
}

// Refresh reloads the salt after another instance rotated it.
func (m *Manager) Refresh(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("refresh salt: %w", err)
	}
	if prev, ok := m.peek(); ok && prev == s {
		return nil
	}
	m.set(s)
	m.logger.Info("salt refreshed", slog.String("fingerprint", s.Fingerprint()))
	return nil
}

// Current returns the salt every derivation must use.
func (m *Manager) Current() (Salt, error) {
	s, ok := m.peek()
	if !ok {
		return Salt{}, ErrNotInitialized
	}
	return s, nil
}

// Initialize stores the first salt. It succeeds once per deployment.
func (m *Manager) Initialize(ctx context.Context, initial Salt) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Create(ctx, initial); err != nil {
		if errors.Is(err, ErrAlreadyInitialized) {
			return err
		}
		return fmt.Errorf("initialize salt: %w", err)
	}
	m.set(initial)
	m.logger.Info("salt initialized", slog.String("fingerprint", initial.Fingerprint()))
	return nil
}

// Rotate replaces the salt. Only administrators may rotate; existing
// derivations are not migrated.
func (m *Manager) Rotate(ctx context.Context, actor authority.Actor, next Salt) error {
	if err := actor.RequireAdmin(); err != nil {
		m.logger.Warn("salt rotation rejected", slog.String("actor", actor.Subject))
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	prev, _ := m.peek()
	if err := m.store.Replace(ctx, next); err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return err
		}
		return fmt.Errorf("rotate salt: %w", err)
	}
	m.set(next)
	metrics.SaltRotations.Inc()

	m.logger.Warn("salt rotated",
		slog.String("actor", actor.Subject),
		slog.String("previous_fingerprint", prev.Fingerprint()),
		slog.String("fingerprint", next.Fingerprint()),
	)

	if m.notifier != nil {
		if err := m.notifier.Send(ctx, notification.Message{
			Kind: notification.KindSaltRotated,
			Body: next.Fingerprint(),
		}); err != nil {
			m.logger.Warn("publish salt rotation", slog.Any("error", err))
		}
	}
	return nil
}

func (m *Manager) peek() (Salt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.loaded
}

func (m *Manager) set(s Salt) {
	m.mu.Lock()
	m.current = s
	m.loaded = true
	m.mu.Unlock()
}
