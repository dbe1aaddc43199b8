// Package alias enforces that a human-readable alias points at no more than
// one account at a time.
//
// Each alias maps to a reservation address derived under the "alias" domain.
// The reservation record is created with the store's create-if-absent
// primitive, so the uniqueness check and the write are one step.
package alias

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/metrics"
	"github.com/congo-pay/simwallet/internal/notification"
)

// MaxLen is the alias width in bytes.
const MaxLen = 32

var (
	// ErrAlreadyTaken is returned when the alias is bound to an account.
	ErrAlreadyTaken = errors.New("alias already taken")
	// ErrNotFound is returned when no binding exists for the alias.
	ErrNotFound = errors.New("alias not found")
	// ErrAliasTooLong is returned for aliases wider than MaxLen bytes.
	ErrAliasTooLong = errors.New("alias too long")
	// ErrInvalidAlias is returned for empty aliases or aliases containing NUL.
	ErrInvalidAlias = errors.New("invalid alias")
)

// Binding associates an alias with exactly one owner address.
type Binding struct {
	Alias       string
	Reservation derive.Address
	Bump        uint8
	Owner       derive.Address
	CreatedAt   time.Time
}

// Pad returns the fixed-width seed for alias. It rejects rather than
// truncates oversize input, and rejects NUL bytes that would make two aliases
// pad to the same buffer.
func Pad(alias string) ([MaxLen]byte, error) {
	var buf [MaxLen]byte
	if alias == "" {
		return buf, fmt.Errorf("%w: empty", ErrInvalidAlias)
	}
	if len(alias) > MaxLen {
		return buf, fmt.Errorf("%w: %d bytes, max %d", ErrAliasTooLong, len(alias), MaxLen)
	}
	if bytes.IndexByte([]byte(alias), 0) >= 0 {
		return buf, fmt.Errorf("%w: contains NUL", ErrInvalidAlias)
	}
	copy(buf[:], alias)
	return buf, nil
}

// Index reserves and releases aliases.
type Index struct {
	store    Store
	deriver  derive.Deriver
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewIndex builds an alias index. notifier may be nil.
func NewIndex(store Store, deriver derive.Deriver, notifier notification.Notifier, logger *slog.Logger) *Index {
	return &Index{store: store, deriver: deriver, notifier: notifier, logger: logger, now: time.Now}
}

// ReservationAddress returns the derived reservation address for alias.
func (i *Index) ReservationAddress(alias string) (derive.Address, uint8, error) {
	seed, err := Pad(alias)
	if err != nil {
		return derive.Address{}, 0, err
	}
	return i.deriver.Derive(derive.DomainAlias, seed[:])
}

// Reserve binds alias to owner. Of any number of concurrent calls for the
// same alias exactly one succeeds; the rest get ErrAlreadyTaken.
func (i *Index) Reserve(ctx context.Context, alias string, owner derive.Address) (Binding, error) {
	if owner.IsZero() {
		return Binding{}, fmt.Errorf("%w: owner address required", ErrInvalidAlias)
	}
	reservation, bump, err := i.ReservationAddress(alias)
	if err != nil {
		metrics.AliasReservations.WithLabelValues("reserve", "rejected").Inc()
		return Binding{}, err
	}

	b := Binding{
		Alias:       alias,
		Reservation: reservation,
		Bump:        bump,
		Owner:       owner,
		CreatedAt:   i.now().UTC(),
	}
	if err := i.store.Create(ctx, b); err != nil {
		if errors.Is(err, ErrAlreadyTaken) {
			metrics.AliasReservations.WithLabelValues("reserve", "taken").Inc()
			return Binding{}, err
		}
		metrics.AliasReservations.WithLabelValues("reserve", "error").Inc()
		return Binding{}, fmt.Errorf("reserve alias: %w", err)
	}

	metrics.AliasReservations.WithLabelValues("reserve", "ok").Inc()
	i.logger.Info("alias reserved",
		slog.String("reservation", reservation.String()),
		slog.String("owner", owner.String()),
	)
	i.notify(ctx, notification.KindAliasReserved, b)
	return b, nil
}

// Lookup returns the binding for alias.
func (i *Index) Lookup(ctx context.Context, alias string) (Binding, error) {
	reservation, _, err := i.ReservationAddress(alias)
	if err != nil {
		return Binding{}, err
	}
	return i.store.Get(ctx, reservation)
}

// Release removes the binding for alias. Only the owner or an administrator
// may release it.
func (i *Index) Release(ctx context.Context, alias string, actor authority.Actor) error {
	reservation, _, err := i.ReservationAddress(alias)
	if err != nil {
		return err
	}

	current, err := i.store.Get(ctx, reservation)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.AliasReservations.WithLabelValues("release", "not_found").Inc()
		}
		return err
	}

	// Conditional delete: if the binding changed hands after the read, the
	// store reports ErrNotFound instead of deleting the new owner's record.
	if !actor.Admin && actor.Subject != current.Owner.String() {
		metrics.AliasReservations.WithLabelValues("release", "unauthorized").Inc()
		return authority.ErrUnauthorized
	}
	if err := i.store.Delete(ctx, reservation, &current.Owner); err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.AliasReservations.WithLabelValues("release", "not_found").Inc()
			return err
		}
		return fmt.Errorf("release alias: %w", err)
	}

	metrics.AliasReservations.WithLabelValues("release", "ok").Inc()
	i.logger.Info("alias released",
		slog.String("reservation", reservation.String()),
		slog.String("actor", actor.Subject),
		slog.Bool("admin", actor.Admin),
	)
	i.notify(ctx, notification.KindAliasReleased, current)
	return nil
}

func (i *Index) notify(ctx context.Context, kind string, b Binding) {
	if i.notifier == nil {
		return
	}
	if err := i.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: b.Owner.String(),
		Body:        b.Reservation.String(),
	}); err != nil {
		i.logger.Warn("publish alias event", slog.String("kind", kind), slog.Any("error", err))
	}
}
