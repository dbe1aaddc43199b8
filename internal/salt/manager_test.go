package salt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/notification"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func sequential() Salt {
	var s Salt
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

func TestManagerCurrentBeforeInitialize(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil, logging.Discard())
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load empty store: %v", err)
	}
	if _, err := m.Current(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestManagerInitializeOnce(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), nil, logging.Discard())

	if err := m.Initialize(ctx, sequential()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.Initialize(ctx, Salt{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	got, err := m.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != sequential() {
		t.Fatalf("second initialize must not change the salt")
	}
}

func TestManagerConcurrentInitialize(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), nil, logging.Discard())

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var s Salt
			s[0] = byte(i)
			errs <- m.Initialize(ctx, s)
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrAlreadyInitialized) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful initialize, got %d", ok)
	}
}

func TestManagerRotate(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	m := NewManager(NewMemoryStore(), notifier, logging.Discard())

	if err := m.Rotate(ctx, authority.Admin("ops"), Salt{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("rotate before initialize: expected ErrNotInitialized, got %v", err)
	}
	if err := m.Initialize(ctx, sequential()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := m.Rotate(ctx, authority.Account("someone"), Salt{}); !errors.Is(err, authority.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got, _ := m.Current(); got != sequential() {
		t.Fatalf("unauthorized rotation changed the salt")
	}

	if err := m.Rotate(ctx, authority.Admin("ops"), Salt{}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if got, _ := m.Current(); got != (Salt{}) {
		t.Fatalf("rotation not applied")
	}
	if len(notifier.msgs) != 1 || notifier.msgs[0].Kind != notification.KindSaltRotated {
		t.Fatalf("expected one rotation event, got %+v", notifier.msgs)
	}
	if notifier.msgs[0].Body != (Salt{}).Fingerprint() {
		t.Fatalf("rotation event should carry the fingerprint")
	}
}

func TestManagerRefreshPicksUpExternalRotation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := NewManager(store, nil, logging.Discard())
	b := NewManager(store, nil, logging.Discard())

	if err := a.Initialize(ctx, sequential()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Rotate(ctx, authority.Admin("ops"), Salt{}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if got, _ := b.Current(); got != sequential() {
		t.Fatalf("expected b to still hold the old salt before refresh")
	}
	if err := b.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got, _ := b.Current(); got != (Salt{}) {
		t.Fatalf("refresh did not pick up the rotated salt")
	}
}

func TestSaltNeverPrintsSecret(t *testing.T) {
	s := sequential()
	hexSecret := fmt.Sprintf("%x", s[:])
	for _, out := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s), fmt.Sprintf("%s", s)} {
		if strings.Contains(out, hexSecret) {
			t.Fatalf("formatted salt leaked secret: %s", out)
		}
	}
}

func TestParseHex(t *testing.T) {
	s, err := ParseHex("0102030405060708090a0b0c0d0e0f10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s != sequential() {
		t.Fatalf("unexpected salt %x", s.Bytes())
	}
	for _, bad := range []string{"", "zz", "0102"} {
		if _, err := ParseHex(bad); !errors.Is(err, ErrInvalidSalt) {
			t.Fatalf("ParseHex(%q): expected ErrInvalidSalt, got %v", bad, err)
		}
	}
}
