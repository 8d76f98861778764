package invite

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
	"duelhall/internal/ports/memory"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *app.Service
	clock *manualClock
}

func newFixture() *fixture {
	clock := &manualClock{now: time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)}
	return &fixture{
		svc:   app.NewService(memory.NewStore(), clock, rand.New(rand.NewSource(3))),
		clock: clock,
	}
}

func (f *fixture) broker(identity string) *Broker {
	return NewBroker(f.svc, ports.StaticIdentity(identity), Config{TTL: time.Minute})
}

func TestInviteAndList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.broker("alice"), f.broker("bob")

	inv, sess, err := alice.Invite(ctx, "bob", domain.GameMauMau)
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if sess.Status != domain.StatusWaiting || inv.SessionID != sess.ID {
		t.Fatalf("Expected invite into a waiting session, got %+v / %+v", inv, sess)
	}
	if !inv.ExpiresAt.Equal(f.clock.Now().Add(time.Minute)) {
		t.Fatalf("Expected expiry one TTL out, got %s", inv.ExpiresAt)
	}

	got, err := bob.ListInvites(ctx)
	if err != nil {
		t.Fatalf("ListInvites returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != inv.ID || got[0].From != "alice" {
		t.Fatalf("Expected bob to see alice's invite, got %+v", got)
	}
	if own, _ := alice.ListInvites(ctx); len(own) != 0 {
		t.Fatalf("Expected the invite only in the recipient's inbox, got %+v", own)
	}

	if pending := alice.Pending(); len(pending) != 1 || pending[0].Invite.To != "bob" {
		t.Fatalf("Expected one locally pending invite, got %+v", pending)
	}
}

func TestInvite_PendingSetBlocksResendUntilExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.broker("alice"), f.broker("bob")

	if _, _, err := alice.Invite(ctx, "bob", domain.GameChess); err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if _, _, err := alice.Invite(ctx, "bob", domain.GameChess); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("Expected ErrAlreadyPending, got %v", err)
	}
	if _, _, err := alice.Invite(ctx, "carol", domain.GameChess); err != nil {
		t.Fatalf("Expected a different recipient to be allowed, got %v", err)
	}

	f.clock.Advance(time.Minute)
	if len(alice.Pending()) != 0 {
		t.Fatal("Expected the pending set to forget expired invites")
	}
	if got, _ := bob.ListInvites(ctx); len(got) != 0 {
		t.Fatalf("Expected expired invites to be hidden, got %+v", got)
	}
	if _, _, err := alice.Invite(ctx, "bob", domain.GameChess); err != nil {
		t.Fatalf("Expected resend after expiry, got %v", err)
	}
}

func TestInvite_RejectsSelf(t *testing.T) {
	f := newFixture()
	if _, _, err := f.broker("alice").Invite(context.Background(), "alice", domain.GameMauMau); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("Expected ErrSelfInvite, got %v", err)
	}
}

func TestRespond_Decline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.broker("alice"), f.broker("bob")
	inv, sess, _ := alice.Invite(ctx, "bob", domain.GameMauMau)

	answered, joined, err := bob.Respond(ctx, inv.ID, false)
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if answered.Status != domain.InviteDeclined || joined != nil {
		t.Fatalf("Expected a declined invite and no session, got %+v / %+v", answered, joined)
	}
	cur, _ := f.svc.GetSession(ctx, sess.ID)
	if cur.Status != domain.StatusWaiting || cur.Version != sess.Version {
		t.Fatal("Expected declining to leave the session untouched")
	}
	if got, _ := bob.ListInvites(ctx); len(got) != 0 {
		t.Fatal("Expected declined invites to disappear from the list")
	}
	if _, _, err := bob.Respond(ctx, inv.ID, true); !errors.Is(err, ErrInviteClosed) {
		t.Fatalf("Expected ErrInviteClosed, got %v", err)
	}
}

func TestRespond_AcceptStartsSessionOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.broker("alice"), f.broker("bob")
	inv, sess, _ := alice.Invite(ctx, "bob", domain.GameMauMau)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, s, err := bob.Respond(ctx, inv.ID, true); err == nil && s != nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if started != 1 {
		t.Fatalf("Expected exactly one accept to start the session, got %d", started)
	}

	cur, _ := f.svc.GetSession(ctx, sess.ID)
	if cur.Status != domain.StatusPlaying || cur.Responder != "bob" {
		t.Fatalf("Expected playing session with bob, got %+v", cur)
	}
}

func TestRespond_LateAcceptIsRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.broker("alice"), f.broker("bob")
	inv, sess, _ := alice.Invite(ctx, "bob", domain.GameMauMau)

	f.clock.Advance(2 * time.Minute)
	if _, _, err := bob.Respond(ctx, inv.ID, true); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("Expected ErrInviteExpired, got %v", err)
	}
	cur, _ := f.svc.GetSession(ctx, sess.ID)
	if cur.Status != domain.StatusWaiting {
		t.Fatalf("Expected the session to stay waiting, got %s", cur.Status)
	}
}

func TestRespond_OnlyRecipientCanAnswer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, _, _ := f.broker("alice").Invite(ctx, "bob", domain.GameMauMau)

	if _, _, err := f.broker("carol").Respond(ctx, inv.ID, true); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("Expected ErrInviteNotFound, got %v", err)
	}
	if _, _, err := f.broker("bob").Respond(ctx, "missing", true); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("Expected ErrInviteNotFound for unknown id, got %v", err)
	}
	if _, _, err := f.broker("").Respond(ctx, inv.ID, true); !errors.Is(err, ports.ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCreateInvite_RequiresHost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, _, err := f.svc.CreateSession(ctx, "alice", domain.GameCheckers)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if _, err := f.broker("carol").CreateInvite(ctx, sess.ID, "bob", domain.GameCheckers); !errors.Is(err, ErrNotSessionHost) {
		t.Fatalf("Expected ErrNotSessionHost, got %v", err)
	}
	inv, err := f.broker("alice").CreateInvite(ctx, sess.ID, "bob", domain.GameCheckers)
	if err != nil {
		t.Fatalf("CreateInvite returned error: %v", err)
	}
	if inv.SessionID != sess.ID {
		t.Fatalf("Expected invite into %s, got %s", sess.ID, inv.SessionID)
	}
}

func TestWatchDeliversInvites(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, _, err := f.broker("alice").Invite(ctx, "bob", domain.GameMorris); err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}

	got := make(chan []*domain.Invite, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.broker("bob").Watch(ctx, 5*time.Millisecond, func(list []*domain.Invite) {
			select {
			case got <- list:
			default:
			}
		})
	}()

	select {
	case list := <-got:
		if len(list) != 1 {
			t.Fatalf("Expected one invite, got %d", len(list))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Watch")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

// flakyStore fails the next failPuts writes to the sessions collection.
type flakyStore struct {
	ports.DocumentStore
	mu       sync.Mutex
	failPuts int
}

func (s *flakyStore) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	s.mu.Lock()
	fail := ref.Collection == app.SessionCollection && s.failPuts > 0
	if fail {
		s.failPuts--
	}
	s.mu.Unlock()
	if fail {
		return "", errors.New("store unreachable")
	}
	return s.DocumentStore.Put(ctx, ref, value, version)
}

func TestRespond_FailedJoinReopensInvite(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)}
	store := &flakyStore{DocumentStore: memory.NewStore()}
	svc := app.NewService(store, clock, rand.New(rand.NewSource(3)))
	alice := NewBroker(svc, ports.StaticIdentity("alice"), Config{TTL: time.Minute})
	bob := NewBroker(svc, ports.StaticIdentity("bob"), Config{TTL: time.Minute})

	inv, sess, err := alice.Invite(ctx, "bob", domain.GameMauMau)
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}

	store.mu.Lock()
	store.failPuts = 1
	store.mu.Unlock()
	answered, joined, err := bob.Respond(ctx, inv.ID, true)
	if err == nil || joined != nil {
		t.Fatalf("Expected the join to fail, got %+v / %v", joined, err)
	}
	if answered.Status != domain.InvitePending {
		t.Fatalf("Expected the invite back to pending, got %s", answered.Status)
	}
	if got, _ := bob.ListInvites(ctx); len(got) != 1 {
		t.Fatalf("Expected the invite listed again, got %+v", got)
	}

	_, joined, err = bob.Respond(ctx, inv.ID, true)
	if err != nil {
		t.Fatalf("Expected the retry to succeed, got %v", err)
	}
	if joined == nil || joined.Status != domain.StatusPlaying {
		t.Fatalf("Expected a playing session, got %+v", joined)
	}
	cur, _ := svc.GetSession(ctx, sess.ID)
	if cur.Status != domain.StatusPlaying || cur.Responder != "bob" {
		t.Fatalf("Expected playing session with bob, got %+v", cur)
	}
	if _, _, err := bob.Respond(ctx, inv.ID, true); !errors.Is(err, ErrInviteClosed) {
		t.Fatalf("Expected ErrInviteClosed after a successful accept, got %v", err)
	}
}
