// Package invite implements point-to-point session establishment between two
// named identities.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/platform/id"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteClosed   = errors.New("invite already answered")
	ErrInviteExpired  = errors.New("invite expired")
	ErrSelfInvite     = errors.New("cannot invite yourself")
	ErrAlreadyPending = errors.New("an invite to this recipient is still pending")
	ErrNotSessionHost = errors.New("only the waiting session's initiator can invite")
)

// Config tunes a Broker.
type Config struct {
	// TTL is how long an invite can be accepted and stays in the sender's
	// pending set.
	TTL    time.Duration
	Clock  ports.Clock
	Logger runtime.Logger
}

type pendingKey struct {
	from, to string
}

// Pending is an invite the local sender is still waiting on.
type Pending struct {
	Invite   domain.Invite
	Deadline time.Time
}

// Broker creates, lists and answers invites. The pending set of sent invites
// is local to this Broker and expires on its own; it never revokes the stored
// invite, which carries its own expiry instead.
type Broker struct {
	sessions *app.Service
	store    ports.DocumentStore
	identity ports.IdentityProvider
	clock    ports.Clock
	ttl      time.Duration
	logger   runtime.Logger

	mu      sync.Mutex
	pending map[pendingKey]Pending
}

// NewBroker returns a Broker writing through sessions' store.
func NewBroker(sessions *app.Service, identity ports.IdentityProvider, cfg Config) *Broker {
	if cfg.TTL <= 0 {
		cfg.TTL = app.DefaultInviteTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = sessions.Clock()
	}
	return &Broker{
		sessions: sessions,
		store:    sessions.Store(),
		identity: identity,
		clock:    cfg.Clock,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		pending:  make(map[pendingKey]Pending),
	}
}

// Invite creates a waiting session hosted by the caller and invites to into it.
func (b *Broker) Invite(ctx context.Context, to string, gameType domain.GameType) (*domain.Invite, *domain.Session, error) {
	me, err := b.identity.Identity(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := b.checkSendable(me, to); err != nil {
		return nil, nil, err
	}
	sess, _, err := b.sessions.CreateSession(ctx, me, gameType)
	if err != nil {
		return nil, nil, err
	}
	inv, err := b.deposit(ctx, me, to, sess.ID, gameType)
	if err != nil {
		return nil, nil, err
	}
	return inv, sess, nil
}

// CreateInvite invites to into an existing waiting session hosted by the caller.
func (b *Broker) CreateInvite(ctx context.Context, sessionID, to string, gameType domain.GameType) (*domain.Invite, error) {
	me, err := b.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.checkSendable(me, to); err != nil {
		return nil, err
	}
	sess, err := b.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Initiator != me || sess.Status != domain.StatusWaiting {
		return nil, ErrNotSessionHost
	}
	if sess.GameType != gameType {
		return nil, fmt.Errorf("session %s plays %s, not %s", sessionID, sess.GameType, gameType)
	}
	return b.deposit(ctx, me, to, sessionID, gameType)
}

func (b *Broker) checkSendable(me, to string) error {
	if to == "" || to == me {
		return ErrSelfInvite
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	if _, ok := b.pending[pendingKey{from: me, to: to}]; ok {
		return ErrAlreadyPending
	}
	return nil
}

func (b *Broker) deposit(ctx context.Context, from, to, sessionID string, gameType domain.GameType) (*domain.Invite, error) {
	now := b.clock.Now()
	inv := &domain.Invite{
		ID:        id.New(),
		From:      from,
		To:        to,
		SessionID: sessionID,
		GameType:  gameType,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
		Status:    domain.InvitePending,
	}
	version, err := ports.PutJSON(ctx, b.store, app.InviteRef(to, inv.ID), inv, ports.CreateOnly)
	if err != nil {
		return nil, fmt.Errorf("deposit invite: %w", err)
	}
	inv.Version = version

	b.mu.Lock()
	b.pending[pendingKey{from: from, to: to}] = Pending{Invite: *inv, Deadline: inv.ExpiresAt}
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("Invite: %s invited %s to session %s", from, to, sessionID)
	}
	return inv, nil
}

// ListInvites returns the caller's pending, unexpired invites, oldest first.
func (b *Broker) ListInvites(ctx context.Context) ([]*domain.Invite, error) {
	me, err := b.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := b.store.List(ctx, app.InviteCollection, me)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	now := b.clock.Now()
	out := make([]*domain.Invite, 0, len(docs))
	for _, doc := range docs {
		var inv domain.Invite
		if err := json.Unmarshal(doc.Value, &inv); err != nil {
			if b.logger != nil {
				b.logger.Warn("ListInvites: skipping unreadable invite %s: %v", doc.Key, err)
			}
			continue
		}
		if inv.Status != domain.InvitePending || inv.Expired(now) {
			continue
		}
		inv.Version = doc.Version
		out = append(out, &inv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Respond answers one of the caller's invites. Accepting marks the invite
// and then joins and starts the session; declining only marks the invite.
// An invite can be answered once. When the join fails for a reason a retry
// can overcome, the invite goes back to pending.
func (b *Broker) Respond(ctx context.Context, inviteID string, accept bool) (*domain.Invite, *domain.Session, error) {
	me, err := b.identity.Identity(ctx)
	if err != nil {
		return nil, nil, err
	}
	ref := app.InviteRef(me, inviteID)
	var inv domain.Invite
	version, err := ports.GetJSON(ctx, b.store, ref, &inv)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil, ErrInviteNotFound
		}
		return nil, nil, fmt.Errorf("read invite: %w", err)
	}
	if inv.Status != domain.InvitePending {
		return nil, nil, ErrInviteClosed
	}
	if accept && inv.Expired(b.clock.Now()) {
		return nil, nil, ErrInviteExpired
	}

	inv.Status = domain.InviteDeclined
	if accept {
		inv.Status = domain.InviteAccepted
	}
	next, err := ports.PutJSON(ctx, b.store, ref, &inv, version)
	if err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, nil, ErrInviteClosed
		}
		return nil, nil, fmt.Errorf("answer invite: %w", err)
	}
	inv.Version = next
	if !accept {
		return &inv, nil, nil
	}

	sess, _, err := b.sessions.JoinSession(ctx, inv.SessionID, me)
	if err != nil {
		if !permanentJoinFailure(err) {
			b.reopen(ctx, ref, &inv)
		}
		return &inv, nil, err
	}
	return &inv, sess, nil
}

// permanentJoinFailure reports whether retrying the accept can never start
// the session.
func permanentJoinFailure(err error) bool {
	return errors.Is(err, app.ErrSessionNotWaiting) ||
		errors.Is(err, app.ErrSessionNotFound) ||
		errors.Is(err, app.ErrSelfJoin)
}

// reopen puts an accepted invite back to pending after the join failed, so
// the recipient can accept again. It is conditioned on the accepted version.
func (b *Broker) reopen(ctx context.Context, ref ports.Ref, inv *domain.Invite) {
	inv.Status = domain.InvitePending
	version, err := ports.PutJSON(context.WithoutCancel(ctx), b.store, ref, inv, inv.Version)
	if err != nil {
		inv.Status = domain.InviteAccepted
		if b.logger != nil {
			b.logger.Warn("Respond: could not reopen invite %s: %v", inv.ID, err)
		}
		return
	}
	inv.Version = version
}

// Pending returns the invites this Broker sent that have not expired locally.
func (b *Broker) Pending() []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	out := make([]Pending, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// Forget drops the local pending entry for to, for example once the session
// has started.
func (b *Broker) Forget(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, pendingKey{from: from, to: to})
}

func (b *Broker) pruneLocked() {
	now := b.clock.Now()
	for k, p := range b.pending {
		if !now.Before(p.Deadline) {
			delete(b.pending, k)
		}
	}
}

// Watch lists invites every interval and hands each successful result to fn
// until ctx is done. List failures are logged and retried on the next tick.
func (b *Broker) Watch(ctx context.Context, interval time.Duration, fn func([]*domain.Invite)) error {
	if interval <= 0 {
		interval = app.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		invites, err := b.ListInvites(ctx)
		switch {
		case errors.Is(err, ports.ErrNotAuthenticated):
			return err
		case err != nil:
			if b.logger != nil {
				b.logger.Warn("Invite: listing failed: %v", err)
			}
		default:
			fn(invites)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
