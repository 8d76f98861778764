// Package matchmaking pairs anonymous waiting identities into sessions.
//
// Coordinator implements cooperative pairing for deployments where clients
// only share a document store: every queued client calls AttemptPair
// periodically and claims happen through conditional deletes. Authority is the
// in-process alternative for servers that own the queue outright.
package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	// ErrClaimLost means another client claimed the chosen entry first, or
	// claimed the caller. Retry on the next tick after checking AwaitMatch.
	ErrClaimLost = errors.New("matchmaking claim lost")
	ErrNotQueued = errors.New("identity is not queued for this mode")
)

// Config tunes a Coordinator.
type Config struct {
	// PairInterval is how often Search calls AttemptPair.
	PairInterval time.Duration
	Clock        ports.Clock
	Logger       runtime.Logger
}

// Coordinator pairs queue entries stored in a shared DocumentStore.
type Coordinator struct {
	sessions *app.Service
	store    ports.DocumentStore
	identity ports.IdentityProvider
	clock    ports.Clock
	interval time.Duration
	logger   runtime.Logger
}

// NewCoordinator returns a Coordinator acting for identity.
func NewCoordinator(sessions *app.Service, identity ports.IdentityProvider, cfg Config) *Coordinator {
	if cfg.PairInterval <= 0 {
		cfg.PairInterval = app.DefaultPairInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = sessions.Clock()
	}
	return &Coordinator{
		sessions: sessions,
		store:    sessions.Store(),
		identity: identity,
		clock:    cfg.Clock,
		interval: cfg.PairInterval,
		logger:   cfg.Logger,
	}
}

func entryRef(mode domain.GameType, identity string) ports.Ref {
	return ports.Ref{Collection: app.QueueCollection(string(mode)), Key: identity}
}

// Enqueue upserts the caller's entry for mode. Re-enqueueing refreshes the
// display name but keeps the original queue position.
func (c *Coordinator) Enqueue(ctx context.Context, displayName string, mode domain.GameType) (*domain.QueueEntry, error) {
	me, err := c.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := domain.RulesFor(mode); err != nil {
		return nil, err
	}
	entry := &domain.QueueEntry{Identity: me, DisplayName: displayName, GameMode: mode, EnqueuedAt: c.clock.Now()}

	var prior domain.QueueEntry
	if _, err := ports.GetJSON(ctx, c.store, entryRef(mode, me), &prior); err == nil {
		entry.EnqueuedAt = prior.EnqueuedAt
	} else if !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("read queue entry: %w", err)
	}

	version, err := ports.PutJSON(ctx, c.store, entryRef(mode, me), entry, ports.AnyVersion)
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	entry.Version = version
	return entry, nil
}

// Dequeue removes the caller's entry for mode. A missing entry is not an error.
func (c *Coordinator) Dequeue(ctx context.Context, mode domain.GameType) error {
	me, err := c.identity.Identity(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, entryRef(mode, me), ports.AnyVersion); err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	return nil
}

func (c *Coordinator) queue(ctx context.Context, mode domain.GameType) ([]*domain.QueueEntry, error) {
	docs, err := c.store.List(ctx, app.QueueCollection(string(mode)), "")
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	entries := make([]*domain.QueueEntry, 0, len(docs))
	for _, doc := range docs {
		var e domain.QueueEntry
		if err := json.Unmarshal(doc.Value, &e); err != nil {
			continue
		}
		e.Identity = doc.Key
		e.Version = doc.Version
		entries = append(entries, &e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return queuedBefore(entries[i], entries[j]) })
	return entries, nil
}

// queuedBefore orders entries oldest first, identity breaking ties.
func queuedBefore(a, b *domain.QueueEntry) bool {
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.Identity < b.Identity
}

// AttemptPair tries to pair the caller with the oldest entry queued before
// it. It returns (nil, nil) when there is nobody to claim yet.
//
// The caller first withdraws its own entry with a conditional delete so that
// nobody can claim it mid-pairing, then claims the target with a conditional
// delete on the version it read. Only one of several concurrent claimants can
// delete a given version, so a target is paired at most once. A lost claim
// restores the caller's entry and returns ErrClaimLost.
func (c *Coordinator) AttemptPair(ctx context.Context, mode domain.GameType) (*domain.MatchSignal, error) {
	me, err := c.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := c.queue(ctx, mode)
	if err != nil {
		return nil, err
	}

	var self, target *domain.QueueEntry
	for _, e := range entries {
		if e.Identity == me {
			self = e
			break
		}
		if target == nil {
			target = e
		}
	}
	if self == nil {
		return nil, ErrNotQueued
	}
	if target == nil {
		return nil, nil
	}

	if err := c.store.Delete(ctx, entryRef(mode, me), self.Version); err != nil {
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrVersionConflict) {
			// Somebody claimed us; their signal will show up in AwaitMatch.
			return nil, ErrClaimLost
		}
		return nil, fmt.Errorf("withdraw own entry: %w", err)
	}

	if err := c.store.Delete(ctx, entryRef(mode, target.Identity), target.Version); err != nil {
		c.restore(ctx, self)
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrVersionConflict) {
			if c.logger != nil {
				c.logger.Debug("AttemptPair: %s lost the claim on %s", me, target.Identity)
			}
			return nil, ErrClaimLost
		}
		return nil, fmt.Errorf("claim entry of %s: %w", target.Identity, err)
	}
	if _, err := c.store.Get(ctx, entryRef(mode, target.Identity)); err == nil {
		// Re-enqueued since our delete; that new entry is a fresh request, not ours.
		if c.logger != nil {
			c.logger.Debug("AttemptPair: %s re-enqueued right after being claimed", target.Identity)
		}
	}

	sess, _, err := c.sessions.CreateMatchedSession(ctx, target.Identity, me, mode)
	if err != nil {
		c.restore(ctx, target)
		c.restore(ctx, self)
		return nil, fmt.Errorf("create matched session: %w", err)
	}

	now := c.clock.Now()
	mine := &domain.MatchSignal{SessionID: sess.ID, GameMode: mode, Opponent: target.Identity, OpponentName: target.DisplayName, CreatedAt: now}
	theirs := &domain.MatchSignal{SessionID: sess.ID, GameMode: mode, Opponent: me, OpponentName: self.DisplayName, CreatedAt: now}
	if _, err := ports.PutJSON(ctx, c.store, app.MatchSignalRef(target.Identity), theirs, ports.AnyVersion); err != nil {
		return nil, fmt.Errorf("signal %s: %w", target.Identity, err)
	}
	if _, err := ports.PutJSON(ctx, c.store, app.MatchSignalRef(me), mine, ports.AnyVersion); err != nil {
		return nil, fmt.Errorf("signal %s: %w", me, err)
	}
	if c.logger != nil {
		c.logger.Info("AttemptPair: paired %s with %s in session %s", target.Identity, me, sess.ID)
	}
	return mine, nil
}

// restore puts a withdrawn entry back with its original queue position.
func (c *Coordinator) restore(ctx context.Context, e *domain.QueueEntry) {
	if _, err := ports.PutJSON(ctx, c.store, entryRef(e.GameMode, e.Identity), e, ports.CreateOnly); err != nil && c.logger != nil {
		c.logger.Warn("AttemptPair: could not restore queue entry of %s: %v", e.Identity, err)
	}
}

// AwaitMatch reads and consumes the caller's match signal. It returns
// (nil, nil) while no signal is present.
func (c *Coordinator) AwaitMatch(ctx context.Context) (*domain.MatchSignal, error) {
	me, err := c.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return consumeSignal(ctx, c.store, me)
}

func consumeSignal(ctx context.Context, store ports.DocumentStore, identity string) (*domain.MatchSignal, error) {
	ref := app.MatchSignalRef(identity)
	var sig domain.MatchSignal
	version, err := ports.GetJSON(ctx, store, ref, &sig)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read match signal: %w", err)
	}
	if err := store.Delete(ctx, ref, version); err != nil {
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrVersionConflict) {
			// Consumed concurrently, or replaced by a newer signal.
			return nil, nil
		}
		return nil, fmt.Errorf("consume match signal: %w", err)
	}
	return &sig, nil
}

// Search enqueues the caller and alternates AwaitMatch and AttemptPair every
// PairInterval until a match is found or ctx ends. On cancellation the
// caller's entry is removed.
func (c *Coordinator) Search(ctx context.Context, displayName string, mode domain.GameType) (*domain.MatchSignal, error) {
	if _, err := c.Enqueue(ctx, displayName, mode); err != nil {
		return nil, err
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	misses := 0
	for {
		sig, err := c.step(ctx, displayName, mode, &misses)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			return sig, nil
		}
		select {
		case <-ctx.Done():
			if err := c.Dequeue(context.WithoutCancel(ctx), mode); err != nil && c.logger != nil {
				c.logger.Warn("Search: cancel failed: %v", err)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// step runs one Search tick. misses counts consecutive ticks that found the
// caller neither queued nor signalled.
func (c *Coordinator) step(ctx context.Context, displayName string, mode domain.GameType, misses *int) (*domain.MatchSignal, error) {
	sig, err := c.AwaitMatch(ctx)
	if err != nil || sig != nil {
		return sig, err
	}
	if _, err := c.AttemptPair(ctx, mode); err != nil {
		switch {
		case errors.Is(err, ErrClaimLost):
		case errors.Is(err, ErrNotQueued):
			// A claimant removes our entry before it writes our signal, so
			// give it one tick before assuming the entry was lost.
			*misses++
			if *misses < 2 {
				return nil, nil
			}
			*misses = 0
			if _, err := c.Enqueue(ctx, displayName, mode); err != nil {
				return nil, err
			}
		case errors.Is(err, ports.ErrNotAuthenticated):
			return nil, err
		default:
			if c.logger != nil {
				c.logger.Warn("Search: pairing attempt failed: %v", err)
			}
		}
		return nil, nil
	}
	*misses = 0
	return c.AwaitMatch(ctx)
}
