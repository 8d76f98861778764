package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Authority owns the matchmaking queues in memory and pairs on enqueue. All
// queue mutations happen under one lock, so there are no claim races to
// resolve. Signals for the waiting side are kept in memory and also written
// to the store so that store-only clients can observe them.
type Authority struct {
	sessions *app.Service
	clock    ports.Clock
	logger   runtime.Logger

	mu      sync.Mutex
	queues  map[domain.GameType][]domain.QueueEntry
	signals map[string]domain.MatchSignal
}

// NewAuthority returns an empty Authority.
func NewAuthority(sessions *app.Service, logger runtime.Logger) *Authority {
	return &Authority{
		sessions: sessions,
		clock:    sessions.Clock(),
		logger:   logger,
		queues:   make(map[domain.GameType][]domain.QueueEntry),
		signals:  make(map[string]domain.MatchSignal),
	}
}

// Enqueue queues identity for mode, or pairs it at once with the oldest entry
// already waiting. A returned signal means the caller was matched; otherwise
// the caller waits and later finds its signal through Check.
func (a *Authority) Enqueue(ctx context.Context, identity, displayName string, mode domain.GameType) (*domain.MatchSignal, error) {
	if identity == "" {
		return nil, ports.ErrNotAuthenticated
	}
	if _, err := domain.RulesFor(mode); err != nil {
		return nil, err
	}

	a.mu.Lock()
	delete(a.signals, identity)
	queue := a.queues[mode]
	var (
		opponent domain.QueueEntry
		found    bool
	)
	for i, e := range queue {
		if e.Identity == identity {
			queue[i].DisplayName = displayName
			a.mu.Unlock()
			return nil, nil
		}
		if !found {
			opponent, found = e, true
		}
	}
	if !found {
		a.queues[mode] = append(queue, domain.QueueEntry{Identity: identity, DisplayName: displayName, GameMode: mode, EnqueuedAt: a.clock.Now()})
		a.mu.Unlock()
		return nil, nil
	}
	a.queues[mode] = queue[1:]
	a.mu.Unlock()

	sess, _, err := a.sessions.CreateMatchedSession(ctx, opponent.Identity, identity, mode)
	if err != nil {
		a.mu.Lock()
		a.queues[mode] = append([]domain.QueueEntry{opponent}, a.queues[mode]...)
		a.mu.Unlock()
		return nil, fmt.Errorf("create matched session: %w", err)
	}

	now := a.clock.Now()
	theirs := domain.MatchSignal{SessionID: sess.ID, GameMode: mode, Opponent: identity, OpponentName: displayName, CreatedAt: now}
	a.mu.Lock()
	a.signals[opponent.Identity] = theirs
	a.mu.Unlock()
	if _, err := ports.PutJSON(ctx, a.sessions.Store(), app.MatchSignalRef(opponent.Identity), theirs, ports.AnyVersion); err != nil && a.logger != nil {
		a.logger.Warn("Authority: could not store match signal for %s: %v", opponent.Identity, err)
	}
	if a.logger != nil {
		a.logger.Info("Authority: paired %s with %s in session %s", opponent.Identity, identity, sess.ID)
	}
	return &domain.MatchSignal{SessionID: sess.ID, GameMode: mode, Opponent: opponent.Identity, OpponentName: opponent.DisplayName, CreatedAt: now}, nil
}

// Cancel removes identity from the queue of mode. It reports whether an
// entry was removed.
func (a *Authority) Cancel(identity string, mode domain.GameType) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	queue := a.queues[mode]
	for i, e := range queue {
		if e.Identity == identity {
			a.queues[mode] = append(queue[:i:i], queue[i+1:]...)
			return true
		}
	}
	return false
}

// Check consumes the match signal of identity, if any. The stored copy is
// removed as well.
func (a *Authority) Check(ctx context.Context, identity string) (*domain.MatchSignal, error) {
	if identity == "" {
		return nil, ports.ErrNotAuthenticated
	}
	a.mu.Lock()
	sig, ok := a.signals[identity]
	delete(a.signals, identity)
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if err := a.sessions.Store().Delete(ctx, app.MatchSignalRef(identity), ports.AnyVersion); err != nil && a.logger != nil {
		a.logger.Warn("Authority: could not clear stored signal of %s: %v", identity, err)
	}
	return &sig, nil
}

// Len reports how many identities wait for mode.
func (a *Authority) Len(mode domain.GameType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queues[mode])
}

// Prune drops queue entries and unconsumed signals older than cutoff and
// returns how many were removed.
func (a *Authority) Prune(cutoff time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for mode, queue := range a.queues {
		kept := queue[:0]
		for _, e := range queue {
			if e.EnqueuedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		a.queues[mode] = kept
	}
	for identity, sig := range a.signals {
		if sig.CreatedAt.Before(cutoff) {
			delete(a.signals, identity)
			removed++
		}
	}
	return removed
}
