// Package syncer keeps one client's view of a session in step with the shared
// session document by polling, and gates local moves through the rule engine.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// State is the lifecycle of a Synchronizer.
type State int

const (
	Idle State = iota
	Polling
	Submitting
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Submitting:
		return "submitting"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UpdateKind classifies what a listener is told.
type UpdateKind string

const (
	// SessionChanged carries a new view that replaced the previous one.
	SessionChanged UpdateKind = "session_changed"
	// MoveRejected carries a rule violation of a local move. Nothing was written.
	MoveRejected UpdateKind = "move_rejected"
	// RaceLost means the opponent wrote first; the next poll re-synchronizes.
	RaceLost UpdateKind = "race_lost"
	// PollFailed carries a transport error of one tick. Polling continues.
	PollFailed UpdateKind = "poll_failed"
)

// Update is delivered to the Listener.
type Update struct {
	Kind      UpdateKind
	Session   *domain.Session
	Rejection *domain.Rejection
	Err       error
}

// Listener receives updates. It is called from the polling goroutine or the
// submitting caller, never while internal locks are held.
type Listener func(Update)

var (
	ErrNotPolling     = errors.New("synchronizer is not polling")
	ErrAlreadyStarted = errors.New("synchronizer already started")
)

// Config tunes a Synchronizer.
type Config struct {
	Interval time.Duration
	Listener Listener
	Logger   runtime.Logger
}

// Synchronizer owns the poll loop of one session on one client.
type Synchronizer struct {
	svc       *app.Service
	identity  ports.IdentityProvider
	sessionID string
	interval  time.Duration
	listener  Listener
	logger    runtime.Logger

	mu      sync.Mutex
	state   State
	view    *domain.Session
	applied uint64
	stop    chan struct{}
	done    chan struct{}
}

// New returns an idle Synchronizer for sessionID.
func New(svc *app.Service, identity ports.IdentityProvider, sessionID string, cfg Config) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = app.DefaultPollInterval
	}
	if cfg.Listener == nil {
		cfg.Listener = func(Update) {}
	}
	return &Synchronizer{
		svc:       svc,
		identity:  identity,
		sessionID: sessionID,
		interval:  cfg.Interval,
		listener:  cfg.Listener,
		logger:    cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the last observed session, or nil before the first read.
func (s *Synchronizer) View() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Start performs a first read and begins polling every interval until Stop
// or ctx is done.
func (s *Synchronizer) Start(ctx context.Context) error {
	if _, err := s.identity.Identity(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Polling
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.loop(ctx, stop, done)
	return nil
}

func (s *Synchronizer) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.state = Stopped
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Synchronizer) tick(ctx context.Context) {
	if err := s.Poll(ctx); err != nil && s.logger != nil {
		s.logger.Warn("Synchronizer: poll of session %s failed: %v", s.sessionID, err)
	}
}

// Stop ends polling. A tick already in flight completes but its result is
// discarded. Stop waits for the loop goroutine to exit.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.state == Stopped || s.state == Idle {
		s.state = Stopped
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// Poll reads the session once and replaces the local view if the turn owner,
// status or game state changed. Transport failures are reported to the
// listener and returned; they do not stop the loop.
func (s *Synchronizer) Poll(ctx context.Context) error {
	if _, err := s.identity.Identity(ctx); err != nil {
		s.listener(Update{Kind: PollFailed, Err: err})
		return err
	}
	s.mu.Lock()
	seen := s.applied
	s.mu.Unlock()

	sess, err := s.svc.GetSession(ctx, s.sessionID)
	if err != nil {
		if s.active() {
			s.listener(Update{Kind: PollFailed, Err: err})
		}
		return err
	}

	s.mu.Lock()
	if s.state == Stopped || s.applied != seen {
		// Stopped, or a submit replaced the view while we were reading.
		s.mu.Unlock()
		return nil
	}
	changed := !s.view.SameView(sess)
	s.view = sess
	s.applied++
	s.mu.Unlock()

	if changed {
		s.listener(Update{Kind: SessionChanged, Session: sess})
	}
	return nil
}

func (s *Synchronizer) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Stopped
}

// Submit sends a local move. The cached turn owner is checked first without
// any I/O; the authoritative check happens against a fresh read right before
// a conditional write. The returned error is a *domain.Rejection for rule
// violations, app.ErrRaceLost when the opponent wrote first, or a transport
// error.
func (s *Synchronizer) Submit(ctx context.Context, move domain.Move) (*domain.Session, error) {
	me, err := s.identity.Identity(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != Polling {
		s.mu.Unlock()
		return nil, ErrNotPolling
	}
	view := s.view
	if move.Kind.TakesTurn() && (view == nil || view.TurnOwner != me) {
		s.mu.Unlock()
		rej := &domain.Rejection{Kind: domain.NotYourTurn, Message: "waiting for the opponent"}
		s.listener(Update{Kind: MoveRejected, Rejection: rej, Session: view})
		return nil, rej
	}
	s.state = Submitting
	s.mu.Unlock()

	sess, _, err := s.svc.SubmitMove(ctx, s.sessionID, me, move)

	s.mu.Lock()
	if s.state == Submitting {
		s.state = Polling
	}
	stopped := s.state == Stopped
	if err == nil && !stopped {
		s.view = sess
		s.applied++
	}
	s.mu.Unlock()

	if stopped {
		return sess, err
	}
	switch rej, isRej := domain.AsRejection(err); {
	case err == nil:
		s.listener(Update{Kind: SessionChanged, Session: sess})
	case isRej && rej.Kind == domain.NotYourTurn:
		// Our cached view said it was our turn; the server disagrees.
		s.listener(Update{Kind: RaceLost, Rejection: rej, Err: err})
		return nil, fmt.Errorf("%w: %v", app.ErrRaceLost, rej)
	case isRej:
		s.listener(Update{Kind: MoveRejected, Rejection: rej, Session: view})
	case errors.Is(err, app.ErrRaceLost):
		s.listener(Update{Kind: RaceLost, Err: err})
	default:
		if s.logger != nil {
			s.logger.Warn("Synchronizer: submit to session %s failed: %v", s.sessionID, err)
		}
		s.listener(Update{Kind: PollFailed, Err: err})
	}
	return sess, err
}
