package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"duelhall/internal/domain"
	"duelhall/internal/platform/id"
	"duelhall/internal/ports"
)

// Service contains session use-cases operating on stored session documents.
// Every mutation re-reads the document and writes it back conditioned on the
// version it read, so two writers can never both succeed from the same state.
type Service struct {
	store    ports.DocumentStore
	clock    ports.Clock
	handSize int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
// clock may be nil to use the system clock.
func NewService(store ports.DocumentStore, clock ports.Clock, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Service{store: store, clock: clock, rng: rng}
}

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotParticipant    = errors.New("identity is not a participant of the session")
	ErrSessionNotWaiting = errors.New("session is not waiting for a player")
	ErrSessionNotPlaying = errors.New("session is not in progress")
	ErrSelfJoin          = errors.New("initiator cannot join their own session")
	ErrStatusRegression  = errors.New("session status cannot move backwards")
	// ErrRaceLost means another writer changed the document between our read
	// and our write. The caller should re-read and decide again.
	ErrRaceLost = errors.New("session changed concurrently")
)

// SetHandSize changes the Mau-Mau starting hand for sessions dealt from now
// on. Values below one keep the default.
func (s *Service) SetHandSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = domain.DefaultHandSize
	}
	s.handSize = n
}

func (s *Service) rulesFor(gameType domain.GameType) (domain.Rules, error) {
	rules, err := domain.RulesFor(gameType)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gameType == domain.GameMauMau && s.handSize > 0 {
		return domain.MauMauRules{HandSize: s.handSize}, nil
	}
	return rules, nil
}

// Store exposes the document store the service writes through.
func (s *Service) Store() ports.DocumentStore { return s.store }

// Clock exposes the service clock.
func (s *Service) Clock() ports.Clock { return s.clock }

func (s *Service) seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63()
}

// CreateSession writes a new waiting session owned by initiator.
func (s *Service) CreateSession(ctx context.Context, initiator string, gameType domain.GameType) (*domain.Session, []Event, error) {
	if initiator == "" {
		return nil, nil, ports.ErrNotAuthenticated
	}
	if _, err := domain.RulesFor(gameType); err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	sess := &domain.Session{
		ID:           id.New(),
		GameType:     gameType,
		Initiator:    initiator,
		TurnOwner:    initiator,
		Status:       domain.StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}
	version, err := ports.PutJSON(ctx, s.store, SessionRef(sess.ID), sess, ports.CreateOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	sess.Version = version

	events := []Event{{
		Kind:       EventSessionCreated,
		Payload:    SessionCreatedPayload{SessionID: sess.ID, GameType: gameType, Initiator: initiator},
		Recipients: []string{initiator},
	}}
	return sess, events, nil
}

// CreateMatchedSession writes a session for two already paired identities,
// dealt and playing. first takes the first turn.
func (s *Service) CreateMatchedSession(ctx context.Context, first, second string, gameType domain.GameType) (*domain.Session, []Event, error) {
	now := s.clock.Now()
	sess := &domain.Session{
		ID:           id.New(),
		GameType:     gameType,
		Initiator:    first,
		Status:       domain.StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}
	events, err := s.start(sess, second)
	if err != nil {
		return nil, nil, err
	}
	version, err := ports.PutJSON(ctx, s.store, SessionRef(sess.ID), sess, ports.CreateOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("create matched session: %w", err)
	}
	sess.Version = version
	return sess, events, nil
}

// GetSession reads the current session document.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	version, err := ports.GetJSON(ctx, s.store, SessionRef(sessionID), &sess)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	sess.Version = version
	return &sess, nil
}

// JoinSession binds responder to a waiting session, deals the initial state
// and moves the session to playing. It succeeds at most once per session.
func (s *Service) JoinSession(ctx context.Context, sessionID, responder string) (*domain.Session, []Event, error) {
	if responder == "" {
		return nil, nil, ports.ErrNotAuthenticated
	}
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != domain.StatusWaiting {
		return nil, nil, ErrSessionNotWaiting
	}
	if sess.Initiator == responder {
		return nil, nil, ErrSelfJoin
	}

	events, err := s.start(sess, responder)
	if err != nil {
		return nil, nil, err
	}
	if err := s.write(ctx, domain.StatusWaiting, sess); err != nil {
		return nil, nil, err
	}
	return sess, events, nil
}

// start binds responder and deals. sess must be waiting.
func (s *Service) start(sess *domain.Session, responder string) ([]Event, error) {
	rules, err := s.rulesFor(sess.GameType)
	if err != nil {
		return nil, err
	}
	tr, err := rules.Deal(s.seed(), [2]string{sess.Initiator, responder})
	if err != nil {
		return nil, fmt.Errorf("deal %s: %w", sess.GameType, err)
	}
	sess.Responder = responder
	sess.State = tr.State
	sess.TurnOwner = tr.Outcome.TurnOwner
	sess.Status = domain.StatusPlaying
	sess.LastActivity = s.clock.Now()

	return []Event{
		{Kind: EventPlayerJoined, Payload: PlayerJoinedPayload{SessionID: sess.ID, UserID: responder}},
		{Kind: EventGameStarted, Payload: GameStartedPayload{SessionID: sess.ID, FirstTurnUserID: sess.TurnOwner}},
	}, nil
}

// SubmitMove applies actor's move to the freshly read session and writes the
// result back conditioned on that read. Rule violations are returned as a
// *domain.Rejection and leave the document untouched.
func (s *Service) SubmitMove(ctx context.Context, sessionID, actor string, move domain.Move) (*domain.Session, []Event, error) {
	if actor == "" {
		return nil, nil, ports.ErrNotAuthenticated
	}
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.ApplyMove(ctx, sess, actor, move)
}

// ApplyMove is SubmitMove against a document the caller has just read.
func (s *Service) ApplyMove(ctx context.Context, sess *domain.Session, actor string, move domain.Move) (*domain.Session, []Event, error) {
	if !sess.IsParticipant(actor) {
		return nil, nil, ErrNotParticipant
	}
	switch sess.Status {
	case domain.StatusFinished:
		return nil, nil, &domain.Rejection{Kind: domain.GameOver, Message: "session already finished"}
	case domain.StatusPlaying:
	default:
		return nil, nil, ErrSessionNotPlaying
	}
	if move.Kind.TakesTurn() && sess.TurnOwner != actor {
		return nil, nil, &domain.Rejection{Kind: domain.NotYourTurn, Message: "turn belongs to " + sess.TurnOwner}
	}

	rules, err := domain.RulesFor(sess.GameType)
	if err != nil {
		return nil, nil, err
	}
	tr, err := rules.Apply(sess.State, actor, move)
	if err != nil {
		return nil, nil, err
	}

	next := *sess
	now := s.clock.Now()
	next.State = tr.State
	next.TurnOwner = tr.Outcome.TurnOwner
	next.LastActivity = now
	next.LastMove = &domain.LastMove{Player: actor, Kind: move.Kind, Card: tr.Played, Suit: move.Suit, At: now}

	events := []Event{{
		Kind: EventMovePlayed,
		Payload: MovePlayedPayload{
			SessionID:      sess.ID,
			UserID:         actor,
			Move:           move,
			Card:           tr.Played,
			NextTurnUserID: next.TurnOwner,
		},
	}}
	if tr.Outcome.Finished {
		next.Status = domain.StatusFinished
		next.Winner = tr.Outcome.Winner
		events = append(events, Event{Kind: EventGameEnded, Payload: GameEndedPayload{SessionID: sess.ID, Winner: next.Winner}})
	}

	if err := s.write(ctx, sess.Status, &next); err != nil {
		return nil, nil, err
	}
	return &next, events, nil
}

// Resign ends a playing session with actor's opponent as winner.
func (s *Service) Resign(ctx context.Context, sessionID, actor string) (*domain.Session, []Event, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !sess.IsParticipant(actor) {
		return nil, nil, ErrNotParticipant
	}
	if sess.Status != domain.StatusPlaying {
		return nil, nil, ErrSessionNotPlaying
	}
	sess.Status = domain.StatusFinished
	sess.Winner = sess.Opponent(actor)
	sess.LastActivity = s.clock.Now()
	if err := s.write(ctx, domain.StatusPlaying, sess); err != nil {
		return nil, nil, err
	}
	return sess, []Event{{Kind: EventGameEnded, Payload: GameEndedPayload{SessionID: sess.ID, Winner: sess.Winner, Resigned: true}}}, nil
}

// write stores sess conditioned on sess.Version and updates it on success.
// from is the status sess was read with; the status only moves forward.
func (s *Service) write(ctx context.Context, from domain.Status, sess *domain.Session) error {
	if !from.CanAdvanceTo(sess.Status) {
		return fmt.Errorf("%w: %s to %s", ErrStatusRegression, from, sess.Status)
	}
	version, err := ports.PutJSON(ctx, s.store, SessionRef(sess.ID), sess, sess.Version)
	if err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return fmt.Errorf("%w: %s", ErrRaceLost, sess.ID)
		}
		return fmt.Errorf("write session %s: %w", sess.ID, err)
	}
	sess.Version = version
	return nil
}

// Cleanup deletes sessions whose last activity is before cutoff and returns
// how many were removed. A session touched since it was listed survives.
func (s *Service) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := s.store.List(ctx, SessionCollection, "")
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	removed := 0
	for _, doc := range docs {
		var sess domain.Session
		if err := json.Unmarshal(doc.Value, &sess); err != nil {
			continue
		}
		if !sess.LastActivity.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, doc.Ref, doc.Version); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) || errors.Is(err, ports.ErrNotFound) {
				continue
			}
			return removed, fmt.Errorf("delete session %s: %w", doc.Key, err)
		}
		removed++
	}
	return removed, nil
}
