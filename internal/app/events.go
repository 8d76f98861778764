package app

import "duelhall/internal/domain"

// EventKind identifies emitted session events.
type EventKind string

const (
	EventSessionCreated EventKind = "session_created"
	EventPlayerJoined   EventKind = "player_joined"
	EventGameStarted    EventKind = "game_started"
	EventMovePlayed     EventKind = "move_played"
	EventGameEnded      EventKind = "game_ended"
)

// Event is an app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // identities; empty means both participants
}

type SessionCreatedPayload struct {
	SessionID string
	GameType  domain.GameType
	Initiator string
}

type PlayerJoinedPayload struct {
	SessionID string
	UserID    string
}

type GameStartedPayload struct {
	SessionID       string
	FirstTurnUserID string
}

type MovePlayedPayload struct {
	SessionID      string
	UserID         string
	Move           domain.Move
	Card           *domain.Card
	NextTurnUserID string
}

type GameEndedPayload struct {
	SessionID string
	Winner    string
	Resigned  bool
}
