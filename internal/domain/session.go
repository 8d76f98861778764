package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle stage of a session. It only moves forward.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusPlaying:
		return 1
	case StatusFinished:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether next is a legal forward transition (or no change).
func (s Status) CanAdvanceTo(next Status) bool {
	return s.rank() >= 0 && next.rank() >= s.rank()
}

// LastMove records the most recent accepted move for the opponent's view.
type LastMove struct {
	Player string    `json:"player"`
	Kind   MoveKind  `json:"kind"`
	Card   *Card     `json:"card,omitempty"`
	Suit   *Suit     `json:"suit,omitempty"`
	At     time.Time `json:"at"`
}

// Session is the shared record of one match between two identities.
type Session struct {
	ID        string   `json:"id"`
	GameType  GameType `json:"game_type"`
	Initiator string   `json:"initiator"`
	Responder string   `json:"responder,omitempty"`
	TurnOwner string   `json:"turn_owner,omitempty"`
	Status    Status   `json:"status"`
	Winner    string   `json:"winner,omitempty"`
	// State is understood only by the Rules of GameType.
	State        json.RawMessage `json:"state,omitempty"`
	LastMove     *LastMove       `json:"last_move,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`

	// Version is the store version the session was read at.
	Version string `json:"-"`
}

// IsParticipant reports whether identity is bound to the session.
func (s *Session) IsParticipant(identity string) bool {
	return identity != "" && (identity == s.Initiator || identity == s.Responder)
}

// Opponent returns the other participant of identity.
func (s *Session) Opponent(identity string) string {
	switch identity {
	case s.Initiator:
		return s.Responder
	case s.Responder:
		return s.Initiator
	default:
		return ""
	}
}

// SameView reports whether two reads carry the same turn owner, status and game state.
func (s *Session) SameView(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.TurnOwner == other.TurnOwner &&
		s.Status == other.Status &&
		s.Winner == other.Winner &&
		string(s.State) == string(other.State)
}
