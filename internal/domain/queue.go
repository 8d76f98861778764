package domain

import "time"

// QueueEntry is one identity waiting for an opponent in a game mode.
type QueueEntry struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	GameMode    GameType  `json:"game_mode"`
	EnqueuedAt  time.Time `json:"enqueued_at"`

	Version string `json:"-"`
}

// MatchSignal tells an identity which session pairing created for it.
type MatchSignal struct {
	SessionID    string    `json:"session_id"`
	GameMode     GameType  `json:"game_mode"`
	Opponent     string    `json:"opponent"`
	OpponentName string    `json:"opponent_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
