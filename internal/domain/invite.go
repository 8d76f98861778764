package domain

import "time"

// InviteStatus is monotonic: pending moves to accepted or declined once.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invite is a one-time offer addressed to To to join SessionID.
type Invite struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	FromName  string       `json:"from_name,omitempty"`
	To        string       `json:"to"`
	SessionID string       `json:"session_id"`
	GameType  GameType     `json:"game_type"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Status    InviteStatus `json:"status"`

	Version string `json:"-"`
}

// Expired reports whether the invite can no longer be accepted at now.
func (i *Invite) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
