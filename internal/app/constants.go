package app

import (
	"time"

	"duelhall/internal/ports"
)

// Store collections shared by the session, invite and matchmaking layers.
const (
	SessionCollection     = "sessions"
	InviteCollection      = "invites"
	MatchSignalCollection = "match_signals"
	// MatchSignalKey is the single signal slot per identity.
	MatchSignalKey = "assigned"

	queueCollectionPrefix = "matchmaking."
)

// Default cadences of the poll-driven components.
const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultPairInterval = 2 * time.Second
	DefaultInviteTTL    = 60 * time.Second
)

// SessionRef addresses a session document.
func SessionRef(sessionID string) ports.Ref {
	return ports.Ref{Collection: SessionCollection, Key: sessionID}
}

// InviteRef addresses an invite in the recipient's inbox.
func InviteRef(recipient, inviteID string) ports.Ref {
	return ports.Ref{Collection: InviteCollection, Owner: recipient, Key: inviteID}
}

// QueueCollection is the per game-mode matchmaking queue.
func QueueCollection(mode string) string {
	return queueCollectionPrefix + mode
}

// MatchSignalRef addresses the match-assigned slot of identity.
func MatchSignalRef(identity string) ports.Ref {
	return ports.Ref{Collection: MatchSignalCollection, Owner: identity, Key: MatchSignalKey}
}
