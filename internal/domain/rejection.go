package domain

import "errors"

// RejectionKind classifies why a rule engine refused a move.
type RejectionKind string

const (
	NotYourTurn            RejectionKind = "not_your_turn"
	CardNotInHand          RejectionKind = "card_not_in_hand"
	CardNotPlayable        RejectionKind = "card_not_playable"
	MissingSuitDeclaration RejectionKind = "missing_suit_declaration"
	GameOver               RejectionKind = "game_over"
	UnknownPlayer          RejectionKind = "unknown_player"
	InvalidMove            RejectionKind = "invalid_move"
)

// Rejection is returned by rule engines instead of a new state. It never
// implies the input state was modified.
type Rejection struct {
	Kind    RejectionKind `json:"kind"`
	Message string        `json:"message"`
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Message
}

func reject(kind RejectionKind, msg string) *Rejection {
	return &Rejection{Kind: kind, Message: msg}
}

// AsRejection unwraps err into a *Rejection when it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
