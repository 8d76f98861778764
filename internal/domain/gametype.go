package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GameType names a game family. The set is closed: only the constants below
// have rules, and RulesFor is the single place a type is resolved.
type GameType string

const (
	GameMauMau   GameType = "maumau"
	GameChess    GameType = "chess"
	GameCheckers GameType = "checkers"
	GameMorris   GameType = "morris"
	GameRummy    GameType = "rummy"
)

// GameTypes lists every supported family.
var GameTypes = []GameType{GameMauMau, GameChess, GameCheckers, GameMorris, GameRummy}

var ErrUnknownGameType = errors.New("unknown game type")

// ParseGameType validates a client supplied tag.
func ParseGameType(tag string) (GameType, error) {
	for _, t := range GameTypes {
		if string(t) == tag {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGameType, tag)
}

// MoveKind selects the operation a Move performs.
type MoveKind string

const (
	MovePlay         MoveKind = "play"
	MoveDraw         MoveKind = "draw"
	MoveCallLastCard MoveKind = "call_last_card"
	MovePosition     MoveKind = "position"
)

// TakesTurn reports whether the move consumes the mover's turn. Only turn
// taking moves require the mover to be the turn owner.
func (k MoveKind) TakesTurn() bool {
	return k != MoveCallLastCard
}

// Move is a participant's proposed change to a session.
type Move struct {
	Kind MoveKind `json:"kind"`
	// CardIndex and Suit apply to MovePlay.
	CardIndex int   `json:"card_index"`
	Suit      *Suit `json:"suit,omitempty"`
	// Count applies to MoveDraw.
	Count int `json:"count,omitempty"`
	// Position and Winner apply to MovePosition.
	Position json.RawMessage `json:"position,omitempty"`
	Winner   string          `json:"winner,omitempty"`
}

// Outcome is the session-level summary of a game state.
type Outcome struct {
	TurnOwner string
	Finished  bool
	Winner    string
}

// Transition is the result of a successfully applied move.
type Transition struct {
	State   json.RawMessage
	Outcome Outcome
	// Played is the card that left the mover's hand, if any.
	Played *Card
}

// Rules is the engine for one game family. Apply returns a *Rejection error
// for rule violations; any other error means the stored state is unreadable.
type Rules interface {
	Type() GameType
	Deal(seed int64, players [2]string) (Transition, error)
	Apply(state json.RawMessage, actor string, move Move) (Transition, error)
	Outcome(state json.RawMessage) (Outcome, error)

	sealed()
}

// RulesFor resolves the engine for t.
func RulesFor(t GameType) (Rules, error) {
	switch t {
	case GameMauMau:
		return MauMauRules{HandSize: DefaultHandSize}, nil
	case GameChess, GameCheckers, GameMorris, GameRummy:
		return relayRules{game: t}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, t)
	}
}

// MauMauRules adapts the Mau-Mau engine to the Rules interface.
type MauMauRules struct {
	HandSize int
}

func (MauMauRules) Type() GameType { return GameMauMau }
func (MauMauRules) sealed()        {}

func (r MauMauRules) Deal(seed int64, players [2]string) (Transition, error) {
	st, err := DealMauMau(seed, players, r.HandSize)
	if err != nil {
		return Transition{}, err
	}
	return encodeMauMau(st, nil)
}

func (r MauMauRules) Apply(state json.RawMessage, actor string, move Move) (Transition, error) {
	st, err := DecodeMauMau(state)
	if err != nil {
		return Transition{}, err
	}
	var (
		next   MauMauState
		rej    *Rejection
		played *Card
	)
	switch move.Kind {
	case MovePlay:
		if move.CardIndex >= 0 && move.CardIndex < len(st.Hand(actor)) {
			c := st.Hand(actor)[move.CardIndex]
			played = &c
		}
		next, rej = st.PlayCard(actor, move.CardIndex, move.Suit)
	case MoveDraw:
		next, rej = st.Draw(actor, move.Count)
	case MoveCallLastCard:
		next, rej = st.CallLastCard(actor)
	default:
		rej = reject(InvalidMove, fmt.Sprintf("mau-mau does not support %q", move.Kind))
	}
	if rej != nil {
		return Transition{}, rej
	}
	return encodeMauMau(next, played)
}

func (MauMauRules) Outcome(state json.RawMessage) (Outcome, error) {
	st, err := DecodeMauMau(state)
	if err != nil {
		return Outcome{}, err
	}
	return mauMauOutcome(st), nil
}

// DecodeMauMau parses a stored Mau-Mau state.
func DecodeMauMau(state json.RawMessage) (MauMauState, error) {
	var st MauMauState
	if err := json.Unmarshal(state, &st); err != nil {
		return MauMauState{}, fmt.Errorf("decode mau-mau state: %w", err)
	}
	if st.Turn != 0 && st.Turn != 1 {
		return MauMauState{}, fmt.Errorf("decode mau-mau state: turn index %d", st.Turn)
	}
	return st, nil
}

func encodeMauMau(st MauMauState, played *Card) (Transition, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return Transition{}, fmt.Errorf("encode mau-mau state: %w", err)
	}
	return Transition{State: raw, Outcome: mauMauOutcome(st), Played: played}, nil
}

func mauMauOutcome(st MauMauState) Outcome {
	return Outcome{TurnOwner: st.TurnOwner(), Finished: st.Finished(), Winner: st.Winner}
}
