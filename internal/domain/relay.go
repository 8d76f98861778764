package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
)

// ChessStartFEN is the standard chess opening position.
const ChessStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// RelayState is the shared state of the board and rummy families. Their move
// legality is checked by the presentation layer; the session layer only
// enforces turn order and the finish transition.
type RelayState struct {
	Players  [2]string       `json:"players"`
	Turn     int             `json:"turn"`
	Ply      int             `json:"ply"`
	Position json.RawMessage `json:"position"`
	Winner   string          `json:"winner,omitempty"`
}

// CheckersPosition is an 8x8 board, row 0 at the top. "b"/"w" are men and
// "B"/"W" kings; "." is an empty dark or light square.
type CheckersPosition struct {
	Board [8]string `json:"board"`
	// ToMove is "w" or "b".
	ToMove string `json:"to_move"`
}

// MorrisPosition is a nine men's morris board of 24 points.
type MorrisPosition struct {
	Board   [24]int `json:"board"` // 0 empty, 1 first player, 2 second player
	InHand  [2]int  `json:"in_hand"`
	OnBoard [2]int  `json:"on_board"`
	Phase   string  `json:"phase"`
}

// RummyPosition is a dealt rummy table.
type RummyPosition struct {
	Hands   [2][]Card `json:"hands"`
	Stock   []Card    `json:"stock"`
	Discard []Card    `json:"discard"`
	Melds   [][]Card  `json:"melds"`
}

const rummyHandSize = 7

type relayRules struct {
	game GameType
}

func (r relayRules) Type() GameType { return r.game }
func (relayRules) sealed()          {}

func (r relayRules) Deal(seed int64, players [2]string) (Transition, error) {
	if players[0] == "" || players[1] == "" || players[0] == players[1] {
		return Transition{}, ErrDuplicatePlayers
	}
	pos, err := initialPosition(r.game, seed)
	if err != nil {
		return Transition{}, err
	}
	return encodeRelay(RelayState{Players: players, Position: pos})
}

func (r relayRules) Apply(state json.RawMessage, actor string, move Move) (Transition, error) {
	st, err := decodeRelay(state)
	if err != nil {
		return Transition{}, err
	}
	if st.Winner != "" {
		return Transition{}, reject(GameOver, "session already has a winner")
	}
	seat := -1
	for i, p := range st.Players {
		if p == actor {
			seat = i
		}
	}
	if seat < 0 {
		return Transition{}, reject(UnknownPlayer, fmt.Sprintf("%q is not seated", actor))
	}
	if seat != st.Turn {
		return Transition{}, reject(NotYourTurn, fmt.Sprintf("turn belongs to %s", st.Players[st.Turn]))
	}
	if move.Kind != MovePosition {
		return Transition{}, reject(InvalidMove, fmt.Sprintf("%s does not support %q", r.game, move.Kind))
	}
	if len(bytes.TrimSpace(move.Position)) == 0 || !json.Valid(move.Position) {
		return Transition{}, reject(InvalidMove, "position must be a JSON value")
	}
	if move.Winner != "" && move.Winner != st.Players[0] && move.Winner != st.Players[1] {
		return Transition{}, reject(InvalidMove, "winner must be a participant")
	}

	st.Position = append(json.RawMessage(nil), move.Position...)
	st.Ply++
	st.Winner = move.Winner
	if st.Winner == "" {
		st.Turn = 1 - seat
	}
	return encodeRelay(st)
}

func (relayRules) Outcome(state json.RawMessage) (Outcome, error) {
	st, err := decodeRelay(state)
	if err != nil {
		return Outcome{}, err
	}
	return relayOutcome(st), nil
}

// DecodeRelay parses a stored board or rummy state.
func DecodeRelay(state json.RawMessage) (RelayState, error) {
	return decodeRelay(state)
}

func decodeRelay(state json.RawMessage) (RelayState, error) {
	var st RelayState
	if err := json.Unmarshal(state, &st); err != nil {
		return RelayState{}, fmt.Errorf("decode relay state: %w", err)
	}
	if st.Turn != 0 && st.Turn != 1 {
		return RelayState{}, fmt.Errorf("decode relay state: turn index %d", st.Turn)
	}
	return st, nil
}

func encodeRelay(st RelayState) (Transition, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return Transition{}, fmt.Errorf("encode relay state: %w", err)
	}
	return Transition{State: raw, Outcome: relayOutcome(st)}, nil
}

func relayOutcome(st RelayState) Outcome {
	return Outcome{TurnOwner: st.Players[st.Turn], Finished: st.Winner != "", Winner: st.Winner}
}

func initialPosition(game GameType, seed int64) (json.RawMessage, error) {
	var pos any
	switch game {
	case GameChess:
		pos = map[string]string{"fen": ChessStartFEN}
	case GameCheckers:
		pos = CheckersPosition{
			Board: [8]string{
				".b.b.b.b",
				"b.b.b.b.",
				".b.b.b.b",
				"........",
				"........",
				"w.w.w.w.",
				".w.w.w.w",
				"w.w.w.w.",
			},
			ToMove: "w",
		}
	case GameMorris:
		pos = MorrisPosition{InHand: [2]int{9, 9}, Phase: "placing"}
	case GameRummy:
		deck := ShuffleDeck(NewStandardDeck(), rand.New(rand.NewSource(seed)))
		var p RummyPosition
		for i := range p.Hands {
			p.Hands[i] = cloneCards(deck[:rummyHandSize])
			deck = deck[rummyHandSize:]
		}
		p.Discard = []Card{deck[0]}
		p.Stock = cloneCards(deck[1:])
		p.Melds = [][]Card{}
		pos = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, game)
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		return nil, fmt.Errorf("encode %s position: %w", game, err)
	}
	return raw, nil
}
