package bot

import (
	"fmt"

	"duelhall/internal/domain"
)

// Level selects a Mau-Mau playing strength.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// ParseLevel validates a user supplied level name.
func ParseLevel(name string) (Level, error) {
	switch l := Level(name); l {
	case LevelEasy, LevelMedium, LevelHard:
		return l, nil
	default:
		return "", fmt.Errorf("unknown bot level %q", name)
	}
}

// Move represents the decision made by the AI.
type Move struct {
	Draw      bool
	CardIndex int
	// Suit is the wish declared with a jack.
	Suit *domain.Suit
}

// ToDomain converts the decision into an engine move.
func (m Move) ToDomain() domain.Move {
	if m.Draw {
		return domain.Move{Kind: domain.MoveDraw}
	}
	return domain.Move{Kind: domain.MovePlay, CardIndex: m.CardIndex, Suit: m.Suit}
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(state domain.MauMauState, self string) (Move, error)
	OnEvent(event interface{})
}
