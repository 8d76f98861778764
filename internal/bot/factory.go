package bot

import (
	"fmt"
	"math/rand"
	"time"
)

// NewBrain creates a new AI brain based on the specified level. rng may be
// nil to use a time-seeded source.
func NewBrain(level Level, rng *rand.Rand) (Brain, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	switch level {
	case LevelEasy:
		return &EasyBot{rng: rng}, nil
	case LevelMedium:
		return &MediumBot{rng: rng}, nil
	case LevelHard:
		return NewHardBot(rng), nil
	default:
		return nil, fmt.Errorf("unknown bot level: %q", level)
	}
}

var botNames = map[Level][]string{
	LevelEasy:   {"Sleepy Sloth", "Lazy Koala", "Dozy Panda"},
	LevelMedium: {"Clever Fox", "Busy Beaver", "Lucky Otter"},
	LevelHard:   {"Cunning Raven", "Iron Owl", "Silent Wolf"},
}

// NewAgent returns an agent at level with a display name from the roster.
func NewAgent(level Level, rng *rand.Rand) (*Agent, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	brain, err := NewBrain(level, rng)
	if err != nil {
		return nil, err
	}
	names := botNames[level]
	n := rng.Intn(len(names))
	return &Agent{
		ID:       fmt.Sprintf("bot-%s-%d", level, n+1),
		Name:     names[n],
		Strategy: brain,
	}, nil
}
