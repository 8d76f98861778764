package bot

import (
	"math/rand"

	"duelhall/internal/domain"
)

// Actions are the cards with a rule effect.
func isAction(c domain.Card) bool {
	return c.Rank == domain.Seven || c.Rank == domain.Eight || c.Rank == domain.Jack
}

func pick(rng *rand.Rand, indices []int) int {
	return indices[rng.Intn(len(indices))]
}

func partition(hand []domain.Card, playable []int) (actions, normal []int) {
	for _, i := range playable {
		if isAction(hand[i]) {
			actions = append(actions, i)
		} else {
			normal = append(normal, i)
		}
	}
	return actions, normal
}

// mostCommonSuit counts hand, ignoring skip. Ties keep canonical suit order.
func mostCommonSuit(hand []domain.Card, skip int, fallback domain.Suit) domain.Suit {
	counts := make(map[domain.Suit]int, len(domain.Suits))
	for i, c := range hand {
		if i != skip {
			counts[c.Suit]++
		}
	}
	best, most := fallback, 0
	for _, s := range domain.Suits {
		if counts[s] > most {
			best, most = s, counts[s]
		}
	}
	return best
}

func play(index int, suit *domain.Suit) Move {
	return Move{CardIndex: index, Suit: suit}
}

// EasyBot plays a random playable card and wishes a random suit.
type EasyBot struct {
	rng *rand.Rand
}

func (b *EasyBot) CalculateMove(state domain.MauMauState, self string) (Move, error) {
	playable := state.PlayableIndices(self)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}
	idx := pick(b.rng, playable)
	var wish *domain.Suit
	if state.Hand(self)[idx].Rank == domain.Jack {
		s := domain.Suits[b.rng.Intn(len(domain.Suits))]
		wish = &s
	}
	return play(idx, wish), nil
}

func (b *EasyBot) OnEvent(interface{}) {}

// MediumBot prefers action cards and wishes the suit it holds most.
type MediumBot struct {
	rng *rand.Rand
}

// mediumActionChance is how often MediumBot plays an action card when it
// also holds a normal one.
const mediumActionChance = 0.7

func (b *MediumBot) CalculateMove(state domain.MauMauState, self string) (Move, error) {
	playable := state.PlayableIndices(self)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}
	hand := state.Hand(self)
	actions, normal := partition(hand, playable)

	var idx int
	switch {
	case len(actions) == 0:
		idx = pick(b.rng, playable)
	case len(normal) == 0 || b.rng.Float64() < mediumActionChance:
		idx = pick(b.rng, actions)
	default:
		idx = pick(b.rng, normal)
	}

	var wish *domain.Suit
	if hand[idx].Rank == domain.Jack {
		s := mostCommonSuit(hand, idx, domain.Hearts)
		wish = &s
	}
	return play(idx, wish), nil
}

func (b *MediumBot) OnEvent(interface{}) {}
