package bot

import (
	"math/rand"
	"sync"

	"duelhall/internal/app"
	"duelhall/internal/domain"
)

// HardBot saves action cards while the opponent is far from winning and
// fires them once the opponent is close. It remembers which suits the
// opponent failed to follow and wishes those.
type HardBot struct {
	rng *rand.Rand

	mu sync.Mutex
	// required is the suit left active by our last play; forced is set when
	// that play also forced a draw, which makes the opponent's draw no evidence.
	required *domain.Suit
	forced   bool
	lacks    map[domain.Suit]bool
	self     string
}

// NewHardBot returns a HardBot with empty memory.
func NewHardBot(rng *rand.Rand) *HardBot {
	return &HardBot{rng: rng, lacks: make(map[domain.Suit]bool)}
}

// pressureThreshold is the opponent hand size at which HardBot turns aggressive.
const pressureThreshold = 3

func (b *HardBot) CalculateMove(state domain.MauMauState, self string) (Move, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self

	playable := state.PlayableIndices(self)
	if len(playable) == 0 {
		b.required = nil
		return Move{Draw: true}, nil
	}
	hand := state.Hand(self)
	actions, normal := partition(hand, playable)
	opponentCards := len(state.Hand(state.Opponent(self)))

	var idx int
	if opponentCards <= pressureThreshold && len(actions) > 0 {
		idx = firstOfRank(hand, actions, domain.Seven, domain.Eight, domain.Jack)
	} else if len(normal) > 0 {
		idx = pick(b.rng, normal)
	} else {
		idx = pick(b.rng, playable)
	}

	card := hand[idx]
	var wish *domain.Suit
	if card.Rank == domain.Jack {
		s := b.chooseWish(hand, idx)
		wish = &s
	}

	active := card.Suit
	if wish != nil {
		active = *wish
	}
	b.required = &active
	b.forced = card.Rank == domain.Seven
	if card.Rank == domain.Eight {
		// We move again, so the opponent's next draw says nothing about this suit.
		b.required = nil
	}
	return play(idx, wish), nil
}

// chooseWish prefers a suit we hold that the opponent is known to lack, then
// the suit we hold most.
func (b *HardBot) chooseWish(hand []domain.Card, skip int) domain.Suit {
	held := make(map[domain.Suit]int, len(domain.Suits))
	for i, c := range hand {
		if i != skip {
			held[c.Suit]++
		}
	}
	best, most := domain.Suit(-1), 0
	for _, s := range domain.Suits {
		if b.lacks[s] && held[s] > most {
			best, most = s, held[s]
		}
	}
	if best.Valid() {
		return best
	}
	return mostCommonSuit(hand, skip, domain.Spades)
}

func firstOfRank(hand []domain.Card, indices []int, ranks ...domain.Rank) int {
	for _, r := range ranks {
		for _, i := range indices {
			if hand[i].Rank == r {
				return i
			}
		}
	}
	return indices[0]
}

// OnEvent learns from the opponent's moves. It accepts app.Event values and
// bare app.MovePlayedPayload values.
func (b *HardBot) OnEvent(event interface{}) {
	var payload app.MovePlayedPayload
	switch e := event.(type) {
	case app.Event:
		p, ok := e.Payload.(app.MovePlayedPayload)
		if !ok {
			return
		}
		payload = p
	case app.MovePlayedPayload:
		payload = e
	default:
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if payload.UserID == "" || payload.UserID == b.self {
		return
	}
	switch payload.Move.Kind {
	case domain.MoveDraw:
		if b.required != nil && !b.forced {
			b.lacks[*b.required] = true
		}
	case domain.MovePlay:
		if payload.Card != nil {
			delete(b.lacks, payload.Card.Suit)
		}
	}
	b.required = nil
}

// KnownLacks returns the suits the opponent is believed not to hold.
func (b *HardBot) KnownLacks() []domain.Suit {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Suit
	for _, s := range domain.Suits {
		if b.lacks[s] {
			out = append(out, s)
		}
	}
	return out
}
