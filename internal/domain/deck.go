package domain

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Suit of a playing card. Values are stable and persisted in session documents.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Suits lists every suit in canonical order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

func (s Suit) Valid() bool {
	return s >= Spades && s <= Clubs
}

func (s Suit) String() string {
	switch s {
	case Spades:
		return "spades"
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	default:
		return fmt.Sprintf("suit(%d)", int(s))
	}
}

// ParseSuit accepts the lower-case suit names produced by Suit.String.
func ParseSuit(name string) (Suit, error) {
	for _, s := range Suits {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown suit %q", name)
}

// Rank of a playing card. Two through ten use their face value, court cards follow.
type Rank int

const (
	Two   Rank = 2
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// Card is a single playing card.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}

// NewMauMauDeck returns the sorted 32-card piquet deck (seven through ace).
func NewMauMauDeck() []Card {
	deck := make([]Card, 0, 32)
	for _, s := range Suits {
		for r := Seven; r <= Ace; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// NewStandardDeck returns the sorted 52-card deck.
func NewStandardDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for r := Two; r <= Ace; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck using rng.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// reshuffleSeed derives the shuffle seed for a pile from its exact contents and order.
func reshuffleSeed(seed int64, pile []Card) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	for _, c := range pile {
		h.Write([]byte{byte(c.Suit), byte(c.Rank)})
	}
	return int64(h.Sum64())
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
