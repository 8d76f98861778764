package domain

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrDuplicatePlayers = errors.New("players must be two distinct identities")
	ErrHandSize         = errors.New("hand size does not fit the deck")
)

// CanPlay reports whether card may be placed on top. A jack is always
// playable; an active wish replaces suit/rank matching.
func CanPlay(card, top Card, wish *Suit) bool {
	if card.Rank == Jack {
		return true
	}
	if wish != nil {
		return card.Suit == *wish
	}
	return card.Suit == top.Suit || card.Rank == top.Rank
}

// DealMauMau builds the initial state for players from seed. The same seed
// always yields the same deal. players[0] takes the first turn.
func DealMauMau(seed int64, players [2]string, handSize int) (MauMauState, error) {
	if players[0] == "" || players[1] == "" || players[0] == players[1] {
		return MauMauState{}, ErrDuplicatePlayers
	}
	if handSize <= 0 {
		handSize = DefaultHandSize
	}
	deck := ShuffleDeck(NewMauMauDeck(), rand.New(rand.NewSource(seed)))
	if 2*handSize+1 > len(deck) {
		return MauMauState{}, fmt.Errorf("%w: %d", ErrHandSize, handSize)
	}

	st := MauMauState{Players: players, Seed: seed}
	for i := range st.Hands {
		st.Hands[i] = cloneCards(deck[:handSize])
		deck = deck[handSize:]
	}
	st.DiscardPile = []Card{deck[0]}
	st.DrawPile = cloneCards(deck[1:])
	return st, nil
}

// PlayableIndices returns the hand indices player could legally play now.
func (s MauMauState) PlayableIndices(player string) []int {
	seat := s.Seat(player)
	top, ok := s.TopCard()
	if seat < 0 || !ok {
		return nil
	}
	var out []int
	for i, c := range s.Hands[seat] {
		if CanPlay(c, top, s.WishedSuit) {
			out = append(out, i)
		}
	}
	return out
}

func (s MauMauState) checkActor(actor string) (int, *Rejection) {
	if s.Finished() {
		return -1, reject(GameOver, "session already has a winner")
	}
	seat := s.Seat(actor)
	if seat < 0 {
		return -1, reject(UnknownPlayer, fmt.Sprintf("%q is not seated", actor))
	}
	if seat != s.Turn {
		return -1, reject(NotYourTurn, fmt.Sprintf("turn belongs to %s", s.TurnOwner()))
	}
	return seat, nil
}

// PlayCard validates and applies actor playing the card at cardIndex. declared
// is required for jacks and ignored otherwise. On rejection s is returned as is.
func (s MauMauState) PlayCard(actor string, cardIndex int, declared *Suit) (MauMauState, *Rejection) {
	seat, rej := s.checkActor(actor)
	if rej != nil {
		return s, rej
	}
	hand := s.Hands[seat]
	if cardIndex < 0 || cardIndex >= len(hand) {
		return s, reject(CardNotInHand, fmt.Sprintf("index %d outside hand of %d", cardIndex, len(hand)))
	}
	card := hand[cardIndex]
	if card.Rank == Jack && (declared == nil || !declared.Valid()) {
		return s, reject(MissingSuitDeclaration, "a jack needs a declared suit")
	}
	top, _ := s.TopCard()
	if !CanPlay(card, top, s.WishedSuit) {
		return s, reject(CardNotPlayable, fmt.Sprintf("%s does not follow %s", card, top))
	}

	next := s.Clone()
	next.Hands[seat] = append(next.Hands[seat][:cardIndex], next.Hands[seat][cardIndex+1:]...)
	next.DiscardPile = append(next.DiscardPile, card)
	next.LastCard[seat] = next.LastCard[seat] && len(next.Hands[seat]) == 1

	// An empty hand ends the game before any card effect.
	if len(next.Hands[seat]) == 0 {
		next.Winner = actor
		return next, nil
	}

	other := 1 - seat
	switch card.Rank {
	case Jack:
		wish := *declared
		next.WishedSuit = &wish
		next.PendingDraw = 0
		next.Turn = other
	case Seven:
		next.WishedSuit = nil
		next.PendingDraw += ForcedDrawPerCard
		next.Turn = other
	case Eight:
		next.WishedSuit = nil
		next.PendingDraw = 0
	default:
		next.WishedSuit = nil
		next.PendingDraw = 0
		next.Turn = other
	}
	return next, nil
}

// Draw gives actor cards from the draw pile and passes the turn. A pending
// forced draw overrides count; otherwise count below one draws a single card.
// Drawing is accepted even when a playable card is held.
func (s MauMauState) Draw(actor string, count int) (MauMauState, *Rejection) {
	seat, rej := s.checkActor(actor)
	if rej != nil {
		return s, rej
	}
	n := count
	if s.PendingDraw > 0 {
		n = s.PendingDraw
	} else if n < 1 {
		n = 1
	}

	next := s.Clone()
	for i := 0; i < n; i++ {
		if len(next.DrawPile) == 0 {
			next.reshuffle()
			if len(next.DrawPile) == 0 {
				break
			}
		}
		next.Hands[seat] = append(next.Hands[seat], next.DrawPile[0])
		next.DrawPile = next.DrawPile[1:]
	}
	if len(next.Hands[seat]) > 1 {
		next.LastCard[seat] = false
	}
	next.PendingDraw = 0
	next.Turn = 1 - seat
	return next, nil
}

// CallLastCard sets the courtesy flag for actor. It is not a turn move. The
// flag survives only while the hand holds exactly one card, so it is usually
// called with two cards right before playing one.
func (s MauMauState) CallLastCard(actor string) (MauMauState, *Rejection) {
	if s.Finished() {
		return s, reject(GameOver, "session already has a winner")
	}
	seat := s.Seat(actor)
	if seat < 0 {
		return s, reject(UnknownPlayer, fmt.Sprintf("%q is not seated", actor))
	}
	next := s.Clone()
	next.LastCard[seat] = true
	return next, nil
}

// reshuffle turns the discard pile minus its top card into a new draw pile.
// The order depends only on Seed and the discard contents.
func (s *MauMauState) reshuffle() {
	if len(s.DiscardPile) < 2 {
		return
	}
	rest := cloneCards(s.DiscardPile[:len(s.DiscardPile)-1])
	top := s.DiscardPile[len(s.DiscardPile)-1]
	rng := rand.New(rand.NewSource(reshuffleSeed(s.Seed, rest)))
	s.DrawPile = ShuffleDeck(rest, rng)
	s.DiscardPile = []Card{top}
	s.Reshuffles++
}
