package domain

// Default Mau-Mau table parameters.
const (
	DefaultHandSize   = 7
	ForcedDrawPerCard = 2
)

// MauMauState is the complete, self-contained game state of one Mau-Mau
// session. It is treated as an immutable value: every engine operation returns
// a fresh copy and never aliases the slices of its input.
type MauMauState struct {
	Players [2]string `json:"players"`
	Hands   [2][]Card `json:"hands"`
	// DrawPile is consumed from the front.
	DrawPile []Card `json:"draw_pile"`
	// DiscardPile keeps the active card last.
	DiscardPile []Card  `json:"discard_pile"`
	Turn        int     `json:"turn"`
	WishedSuit  *Suit   `json:"wished_suit,omitempty"`
	PendingDraw int     `json:"pending_draw,omitempty"`
	LastCard    [2]bool `json:"last_card"`
	Seed        int64   `json:"seed"`
	Reshuffles  int     `json:"reshuffles,omitempty"`
	Winner      string  `json:"winner,omitempty"`
}

// TopCard returns the active card of the discard pile.
func (s MauMauState) TopCard() (Card, bool) {
	if len(s.DiscardPile) == 0 {
		return Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// TurnOwner returns the identity allowed to move next.
func (s MauMauState) TurnOwner() string {
	return s.Players[s.Turn]
}

// Finished reports whether a player has emptied their hand.
func (s MauMauState) Finished() bool {
	return s.Winner != ""
}

// Seat returns the index of the player in Players, or -1.
func (s MauMauState) Seat(player string) int {
	for i, p := range s.Players {
		if p != "" && p == player {
			return i
		}
	}
	return -1
}

// Hand returns a copy of the player's hand.
func (s MauMauState) Hand(player string) []Card {
	seat := s.Seat(player)
	if seat < 0 {
		return nil
	}
	return cloneCards(s.Hands[seat])
}

// Opponent returns the other participant.
func (s MauMauState) Opponent(player string) string {
	switch s.Seat(player) {
	case 0:
		return s.Players[1]
	case 1:
		return s.Players[0]
	default:
		return ""
	}
}

// Clone returns a deep copy.
func (s MauMauState) Clone() MauMauState {
	out := s
	out.Hands[0] = cloneCards(s.Hands[0])
	out.Hands[1] = cloneCards(s.Hands[1])
	out.DrawPile = cloneCards(s.DrawPile)
	out.DiscardPile = cloneCards(s.DiscardPile)
	if s.WishedSuit != nil {
		w := *s.WishedSuit
		out.WishedSuit = &w
	}
	return out
}
