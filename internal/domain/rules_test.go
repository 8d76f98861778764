package domain

import (
	"reflect"
	"testing"
)

func card(s Suit, r Rank) Card { return Card{Suit: s, Rank: r} }

func suitPtr(s Suit) *Suit { return &s }

func table(alice, bob []Card, top Card, draw []Card) MauMauState {
	return MauMauState{
		Players:     [2]string{"alice", "bob"},
		Hands:       [2][]Card{alice, bob},
		DiscardPile: []Card{top},
		DrawPile:    draw,
		Seed:        42,
	}
}

func TestDealMauMau(t *testing.T) {
	players := [2]string{"alice", "bob"}
	a, err := DealMauMau(7, players, 0)
	if err != nil {
		t.Fatalf("DealMauMau returned error: %v", err)
	}
	b, _ := DealMauMau(7, players, 0)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Expected identical deals for the same seed")
	}

	if len(a.Hands[0]) != DefaultHandSize || len(a.Hands[1]) != DefaultHandSize {
		t.Fatalf("Expected hands of %d, got %d and %d", DefaultHandSize, len(a.Hands[0]), len(a.Hands[1]))
	}
	if len(a.DiscardPile) != 1 {
		t.Fatalf("Expected one flipped card, got %d", len(a.DiscardPile))
	}
	if a.TurnOwner() != "alice" {
		t.Fatalf("Expected initiator to start, got %s", a.TurnOwner())
	}

	seen := map[Card]bool{}
	all := append(append(append(append([]Card{}, a.Hands[0]...), a.Hands[1]...), a.DrawPile...), a.DiscardPile...)
	for _, c := range all {
		if seen[c] {
			t.Fatalf("Card %s dealt twice", c)
		}
		seen[c] = true
	}
	if len(seen) != 32 {
		t.Fatalf("Expected 32 distinct cards, got %d", len(seen))
	}

	c, _ := DealMauMau(8, players, 0)
	if reflect.DeepEqual(a.DrawPile, c.DrawPile) {
		t.Fatal("Expected different seeds to produce different draw piles")
	}
}

func TestDealMauMau_RejectsBadInput(t *testing.T) {
	if _, err := DealMauMau(1, [2]string{"alice", "alice"}, 0); err == nil {
		t.Fatal("Expected error for duplicate players")
	}
	if _, err := DealMauMau(1, [2]string{"alice", ""}, 0); err == nil {
		t.Fatal("Expected error for missing player")
	}
	if _, err := DealMauMau(1, [2]string{"alice", "bob"}, 16); err == nil {
		t.Fatal("Expected error for oversized hands")
	}
}

func TestPlayCard_Rejections(t *testing.T) {
	base := table(
		[]Card{card(Hearts, Nine), card(Spades, Jack), card(Clubs, King)},
		[]Card{card(Diamonds, Ten)},
		card(Hearts, Queen),
		[]Card{card(Clubs, Seven)},
	)
	wished := base.Clone()
	wished.WishedSuit = suitPtr(Diamonds)
	finished := base.Clone()
	finished.Winner = "bob"

	tests := []struct {
		name     string
		state    MauMauState
		actor    string
		index    int
		declared *Suit
		want     RejectionKind
	}{
		{"wrong turn", base, "bob", 0, nil, NotYourTurn},
		{"stranger", base, "mallory", 0, nil, UnknownPlayer},
		{"index past hand", base, "alice", 3, nil, CardNotInHand},
		{"negative index", base, "alice", -1, nil, CardNotInHand},
		{"no suit or rank match", base, "alice", 2, nil, CardNotPlayable},
		{"jack without suit", base, "alice", 1, nil, MissingSuitDeclaration},
		{"suit match ignored under wish", wished, "alice", 0, nil, CardNotPlayable},
		{"game over", finished, "alice", 0, nil, GameOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state.Clone()
			got, rej := tt.state.PlayCard(tt.actor, tt.index, tt.declared)
			if rej == nil {
				t.Fatalf("Expected %s rejection, got success", tt.want)
			}
			if rej.Kind != tt.want {
				t.Fatalf("Expected %s, got %s", tt.want, rej.Kind)
			}
			if !reflect.DeepEqual(got, before) || !reflect.DeepEqual(tt.state, before) {
				t.Fatal("Expected state to be unchanged by a rejection")
			}
		})
	}
}

func TestPlayCard_Effects(t *testing.T) {
	tests := []struct {
		name        string
		hand        []Card
		top         Card
		wish        *Suit
		pending     int
		index       int
		declared    *Suit
		wantTurn    string
		wantPending int
		wantWish    *Suit
	}{
		{"suit match passes turn", []Card{card(Hearts, Nine), card(Clubs, Ace)}, card(Hearts, King), nil, 0, 0, nil, "bob", 0, nil},
		{"rank match passes turn", []Card{card(Spades, King), card(Clubs, Ace)}, card(Hearts, King), nil, 0, 0, nil, "bob", 0, nil},
		{"seven forces a draw", []Card{card(Hearts, Seven), card(Clubs, Ace)}, card(Hearts, King), nil, 0, 0, nil, "bob", 2, nil},
		{"seven stacks", []Card{card(Hearts, Seven), card(Clubs, Ace)}, card(Spades, Seven), nil, 2, 0, nil, "bob", 4, nil},
		{"plain card discharges penalty", []Card{card(Spades, Nine), card(Clubs, Ace)}, card(Spades, Seven), nil, 4, 0, nil, "bob", 0, nil},
		{"eight keeps the turn", []Card{card(Hearts, Eight), card(Clubs, Ace)}, card(Hearts, King), nil, 0, 0, nil, "alice", 0, nil},
		{"jack sets the wish", []Card{card(Clubs, Jack), card(Clubs, Ace)}, card(Hearts, King), nil, 0, 0, suitPtr(Diamonds), "bob", 0, suitPtr(Diamonds)},
		{"jack replaces a wish", []Card{card(Clubs, Jack), card(Clubs, Ace)}, card(Hearts, Jack), suitPtr(Spades), 0, 0, suitPtr(Hearts), "bob", 0, suitPtr(Hearts)},
		{"wish honoured then cleared", []Card{card(Spades, Nine), card(Clubs, Ace)}, card(Hearts, Jack), suitPtr(Spades), 0, 0, nil, "bob", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := table(tt.hand, []Card{card(Diamonds, Ten), card(Diamonds, Nine)}, tt.top, []Card{card(Clubs, Eight)})
			st.WishedSuit = tt.wish
			st.PendingDraw = tt.pending

			next, rej := st.PlayCard("alice", tt.index, tt.declared)
			if rej != nil {
				t.Fatalf("PlayCard rejected: %v", rej)
			}
			if next.TurnOwner() != tt.wantTurn {
				t.Fatalf("Expected turn %s, got %s", tt.wantTurn, next.TurnOwner())
			}
			if next.PendingDraw != tt.wantPending {
				t.Fatalf("Expected pending draw %d, got %d", tt.wantPending, next.PendingDraw)
			}
			if !reflect.DeepEqual(next.WishedSuit, tt.wantWish) {
				t.Fatalf("Expected wish %v, got %v", tt.wantWish, next.WishedSuit)
			}
			if len(next.Hands[0]) != len(tt.hand)-1 {
				t.Fatalf("Expected hand to shrink by one, got %d", len(next.Hands[0]))
			}
			if len(next.DiscardPile) != len(st.DiscardPile)+1 {
				t.Fatalf("Expected discard to grow by one, got %d", len(next.DiscardPile))
			}
			if top, _ := next.TopCard(); top != tt.hand[tt.index] {
				t.Fatalf("Expected %s on top, got %s", tt.hand[tt.index], top)
			}
			if len(st.Hands[0]) != len(tt.hand) {
				t.Fatal("Expected input state to stay untouched")
			}
		})
	}
}

func TestPlayCard_ForcedDrawAccumulatesAcrossPlayers(t *testing.T) {
	st := table(
		[]Card{card(Hearts, Seven), card(Spades, Nine), card(Clubs, Ace)},
		[]Card{card(Spades, Seven), card(Diamonds, Ten)},
		card(Hearts, King),
		[]Card{card(Clubs, Eight), card(Clubs, Nine), card(Clubs, Ten)},
	)

	st, rej := st.PlayCard("alice", 0, nil)
	if rej != nil || st.PendingDraw != 2 {
		t.Fatalf("Expected pending 2 after first seven, got %d (%v)", st.PendingDraw, rej)
	}
	st, rej = st.PlayCard("bob", 0, nil)
	if rej != nil || st.PendingDraw != 4 {
		t.Fatalf("Expected pending 4 after second seven, got %d (%v)", st.PendingDraw, rej)
	}
	st, rej = st.PlayCard("alice", 0, nil)
	if rej != nil {
		t.Fatalf("Expected nine of spades to follow, got %v", rej)
	}
	if st.PendingDraw != 0 {
		t.Fatalf("Expected penalty discharged, got %d", st.PendingDraw)
	}
}

func TestPlayCard_EmptyHandWinsBeforeEffects(t *testing.T) {
	st := table([]Card{card(Hearts, Eight)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), nil)

	next, rej := st.PlayCard("alice", 0, nil)
	if rej != nil {
		t.Fatalf("PlayCard rejected: %v", rej)
	}
	if !next.Finished() || next.Winner != "alice" {
		t.Fatalf("Expected alice to win, got winner %q", next.Winner)
	}
	if _, rej := next.PlayCard("alice", 0, nil); rej == nil || rej.Kind != GameOver {
		t.Fatalf("Expected GameOver after the win, got %v", rej)
	}
	if _, rej := next.Draw("alice", 1); rej == nil || rej.Kind != GameOver {
		t.Fatalf("Expected GameOver for draw after the win, got %v", rej)
	}
}

func TestDraw(t *testing.T) {
	t.Run("single card passes turn", func(t *testing.T) {
		st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King),
			[]Card{card(Clubs, Eight), card(Clubs, Nine)})
		st.LastCard[0] = true

		next, rej := st.Draw("alice", 0)
		if rej != nil {
			t.Fatalf("Draw rejected: %v", rej)
		}
		if len(next.Hands[0]) != 2 || next.Hands[0][1] != card(Clubs, Eight) {
			t.Fatalf("Expected the front of the pile drawn, got %v", next.Hands[0])
		}
		if next.TurnOwner() != "bob" {
			t.Fatalf("Expected turn to pass, got %s", next.TurnOwner())
		}
		if next.LastCard[0] {
			t.Fatal("Expected last-card flag reset once the hand grew")
		}
	})

	t.Run("pending penalty overrides count", func(t *testing.T) {
		st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, Seven),
			[]Card{card(Clubs, Eight), card(Clubs, Nine), card(Clubs, Ten), card(Clubs, Queen), card(Clubs, King)})
		st.PendingDraw = 4

		next, rej := st.Draw("alice", 1)
		if rej != nil {
			t.Fatalf("Draw rejected: %v", rej)
		}
		if len(next.Hands[0]) != 5 {
			t.Fatalf("Expected 4 penalty cards drawn, hand is %d", len(next.Hands[0]))
		}
		if next.PendingDraw != 0 {
			t.Fatalf("Expected penalty cleared, got %d", next.PendingDraw)
		}
	})

	t.Run("allowed while holding a playable card", func(t *testing.T) {
		st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), []Card{card(Clubs, Eight)})
		if _, rej := st.Draw("alice", 1); rej != nil {
			t.Fatalf("Expected draw to be accepted, got %v", rej)
		}
	})

	t.Run("not your turn", func(t *testing.T) {
		st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), []Card{card(Clubs, Eight)})
		if _, rej := st.Draw("bob", 1); rej == nil || rej.Kind != NotYourTurn {
			t.Fatalf("Expected NotYourTurn, got %v", rej)
		}
	})
}

func TestDraw_ReshufflesDiscardExceptTop(t *testing.T) {
	st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), nil)
	st.DiscardPile = []Card{card(Spades, Eight), card(Spades, Ace), card(Diamonds, Queen), card(Hearts, King)}

	next, rej := st.Draw("alice", 1)
	if rej != nil {
		t.Fatalf("Draw rejected: %v", rej)
	}
	if len(next.DiscardPile) != 1 || next.DiscardPile[0] != card(Hearts, King) {
		t.Fatalf("Expected only the top card left on the discard pile, got %v", next.DiscardPile)
	}
	if len(next.DrawPile) != 2 {
		t.Fatalf("Expected 2 cards left to draw, got %d", len(next.DrawPile))
	}
	if len(next.Hands[0]) != 2 {
		t.Fatalf("Expected one card drawn, hand is %d", len(next.Hands[0]))
	}
	if next.Reshuffles != 1 {
		t.Fatalf("Expected one reshuffle, got %d", next.Reshuffles)
	}

	again, _ := st.Draw("alice", 1)
	if !reflect.DeepEqual(next, again) {
		t.Fatal("Expected reshuffle to be reproducible from the same discard pile")
	}

	drawn := append(append([]Card{}, next.DrawPile...), next.Hands[0][1])
	want := map[Card]bool{card(Spades, Eight): true, card(Spades, Ace): true, card(Diamonds, Queen): true}
	for _, c := range drawn {
		if !want[c] {
			t.Fatalf("Unexpected card %s after reshuffle", c)
		}
		delete(want, c)
	}
}

func TestDraw_EmptyTableDrawsNothing(t *testing.T) {
	st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), nil)

	next, rej := st.Draw("alice", 2)
	if rej != nil {
		t.Fatalf("Draw rejected: %v", rej)
	}
	if len(next.Hands[0]) != 1 {
		t.Fatalf("Expected no cards to draw, hand is %d", len(next.Hands[0]))
	}
	if next.TurnOwner() != "bob" {
		t.Fatalf("Expected turn to pass anyway, got %s", next.TurnOwner())
	}
}

func TestCallLastCard(t *testing.T) {
	st := table([]Card{card(Hearts, Nine)}, []Card{card(Diamonds, Ten)}, card(Hearts, King), nil)

	next, rej := st.CallLastCard("bob")
	if rej != nil {
		t.Fatalf("CallLastCard rejected: %v", rej)
	}
	if !next.LastCard[1] || next.LastCard[0] {
		t.Fatalf("Expected only bob flagged, got %v", next.LastCard)
	}
	if next.TurnOwner() != "alice" {
		t.Fatal("Expected the call not to touch the turn")
	}
	if _, rej := st.CallLastCard("mallory"); rej == nil || rej.Kind != UnknownPlayer {
		t.Fatalf("Expected UnknownPlayer, got %v", rej)
	}
}

func TestPlayCard_LastCardFlagNeedsOneCardLeft(t *testing.T) {
	tests := []struct {
		name string
		hand []Card
		want bool
	}{
		{"two cards leave one", []Card{card(Hearts, Nine), card(Clubs, Ace)}, true},
		{"three cards leave two", []Card{card(Hearts, Nine), card(Clubs, Ace), card(Spades, Ten)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := table(tt.hand, []Card{card(Diamonds, Ten)}, card(Hearts, King), nil)
			called, rej := st.CallLastCard("alice")
			if rej != nil {
				t.Fatalf("CallLastCard rejected: %v", rej)
			}
			next, rej := called.PlayCard("alice", 0, nil)
			if rej != nil {
				t.Fatalf("PlayCard rejected: %v", rej)
			}
			if next.LastCard[0] != tt.want {
				t.Fatalf("Expected flag %v with %d cards in hand, got %v", tt.want, len(next.Hands[0]), next.LastCard[0])
			}
		})
	}
}

func TestPlayableMovesAlwaysSucceed(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		st, err := DealMauMau(seed, [2]string{"alice", "bob"}, 0)
		if err != nil {
			t.Fatalf("DealMauMau(%d) returned error: %v", seed, err)
		}
		for _, idx := range st.PlayableIndices("alice") {
			var declared *Suit
			if st.Hands[0][idx].Rank == Jack {
				declared = suitPtr(Clubs)
			}
			next, rej := st.PlayCard("alice", idx, declared)
			if rej != nil {
				t.Fatalf("seed %d index %d: playable card rejected: %v", seed, idx, rej)
			}
			if len(next.Hands[0]) != len(st.Hands[0])-1 || len(next.DiscardPile) != len(st.DiscardPile)+1 {
				t.Fatalf("seed %d index %d: expected one card moved to the discard pile", seed, idx)
			}
		}
	}
}
