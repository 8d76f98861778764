package bot

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
	"duelhall/internal/ports/memory"
)

func TestAgent_PlayOnlyOnTurn(t *testing.T) {
	agent := &Agent{ID: "human", Strategy: &EasyBot{rng: rand.New(rand.NewSource(1))}}
	state := table([]domain.Card{card(domain.Hearts, domain.Nine)}, []domain.Card{card(domain.Hearts, domain.King)}, card(domain.Hearts, domain.Ten))

	moves, err := agent.Play(state)
	if err != nil || moves != nil {
		t.Fatalf("Expected no moves off turn, got %+v, %v", moves, err)
	}
	stranger := &Agent{ID: "carol", Strategy: agent.Strategy}
	if moves, _ := stranger.Play(state); moves != nil {
		t.Fatalf("Expected no moves for a stranger, got %+v", moves)
	}
}

func TestAgent_CallsLastCard(t *testing.T) {
	agent := &Agent{ID: "bot", Strategy: &EasyBot{rng: rand.New(rand.NewSource(1))}}
	state := table(
		[]domain.Card{card(domain.Hearts, domain.Nine), card(domain.Clubs, domain.Ace)},
		[]domain.Card{card(domain.Spades, domain.King)},
		card(domain.Hearts, domain.Ten),
	)
	moves, err := agent.Play(state)
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if len(moves) != 2 || moves[0].Kind != domain.MoveCallLastCard || moves[1].Kind != domain.MovePlay {
		t.Fatalf("Expected a last-card call then a play, got %+v", moves)
	}

	state.LastCard[0] = true
	if moves, _ := agent.Play(state); len(moves) != 1 {
		t.Fatalf("Expected no second call, got %+v", moves)
	}
}

func TestNewAgent(t *testing.T) {
	agent, err := NewAgent(LevelHard, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("NewAgent returned error: %v", err)
	}
	if agent.ID == "" || agent.Name == "" {
		t.Fatalf("Expected a named agent, got %+v", agent)
	}
	if _, ok := agent.Strategy.(*HardBot); !ok {
		t.Fatalf("Expected a HardBot, got %T", agent.Strategy)
	}
}

// Two bots play complete games through the session service.
func TestAgents_FinishGames(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 5; seed++ {
		svc := app.NewService(memory.NewStore(), ports.SystemClock{}, rand.New(rand.NewSource(seed)))
		rng := rand.New(rand.NewSource(seed * 31))
		easy, _ := NewBrain(LevelEasy, rng)
		hard, _ := NewBrain(LevelHard, rng)
		agents := map[string]*Agent{
			"easy": {ID: "easy", Strategy: easy},
			"hard": {ID: "hard", Strategy: hard},
		}

		sess, _, err := svc.CreateMatchedSession(ctx, "easy", "hard", domain.GameMauMau)
		if err != nil {
			t.Fatalf("CreateMatchedSession returned error: %v", err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for turns := 0; sess.Status == domain.StatusPlaying; turns++ {
			if turns > 2000 || time.Now().After(deadline) {
				t.Fatalf("seed %d: game did not finish", seed)
			}
			sess, err = agents[sess.TurnOwner].TakeTurn(ctx, svc, sess.ID)
			if err != nil {
				t.Fatalf("seed %d: TakeTurn returned error: %v", seed, err)
			}
		}
		if sess.Status != domain.StatusFinished || agents[sess.Winner] == nil {
			t.Fatalf("seed %d: expected a finished game with a bot winner, got %+v", seed, sess)
		}
	}
}

func TestAgent_TakeTurnRejectsOtherGames(t *testing.T) {
	ctx := context.Background()
	svc := app.NewService(memory.NewStore(), ports.SystemClock{}, rand.New(rand.NewSource(1)))
	sess, _, err := svc.CreateMatchedSession(ctx, "a", "bot", domain.GameChess)
	if err != nil {
		t.Fatalf("CreateMatchedSession returned error: %v", err)
	}
	agent, _ := NewAgent(LevelEasy, rand.New(rand.NewSource(1)))
	if _, err := agent.TakeTurn(ctx, svc, sess.ID); err == nil {
		t.Fatal("Expected an error for a chess session")
	}
}
