package bot

import (
	"context"
	"fmt"

	"duelhall/internal/app"
	"duelhall/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// Play asks the agent for its moves on state. It returns nil when the agent
// is not seated, not on turn, or the game is over. A play that leaves one
// card in hand is preceded by a last-card call.
func (a *Agent) Play(state domain.MauMauState) ([]domain.Move, error) {
	seat := state.Seat(a.ID)
	if seat < 0 || state.Finished() || state.TurnOwner() != a.ID {
		return nil, nil
	}
	move, err := a.Strategy.CalculateMove(state, a.ID)
	if err != nil {
		return nil, err
	}
	var moves []domain.Move
	if !move.Draw && len(state.Hands[seat]) == 2 && !state.LastCard[seat] {
		moves = append(moves, domain.Move{Kind: domain.MoveCallLastCard})
	}
	return append(moves, move.ToDomain()), nil
}

// TakeTurn plays the agent's turn in a Mau-Mau session through svc. The
// session is returned unchanged when it is not the agent's turn.
func (a *Agent) TakeTurn(ctx context.Context, svc *app.Service, sessionID string) (*domain.Session, error) {
	sess, err := svc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.GameType != domain.GameMauMau {
		return nil, fmt.Errorf("bot cannot play %s", sess.GameType)
	}
	if sess.Status != domain.StatusPlaying || sess.TurnOwner != a.ID {
		return sess, nil
	}
	state, err := domain.DecodeMauMau(sess.State)
	if err != nil {
		return nil, err
	}
	moves, err := a.Play(state)
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		next, events, err := svc.ApplyMove(ctx, sess, a.ID, m)
		if err != nil {
			return nil, fmt.Errorf("bot %s move %s: %w", a.ID, m.Kind, err)
		}
		for _, e := range events {
			a.OnGameEvent(e)
		}
		sess = next
	}
	return sess, nil
}

// OnGameEvent notifies the agent of a game event.
func (a *Agent) OnGameEvent(event interface{}) {
	a.Strategy.OnEvent(event)
}
