package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"duelhall/internal/domain"
)

type commandKind int

const (
	cmdMove commandKind = iota
	cmdResign
	cmdShow
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	move domain.Move
}

const mauMauHelp = `commands:
  play N [suit]   play the N-th card of your hand; jacks need a suit
  draw            draw (takes any pending forced draw)
  mau             announce your last card
  show            print the table again
  resign          give up the session
  quit            leave without resigning`

const relayHelp = `commands:
  position JSON [winner]   send the new position, optionally declaring the winner
  show                     print the table again
  resign                   give up the session
  quit                     leave without resigning`

func helpFor(game domain.GameType) string {
	if game == domain.GameMauMau {
		return mauMauHelp
	}
	return relayHelp
}

// parseCommand reads one console line for a session of game.
func parseCommand(line string, game domain.GameType) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdShow}, nil
	}
	switch strings.ToLower(fields[0]) {
	case "show":
		return command{kind: cmdShow}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	case "resign":
		return command{kind: cmdResign}, nil
	}

	if game != domain.GameMauMau {
		if strings.ToLower(fields[0]) != "position" || len(fields) < 2 {
			return command{}, fmt.Errorf("expected: position JSON [winner]")
		}
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		dec := json.NewDecoder(strings.NewReader(rest))
		var position json.RawMessage
		if err := dec.Decode(&position); err != nil {
			return command{}, fmt.Errorf("position is not valid JSON")
		}
		winner := strings.TrimSpace(rest[dec.InputOffset():])
		if strings.ContainsAny(winner, " \t") {
			return command{}, fmt.Errorf("expected: position JSON [winner]")
		}
		return command{kind: cmdMove, move: domain.Move{Kind: domain.MovePosition, Position: position, Winner: winner}}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "draw":
		return command{kind: cmdMove, move: domain.Move{Kind: domain.MoveDraw}}, nil
	case "mau":
		return command{kind: cmdMove, move: domain.Move{Kind: domain.MoveCallLastCard}}, nil
	case "play":
		if len(fields) < 2 {
			return command{}, fmt.Errorf("expected: play N [suit]")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return command{}, fmt.Errorf("card number must be 1 or more")
		}
		move := domain.Move{Kind: domain.MovePlay, CardIndex: n - 1}
		if len(fields) > 2 {
			suit, err := domain.ParseSuit(strings.ToLower(fields[2]))
			if err != nil {
				return command{}, err
			}
			move.Suit = &suit
		}
		return command{kind: cmdMove, move: move}, nil
	}
	return command{}, fmt.Errorf("unknown command %q, try help", fields[0])
}

// render prints sess from the point of view of me.
func render(w io.Writer, sess *domain.Session, me string) {
	if sess == nil {
		fmt.Fprintln(w, "no session")
		return
	}
	fmt.Fprintf(w, "session %s (%s) %s\n", sess.ID, sess.GameType, sess.Status)
	switch sess.Status {
	case domain.StatusWaiting:
		fmt.Fprintln(w, "waiting for an opponent")
		return
	case domain.StatusFinished:
		if sess.Winner == me {
			fmt.Fprintln(w, "you won")
		} else {
			fmt.Fprintf(w, "%s won\n", sess.Winner)
		}
		return
	}

	if sess.LastMove != nil && sess.LastMove.Player != me {
		switch {
		case sess.LastMove.Card != nil:
			fmt.Fprintf(w, "opponent played %s\n", sess.LastMove.Card)
		default:
			fmt.Fprintf(w, "opponent: %s\n", sess.LastMove.Kind)
		}
	}

	if sess.GameType == domain.GameMauMau {
		renderMauMau(w, sess, me)
	} else if st, err := domain.DecodeRelay(sess.State); err == nil {
		fmt.Fprintf(w, "ply %d position %s\n", st.Ply, st.Position)
	}
	if sess.TurnOwner == me {
		fmt.Fprintln(w, "your turn")
	} else {
		fmt.Fprintln(w, "opponent's turn")
	}
}

func renderMauMau(w io.Writer, sess *domain.Session, me string) {
	st, err := domain.DecodeMauMau(sess.State)
	if err != nil {
		fmt.Fprintf(w, "unreadable state: %v\n", err)
		return
	}
	if top, ok := st.TopCard(); ok {
		fmt.Fprintf(w, "top: %s", top)
		if st.WishedSuit != nil {
			fmt.Fprintf(w, "  wish: %s", st.WishedSuit)
		}
		if st.PendingDraw > 0 {
			fmt.Fprintf(w, "  draw pending: %d", st.PendingDraw)
		}
		fmt.Fprintln(w)
	}
	opp := st.Opponent(me)
	fmt.Fprintf(w, "opponent holds %d, draw pile %d\n", len(st.Hand(opp)), len(st.DrawPile))

	playable := make(map[int]bool)
	if st.TurnOwner() == me {
		for _, i := range st.PlayableIndices(me) {
			playable[i] = true
		}
	}
	for i, c := range st.Hand(me) {
		mark := " "
		if playable[i] {
			mark = "*"
		}
		fmt.Fprintf(w, " %s%2d %s\n", mark, i+1, c)
	}
}
