package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/app/syncer"
	"duelhall/internal/domain"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/spf13/cobra"
)

// NewPlayCommand creates the play command.
func NewPlayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play <session-id>",
		Short: "Play a session interactively",
		Long: `Follow a session and send moves from the terminal. The table is printed
whenever the opponent moves. Type help for the commands of the game.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()
			s, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			c := newConsole(s.svc, s.client, s.account.UserID, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), opts.Logger)
			c.interval = opts.Config.PollInterval.Std()
			return c.run(ctx)
		},
	}
}

// console drives one session from line-based input.
type console struct {
	svc       *app.Service
	identity  ports.IdentityProvider
	me        string
	sessionID string
	interval  time.Duration
	in        io.Reader
	out       io.Writer
	logger    runtime.Logger

	mu       sync.Mutex
	finished chan struct{}
	once     sync.Once
}

func newConsole(svc *app.Service, identity ports.IdentityProvider, me, sessionID string, in io.Reader, out io.Writer, logger runtime.Logger) *console {
	return &console{
		svc:       svc,
		identity:  identity,
		me:        me,
		sessionID: sessionID,
		in:        in,
		out:       out,
		logger:    logger,
		finished:  make(chan struct{}),
	}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) show(sess *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	render(c.out, sess, c.me)
}

func (c *console) onUpdate(u syncer.Update) {
	switch u.Kind {
	case syncer.SessionChanged:
		c.show(u.Session)
		if u.Session.Status == domain.StatusFinished {
			c.once.Do(func() { close(c.finished) })
		}
	case syncer.MoveRejected:
		c.printf("rejected: %s\n", u.Rejection.Message)
	case syncer.RaceLost:
		c.printf("the opponent moved first, refreshing\n")
	case syncer.PollFailed:
		c.printf("connection problem: %v\n", u.Err)
	}
}

// run polls the session and applies console commands until the session
// finishes, input ends, the user quits or ctx is done.
func (c *console) run(ctx context.Context) error {
	sess, err := c.svc.GetSession(ctx, c.sessionID)
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			return WrapExitError(ExitFailure, "no session "+c.sessionID, err)
		}
		return err
	}
	if !sess.IsParticipant(c.me) {
		return WrapExitError(ExitFailure, "not a participant of session "+c.sessionID, app.ErrNotParticipant)
	}
	game := sess.GameType

	follower := syncer.New(c.svc, c.identity, c.sessionID, syncer.Config{Interval: c.interval, Listener: c.onUpdate, Logger: c.logger})
	if err := follower.Start(ctx); err != nil {
		return err
	}
	defer follower.Stop()
	if err := follower.Poll(ctx); err != nil {
		return err
	}
	c.printf("type help for commands\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.finished:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.handle(ctx, follower, game, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// handle applies one input line. Rule violations and lost races are shown
// through the listener; only authentication failures end the console.
func (c *console) handle(ctx context.Context, follower *syncer.Synchronizer, game domain.GameType, line string) (bool, error) {
	cmd, err := parseCommand(line, game)
	if err != nil {
		c.printf("%v\n", err)
		return false, nil
	}
	switch cmd.kind {
	case cmdQuit:
		return true, nil
	case cmdHelp:
		c.printf("%s\n", helpFor(game))
	case cmdShow:
		c.show(follower.View())
	case cmdResign:
		if _, _, err := c.svc.Resign(ctx, c.sessionID, c.me); err != nil {
			c.printf("cannot resign: %v\n", err)
			return false, nil
		}
		if err := follower.Poll(ctx); err != nil {
			c.printf("connection problem: %v\n", err)
		}
	case cmdMove:
		if _, err := follower.Submit(ctx, cmd.move); errors.Is(err, ports.ErrNotAuthenticated) {
			return true, err
		}
	}
	return false, nil
}
