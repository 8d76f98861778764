package cli

import (
	"context"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/bot"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
	"duelhall/internal/ports/memory"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/spf13/cobra"
)

const (
	soloPlayer   = "you"
	soloInterval = 300 * time.Millisecond
)

// NewSoloCommand creates the solo command.
func NewSoloCommand(opts *RootOptions) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "solo",
		Short: "Play Mau-Mau against a bot, offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := bot.ParseLevel(level)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid level", err)
			}
			agent, err := bot.NewAgent(lvl, nil)
			if err != nil {
				return err
			}
			ctx, stop := interruptible(cmd)
			defer stop()

			svc := app.NewService(memory.NewStore(), nil, nil)
			svc.SetHandSize(opts.Config.HandSize)
			sess, _, err := svc.CreateMatchedSession(ctx, soloPlayer, agent.ID, domain.GameMauMau)
			if err != nil {
				return err
			}
			if err := opts.printer(cmd.OutOrStdout()).Emit(nil, "playing %s (%s)", agent.Name, lvl); err != nil {
				return err
			}

			botCtx, cancelBot := context.WithCancel(ctx)
			defer cancelBot()
			go runBot(botCtx, agent, svc, sess.ID, opts.Logger)

			c := newConsole(svc, ports.StaticIdentity(soloPlayer), soloPlayer, sess.ID, cmd.InOrStdin(), cmd.OutOrStdout(), opts.Logger)
			c.interval = soloInterval
			return c.run(ctx)
		},
	}

	cmd.Flags().StringVar(&level, "level", string(bot.LevelMedium), "bot level (easy|medium|hard)")

	return cmd
}

// runBot lets agent take its turns until the session ends or ctx is done.
func runBot(ctx context.Context, agent *bot.Agent, svc *app.Service, sessionID string, logger runtime.Logger) {
	ticker := time.NewTicker(soloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sess, err := agent.TakeTurn(ctx, svc, sessionID)
		if err != nil {
			logger.Warn("bot %s: %v", agent.ID, err)
			continue
		}
		if sess.Status == domain.StatusFinished {
			return
		}
	}
}
