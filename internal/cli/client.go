package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/app/invite"
	"duelhall/internal/app/matchmaking"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
	"duelhall/internal/ports/httpapi"
	"duelhall/internal/ports/httpstore"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/spf13/cobra"
)

// session is a signed-in connection to the server.
type session struct {
	client  *httpstore.Client
	svc     *app.Service
	account *httpapi.DeviceAuthResponse
}

func (o *RootOptions) connect(ctx context.Context) (*session, error) {
	client := httpstore.New(o.Config.ServerURL, nil)
	account, err := client.SignInDevice(ctx, o.Device, o.Username)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "sign in to "+o.Config.ServerURL, err)
	}
	o.Logger.Debug("signed in as %s (%s)", account.Username, account.UserID)
	svc := app.NewService(client, nil, nil)
	svc.SetHandSize(o.Config.HandSize)
	return &session{client: client, svc: svc, account: account}, nil
}

func (s *session) broker(o *RootOptions) *invite.Broker {
	return invite.NewBroker(s.svc, s.client, invite.Config{TTL: o.Config.InviteTTL.Std(), Logger: o.Logger})
}

func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func parseMode(arg string) (domain.GameType, error) {
	mode, err := domain.ParseGameType(arg)
	if err != nil {
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("game type must be one of %v", domain.GameTypes), err)
	}
	return mode, nil
}

// MatchOutput is the JSON form of a found match.
type MatchOutput struct {
	SessionID    string          `json:"session_id"`
	GameMode     domain.GameType `json:"game_mode"`
	Opponent     string          `json:"opponent"`
	OpponentName string          `json:"opponent_name,omitempty"`
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	var cooperative bool

	cmd := &cobra.Command{
		Use:   "queue <game-type>",
		Short: "Wait for an anonymous opponent",
		Long: `Join the matchmaking queue and wait until paired. Interrupting the
wait leaves the queue.

By default the server pairs queued players. With --cooperative the clients
pair each other through the shared store instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseMode(args[0])
			if err != nil {
				return err
			}
			ctx, stop := interruptible(cmd)
			defer stop()
			s, err := opts.connect(ctx)
			if err != nil {
				return err
			}

			var sig *domain.MatchSignal
			if cooperative {
				coord := matchmaking.NewCoordinator(s.svc, s.client, matchmaking.Config{PairInterval: opts.Config.PairInterval.Std(), Logger: opts.Logger})
				sig, err = coord.Search(ctx, s.account.DisplayName, mode)
			} else {
				sig, err = awaitAuthority(ctx, s.client, mode, s.account.DisplayName, opts.Config.PollInterval.Std(), opts.Logger)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return WrapExitError(ExitFailure, "left the queue", err)
				}
				return err
			}
			name := sig.OpponentName
			if name == "" {
				name = sig.Opponent
			}
			return opts.printer(cmd.OutOrStdout()).Emit(
				MatchOutput{SessionID: sig.SessionID, GameMode: sig.GameMode, Opponent: sig.Opponent, OpponentName: sig.OpponentName},
				"matched with %s in session %s\nrun: duelhall play %s", name, sig.SessionID, sig.SessionID)
		},
	}

	cmd.Flags().BoolVar(&cooperative, "cooperative", false, "pair through the shared store instead of the server queue")

	return cmd
}

// awaitAuthority enqueues with the server and polls for the match signal.
// A failed poll is logged and retried on the next tick. Leaving the loop
// without a match takes the caller out of the queue.
func awaitAuthority(ctx context.Context, client *httpstore.Client, mode domain.GameType, name string, interval time.Duration, logger runtime.Logger) (*domain.MatchSignal, error) {
	resp, err := client.Enqueue(ctx, mode, name)
	if err != nil {
		return nil, err
	}
	if resp.Matched {
		return resp.Signal, nil
	}
	leave := func(cause error) error {
		if _, err := client.Cancel(context.WithoutCancel(ctx), mode); err != nil {
			return errors.Join(cause, err)
		}
		return cause
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, leave(ctx.Err())
		case <-ticker.C:
		}
		sig, err := client.Signal(ctx)
		switch {
		case err == nil && sig != nil:
			return sig, nil
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, ports.ErrNotAuthenticated):
			return nil, leave(err)
		default:
			logger.Warn("queue: signal poll failed: %v", err)
		}
	}
}

// InviteOutput is the JSON form of an invite.
type InviteOutput struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	SessionID string          `json:"session_id"`
	GameType  domain.GameType `json:"game_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Status    string          `json:"status"`
}

func inviteOutput(inv *domain.Invite) InviteOutput {
	return InviteOutput{
		ID:        inv.ID,
		From:      inv.From,
		To:        inv.To,
		SessionID: inv.SessionID,
		GameType:  inv.GameType,
		ExpiresAt: inv.ExpiresAt,
		Status:    string(inv.Status),
	}
}

// NewInviteCommand creates the invite command.
func NewInviteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <user-id> <game-type>",
		Short: "Invite a user into a new session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseMode(args[1])
			if err != nil {
				return err
			}
			ctx, stop := interruptible(cmd)
			defer stop()
			s, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			inv, sess, err := s.broker(opts).Invite(ctx, args[0], mode)
			if err != nil {
				return WrapExitError(ExitFailure, "invite failed", err)
			}
			return opts.printer(cmd.OutOrStdout()).Emit(inviteOutput(inv),
				"invited %s to %s session %s (expires %s)\nrun: duelhall play %s",
				inv.To, mode, sess.ID, inv.ExpiresAt.Local().Format(time.Kitchen), sess.ID)
		},
	}
}

// NewInvitesCommand creates the invites command.
func NewInvitesCommand(opts *RootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "invites",
		Short: "List invites waiting for an answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()
			s, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			broker := s.broker(opts)
			out := opts.printer(cmd.OutOrStdout())

			if !watch {
				list, err := broker.ListInvites(ctx)
				if err != nil {
					return err
				}
				return printInvites(out, list)
			}

			seen := make(map[string]bool)
			err = broker.Watch(ctx, opts.Config.PollInterval.Std(), func(list []*domain.Invite) {
				var fresh []*domain.Invite
				for _, inv := range list {
					if !seen[inv.ID] {
						seen[inv.ID] = true
						fresh = append(fresh, inv)
					}
				}
				if len(fresh) > 0 {
					if err := printInvites(out, fresh); err != nil {
						opts.Logger.Warn("print invites: %v", err)
					}
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and print new invites as they arrive")

	return cmd
}

func printInvites(out *OutputFormatter, list []*domain.Invite) error {
	if out.Format == "json" {
		items := make([]InviteOutput, 0, len(list))
		for _, inv := range list {
			items = append(items, inviteOutput(inv))
		}
		return out.Emit(items, "")
	}
	if len(list) == 0 {
		return out.Emit(nil, "no pending invites")
	}
	for _, inv := range list {
		from := inv.From
		if inv.FromName != "" {
			from = fmt.Sprintf("%s (%s)", inv.FromName, inv.From)
		}
		if err := out.Emit(nil, "%s  %-8s from %s, expires %s", inv.ID, inv.GameType, from, inv.ExpiresAt.Local().Format(time.Kitchen)); err != nil {
			return err
		}
	}
	return nil
}

// NewRespondCommand creates the accept or decline command.
func NewRespondCommand(opts *RootOptions, accept bool) *cobra.Command {
	use, short := "decline <invite-id>", "Decline an invite"
	if accept {
		use, short = "accept <invite-id>", "Accept an invite and start its session"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()
			s, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			inv, sess, err := s.broker(opts).Respond(ctx, args[0], accept)
			switch {
			case errors.Is(err, invite.ErrInviteNotFound), errors.Is(err, invite.ErrInviteClosed), errors.Is(err, invite.ErrInviteExpired):
				return WrapExitError(ExitFailure, "cannot answer invite "+args[0], err)
			case err != nil:
				return err
			}
			out := opts.printer(cmd.OutOrStdout())
			if sess == nil {
				return out.Emit(inviteOutput(inv), "declined invite from %s", inv.From)
			}
			return out.Emit(inviteOutput(inv), "joined session %s with %s\nrun: duelhall play %s", sess.ID, inv.From, sess.ID)
		},
	}
}
