// Package cli implements the duelhall command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"duelhall/internal/config"
	"duelhall/internal/platform/logging"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
	Device     string
	Username   string

	// Set by the root command before any subcommand runs.
	Config *config.Config
	Logger *logging.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the duelhall CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "duelhall",
		Short: "duelhall - two-player turn-based sessions",
		Long: `Play Mau-Mau and relay board games against friends, strangers or a bot.

A server (duelhall serve) keeps the shared session documents. Clients poll
those documents, send invites and join the matchmaking queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg
			level := cfg.LogLevel
			if opts.Verbose {
				level = "debug"
			}
			opts.Logger = logging.New(level, cmd.ErrOrStderr())
			if opts.Device == "" {
				opts.Device = defaultDevice()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (JSON or YAML)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Device, "device", "", "device id used to sign in (default derived from host and user)")
	cmd.PersistentFlags().StringVar(&opts.Username, "username", "", "username for a first sign-in")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewInviteCommand(opts))
	cmd.AddCommand(NewInvitesCommand(opts))
	cmd.AddCommand(NewRespondCommand(opts, true))
	cmd.AddCommand(NewRespondCommand(opts, false))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewSoloCommand(opts))

	return cmd
}

// defaultDevice is stable per host and OS user.
func defaultDevice() string {
	host, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	return fmt.Sprintf("duelhall-%s-%s", host, user)
}

func (o *RootOptions) printer(w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w}
}
