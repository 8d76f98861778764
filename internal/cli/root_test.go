package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "duelhall", cmd.Use)
	assert.Contains(t, cmd.Long, "Mau-Mau")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "queue", "invite", "invites", "accept", "decline", "play", "solo"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	dbFlag := serveCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// empty keeps documents in memory
	assert.Equal(t, "", dbFlag.DefValue)
	require.NotNil(t, serveCmd.Flags().Lookup("addr"))
}

func TestQueueAndSoloFlags(t *testing.T) {
	cmd := NewRootCommand()
	queueCmd, _, err := cmd.Find([]string{"queue"})
	require.NoError(t, err)
	coop := queueCmd.Flags().Lookup("cooperative")
	require.NotNil(t, coop)
	assert.Equal(t, "false", coop.DefValue)

	soloCmd, _, err := cmd.Find([]string{"solo"})
	require.NoError(t, err)
	level := soloCmd.Flags().Lookup("level")
	require.NotNil(t, level)
	assert.Equal(t, "medium", level.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "invites"})
	cmd.SetOut(new(discard))
	cmd.SetErr(new(discard))
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidGameType(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"queue", "poker"})
	cmd.SetOut(new(discard))
	cmd.SetErr(new(discard))
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	wrapped := WrapExitError(ExitCommandError, "bad config", errors.New("missing"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "bad config: missing", wrapped.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(errors.Join(errors.New("context"), wrapped)))
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
