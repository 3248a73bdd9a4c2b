package polystore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequiresSubcommand(t *testing.T) {
	_, _, err := Parse([]string{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "subcommand required")
}

func TestParseRunWithFlags(t *testing.T) {
	cmd, config, err := Parse([]string{"-mode", "dual_write", "-port", "9090", "-read-only", "run"})
	require.NoError(t, err)
	require.IsType(t, &RunCommand{}, cmd)
	require.Equal(t, "dual_write", config.Mode)
	require.Equal(t, "9090", config.ServerPort)
	require.True(t, config.ReadOnly)
}

func TestParseBackfillFlagsAfterSubcommand(t *testing.T) {
	cmd, _, err := Parse([]string{"backfill", "-entity-type", "account", "-batch-size", "50", "-overwrite", "-cursor", "acct-42"})
	require.NoError(t, err)

	backfill, ok := cmd.(*BackfillCommand)
	require.True(t, ok)
	require.Equal(t, "account", backfill.EntityType)
	require.Equal(t, 50, backfill.BatchSize)
	require.True(t, backfill.Overwrite)
	require.Equal(t, "acct-42", backfill.Cursor)
}

func TestParseCursorRequiresEntityType(t *testing.T) {
	_, _, err := Parse([]string{"backfill", "-cursor", "acct-42"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "-entity-type")
}

func TestParseReplay(t *testing.T) {
	cmd, _, err := Parse([]string{"replay", "-batch-size", "25"})
	require.NoError(t, err)

	replay, ok := cmd.(*ReplayCommand)
	require.True(t, ok)
	require.Equal(t, 25, replay.BatchSize)
}

func TestParseStatus(t *testing.T) {
	cmd, _, err := Parse([]string{"status"})
	require.NoError(t, err)
	require.IsType(t, &StatusCommand{}, cmd)
}

func TestParseUnknownCommand(t *testing.T) {
	_, _, err := Parse([]string{"frobnicate"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown command")
}

func TestParseRejectsSamePrimaryAndSecondary(t *testing.T) {
	_, _, err := Parse([]string{"-primary", "postgres", "-secondary", "postgres", "run"})
	require.Error(t, err)
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("POLYSTORE_MODE", "secondary_primary")
	t.Setenv("POLYSTORE_PORT", "7070")
	t.Setenv("POLYSTORE_SECONDARY_DRIVER", "none")
	t.Setenv("POLYSTORE_SECONDARY_WRITE_TIMEOUT", "750ms")
	t.Setenv("POLYSTORE_ENABLE_COMPENSATION", "false")

	_, config, err := Parse([]string{"run"})
	require.NoError(t, err)
	require.Equal(t, "secondary_primary", config.Mode)
	require.Equal(t, "7070", config.ServerPort)
	require.Equal(t, DriverNone, config.SecondaryDriver)
	require.Equal(t, "750ms", config.SecondaryWriteTimeout.String())
	require.False(t, config.EnableCompensation)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("POLYSTORE_MODE", "single_store")

	_, config, err := Parse([]string{"-mode", "dual_write", "run"})
	require.NoError(t, err)
	require.Equal(t, "dual_write", config.Mode)
}
