package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vesting", cmd.Use)
	assert.Contains(t, cmd.Long, "vesting pools")
	assert.Equal(t, ir.Version, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"mint", "create"}, {"mint", "issue"},
		{"create-vesting"}, {"fund"}, {"create-employee"}, {"claim"},
		{"close-vesting"}, {"reconcile"},
		{"show", "pool"}, {"show", "schedule"},
		{"list"}, {"balance"},
		{"address", "pool"}, {"address", "explain"}, {"address", "identity"},
		{"apply"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	for _, name := range []string{"db", "key", "env-file"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		// Empty means "take it from the configuration".
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestCreateEmployeeFlags(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"create-employee"})
	require.NoError(t, err)

	for _, name := range []string{"start", "cliff", "end", "amount"} {
		flag := sub.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"], name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.NotNil(t, testCmd.Flags().Lookup("update"))
	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
	assert.NotNil(t, testCmd.Flags().Lookup("golden"))
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestSetup_ConfigFromEnvFile(t *testing.T) {
	e := newCLIEnv(t)
	envFile := filepath.Join(e.dir, "vesting.env")
	writeFile(t, envFile, "VESTING_DB="+e.db+"\nVESTING_KEY_FILE="+e.keys["alice"]+"\n")

	opts := &RootOptions{Format: "text", EnvFile: envFile}
	require.NoError(t, opts.setup())
	assert.Equal(t, e.db, opts.DB)
	assert.Equal(t, e.keys["alice"], opts.Key)

	id, err := opts.identity()
	require.NoError(t, err)
	assert.Equal(t, e.actors["alice"].Identity(), id)

	// Flags win.
	opts = &RootOptions{Format: "text", EnvFile: envFile, DB: "other.db"}
	require.NoError(t, opts.setup())
	assert.Equal(t, "other.db", opts.DB)
}

func TestSetup_MissingEnvFile(t *testing.T) {
	opts := &RootOptions{Format: "text", EnvFile: filepath.Join(t.TempDir(), "absent.env")}
	err := opts.setup()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
