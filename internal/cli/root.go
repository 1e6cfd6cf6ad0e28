package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/config"
	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // overrides VESTING_DB
	Key     string // overrides VESTING_KEY_FILE
	EnvFile string // read instead of ./.env

	cfg   *config.Config
	log   *zap.Logger
	clock engine.Clock // nil means the system clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vesting CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vesting",
		Short: "Token vesting pools and schedules",
		Long: `Manage company vesting pools on a local token ledger.

A company funds a pool's treasury and grants employees schedules with a
start, a cliff and an end. Employees claim what has vested; the owner
closes the pool once every schedule has been paid out.`,
		Version:       ir.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path (default from VESTING_DB)")
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "", "hex Ed25519 key file of the caller (default from VESTING_KEY_FILE)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to read instead of ./.env")

	// Add subcommands
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewCreateVestingCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewCreateEmployeeCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewCloseVestingCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and builds the logger.
// Flags win over configuration.
func (o *RootOptions) setup() error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	if o.DB == "" {
		o.DB = cfg.DB
	}
	if o.Key == "" {
		o.Key = cfg.KeyFile
	}
	o.cfg = cfg

	if o.log == nil {
		log, err := observability.NewLogger(cfg.Logger, o.Verbose)
		if err != nil {
			return WrapExitError(ExitCommandError, "create logger", err)
		}
		o.log = log
	}
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Execute runs the CLI with args, reports any error in the selected format
// and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return execute(opts, args, stdout, stderr)
}

func execute(opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if opts.log != nil {
		_ = opts.log.Sync()
	}
	if err == nil {
		return ExitSuccess
	}

	out := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		out.Writer = stdout
	}
	if !isValidFormat(opts.Format) {
		out.Format = "text"
	}
	_ = out.Fail(err)
	return GetExitCode(err)
}
