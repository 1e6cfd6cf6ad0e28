package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
)

// NewCreateVestingCommand creates the create-vesting command.
func NewCreateVestingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-vesting <company> <mint>",
		Short: "Create a vesting pool owned by the key holder",
		Long: `Create the vesting pool for a company, with a treasury account for mint.

The company name is trimmed and NFC normalized; names that normalize to the
same string share one pool address, so only one of them can exist.`,
		Example: `  vesting create-vesting "Solana Corp" 3f1c...e9 --key owner.key`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress("mint", args[1])
			if err != nil {
				return err
			}
			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			pool, err := s.engine.CreateVesting(cmd.Context(), caller, args[0], mint)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(pool, func(w io.Writer) {
				fmt.Fprintf(w, "✓ vesting pool created for %s\n", pool.CompanyName)
				printPool(w, pool)
			})
		},
	}
}

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <company> <amount>",
		Short: "Move tokens from the owner's holding account into the treasury",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			pool, err := s.engine.PoolByName(ctx, args[0])
			if err != nil {
				return err
			}
			treasury, err := s.engine.Fund(ctx, caller, pool.Address, amount)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(treasury, func(w io.Writer) {
				fmt.Fprintf(w, "✓ funded %s with %d\n", pool.CompanyName, amount)
				printAccount(w, treasury)
			})
		},
	}
}

// NewCloseVestingCommand creates the close-vesting command.
func NewCloseVestingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close-vesting <company>",
		Short: "Close a pool once every schedule is paid out",
		Long: `Close a vesting pool. Refused with ScheduleStillActive while any
schedule has unpaid tokens, vested or not.

What is left in the treasury is returned to the owner's holding account, and
the company name becomes available again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			pool, err := s.engine.PoolByName(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := s.engine.CloseVesting(ctx, caller, pool.Address)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ vesting pool for %s closed\n", res.Pool.CompanyName)
				fmt.Fprintf(w, "  refunded:  %d\n", res.Refunded)
			})
		},
	}
}

// poolAndSchedule resolves a company name and beneficiary to addresses
// without touching the store.
func poolAndSchedule(company string, beneficiary ir.Address) (ir.Address, ir.Address, error) {
	name, err := engine.NormalizeCompanyName(company)
	if err != nil {
		return "", "", err
	}
	pool, err := ir.PoolAddress(name)
	if err != nil {
		return "", "", WrapExitError(ExitCommandError, "derive pool address", err)
	}
	sched, err := ir.ScheduleAddress(beneficiary, pool)
	if err != nil {
		return "", "", WrapExitError(ExitCommandError, "derive schedule address", err)
	}
	return pool, sched, nil
}
