package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/engine"
)

// NewCreateEmployeeCommand creates the create-employee command.
func NewCreateEmployeeCommand(rootOpts *RootOptions) *cobra.Command {
	var start, cliff, end, amount string

	cmd := &cobra.Command{
		Use:   "create-employee <company> <beneficiary>",
		Short: "Grant a beneficiary a vesting schedule in a pool",
		Long: `Grant a beneficiary a schedule. Only the pool owner may do this.

Nothing is claimable before the cliff. From the cliff on, the vested amount
grows linearly from start to end; at the end everything has vested.
Times are unix seconds or RFC 3339.`,
		Example: `  vesting create-employee "Solana Corp" 9ab0...77 \
    --start 2025-01-01T00:00:00Z --cliff 2026-01-01T00:00:00Z \
    --end 2029-01-01T00:00:00Z --amount 1000 --key owner.key`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			beneficiary, err := parseAddress("beneficiary", args[1])
			if err != nil {
				return err
			}
			params := engine.EmployeeParams{Beneficiary: beneficiary}
			if params.StartTime, err = parseTime("start", start); err != nil {
				return err
			}
			if params.CliffTime, err = parseTime("cliff", cliff); err != nil {
				return err
			}
			if params.EndTime, err = parseTime("end", end); err != nil {
				return err
			}
			if params.TotalAmount, err = parseAmount(amount); err != nil {
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
			sched, err := s.engine.CreateEmployee(ctx, caller, pool.Address, params)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(sched, func(w io.Writer) {
				fmt.Fprintf(w, "✓ schedule created in %s\n", pool.CompanyName)
				printSchedule(w, sched)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "vesting start")
	cmd.Flags().StringVar(&cliff, "cliff", "", "cliff; nothing is claimable before it")
	cmd.Flags().StringVar(&end, "end", "", "vesting end; everything is vested from here")
	cmd.Flags().StringVar(&amount, "amount", "", "total tokens granted")
	for _, name := range []string{"start", "cliff", "end", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	var beneficiary string

	cmd := &cobra.Command{
		Use:   "claim <company>",
		Short: "Claim everything vested and not yet withdrawn",
		Long: `Claim the vested, unwithdrawn tokens of a schedule into the
beneficiary's holding account. Only the beneficiary may claim.

A TransferFailed error marked retryable means the ledger outcome could not
be confirmed; run the claim again or run reconcile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			who := caller.Identity()
			if beneficiary != "" {
				if who, err = parseAddress("beneficiary", beneficiary); err != nil {
					return err
				}
			}
			pool, sched, err := poolAndSchedule(args[0], who)
			if err != nil {
				return err
			}

			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.ClaimTokens(cmd.Context(), caller, pool, sched)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ claimed %d\n", res.Claim.Amount)
				fmt.Fprintf(w, "  withdrawn: %d / %d\n", res.Schedule.TotalWithdrawn, res.Schedule.TotalAmount)
				fmt.Fprintf(w, "  claim:     %s\n", res.Claim.ID)
			})
		},
	}
	cmd.Flags().StringVar(&beneficiary, "beneficiary", "", "schedule beneficiary (default: the key's identity)")
	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Settle claims left staged by an interrupted run",
		Long: `Settle every staged claim against the ledger: claims whose transfer
applied are committed, the rest are aborted. Safe to run at any time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.engine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(report, func(w io.Writer) {
				fmt.Fprintf(w, "✓ reconciled: %d committed, %d aborted\n",
					len(report.Committed), len(report.Aborted))
				for _, c := range report.Committed {
					fmt.Fprintf(w, "  committed %s  %d\n", c.ID, c.Amount)
				}
				for _, c := range report.Aborted {
					fmt.Fprintf(w, "  aborted   %s  %d\n", c.ID, c.Amount)
				}
			})
		},
	}
}
