package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/schedule"
)

// PoolDetail is the output of show pool.
type PoolDetail struct {
	Pool      ir.Pool         `json:"pool"`
	Treasury  ir.TokenAccount `json:"treasury"`
	Schedules []ir.Schedule   `json:"schedules"`
}

// ScheduleDetail is the output of show schedule.
type ScheduleDetail struct {
	View   schedule.View `json:"view"`
	Claims []ir.Claim    `json:"claims"`
}

// NewShowCommand creates the show command group.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a pool or a schedule",
	}
	cmd.AddCommand(newShowPoolCommand(rootOpts))
	cmd.AddCommand(newShowScheduleCommand(rootOpts))
	return cmd
}

func newShowPoolCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pool <company>",
		Short: "Show a pool, its treasury and its schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			treasury, err := s.engine.Account(ctx, pool.TreasuryAccount)
			if err != nil {
				return err
			}
			schedules, err := s.engine.Schedules(ctx, pool.Address)
			if err != nil {
				return err
			}

			detail := PoolDetail{Pool: pool, Treasury: treasury, Schedules: schedules}
			return rootOpts.formatter(cmd).Print(detail, func(w io.Writer) {
				printPool(w, pool)
				fmt.Fprintf(w, "  balance:   %d\n", treasury.Balance)
				fmt.Fprintf(w, "  schedules: %d\n", len(schedules))
				for _, sc := range schedules {
					fmt.Fprintf(w, "    %s  %d / %d\n", sc.Beneficiary, sc.TotalWithdrawn, sc.TotalAmount)
				}
			})
		},
	}
}

func newShowScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	var at int64

	cmd := &cobra.Command{
		Use:   "schedule <company> [beneficiary]",
		Short: "Show a schedule with its vested and claimable amounts",
		Long: `Show a schedule, what has vested and what is claimable, plus its claim log.
The beneficiary defaults to the key's identity. --at evaluates the schedule
at another unix time without changing anything.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var beneficiary ir.Address
			var err error
			if len(args) == 2 {
				beneficiary, err = parseAddress("beneficiary", args[1])
			} else {
				beneficiary, err = rootOpts.identity()
			}
			if err != nil {
				return err
			}
			_, addr, err := poolAndSchedule(args[0], beneficiary)
			if err != nil {
				return err
			}

			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			var view schedule.View
			if cmd.Flags().Changed("at") {
				sched, err := s.engine.Schedule(ctx, addr)
				if err != nil {
					return err
				}
				view, err = schedule.Evaluate(at, sched)
				if err != nil {
					return err
				}
			} else if view, err = s.engine.ScheduleView(ctx, addr); err != nil {
				return err
			}
			claims, err := s.engine.Claims(ctx, addr)
			if err != nil {
				return err
			}

			detail := ScheduleDetail{View: view, Claims: claims}
			return rootOpts.formatter(cmd).Print(detail, func(w io.Writer) {
				printView(w, view)
				printClaims(w, claims)
			})
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "evaluate at this unix time instead of now")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [company]",
		Short: "List pools, or the schedules of one pool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			out := rootOpts.formatter(cmd)
			if len(args) == 0 {
				pools, err := s.engine.Pools(ctx)
				if err != nil {
					return err
				}
				return out.Print(pools, func(w io.Writer) {
					if len(pools) == 0 {
						fmt.Fprintln(w, "No vesting pools.")
						return
					}
					for _, p := range pools {
						fmt.Fprintf(w, "%s  %s  owner %s\n", p.Address.Short(), p.CompanyName, p.Owner.Short())
					}
				})
			}

			pool, err := s.engine.PoolByName(ctx, args[0])
			if err != nil {
				return err
			}
			schedules, err := s.engine.Schedules(ctx, pool.Address)
			if err != nil {
				return err
			}
			now := s.engine.Now()
			views := make([]schedule.View, 0, len(schedules))
			for _, sc := range schedules {
				v, err := schedule.Evaluate(now, sc)
				if err != nil {
					return err
				}
				views = append(views, v)
			}
			return out.Print(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintf(w, "No schedules in %s.\n", pool.CompanyName)
					return
				}
				for _, v := range views {
					fmt.Fprintf(w, "%s  %-12s vested %d  withdrawn %d / %d  claimable %d\n",
						v.Schedule.Beneficiary.Short(), v.Status, v.Vested,
						v.Schedule.TotalWithdrawn, v.Schedule.TotalAmount, v.Claimable)
				}
			})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var mint string

	cmd := &cobra.Command{
		Use:   "balance [account]",
		Short: "Show a token account",
		Long: `Show a token account. With --mint the argument is an owner identity
(the key's identity if omitted) and its holding account for that mint is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var addr ir.Address
			var err error
			switch {
			case mint != "":
				addr, err = holdingFor(rootOpts, args, mint)
			case len(args) == 1:
				addr, err = parseAddress("account", args[0])
			default:
				err = NewExitError(ExitCommandError, "an account address or --mint is required")
			}
			if err != nil {
				return err
			}

			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			acct, err := s.engine.Account(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(acct, func(w io.Writer) {
				printAccount(w, acct)
			})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "show the owner's holding account for this mint")
	return cmd
}

func holdingFor(rootOpts *RootOptions, args []string, mint string) (ir.Address, error) {
	m, err := parseAddress("mint", mint)
	if err != nil {
		return "", err
	}
	var owner ir.Address
	if len(args) == 1 {
		owner, err = parseAddress("owner", args[0])
	} else {
		owner, err = rootOpts.identity()
	}
	if err != nil {
		return "", err
	}
	addr, err := ir.HoldingAddress(owner, m)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "derive holding account", err)
	}
	return addr, nil
}
