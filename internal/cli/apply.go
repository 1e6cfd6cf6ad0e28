package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/plan"
)

// CheckResult is the output of apply --check.
type CheckResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "apply <plan.cue>",
		Short: "Create a pool and its grants from a CUE plan",
		Long: `Apply a grant plan written in CUE. The pool is created if it does not
exist, and every grant without a schedule gets one. Re-applying a plan is a
no-op; a grant whose schedule exists with different terms fails.

--check validates the plan and reports every problem without touching the
database.

Exit codes:
  0 - Plan applied (or valid with --check)
  1 - Plan invalid or an operation was refused
  2 - Command error`,
		Example: `  vesting apply grants.cue --check
  vesting apply grants.cue --key owner.key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			path := args[0]

			if check {
				res := CheckResult{File: path, Valid: true}
				for _, err := range plan.Check(path) {
					res.Valid = false
					res.Errors = append(res.Errors, err.Error())
				}
				if err := out.Print(res, func(w io.Writer) {
					if res.Valid {
						fmt.Fprintf(w, "✓ %s is valid\n", path)
						return
					}
					fmt.Fprintf(w, "✗ %s\n", path)
					for _, e := range res.Errors {
						fmt.Fprintf(w, "  %s\n", e)
					}
				}); err != nil {
					return err
				}
				if !res.Valid {
					return NewExitError(ExitFailure, fmt.Sprintf("%d problem(s) in %s", len(res.Errors), path))
				}
				return nil
			}

			p, err := plan.Load(path)
			if err != nil {
				return WrapExitError(ExitFailure, "invalid plan", err)
			}
			out.VerboseLog("plan %s: %d grant(s) for %s", path, len(p.Grants), p.Company)

			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.ApplyPlan(cmd.Context(), caller, p)
			if err != nil {
				return err
			}
			return out.Print(res, func(w io.Writer) {
				if res.PoolCreated {
					fmt.Fprintf(w, "✓ vesting pool created for %s\n", res.Pool.CompanyName)
				}
				fmt.Fprintf(w, "✓ %d schedule(s) created, %d already present\n", len(res.Created), len(res.Skipped))
				for _, sc := range res.Created {
					fmt.Fprintf(w, "  + %s  %d\n", sc.Beneficiary, sc.TotalAmount)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "validate the plan only")
	return cmd
}
