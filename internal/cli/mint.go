package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
)

// NewMintCommand creates the mint command group. Mints live on the local
// reference ledger; the key holder is the mint authority.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create token mints and issue tokens on the local ledger",
	}
	cmd.AddCommand(newMintCreateCommand(rootOpts))
	cmd.AddCommand(newMintIssueCommand(rootOpts))
	return cmd
}

func newMintCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var decimals uint8

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Create a mint with the key as its authority",
		Example: `  vesting mint create VEST --decimals 6 --key owner.key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, err := rootOpts.identity()
			if err != nil {
				return err
			}
			addr, err := ir.MintAddress(authority, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid label", err)
			}

			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			m := ir.Mint{Address: addr, Authority: authority, Decimals: decimals, Label: args[0]}
			if err := s.store.Ledger().CreateMint(cmd.Context(), m); err != nil {
				return ledgerError(err, "create mint %s", args[0])
			}
			return rootOpts.formatter(cmd).Print(m, func(w io.Writer) {
				fmt.Fprintf(w, "✓ mint %s created\n", m.Label)
				printMint(w, m)
			})
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "display decimals")
	return cmd
}

// IssueResult is the output of mint issue.
type IssueResult struct {
	ID      string          `json:"id"`
	Account ir.TokenAccount `json:"account"`
	Amount  uint64          `json:"amount"`
}

func newMintIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "issue <mint> <owner> <amount>",
		Short: "Mint tokens into an owner's holding account",
		Long: `Mint tokens into the holding account of owner, opening it if needed.

--id makes the issue idempotent: re-running with the same id mints nothing
more. Without it a fresh id is generated.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress("mint", args[0])
			if err != nil {
				return err
			}
			owner, err := parseAddress("owner", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			authority, err := rootOpts.identity()
			if err != nil {
				return err
			}
			if id == "" {
				id = engine.UUIDv7Generator{}.Generate()
			}

			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			ledger := s.store.Ledger()
			holding, err := ir.HoldingAddress(owner, mint)
			if err != nil {
				return WrapExitError(ExitCommandError, "derive holding account", err)
			}
			acct, err := ledger.OpenAccount(ctx, ir.TokenAccount{Address: holding, Mint: mint, Authority: owner})
			if err != nil {
				return ledgerError(err, "open holding account")
			}
			if err := ledger.MintTo(ctx, id, mint, acct.Address, amount, authority); err != nil {
				return ledgerError(err, "issue %d", amount)
			}
			if acct, err = ledger.Account(ctx, acct.Address); err != nil {
				return ledgerError(err, "read holding account")
			}

			res := IssueResult{ID: id, Account: acct, Amount: amount}
			return rootOpts.formatter(cmd).Print(res, func(w io.Writer) {
				fmt.Fprintf(w, "✓ issued %d to %s\n", amount, owner.Short())
				printAccount(w, acct)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "idempotency id for this issue")
	return cmd
}
