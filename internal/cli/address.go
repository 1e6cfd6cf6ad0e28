package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
)

// AddressResult is the output of the address commands.
type AddressResult struct {
	Address    ir.Address    `json:"address"`
	Derivation ir.Derivation `json:"derivation"`
}

// NewAddressCommand creates the address command group. Derivations are pure
// and need no database; explain looks an address up in the index.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive or explain record addresses",
	}

	derive := func(use, short string, nargs int, seeds func(args []string) (ir.Derivation, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := seeds(args)
				if err != nil {
					return err
				}
				addr, err := d.Address()
				if err != nil {
					return WrapExitError(ExitCommandError, "derive address", err)
				}
				return printAddress(rootOpts.formatter(cmd), AddressResult{Address: addr, Derivation: d})
			},
		}
	}

	cmd.AddCommand(derive("pool <company>", "Address of a company's pool", 1, func(args []string) (ir.Derivation, error) {
		name, err := engine.NormalizeCompanyName(args[0])
		return ir.Derivation{Tag: ir.TagPool, Seeds: []string{name}}, err
	}))
	cmd.AddCommand(derive("treasury <company>", "Address of a company's treasury account", 1, func(args []string) (ir.Derivation, error) {
		name, err := engine.NormalizeCompanyName(args[0])
		return ir.Derivation{Tag: ir.TagTreasury, Seeds: []string{name}}, err
	}))
	cmd.AddCommand(derive("schedule <company> <beneficiary>", "Address of a beneficiary's schedule in a pool", 2, func(args []string) (ir.Derivation, error) {
		beneficiary, err := parseAddress("beneficiary", args[1])
		if err != nil {
			return ir.Derivation{}, err
		}
		pool, _, err := poolAndSchedule(args[0], beneficiary)
		return ir.Derivation{Tag: ir.TagSchedule, Seeds: []string{string(beneficiary), string(pool)}}, err
	}))
	cmd.AddCommand(derive("holding <owner> <mint>", "Address of an owner's holding account for a mint", 2, func(args []string) (ir.Derivation, error) {
		owner, err := parseAddress("owner", args[0])
		if err != nil {
			return ir.Derivation{}, err
		}
		mint, err := parseAddress("mint", args[1])
		return ir.Derivation{Tag: ir.TagHolding, Seeds: []string{string(owner), string(mint)}}, err
	}))
	cmd.AddCommand(derive("mint <authority> <label>", "Address of a mint", 2, func(args []string) (ir.Derivation, error) {
		authority, err := parseAddress("authority", args[0])
		return ir.Derivation{Tag: ir.TagMint, Seeds: []string{string(authority), args[1]}}, err
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "identity",
		Short: "Identity of the key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rootOpts.identity()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Print(map[string]ir.Address{"identity": id}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "explain <address>",
		Short: "Show the derivation a stored record was filed under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			s, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.engine.Resolve(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printAddress(rootOpts.formatter(cmd), AddressResult{Address: addr, Derivation: d})
		},
	})
	return cmd
}

func printAddress(out *OutputFormatter, res AddressResult) error {
	return out.Print(res, func(w io.Writer) {
		fmt.Fprintln(w, res.Address)
		out.VerboseLog("derived from %s %q", res.Derivation.Tag, res.Derivation.Seeds)
	})
}
