package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/schedule"
	"github.com/roach88/vesting/internal/store"
)

// ledgerError names a failure of a direct ledger call the way engine
// operations name theirs.
func ledgerError(err error, format string, args ...any) error {
	if ir.CodeOf(err) != "" {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ir.WrapError(ir.CodeAccountNotFound, err, "%s", msg)
	case errors.Is(err, store.ErrAddressTaken):
		return ir.WrapError(ir.CodeAccountAlreadyExists, err, "%s", msg)
	case errors.Is(err, store.ErrAuthorityMismatch):
		return ir.WrapError(ir.CodeUnauthorized, err, "%s", msg)
	default:
		return ir.WrapError(ir.CodeTransferFailed, err, "%s", msg)
	}
}

func printMint(w io.Writer, m ir.Mint) {
	fmt.Fprintf(w, "  address:   %s\n", m.Address)
	fmt.Fprintf(w, "  authority: %s\n", m.Authority)
	fmt.Fprintf(w, "  decimals:  %d\n", m.Decimals)
}

func printAccount(w io.Writer, a ir.TokenAccount) {
	fmt.Fprintf(w, "  account:   %s\n", a.Address)
	fmt.Fprintf(w, "  mint:      %s\n", a.Mint)
	fmt.Fprintf(w, "  authority: %s\n", a.Authority)
	fmt.Fprintf(w, "  balance:   %d\n", a.Balance)
}

func printPool(w io.Writer, p ir.Pool) {
	fmt.Fprintf(w, "  company:   %s\n", p.CompanyName)
	fmt.Fprintf(w, "  address:   %s\n", p.Address)
	fmt.Fprintf(w, "  owner:     %s\n", p.Owner)
	fmt.Fprintf(w, "  mint:      %s\n", p.Mint)
	fmt.Fprintf(w, "  treasury:  %s\n", p.TreasuryAccount)
	fmt.Fprintf(w, "  created:   %s\n", formatTime(p.CreatedAt))
}

func printSchedule(w io.Writer, s ir.Schedule) {
	fmt.Fprintf(w, "  schedule:    %s\n", s.Address)
	fmt.Fprintf(w, "  beneficiary: %s\n", s.Beneficiary)
	fmt.Fprintf(w, "  pool:        %s\n", s.PoolRef)
	fmt.Fprintf(w, "  start:       %s\n", formatTime(s.StartTime))
	fmt.Fprintf(w, "  cliff:       %s\n", formatTime(s.CliffTime))
	fmt.Fprintf(w, "  end:         %s\n", formatTime(s.EndTime))
	fmt.Fprintf(w, "  withdrawn:   %d / %d\n", s.TotalWithdrawn, s.TotalAmount)
}

func printView(w io.Writer, v schedule.View) {
	printSchedule(w, v.Schedule)
	fmt.Fprintf(w, "  status:      %s at %s\n", v.Status, formatTime(v.At))
	fmt.Fprintf(w, "  vested:      %d\n", v.Vested)
	fmt.Fprintf(w, "  claimable:   %d\n", v.Claimable)
}

func printClaims(w io.Writer, claims []ir.Claim) {
	if len(claims) == 0 {
		fmt.Fprintln(w, "  no claims")
		return
	}
	fmt.Fprintln(w, "  claims:")
	for _, c := range claims {
		fmt.Fprintf(w, "    %s  %-9s %d (withdrawn before %d)  op %s\n",
			formatTime(c.ClaimedAt), c.Status, c.Amount, c.WithdrawnBefore, c.OpID)
	}
}
