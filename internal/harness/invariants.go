package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// checkInvariants verifies the properties every step must preserve:
//   - tokens are conserved: for each mint, the balances of all accounts sum
//     to the amount ever minted
//   - no schedule has withdrawn more than it was granted
//   - each schedule's total_withdrawn equals the sum of its committed claims
func (h *Harness) checkInvariants(ctx context.Context) []string {
	var violations []string

	labels := make([]string, 0, len(h.mints))
	for label := range h.mints {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	journal, err := h.store.Ledger().Journal(ctx, "")
	if err != nil {
		return []string{fmt.Sprintf("read journal: %v", err)}
	}
	for _, label := range labels {
		mint := h.mints[label]
		var minted, held uint64
		for _, rec := range journal {
			if rec.Kind == "mint" && rec.Mint == mint && rec.Status == store.TransferApplied {
				minted += rec.Amount
			}
		}
		accounts, err := h.store.Ledger().Accounts(ctx, mint)
		if err != nil {
			return append(violations, fmt.Sprintf("list accounts: %v", err))
		}
		for _, a := range accounts {
			held += a.Balance
		}
		if minted != held {
			violations = append(violations, fmt.Sprintf("mint %s: %d minted but %d held", label, minted, held))
		}
	}

	schedules, err := h.store.Schedules(ctx, "")
	if err != nil {
		return append(violations, fmt.Sprintf("list schedules: %v", err))
	}
	for _, s := range schedules {
		if s.TotalWithdrawn > s.TotalAmount {
			violations = append(violations, fmt.Sprintf("schedule %s: withdrawn %d exceeds total %d",
				s.Address.Short(), s.TotalWithdrawn, s.TotalAmount))
		}
		committed, err := h.store.Claims(ctx, store.ClaimFilter{Schedule: s.Address, Status: ir.ClaimCommitted})
		if err != nil {
			return append(violations, fmt.Sprintf("list claims: %v", err))
		}
		var sum uint64
		for _, c := range committed {
			sum += c.Amount
		}
		if sum != s.TotalWithdrawn {
			violations = append(violations, fmt.Sprintf("schedule %s: withdrawn %d but committed claims sum to %d",
				s.Address.Short(), s.TotalWithdrawn, sum))
		}
	}
	return violations
}
