package engine

// # Recovery and Idempotency
//
// Recovery is STRUCTURAL, not a special mode. The same settle step runs at
// the start of every claim, before every close, and from Reconcile.
//
// Three mechanisms keep a claim from paying twice:
//
// 1. Database constraint
//
//	UNIQUE(schedule, withdrawn_before) WHERE status IN ('staged', 'committed')
//
// Two live claims computed from the same total_withdrawn cannot coexist.
//
// 2. Idempotent transfer IDs
//
//	claimID := ir.TransferID("claim", schedule, withdrawn_before, amount, op_id)
//
// The ledger applies a given ID at most once, and Settle(id) either confirms
// it applied or voids it forever.
//
// 3. Re-derived totals
//
//	total_withdrawn = SUM(amount) over committed claims
//
// Computed inside the commit transaction, never incremented from memory.
//
// ## Crash windows
//
//	[stage] → crash        staged row, no transfer  → Settle voids → aborted
//	[transfer] → crash     staged row, transfer ok  → Settle applied → committed
//	[commit] → crash       same as above, or already committed
//
// After settlement the schedule is re-read and claimable recomputed from
// persisted fields, so a retried claim pays exactly what is still owed or
// fails with NothingToClaim.

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// ReconcileReport summarizes a Reconcile pass.
type ReconcileReport struct {
	Committed []ir.Claim `json:"committed"`
	Aborted   []ir.Claim `json:"aborted"`
}

// Reconcile settles every staged claim in the store. Safe to run at any
// time and any number of times.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	_, log := e.begin("reconcile")

	staged, err := e.store.Claims(ctx, store.ClaimFilter{Status: ir.ClaimStaged})
	if err != nil {
		return ReconcileReport{}, fail(log, err)
	}

	report := ReconcileReport{Committed: []ir.Claim{}, Aborted: []ir.Claim{}}
	for _, c := range staged {
		committed, err := e.settleClaim(ctx, c)
		if err != nil {
			return report, fail(log, err)
		}
		if committed {
			c.Status = ir.ClaimCommitted
			report.Committed = append(report.Committed, c)
		} else {
			c.Status = ir.ClaimAborted
			report.Aborted = append(report.Aborted, c)
		}
	}

	log.Info("reconciled",
		zap.Int("committed", len(report.Committed)),
		zap.Int("aborted", len(report.Aborted)),
	)
	return report, nil
}

// settleClaims settles every claim matching f and returns how many there were.
func (e *Engine) settleClaims(ctx context.Context, log *zap.Logger, f store.ClaimFilter) (int, error) {
	staged, err := e.store.Claims(ctx, f)
	if err != nil {
		return 0, err
	}
	for _, c := range staged {
		committed, err := e.settleClaim(ctx, c)
		if err != nil {
			return 0, err
		}
		log.Info("settled staged claim",
			zap.String("claim", c.ID),
			zap.String("claim_op_id", c.OpID),
			zap.Bool("committed", committed),
		)
	}
	return len(staged), nil
}

// settleClaim resolves one staged claim from the ledger's record of its
// transfer. Returns true if it committed.
func (e *Engine) settleClaim(ctx context.Context, c ir.Claim) (bool, error) {
	applied, err := e.ledger.Settle(ctx, c.ID)
	if err != nil {
		return false, ir.WrapError(ir.CodeTransferFailed, err, "settle claim %s", ir.Address(c.ID).Short()).
			With("retryable", "true")
	}
	if applied {
		if _, err := e.store.CommitClaim(ctx, c.ID); err != nil {
			return false, storeError(err, "commit settled claim")
		}
		return true, nil
	}
	if err := e.store.AbortClaim(ctx, c.ID); err != nil {
		return false, fmt.Errorf("abort settled claim: %w", err)
	}
	return false, nil
}
