package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/schedule"
	"github.com/roach88/vesting/internal/store"
)

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Claim    ir.Claim    `json:"claim"`
	Schedule ir.Schedule `json:"schedule"`
}

// ClaimTokens pays the beneficiary everything vested and not yet withdrawn.
//
// The claim is applied in two phases:
//  1. stage: the claim row is written with the amount and the
//     total_withdrawn it was computed from
//  2. transfer: the ledger moves the amount from the treasury, keyed by the
//     claim ID
//  3. commit: total_withdrawn is re-derived from committed claims
//
// A failed transfer is settled on the ledger. If it never applied the claim
// is aborted and nothing changed; if it applied, the claim commits anyway.
// A crash anywhere leaves at most a staged row, which the next claim on the
// schedule (or Reconcile) settles before computing anything.
func (e *Engine) ClaimTokens(ctx context.Context, caller auth.Caller, poolAddr, schedAddr ir.Address) (ClaimResult, error) {
	opID, log := e.begin("claim_tokens")
	log = log.With(zap.String("schedule", string(schedAddr)))

	sched, err := e.store.Schedule(ctx, schedAddr)
	if err != nil {
		return ClaimResult{}, fail(log, storeError(err, "schedule %s", schedAddr.Short()))
	}
	if err := auth.Require(caller, sched.Beneficiary, "beneficiary"); err != nil {
		return ClaimResult{}, fail(log, err)
	}
	if sched.PoolRef != poolAddr {
		return ClaimResult{}, fail(log, ir.NewError(ir.CodeInvalidArgument,
			"schedule %s belongs to pool %s, not %s", schedAddr.Short(), sched.PoolRef.Short(), poolAddr.Short()))
	}
	pool, err := e.store.Pool(ctx, poolAddr)
	if err != nil {
		return ClaimResult{}, fail(log, storeError(err, "pool %s", poolAddr.Short()))
	}

	// Resolve anything a previous attempt left behind, then re-read.
	settled, err := e.settleClaims(ctx, log, store.ClaimFilter{Schedule: sched.Address, Status: ir.ClaimStaged})
	if err != nil {
		return ClaimResult{}, fail(log, err)
	}
	if settled > 0 {
		if sched, err = e.store.Schedule(ctx, schedAddr); err != nil {
			return ClaimResult{}, fail(log, storeError(err, "schedule %s", schedAddr.Short()))
		}
	}

	now := e.clock.Now()
	amount, err := schedule.Claimable(now, sched)
	if err != nil {
		return ClaimResult{}, fail(log, err)
	}

	holding, err := e.openHolding(ctx, sched.Beneficiary, pool.Mint)
	if err != nil {
		return ClaimResult{}, fail(log, err)
	}

	claimID, err := ir.TransferID("claim",
		string(sched.Address),
		strconv.FormatUint(sched.TotalWithdrawn, 10),
		strconv.FormatUint(amount, 10),
		opID,
	)
	if err != nil {
		return ClaimResult{}, fail(log, err)
	}
	claim := ir.Claim{
		ID:              claimID,
		OpID:            opID,
		Schedule:        sched.Address,
		Pool:            pool.Address,
		Beneficiary:     sched.Beneficiary,
		Amount:          amount,
		WithdrawnBefore: sched.TotalWithdrawn,
		ClaimedAt:       now,
		Status:          ir.ClaimStaged,
	}

	if err := e.store.StageClaim(ctx, claim); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ClaimResult{}, fail(log, ir.WrapError(ir.CodeTransferFailed, err,
				"another claim on this schedule is in progress").With("retryable", "true"))
		}
		return ClaimResult{}, fail(log, storeError(err, "stage claim"))
	}

	req := treasury{pool: pool}.pay(claimID, holding.Address, amount)
	if terr := e.ledger.Transfer(ctx, req); terr != nil {
		applied, serr := e.ledger.Settle(ctx, claimID)
		if serr != nil {
			// Still staged; the next attempt settles it.
			return ClaimResult{}, fail(log, ir.WrapError(ir.CodeTransferFailed, errors.Join(terr, serr),
				"claim outcome unknown").With("retryable", "true"))
		}
		if !applied {
			if aerr := e.store.AbortClaim(ctx, claimID); aerr != nil {
				return ClaimResult{}, fail(log, fmt.Errorf("abort claim after %v: %w", terr, aerr))
			}
			return ClaimResult{}, fail(log, ledgerError(terr, "pay %d from treasury of %q", amount, pool.CompanyName))
		}
		log.Warn("transfer reported failure but applied", zap.Error(terr))
	}

	updated, err := e.store.CommitClaim(ctx, claimID)
	if err != nil {
		return ClaimResult{}, fail(log, storeError(err, "commit claim"))
	}
	claim.Status = ir.ClaimCommitted

	log.Info("tokens claimed",
		zap.String("beneficiary", string(sched.Beneficiary)),
		zap.Uint64("amount", amount),
		zap.Uint64("total_withdrawn", updated.TotalWithdrawn),
		zap.Uint64("total_amount", updated.TotalAmount),
		zap.Int64("now", now),
	)
	return ClaimResult{Claim: claim, Schedule: updated}, nil
}
