package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// PlanResult reports what ApplyPlan did.
type PlanResult struct {
	Pool        ir.Pool       `json:"pool"`
	PoolCreated bool          `json:"pool_created"`
	Created     []ir.Schedule `json:"created"`
	Skipped     []ir.Schedule `json:"skipped"`
}

// ApplyPlan brings a pool in line with a grant plan: the pool is created if
// missing, and every grant without a schedule gets one. A grant whose
// schedule already exists with identical terms is skipped, so re-applying a
// plan is a no-op. Existing schedules with different terms fail
// AccountAlreadyExists.
//
// Each grant is its own atomic operation. On error, grants before the
// failing one stay created; re-applying the fixed plan finishes the rest.
func (e *Engine) ApplyPlan(ctx context.Context, caller auth.Caller, plan ir.Plan) (PlanResult, error) {
	_, log := e.begin("apply_plan")

	name, err := NormalizeCompanyName(plan.Company)
	if err != nil {
		return PlanResult{}, fail(log, err)
	}
	poolAddr, err := ir.PoolAddress(name)
	if err != nil {
		return PlanResult{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "derive pool"))
	}

	result := PlanResult{Created: []ir.Schedule{}, Skipped: []ir.Schedule{}}
	pool, err := e.store.Pool(ctx, poolAddr)
	switch {
	case err == nil:
		if err := auth.Require(caller, pool.Owner, "owner"); err != nil {
			return PlanResult{}, fail(log, err)
		}
		if pool.Mint != plan.Mint {
			return PlanResult{}, fail(log, ir.NewError(ir.CodeInvalidArgument,
				"pool %q vests mint %s, plan names %s", name, pool.Mint.Short(), plan.Mint.Short()))
		}
	case errors.Is(err, store.ErrNotFound):
		if pool, err = e.CreateVesting(ctx, caller, name, plan.Mint); err != nil {
			return PlanResult{}, err
		}
		result.PoolCreated = true
	default:
		return PlanResult{}, fail(log, err)
	}
	result.Pool = pool

	for i, g := range plan.Grants {
		addr, err := ir.ScheduleAddress(g.Beneficiary, pool.Address)
		if err != nil {
			return result, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "grant %d", i))
		}
		existing, err := e.store.Schedule(ctx, addr)
		if err == nil {
			if !sameTerms(existing, g) {
				return result, fail(log, ir.NewError(ir.CodeAccountAlreadyExists,
					"grant %d: %s already has a schedule with different terms", i, g.Beneficiary.Short()))
			}
			result.Skipped = append(result.Skipped, existing)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return result, fail(log, err)
		}

		sched, err := e.CreateEmployee(ctx, caller, pool.Address, EmployeeParams{
			Beneficiary: g.Beneficiary,
			StartTime:   g.StartTime,
			CliffTime:   g.CliffTime,
			EndTime:     g.EndTime,
			TotalAmount: g.Amount,
		})
		if err != nil {
			return result, err
		}
		result.Created = append(result.Created, sched)
	}

	log.Info("plan applied",
		zap.String("pool", string(pool.Address)),
		zap.Bool("pool_created", result.PoolCreated),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func sameTerms(s ir.Schedule, g ir.Grant) bool {
	return s.Beneficiary == g.Beneficiary &&
		s.StartTime == g.StartTime &&
		s.CliffTime == g.CliffTime &&
		s.EndTime == g.EndTime &&
		s.TotalAmount == g.Amount
}
