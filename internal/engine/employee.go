package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/schedule"
)

// EmployeeParams are the terms of a new schedule.
type EmployeeParams struct {
	Beneficiary ir.Address
	StartTime   int64
	CliffTime   int64
	EndTime     int64
	TotalAmount uint64
}

// CreateEmployee creates the schedule of p.Beneficiary in the pool.
// Only the pool owner may call it. No tokens move.
//
// Checks run in order: Unauthorized, InvalidSchedule, InvalidArgument
// (beneficiary), AccountAlreadyExists.
func (e *Engine) CreateEmployee(ctx context.Context, caller auth.Caller, poolAddr ir.Address, p EmployeeParams) (ir.Schedule, error) {
	_, log := e.begin("create_employee")

	pool, err := e.store.Pool(ctx, poolAddr)
	if err != nil {
		return ir.Schedule{}, fail(log, storeError(err, "pool %s", poolAddr.Short()))
	}
	if err := auth.Require(caller, pool.Owner, "owner"); err != nil {
		return ir.Schedule{}, fail(log, err)
	}
	if err := schedule.Validate(p.StartTime, p.CliffTime, p.EndTime, p.TotalAmount); err != nil {
		return ir.Schedule{}, fail(log, err)
	}
	beneficiary, err := ir.ParseAddress(string(p.Beneficiary))
	if err != nil {
		return ir.Schedule{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "beneficiary"))
	}

	addr, err := ir.ScheduleAddress(beneficiary, pool.Address)
	if err != nil {
		return ir.Schedule{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "derive schedule"))
	}
	sched := ir.Schedule{
		Address:     addr,
		Beneficiary: beneficiary,
		PoolRef:     pool.Address,
		StartTime:   p.StartTime,
		CliffTime:   p.CliffTime,
		EndTime:     p.EndTime,
		TotalAmount: p.TotalAmount,
		CreatedAt:   e.clock.Now(),
	}
	if err := e.store.CreateSchedule(ctx, sched); err != nil {
		return ir.Schedule{}, fail(log, storeError(err, "schedule for %s in %q", beneficiary.Short(), pool.CompanyName))
	}

	log.Info("schedule created",
		zap.String("schedule", string(sched.Address)),
		zap.String("pool", string(pool.Address)),
		zap.String("beneficiary", string(beneficiary)),
		zap.Int64("start", sched.StartTime),
		zap.Int64("cliff", sched.CliffTime),
		zap.Int64("end", sched.EndTime),
		zap.Uint64("total", sched.TotalAmount),
	)
	return sched, nil
}
