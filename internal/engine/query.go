package engine

import (
	"context"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/schedule"
	"github.com/roach88/vesting/internal/store"
)

// Read-only queries. None of them need a caller: records are public.

// Pools returns every pool.
func (e *Engine) Pools(ctx context.Context) ([]ir.Pool, error) {
	return e.store.Pools(ctx)
}

// Pool fetches a pool by address.
func (e *Engine) Pool(ctx context.Context, addr ir.Address) (ir.Pool, error) {
	pool, err := e.store.Pool(ctx, addr)
	if err != nil {
		return ir.Pool{}, storeError(err, "pool %s", addr.Short())
	}
	return pool, nil
}

// PoolByName fetches the pool for a company name.
func (e *Engine) PoolByName(ctx context.Context, companyName string) (ir.Pool, error) {
	name, err := NormalizeCompanyName(companyName)
	if err != nil {
		return ir.Pool{}, err
	}
	addr, err := ir.PoolAddress(name)
	if err != nil {
		return ir.Pool{}, ir.WrapError(ir.CodeInvalidArgument, err, "derive pool")
	}
	return e.Pool(ctx, addr)
}

// Schedules returns the schedules of a pool, or all schedules for "".
func (e *Engine) Schedules(ctx context.Context, pool ir.Address) ([]ir.Schedule, error) {
	return e.store.Schedules(ctx, pool)
}

// Schedule fetches a schedule by address.
func (e *Engine) Schedule(ctx context.Context, addr ir.Address) (ir.Schedule, error) {
	sched, err := e.store.Schedule(ctx, addr)
	if err != nil {
		return ir.Schedule{}, storeError(err, "schedule %s", addr.Short())
	}
	return sched, nil
}

// ScheduleView evaluates a schedule at the engine clock's now.
func (e *Engine) ScheduleView(ctx context.Context, addr ir.Address) (schedule.View, error) {
	sched, err := e.Schedule(ctx, addr)
	if err != nil {
		return schedule.View{}, err
	}
	return schedule.Evaluate(e.clock.Now(), sched)
}

// Claims returns the claim log of a schedule, oldest first.
func (e *Engine) Claims(ctx context.Context, sched ir.Address) ([]ir.Claim, error) {
	return e.store.Claims(ctx, store.ClaimFilter{Schedule: sched})
}

// Resolve returns the derivation a record address was filed under.
func (e *Engine) Resolve(ctx context.Context, addr ir.Address) (ir.Derivation, error) {
	d, err := e.store.ResolveAddress(ctx, addr)
	if err != nil {
		return ir.Derivation{}, storeError(err, "address %s", addr.Short())
	}
	return d, nil
}

// Account fetches a token account from the ledger.
func (e *Engine) Account(ctx context.Context, addr ir.Address) (ir.TokenAccount, error) {
	acct, err := e.ledger.Account(ctx, addr)
	if err != nil {
		return ir.TokenAccount{}, storeError(err, "account %s", addr.Short())
	}
	return acct, nil
}
