package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
)

func TestCreateEmployee(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)

	sched := f.grant(pool, f.alice, 1000)
	assert.Equal(t, ir.MustDerive(ir.TagSchedule, string(f.alice.Identity()), string(pool.Address)), sched.Address)
	assert.Equal(t, pool.Address, sched.PoolRef)
	assert.Zero(t, sched.TotalWithdrawn)
	assert.Equal(t, T, sched.CreatedAt)

	stored, err := f.engine.Schedule(f.ctx, sched.Address)
	require.NoError(t, err)
	assert.Equal(t, sched, stored)

	assert.Zero(t, f.treasuryBalance(pool), "creating a schedule moves no tokens")
}

func TestCreateEmployee_Rejects(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)
	valid := EmployeeParams{
		Beneficiary: f.alice.Identity(),
		StartTime:   T,
		CliffTime:   T + 10,
		EndTime:     T + 100,
		TotalAmount: 1000,
	}
	with := func(mod func(p *EmployeeParams)) EmployeeParams {
		p := valid
		mod(&p)
		return p
	}
	missingPool := ir.MustDerive(ir.TagPool, "Nobody Inc")

	tests := []struct {
		name   string
		caller auth.Caller
		pool   ir.Address
		params EmployeeParams
		want   error
	}{
		{"not the owner", f.mallory.MustCaller(), pool.Address, valid, ir.ErrUnauthorized},
		{"beneficiary cannot self-grant", f.alice.MustCaller(), pool.Address, valid, ir.ErrUnauthorized},
		{"anonymous", auth.Caller{}, pool.Address, valid, ir.ErrUnauthorized},
		{"unknown pool", f.owner.MustCaller(), missingPool, valid, ir.ErrAccountNotFound},
		{"cliff before start", f.owner.MustCaller(), pool.Address,
			with(func(p *EmployeeParams) { p.CliffTime = T - 1 }), ir.ErrInvalidSchedule},
		{"end before cliff", f.owner.MustCaller(), pool.Address,
			with(func(p *EmployeeParams) { p.EndTime = T + 9 }), ir.ErrInvalidSchedule},
		{"zero amount", f.owner.MustCaller(), pool.Address,
			with(func(p *EmployeeParams) { p.TotalAmount = 0 }), ir.ErrInvalidSchedule},
		{"malformed beneficiary", f.owner.MustCaller(), pool.Address,
			with(func(p *EmployeeParams) { p.Beneficiary = "alice" }), ir.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateEmployee(f.ctx, tt.caller, tt.pool, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	scheds, err := f.engine.Schedules(f.ctx, pool.Address)
	require.NoError(t, err)
	assert.Empty(t, scheds, "rejected calls create no record")
}

func TestCreateEmployee_UnauthorizedBeforeInvalid(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)

	_, err := f.engine.CreateEmployee(f.ctx, f.mallory.MustCaller(), pool.Address, EmployeeParams{
		Beneficiary: f.alice.Identity(),
		StartTime:   T,
		CliffTime:   T - 1,
		EndTime:     T - 2,
	})
	assert.ErrorIs(t, err, ir.ErrUnauthorized)
}

func TestCreateEmployee_Degenerate(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(500)

	sched, err := f.engine.CreateEmployee(f.ctx, f.owner.MustCaller(), pool.Address, EmployeeParams{
		Beneficiary: f.alice.Identity(),
		StartTime:   T,
		CliffTime:   T,
		EndTime:     T,
		TotalAmount: 500,
	})
	require.NoError(t, err)

	res, err := f.claim(f.alice, sched)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Claim.Amount, "everything vests at once")
}

func TestCreateEmployee_Duplicate(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)
	f.grant(pool, f.alice, 1000)

	_, err := f.engine.CreateEmployee(f.ctx, f.owner.MustCaller(), pool.Address, EmployeeParams{
		Beneficiary: f.alice.Identity(),
		StartTime:   T,
		CliffTime:   T,
		EndTime:     T + 1,
		TotalAmount: 5,
	})
	assert.ErrorIs(t, err, ir.ErrAccountAlreadyExists)
}

func TestScheduleView(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(1000)
	alice := f.grant(pool, f.alice, 1000)

	view, err := f.engine.ScheduleView(f.ctx, alice.Address)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusCreated, view.Status)
	assert.Zero(t, view.Claimable)

	f.clock.Set(T + 6)
	view, err = f.engine.ScheduleView(f.ctx, alice.Address)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusVesting, view.Status)
	assert.Equal(t, uint64(400), view.Vested)
	assert.Equal(t, uint64(400), view.Claimable)
	assert.Equal(t, T+6, view.At)
}
