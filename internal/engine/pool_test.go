package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

func TestCreateVesting(t *testing.T) {
	f := newFixture(t)

	pool, err := f.engine.CreateVesting(f.ctx, f.owner.MustCaller(), "  Solana Corp ", f.mint.Address)
	require.NoError(t, err)

	assert.Equal(t, ir.MustDerive(ir.TagPool, "Solana Corp"), pool.Address)
	assert.Equal(t, ir.MustDerive(ir.TagTreasury, "Solana Corp"), pool.TreasuryAccount)
	assert.Equal(t, "Solana Corp", pool.CompanyName)
	assert.Equal(t, f.owner.Identity(), pool.Owner)
	assert.Equal(t, T, pool.CreatedAt)

	treasury, err := f.engine.Account(f.ctx, pool.TreasuryAccount)
	require.NoError(t, err)
	assert.Equal(t, pool.Address, treasury.Authority, "treasury is controlled by the pool, not the owner")
	assert.Zero(t, treasury.Balance)

	d, err := f.engine.Resolve(f.ctx, pool.Address)
	require.NoError(t, err)
	assert.Equal(t, ir.Derivation{Tag: ir.TagPool, Seeds: []string{"Solana Corp"}}, d)

	byName, err := f.engine.PoolByName(f.ctx, "Solana Corp")
	require.NoError(t, err)
	assert.Equal(t, pool, byName)
}

func TestCreateVesting_NameTaken(t *testing.T) {
	f := newFixture(t)
	f.createPool(0)

	_, err := f.engine.CreateVesting(f.ctx, f.bob.MustCaller(), "Solana Corp", f.mint.Address)
	assert.ErrorIs(t, err, ir.ErrAccountAlreadyExists)
}

func TestCreateVesting_NormalizedNamesCollide(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateVesting(f.ctx, f.owner.MustCaller(), "Caf\u00e9", f.mint.Address)
	require.NoError(t, err)

	_, err = f.engine.CreateVesting(f.ctx, f.bob.MustCaller(), "Cafe\u0301", f.mint.Address)
	assert.ErrorIs(t, err, ir.ErrAccountAlreadyExists)
}

func TestCreateVesting_Rejects(t *testing.T) {
	f := newFixture(t)
	unknownMint := ir.MustDerive(ir.TagMint, string(f.issuer.Identity()), "NOPE")

	tests := []struct {
		name    string
		caller  auth.Caller
		company string
		mint    ir.Address
		want    error
	}{
		{"anonymous caller", auth.Caller{}, "Acme", f.mint.Address, ir.ErrUnauthorized},
		{"empty name", f.owner.MustCaller(), "   ", f.mint.Address, ir.ErrInvalidArgument},
		{"name too long", f.owner.MustCaller(), strings.Repeat("a", MaxCompanyNameLen+1), f.mint.Address, ir.ErrInvalidArgument},
		{"invalid utf-8", f.owner.MustCaller(), "bad\xff", f.mint.Address, ir.ErrInvalidArgument},
		{"unknown mint", f.owner.MustCaller(), "Acme", unknownMint, ir.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateVesting(f.ctx, tt.caller, tt.company, tt.mint)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	pools, err := f.engine.Pools(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pools)
}

func TestFund(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)

	acct, err := f.engine.Fund(f.ctx, f.owner.MustCaller(), pool.Address, 2500)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), acct.Balance)
	assert.Equal(t, uint64(7500), f.balance(f.owner))

	_, err = f.engine.Fund(f.ctx, f.owner.MustCaller(), pool.Address, 0)
	assert.ErrorIs(t, err, ir.ErrInvalidArgument)

	_, err = f.engine.Fund(f.ctx, f.owner.MustCaller(), pool.Address, 1_000_000)
	assert.ErrorIs(t, err, ir.ErrTransferFailed)

	_, err = f.engine.Fund(f.ctx, f.mallory.MustCaller(), pool.Address, 1)
	assert.ErrorIs(t, err, ir.ErrTransferFailed, "mallory has no holding account")

	assert.Equal(t, uint64(2500), f.treasuryBalance(pool))
}

func TestTreasury_OwnerCannotWithdraw(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(1000)
	holding, err := ir.HoldingAddress(f.owner.Identity(), f.mint.Address)
	require.NoError(t, err)

	err = f.store.Ledger().Transfer(f.ctx, ir.TransferRequest{
		ID:        "drain",
		From:      pool.TreasuryAccount,
		To:        holding,
		Mint:      f.mint.Address,
		Amount:    1000,
		Authority: f.owner.Identity(),
	})
	assert.ErrorIs(t, err, store.ErrAuthorityMismatch)
	assert.Equal(t, uint64(1000), f.treasuryBalance(pool))
}

func TestCloseVesting_RefusedWhileScheduleActive(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(3000)
	alice := f.grant(pool, f.alice, 1000)
	f.grant(pool, f.bob, 2000)

	f.clock.Set(T + 35)
	_, err := f.claim(f.alice, alice)
	require.NoError(t, err)

	_, err = f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	assert.ErrorIs(t, err, ir.ErrScheduleStillActive)

	_, err = f.engine.Pool(f.ctx, pool.Address)
	assert.NoError(t, err, "pool survives a refused close")
	assert.Equal(t, uint64(2000), f.treasuryBalance(pool))
}

func TestCloseVesting_ScheduleAddedDuringCloseKeepsBalances(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(500)

	// A schedule lands after the close has scanned for active ones.
	f.ledger.onOpenAccount = func() {
		f.grant(pool, f.alice, 1000)
	}

	_, err := f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	assert.ErrorIs(t, err, ir.ErrScheduleStillActive)

	assert.Equal(t, uint64(500), f.treasuryBalance(pool))
	assert.Equal(t, uint64(10_000-500), f.balance(f.owner))
	_, err = f.engine.Pool(f.ctx, pool.Address)
	assert.NoError(t, err, "pool survives a refused close")

	journal, err := f.store.Ledger().Journal(f.ctx, pool.TreasuryAccount)
	require.NoError(t, err)
	assert.Len(t, journal, 1, "only the funding transfer touched the treasury")
}

func TestCloseVesting_UnvestedScheduleBlocksClose(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(1000)
	f.grant(pool, f.alice, 1000)

	_, err := f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	assert.ErrorIs(t, err, ir.ErrScheduleStillActive)
}

func TestCloseVesting_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(100)

	_, err := f.engine.CloseVesting(f.ctx, f.mallory.MustCaller(), pool.Address)
	assert.ErrorIs(t, err, ir.ErrUnauthorized)

	_, err = f.engine.CloseVesting(f.ctx, auth.Caller{}, pool.Address)
	assert.ErrorIs(t, err, ir.ErrUnauthorized)
}

func TestCloseVesting_RefundsResidual(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(3500)
	alice := f.grant(pool, f.alice, 1000)
	bob := f.grant(pool, f.bob, 2000)

	f.clock.Set(T + 35)
	_, err := f.claim(f.alice, alice)
	require.NoError(t, err)
	_, err = f.claim(f.bob, bob)
	require.NoError(t, err)

	res, err := f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Refunded)
	assert.Equal(t, uint64(10_000-3500+500), f.balance(f.owner))

	_, err = f.engine.Pool(f.ctx, pool.Address)
	assert.ErrorIs(t, err, ir.ErrAccountNotFound)
	_, err = f.engine.Account(f.ctx, pool.TreasuryAccount)
	assert.ErrorIs(t, err, ir.ErrAccountNotFound)
	_, err = f.engine.Schedule(f.ctx, alice.Address)
	assert.ErrorIs(t, err, ir.ErrAccountNotFound)
}

func TestCloseVesting_EmptyPool(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(0)

	res, err := f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	require.NoError(t, err)
	assert.Zero(t, res.Refunded)
}

func TestCloseVesting_NameReusable(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(1000)
	alice := f.grant(pool, f.alice, 1000)

	f.clock.Set(T + 35)
	first, err := f.claim(f.alice, alice)
	require.NoError(t, err)
	_, err = f.engine.CloseVesting(f.ctx, f.owner.MustCaller(), pool.Address)
	require.NoError(t, err)

	history, err := f.engine.Claims(f.ctx, alice.Address)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ir.ClaimArchived, history[0].Status)

	// A new owner takes the name; the same beneficiary address is reused.
	reborn, err := f.engine.CreateVesting(f.ctx, f.bob.MustCaller(), "Solana Corp", f.mint.Address)
	require.NoError(t, err)
	assert.Equal(t, pool.Address, reborn.Address)
	assert.Equal(t, f.bob.Identity(), reborn.Owner)

	sched, err := f.engine.CreateEmployee(f.ctx, f.bob.MustCaller(), reborn.Address, EmployeeParams{
		Beneficiary: f.alice.Identity(),
		StartTime:   T - 10,
		CliffTime:   T + 5,
		EndTime:     T + 30,
		TotalAmount: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, alice.Address, sched.Address)
	assert.Zero(t, sched.TotalWithdrawn)

	_, err = f.claim(f.alice, sched)
	assert.ErrorIs(t, err, ir.ErrTransferFailed, "the new treasury is empty")

	ownerHolding, err := ir.HoldingAddress(f.bob.Identity(), f.mint.Address)
	require.NoError(t, err)
	_, err = f.store.Ledger().OpenAccount(f.ctx, ir.TokenAccount{Address: ownerHolding, Mint: f.mint.Address, Authority: f.bob.Identity()})
	require.NoError(t, err)
	require.NoError(t, f.store.Ledger().MintTo(f.ctx, "seed-bob", f.mint.Address, ownerHolding, 1000, f.issuer.Identity()))
	_, err = f.engine.Fund(f.ctx, f.bob.MustCaller(), reborn.Address, 1000)
	require.NoError(t, err)

	second, err := f.claim(f.alice, sched)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), second.Claim.Amount)
	assert.NotEqual(t, first.Claim.ID, second.Claim.ID)
	assert.Equal(t, uint64(2000), f.balance(f.alice))
}
