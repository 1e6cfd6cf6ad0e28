package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
	"github.com/roach88/vesting/internal/testutil"
)

// T is the reference "now" of the scenarios.
const T int64 = 1_700_000_000

var errLedgerDown = errors.New("ledger unavailable")

// faultyLedger wraps the real ledger and injects failures.
type faultyLedger struct {
	*store.Ledger

	// transferErr, when set, is returned by Transfer. With applyFirst the
	// transfer is applied before the error is returned (a lost reply).
	transferErr error
	applyFirst  bool

	settleErr error
	transfers int

	// beforeTransfer and onOpenAccount run once, on the next call, to
	// interleave another operation.
	beforeTransfer func()
	onOpenAccount  func()
}

func (f *faultyLedger) OpenAccount(ctx context.Context, acct ir.TokenAccount) (ir.TokenAccount, error) {
	out, err := f.Ledger.OpenAccount(ctx, acct)
	if hook := f.onOpenAccount; hook != nil {
		f.onOpenAccount = nil
		hook()
	}
	return out, err
}

func (f *faultyLedger) Transfer(ctx context.Context, req ir.TransferRequest) error {
	f.transfers++
	if hook := f.beforeTransfer; hook != nil {
		f.beforeTransfer = nil
		hook()
	}
	if f.transferErr == nil {
		return f.Ledger.Transfer(ctx, req)
	}
	if f.applyFirst {
		if err := f.Ledger.Transfer(ctx, req); err != nil {
			return err
		}
	}
	return f.transferErr
}

func (f *faultyLedger) Settle(ctx context.Context, id string) (bool, error) {
	if f.settleErr != nil {
		return false, f.settleErr
	}
	return f.Ledger.Settle(ctx, id)
}

func (f *faultyLedger) heal() {
	f.transferErr = nil
	f.applyFirst = false
	f.settleErr = nil
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	ledger *faultyLedger
	clock  *testutil.FixedClock
	engine *Engine
	mint   ir.Mint

	issuer, owner, alice, bob, mallory testutil.Actor
}

// newFixture opens a store, registers a mint, and gives the owner 10000
// units. The clock reads T.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "vesting.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   st,
		ledger:  &faultyLedger{Ledger: st.Ledger()},
		clock:   testutil.NewFixedClock(T),
		issuer:  testutil.NewActor("issuer"),
		owner:   testutil.NewActor("owner"),
		alice:   testutil.NewActor("alice"),
		bob:     testutil.NewActor("bob"),
		mallory: testutil.NewActor("mallory"),
	}
	f.engine = New(st, f.ledger, f.clock, WithOpIDGenerator(NewFixedGenerator("op")))

	mintAddr, err := ir.MintAddress(f.issuer.Identity(), "VEST")
	require.NoError(t, err)
	f.mint = ir.Mint{Address: mintAddr, Authority: f.issuer.Identity(), Label: "VEST"}
	require.NoError(t, st.Ledger().CreateMint(f.ctx, f.mint))

	holding, err := f.engine.openHolding(f.ctx, f.owner.Identity(), f.mint.Address)
	require.NoError(t, err)
	require.NoError(t, st.Ledger().MintTo(f.ctx, "seed", f.mint.Address, holding.Address, 10_000, f.issuer.Identity()))
	return f
}

// createPool creates "Solana Corp" owned by owner and funds it.
func (f *fixture) createPool(fund uint64) ir.Pool {
	f.t.Helper()
	pool, err := f.engine.CreateVesting(f.ctx, f.owner.MustCaller(), "Solana Corp", f.mint.Address)
	require.NoError(f.t, err)
	if fund > 0 {
		_, err = f.engine.Fund(f.ctx, f.owner.MustCaller(), pool.Address, fund)
		require.NoError(f.t, err)
	}
	return pool
}

// grant creates the reference schedule (start T-10, cliff T+5, end T+30).
func (f *fixture) grant(pool ir.Pool, who testutil.Actor, total uint64) ir.Schedule {
	f.t.Helper()
	sched, err := f.engine.CreateEmployee(f.ctx, f.owner.MustCaller(), pool.Address, EmployeeParams{
		Beneficiary: who.Identity(),
		StartTime:   T - 10,
		CliffTime:   T + 5,
		EndTime:     T + 30,
		TotalAmount: total,
	})
	require.NoError(f.t, err)
	return sched
}

func (f *fixture) claim(who testutil.Actor, sched ir.Schedule) (ClaimResult, error) {
	return f.engine.ClaimTokens(f.ctx, who.MustCaller(), sched.PoolRef, sched.Address)
}

func (f *fixture) withdrawn(sched ir.Schedule) uint64 {
	f.t.Helper()
	got, err := f.store.Schedule(f.ctx, sched.Address)
	require.NoError(f.t, err)
	return got.TotalWithdrawn
}

func (f *fixture) balance(owner testutil.Actor) uint64 {
	f.t.Helper()
	addr, err := ir.HoldingAddress(owner.Identity(), f.mint.Address)
	require.NoError(f.t, err)
	acct, err := f.store.Ledger().Account(f.ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	require.NoError(f.t, err)
	return acct.Balance
}

func (f *fixture) treasuryBalance(pool ir.Pool) uint64 {
	f.t.Helper()
	bal, err := f.store.Ledger().Balance(f.ctx, pool.TreasuryAccount)
	require.NoError(f.t, err)
	return bal
}
