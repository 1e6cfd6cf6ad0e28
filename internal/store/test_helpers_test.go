package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// identity returns a stable fake identity for name.
func identity(name string) ir.Address {
	return ir.MustDerive("test-identity", name)
}

// createTestMint registers a mint whose authority is identity("issuer").
func createTestMint(t *testing.T, s *Store) ir.Mint {
	t.Helper()
	m := ir.Mint{
		Address:   ir.MustDerive(ir.TagMint, string(identity("issuer")), "TOK"),
		Authority: identity("issuer"),
		Decimals:  6,
		Label:     "TOK",
	}
	require.NoError(t, s.Ledger().CreateMint(context.Background(), m))
	return m
}

// testPool builds a pool record and its treasury account for company.
func testPool(company string, owner, mint ir.Address) (ir.Pool, ir.TokenAccount) {
	addr := ir.MustDerive(ir.TagPool, company)
	treasury := ir.MustDerive(ir.TagTreasury, company)
	pool := ir.Pool{
		Address:         addr,
		Owner:           owner,
		Mint:            mint,
		CompanyName:     company,
		TreasuryAccount: treasury,
		CreatedAt:       100,
	}
	return pool, ir.TokenAccount{Address: treasury, Mint: mint, Authority: addr}
}

// createTestPool writes a pool owned by identity("owner").
func createTestPool(t *testing.T, s *Store, company string, mint ir.Mint) ir.Pool {
	t.Helper()
	pool, treasury := testPool(company, identity("owner"), mint.Address)
	require.NoError(t, s.CreatePool(context.Background(), pool, treasury))
	return pool
}

// testSchedule builds a schedule for beneficiary in pool.
func testSchedule(beneficiary ir.Address, pool ir.Pool, total uint64) ir.Schedule {
	addr, err := ir.ScheduleAddress(beneficiary, pool.Address)
	if err != nil {
		panic(err)
	}
	return ir.Schedule{
		Address:     addr,
		Beneficiary: beneficiary,
		PoolRef:     pool.Address,
		StartTime:   90,
		CliffTime:   105,
		EndTime:     130,
		TotalAmount: total,
		CreatedAt:   100,
	}
}

// createTestSchedule writes a schedule for beneficiary.
func createTestSchedule(t *testing.T, s *Store, beneficiary string, pool ir.Pool, total uint64) ir.Schedule {
	t.Helper()
	sched := testSchedule(identity(beneficiary), pool, total)
	require.NoError(t, s.CreateSchedule(context.Background(), sched))
	return sched
}

// testClaim builds a claim against sched's current withdrawn total.
func testClaim(id string, sched ir.Schedule, amount uint64) ir.Claim {
	return ir.Claim{
		ID:              id,
		OpID:            "op-" + id,
		Schedule:        sched.Address,
		Pool:            sched.PoolRef,
		Beneficiary:     sched.Beneficiary,
		Amount:          amount,
		WithdrawnBefore: sched.TotalWithdrawn,
		ClaimedAt:       110,
		Status:          ir.ClaimStaged,
	}
}
