package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
)

func TestVestingLifecycle(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("3000")

	res := e.run("alice", "claim", "Solana Corp")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [ClaimNotAvailableYet]")

	e.clock.Set(T + 6)
	var claim engine.ClaimResult
	e.okJSON("alice", &claim, "claim", "Solana Corp")
	assert.Equal(t, uint64(400), claim.Claim.Amount)
	assert.Equal(t, uint64(400), claim.Schedule.TotalWithdrawn)
	assert.Equal(t, ir.ClaimCommitted, claim.Claim.Status)

	res = e.run("alice", "claim", "Solana Corp")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "NothingToClaim")

	res = e.run("owner", "close-vesting", "Solana Corp")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "ScheduleStillActive")

	e.clock.Set(T + 35)
	out := e.ok("alice", "claim", "Solana Corp")
	assert.Contains(t, out, "✓ claimed 600")
	assert.Contains(t, out, "withdrawn: 1000 / 1000")

	var closed engine.CloseResult
	e.okJSON("owner", &closed, "close-vesting", "Solana Corp")
	assert.Equal(t, uint64(2000), closed.Refunded)

	var acct ir.TokenAccount
	e.okJSON("", &acct, "balance", e.id("alice"), "--mint", e.mint())
	assert.Equal(t, uint64(1000), acct.Balance)
	e.okJSON("owner", &acct, "balance", "--mint", e.mint())
	assert.Equal(t, uint64(10000-3000+2000), acct.Balance)

	res = e.run("", "show", "pool", "Solana Corp")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "AccountNotFound")
}

func TestClaim_OnlyBeneficiary(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")
	e.clock.Set(T + 6)

	res := e.run("bob", "claim", "Solana Corp", "--beneficiary", e.id("alice"))
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [Unauthorized]")

	var detail ScheduleDetail
	e.okJSON("", &detail, "show", "schedule", "Solana Corp", e.id("alice"))
	assert.Equal(t, uint64(0), detail.View.Schedule.TotalWithdrawn)
	assert.Equal(t, uint64(400), detail.View.Claimable)
	assert.Empty(t, detail.Claims)
}

func TestCreateEmployee_Rejects(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")

	res := e.run("owner", "create-employee", "Solana Corp", e.id("bob"),
		"--start", at(10), "--cliff", at(5), "--end", at(30), "--amount", "10")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "InvalidSchedule")

	res = e.run("alice", "create-employee", "Solana Corp", e.id("bob"),
		"--start", at(0), "--cliff", at(5), "--end", at(30), "--amount", "10")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Unauthorized")

	res = e.run("owner", "create-employee", "Solana Corp", e.id("bob"),
		"--start", "yesterday", "--cliff", at(5), "--end", at(30), "--amount", "10")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid --start")

	res = e.run("owner", "create-employee", "Solana Corp", e.id("bob"), "--amount", "10")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "required flag")
}

func TestCreateEmployee_RFC3339Times(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")

	var sched ir.Schedule
	e.okJSON("owner", &sched, "create-employee", "Solana Corp", e.id("bob"),
		"--start", "2023-11-14T22:13:20Z", "--cliff", "2023-11-14T22:13:25Z",
		"--end", "2023-11-14T22:13:50Z", "--amount", "20")
	assert.Equal(t, T, sched.StartTime)
	assert.Equal(t, T+5, sched.CliffTime)
	assert.Equal(t, T+30, sched.EndTime)
}

func TestCreateVesting_NameTaken(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")

	res := e.run("bob", "create-vesting", "  Solana Corp ", e.mint())
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "AccountAlreadyExists")
}

func TestShowAndList(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1500")
	e.clock.Set(T + 6)

	var detail PoolDetail
	e.okJSON("", &detail, "show", "pool", "Solana Corp")
	assert.Equal(t, "Solana Corp", detail.Pool.CompanyName)
	assert.Equal(t, detail.Pool.Address, detail.Treasury.Authority)
	assert.Equal(t, uint64(1500), detail.Treasury.Balance)
	require.Len(t, detail.Schedules, 1)

	out := e.ok("alice", "show", "schedule", "Solana Corp")
	assert.Contains(t, out, "status:      vesting")
	assert.Contains(t, out, "claimable:   400")
	assert.Contains(t, out, "no claims")

	var sd ScheduleDetail
	e.okJSON("", &sd, "show", "schedule", "Solana Corp", e.id("alice"), "--at", at(40))
	assert.Equal(t, ir.StatusFullyVested, sd.View.Status)
	assert.Equal(t, uint64(1000), sd.View.Claimable)

	out = e.ok("", "list")
	assert.Contains(t, out, "Solana Corp")

	out = e.ok("", "list", "Solana Corp")
	assert.Contains(t, out, "vested 400")
	assert.Contains(t, out, "claimable 400")
}

func TestList_Empty(t *testing.T) {
	e := newCLIEnv(t)
	out := e.ok("", "list")
	assert.Contains(t, out, "No vesting pools.")
}

func TestReconcile_NothingStaged(t *testing.T) {
	e := newCLIEnv(t)
	var report engine.ReconcileReport
	e.okJSON("", &report, "reconcile")
	assert.Empty(t, report.Committed)
	assert.Empty(t, report.Aborted)
}

func TestMintIssue_Idempotent(t *testing.T) {
	e := newCLIEnv(t)
	e.ok("issuer", "mint", "create", "VEST", "--decimals", "6")
	e.ok("issuer", "mint", "issue", e.mint(), e.id("bob"), "1_000", "--id", "grant-1")
	e.ok("issuer", "mint", "issue", e.mint(), e.id("bob"), "1_000", "--id", "grant-1")

	var acct ir.TokenAccount
	e.okJSON("bob", &acct, "balance", "--mint", e.mint())
	assert.Equal(t, uint64(1000), acct.Balance)

	res := e.run("bob", "mint", "issue", e.mint(), e.id("bob"), "5")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Unauthorized")
}

func TestAddress(t *testing.T) {
	e := newCLIEnv(t)

	out := e.ok("", "address", "pool", "  Solana Corp")
	assert.Equal(t, string(ir.MustDerive(ir.TagPool, "Solana Corp"))+"\n", out)

	out = e.ok("", "address", "treasury", "Solana Corp")
	assert.Equal(t, string(ir.MustDerive(ir.TagTreasury, "Solana Corp"))+"\n", out)

	var res AddressResult
	e.okJSON("", &res, "address", "holding", e.id("alice"), e.mint())
	want, err := ir.HoldingAddress(e.actors["alice"].Identity(), ir.Address(e.mint()))
	require.NoError(t, err)
	assert.Equal(t, want, res.Address)
	assert.Equal(t, ir.TagHolding, res.Derivation.Tag)

	out = e.ok("alice", "address", "identity")
	assert.Equal(t, e.id("alice")+"\n", out)

	r := e.run("", "address", "holding", "not-hex", e.mint())
	assert.Equal(t, ExitCommandError, r.code)
}

func TestAddress_Explain(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")

	sched := strings.TrimSpace(e.ok("", "address", "schedule", "Solana Corp", e.id("alice")))
	var res AddressResult
	e.okJSON("", &res, "address", "explain", sched)
	assert.Equal(t, ir.TagSchedule, res.Derivation.Tag)
	assert.Equal(t, e.id("alice"), res.Derivation.Seeds[0])

	r := e.run("", "address", "explain", strings.Repeat("0", 64))
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "AccountNotFound")
}

func TestApply(t *testing.T) {
	e := newCLIEnv(t)
	e.ok("issuer", "mint", "create", "VEST")

	plan := filepath.Join(e.dir, "grants.cue")
	src := `company: "Acme"
mint:    "` + e.mint() + `"
grants: [
	{beneficiary: "` + e.id("alice") + `", start: 1699999990, cliff: 1700000005, end: 1700000030, amount: 1000},
	{beneficiary: "` + e.id("bob") + `", start: 1699999990, cliff: 1700000005, end: 1700000030, amount: 2000},
]
`
	require.NoError(t, os.WriteFile(plan, []byte(src), 0o644))

	out := e.ok("", "apply", plan, "--check")
	assert.Contains(t, out, "is valid")

	var res engine.PlanResult
	e.okJSON("owner", &res, "apply", plan)
	assert.True(t, res.PoolCreated)
	assert.Len(t, res.Created, 2)

	e.okJSON("owner", &res, "apply", plan)
	assert.False(t, res.PoolCreated)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 2)
}

func TestApply_Invalid(t *testing.T) {
	e := newCLIEnv(t)
	plan := filepath.Join(e.dir, "bad.cue")
	src := `company: "Acme"
mint:    "` + strings.Repeat("c", 64) + `"
grants: [
	{beneficiary: "` + strings.Repeat("a", 64) + `", start: 10, cliff: 5, end: 30, amount: 1},
]
`
	require.NoError(t, os.WriteFile(plan, []byte(src), 0o644))

	res := e.run("", "apply", plan, "--check")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "✗")

	res = e.run("owner", "apply", plan)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "invalid plan")
}

func TestErrors_JSON(t *testing.T) {
	e := newCLIEnv(t)
	e.setupPool("1000")

	res := e.run("alice", "claim", "Solana Corp", "--format", "json")
	assert.Equal(t, ExitFailure, res.code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ClaimNotAvailableYet", resp.Error.Code)
}

func TestMissingKey(t *testing.T) {
	t.Setenv("VESTING_KEY_FILE", "")
	e := newCLIEnv(t)
	res := e.run("", "create-vesting", "Acme", strings.Repeat("c", 64))
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "a key file is required")
}

func TestInvalidFormat(t *testing.T) {
	e := newCLIEnv(t)
	res := e.run("", "list", "--format", "yaml")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid format")
}
