package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
	"github.com/roach88/vesting/internal/testutil"
)

// errInjected is the failure a step's fault produces.
var errInjected = errors.New("injected ledger fault")

// faultLedger wraps the store ledger and fails on demand.
type faultLedger struct {
	*store.Ledger
	fault string
}

func (l *faultLedger) Transfer(ctx context.Context, req ir.TransferRequest) error {
	switch l.fault {
	case FaultReject, FaultUnsettled:
		return errInjected
	case FaultLostReply:
		if err := l.Ledger.Transfer(ctx, req); err != nil {
			return err
		}
		return errInjected
	}
	return l.Ledger.Transfer(ctx, req)
}

func (l *faultLedger) Settle(ctx context.Context, id string) (bool, error) {
	if l.fault == FaultUnsettled {
		return false, errInjected
	}
	return l.Ledger.Settle(ctx, id)
}

// Harness is the scenario execution engine. It owns a fresh in-memory
// store, a fixed clock and deterministic actors for one run.
type Harness struct {
	store  *store.Store
	ledger *faultLedger
	engine *engine.Engine
	clock  *testutil.FixedClock
	origin int64
	actors testutil.Actors
	mints  map[string]ir.Address
	log    *zap.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine logs to log. Default: discarded.
func WithLogger(log *zap.Logger) Option {
	return func(h *Harness) {
		if log != nil {
			h.log = log
		}
	}
}

// Run executes a scenario and returns the result.
//
// Step failures, assertion failures and invariant violations are reported in
// the result. The returned error is for problems running the scenario at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	origin := scenario.Origin
	if origin == 0 {
		origin = DefaultOrigin
	}
	h := &Harness{
		store:  st,
		ledger: &faultLedger{Ledger: st.Ledger()},
		clock:  testutil.NewFixedClock(origin),
		origin: origin,
		actors: testutil.NewActors(scenario.Actors...),
		mints:  make(map[string]ir.Address),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(st, h.ledger, h.clock,
		engine.WithLogger(h.log.Named(scenario.Name)),
		engine.WithOpIDGenerator(engine.NewFixedGenerator("op")),
	)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if step.At != nil {
			h.clock.Set(origin + *step.At)
		}

		h.ledger.fault = step.Fault
		ev, err := h.execute(ctx, i, step)
		h.ledger.fault = ""

		ev.Step = i
		ev.Op = step.Op
		ev.As = step.As
		ev.At = h.clock.Now() - origin
		ev.Outcome = outcomeOf(err)
		result.AddTrace(ev)

		checkExpect(result, i, step, ev, err)

		for _, msg := range h.checkInvariants(ctx) {
			result.AddError(fmt.Sprintf("after step %d (%s): %s", i, step.Op, msg))
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func checkExpect(result *Result, i int, step Step, ev TraceEvent, err error) {
	var want ir.ErrorCode
	if step.Expect != nil {
		want = step.Expect.Error
	}
	got := ir.CodeOf(err)

	switch {
	case err != nil && got == "":
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Op, err))
		return
	case got != want:
		if want == "" {
			result.AddError(fmt.Sprintf("step %d (%s): expected success, got %v", i, step.Op, err))
		} else {
			result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", i, step.Op, want, ev.Outcome))
		}
		return
	}

	if err == nil && step.Expect != nil && step.Expect.Amount != nil && ev.Amount != *step.Expect.Amount {
		result.AddError(fmt.Sprintf("step %d (%s): expected amount %d, got %d",
			i, step.Op, *step.Expect.Amount, ev.Amount))
	}
}

// execute runs one step. The returned event carries the step's amounts;
// the caller fills in the rest.
func (h *Harness) execute(ctx context.Context, i int, step Step) (TraceEvent, error) {
	var ev TraceEvent

	caller, err := h.caller(step.As)
	if err != nil {
		return ev, err
	}

	switch step.Op {
	case OpCreateMint:
		authority := h.actors[step.As].Identity()
		addr, err := ir.MintAddress(authority, step.Label)
		if err != nil {
			return ev, err
		}
		m := ir.Mint{Address: addr, Authority: authority, Decimals: step.Decimals, Label: step.Label}
		if err := h.store.Ledger().CreateMint(ctx, m); err != nil {
			return ev, ledgerCode(err)
		}
		h.mints[step.Label] = addr

	case OpMintTo:
		mint, err := h.mint(step.Label)
		if err != nil {
			return ev, err
		}
		to, err := h.holding(ctx, h.actors[step.To].Identity(), mint)
		if err != nil {
			return ev, err
		}
		id := fmt.Sprintf("mint-%d", i)
		if err := h.store.Ledger().MintTo(ctx, id, mint, to, step.Amount, h.actors[step.As].Identity()); err != nil {
			return ev, ledgerCode(err)
		}
		ev.Amount = step.Amount

	case OpCreateVesting:
		mint, err := h.mint(step.Label)
		if err != nil {
			return ev, err
		}
		if _, err := h.engine.CreateVesting(ctx, caller, step.Company, mint); err != nil {
			return ev, err
		}

	case OpFund:
		pool, err := h.pool(step.Company)
		if err != nil {
			return ev, err
		}
		if _, err := h.engine.Fund(ctx, caller, pool, step.Amount); err != nil {
			return ev, err
		}
		ev.Amount = step.Amount

	case OpCreateEmployee:
		pool, err := h.pool(step.Company)
		if err != nil {
			return ev, err
		}
		_, err = h.engine.CreateEmployee(ctx, caller, pool, engine.EmployeeParams{
			Beneficiary: h.actors[step.Beneficiary].Identity(),
			StartTime:   h.origin + step.Start,
			CliffTime:   h.origin + step.Cliff,
			EndTime:     h.origin + step.End,
			TotalAmount: step.Amount,
		})
		if err != nil {
			return ev, err
		}

	case OpClaim:
		pool, err := h.pool(step.Company)
		if err != nil {
			return ev, err
		}
		beneficiary := step.Beneficiary
		if beneficiary == "" {
			beneficiary = step.As
		}
		sched, err := ir.ScheduleAddress(h.actors[beneficiary].Identity(), pool)
		if err != nil {
			return ev, err
		}
		res, err := h.engine.ClaimTokens(ctx, caller, pool, sched)
		if err != nil {
			return ev, err
		}
		ev.Amount = res.Claim.Amount
		ev.Withdrawn = res.Schedule.TotalWithdrawn

	case OpCloseVesting:
		pool, err := h.pool(step.Company)
		if err != nil {
			return ev, err
		}
		res, err := h.engine.CloseVesting(ctx, caller, pool)
		if err != nil {
			return ev, err
		}
		ev.Amount = res.Refunded

	case OpReconcile:
		report, err := h.engine.Reconcile(ctx)
		if err != nil {
			return ev, err
		}
		ev.Committed = len(report.Committed)
		ev.Aborted = len(report.Aborted)

	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}
	return ev, nil
}

// caller returns the verified caller for an actor, or an unauthenticated
// caller for "".
func (h *Harness) caller(name string) (auth.Caller, error) {
	if name == "" {
		return auth.Caller{}, nil
	}
	return h.actors[name].Caller()
}

func (h *Harness) mint(label string) (ir.Address, error) {
	addr, ok := h.mints[label]
	if !ok {
		return "", fmt.Errorf("mint %q has not been created", label)
	}
	return addr, nil
}

func (h *Harness) pool(company string) (ir.Address, error) {
	name, err := engine.NormalizeCompanyName(company)
	if err != nil {
		return "", err
	}
	return ir.PoolAddress(name)
}

func (h *Harness) holding(ctx context.Context, owner, mint ir.Address) (ir.Address, error) {
	addr, err := ir.HoldingAddress(owner, mint)
	if err != nil {
		return "", err
	}
	acct, err := h.store.Ledger().OpenAccount(ctx, ir.TokenAccount{Address: addr, Mint: mint, Authority: owner})
	if err != nil {
		return "", ledgerCode(err)
	}
	return acct.Address, nil
}

// ledgerCode gives direct ledger failures the codes engine operations use.
func ledgerCode(err error) error {
	switch {
	case errors.Is(err, store.ErrAddressTaken):
		return ir.WrapError(ir.CodeAccountAlreadyExists, err, "ledger")
	case errors.Is(err, store.ErrNotFound):
		return ir.WrapError(ir.CodeAccountNotFound, err, "ledger")
	case errors.Is(err, store.ErrAuthorityMismatch):
		return ir.WrapError(ir.CodeUnauthorized, err, "ledger")
	default:
		return ir.WrapError(ir.CodeTransferFailed, err, "ledger")
	}
}
