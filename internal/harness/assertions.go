package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] t+%d %s as %s: %s", ev.Step, ev.At, ev.Op, orAnonymous(ev.As), ev.Outcome)
			if ev.Amount > 0 {
				fmt.Fprintf(&buf, " (%d)", ev.Amount)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func orAnonymous(name string) string {
	if name == "" {
		return "anonymous"
	}
	return name
}

// evaluateAssertions checks every assertion and returns the failure messages.
func (h *Harness) evaluateAssertions(ctx context.Context, trace []TraceEvent, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, trace, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) evaluate(ctx context.Context, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertWithdrawn:
		return h.assertWithdrawn(ctx, trace, a)
	case AssertBalance:
		return h.assertBalance(ctx, trace, a)
	case AssertTreasury:
		return h.assertTreasury(ctx, trace, a)
	case AssertPoolClosed:
		return h.assertPoolClosed(ctx, trace, a)
	case AssertClaimCount:
		return h.assertClaimCount(ctx, trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) schedule(a Assertion) (ir.Address, error) {
	pool, err := h.pool(a.Company)
	if err != nil {
		return "", err
	}
	return ir.ScheduleAddress(h.actors[a.Beneficiary].Identity(), pool)
}

func (h *Harness) assertWithdrawn(ctx context.Context, trace []TraceEvent, a Assertion) error {
	addr, err := h.schedule(a)
	if err != nil {
		return err
	}
	s, err := h.store.Schedule(ctx, addr)
	if err != nil {
		return &AssertionError{
			Type:     AssertWithdrawn,
			Expected: fmt.Sprintf("schedule of %s in %q", a.Beneficiary, a.Company),
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	if s.TotalWithdrawn != a.Equals {
		return &AssertionError{
			Type:     AssertWithdrawn,
			Expected: fmt.Sprintf("%s withdrawn %d", a.Beneficiary, a.Equals),
			Actual:   fmt.Sprintf("withdrawn %d", s.TotalWithdrawn),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertBalance(ctx context.Context, trace []TraceEvent, a Assertion) error {
	mint, err := h.mint(a.Label)
	if err != nil {
		return err
	}
	addr, err := ir.HoldingAddress(h.actors[a.Actor].Identity(), mint)
	if err != nil {
		return err
	}
	got, err := h.balanceOf(ctx, addr)
	if err != nil {
		return err
	}
	if got != a.Equals {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %d %s", a.Actor, a.Equals, a.Label),
			Actual:   fmt.Sprintf("holds %d", got),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertTreasury(ctx context.Context, trace []TraceEvent, a Assertion) error {
	name, err := h.pool(a.Company)
	if err != nil {
		return err
	}
	pool, err := h.store.Pool(ctx, name)
	if err != nil {
		return &AssertionError{
			Type:     AssertTreasury,
			Expected: fmt.Sprintf("pool %q", a.Company),
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	got, err := h.balanceOf(ctx, pool.TreasuryAccount)
	if err != nil {
		return err
	}
	if got != a.Equals {
		return &AssertionError{
			Type:     AssertTreasury,
			Expected: fmt.Sprintf("treasury of %q holds %d", a.Company, a.Equals),
			Actual:   fmt.Sprintf("holds %d", got),
			Trace:    trace,
		}
	}
	return nil
}

// balanceOf treats a missing account as empty.
func (h *Harness) balanceOf(ctx context.Context, addr ir.Address) (uint64, error) {
	bal, err := h.store.Ledger().Balance(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

func (h *Harness) assertPoolClosed(ctx context.Context, trace []TraceEvent, a Assertion) error {
	addr, err := h.pool(a.Company)
	if err != nil {
		return err
	}
	_, err = h.store.Pool(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{
		Type:     AssertPoolClosed,
		Expected: fmt.Sprintf("no pool named %q", a.Company),
		Actual:   "pool exists",
		Trace:    trace,
	}
}

func (h *Harness) assertClaimCount(ctx context.Context, trace []TraceEvent, a Assertion) error {
	addr, err := h.schedule(a)
	if err != nil {
		return err
	}
	claims, err := h.store.Claims(ctx, store.ClaimFilter{Schedule: addr, Status: a.Status})
	if err != nil {
		return err
	}
	if len(claims) != a.Count {
		status := string(a.Status)
		if status == "" {
			status = "any"
		}
		return &AssertionError{
			Type:     AssertClaimCount,
			Expected: fmt.Sprintf("%d claims by %s with status %s", a.Count, a.Beneficiary, status),
			Actual:   fmt.Sprintf("%d claims", len(claims)),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks how many steps ran op (any op if empty) with the
// given outcome (any outcome if empty).
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if (a.Op == "" || ev.Op == a.Op) && (a.Outcome == "" || ev.Outcome == a.Outcome) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d steps with op %q and outcome %q", a.Count, a.Op, a.Outcome),
			Actual:   fmt.Sprintf("%d steps", count),
			Trace:    trace,
		}
	}
	return nil
}
