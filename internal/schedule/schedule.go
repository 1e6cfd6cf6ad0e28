package schedule

import (
	"math"
	"math/bits"

	"github.com/roach88/vesting/internal/ir"
)

// MaxAmount is the largest grant the store can persist.
const MaxAmount = math.MaxInt64

// Validate checks creation-time terms.
func Validate(start, cliff, end int64, amount uint64) error {
	if start > cliff {
		return ir.NewError(ir.CodeInvalidSchedule, "cliff %d before start %d", cliff, start)
	}
	if cliff > end {
		return ir.NewError(ir.CodeInvalidSchedule, "end %d before cliff %d", end, cliff)
	}
	if amount == 0 {
		return ir.NewError(ir.CodeInvalidSchedule, "total amount must be positive")
	}
	if amount > MaxAmount {
		return ir.NewError(ir.CodeInvalidSchedule, "total amount %d exceeds %d", amount, uint64(MaxAmount))
	}
	return nil
}

// checkStored rejects a persisted schedule that could never have been created.
func checkStored(s ir.Schedule) error {
	if s.StartTime > s.CliffTime || s.CliffTime > s.EndTime {
		return ir.NewError(ir.CodeArithmeticOverflow,
			"schedule %s has unordered times %d/%d/%d", s.Address.Short(), s.StartTime, s.CliffTime, s.EndTime)
	}
	if s.TotalWithdrawn > s.TotalAmount {
		return ir.NewError(ir.CodeArithmeticOverflow,
			"schedule %s withdrew %d of %d", s.Address.Short(), s.TotalWithdrawn, s.TotalAmount)
	}
	return nil
}

// Vested returns the cumulative entitlement at now.
//
// Before the cliff nothing is vested, even if linear accrual since start
// would be positive. From end onward everything is vested. In between:
//
//	floor(total * (now - start) / (end - start))
//
// The product is computed in 128 bits, so any uint64 total is exact.
func Vested(now int64, s ir.Schedule) (uint64, error) {
	if err := checkStored(s); err != nil {
		return 0, err
	}
	if now < s.CliffTime {
		return 0, nil
	}
	if now >= s.EndTime {
		return s.TotalAmount, nil
	}

	// start <= cliff <= now < end, so both differences are positive and the
	// unsigned subtraction is exact even when the signed one would overflow.
	elapsed := uint64(now) - uint64(s.StartTime)
	duration := uint64(s.EndTime) - uint64(s.StartTime)

	hi, lo := bits.Mul64(s.TotalAmount, elapsed)
	// elapsed < duration implies hi < duration, so Div64 cannot panic.
	q, _ := bits.Div64(hi, lo, duration)
	return q, nil
}

// Claimable returns what a claim at now would pay.
//
// Errors:
//   - ClaimNotAvailableYet: now is before the cliff
//   - NothingToClaim: everything vested so far was already withdrawn
//   - ArithmeticOverflow: withdrawn exceeds vested (corrupted state)
func Claimable(now int64, s ir.Schedule) (uint64, error) {
	if now < s.CliffTime {
		return 0, ir.NewError(ir.CodeClaimNotAvailableYet, "cliff at %d, now %d", s.CliffTime, now)
	}
	vested, err := Vested(now, s)
	if err != nil {
		return 0, err
	}
	if s.TotalWithdrawn > vested {
		return 0, ir.NewError(ir.CodeArithmeticOverflow,
			"withdrawn %d exceeds vested %d", s.TotalWithdrawn, vested)
	}
	claimable := vested - s.TotalWithdrawn
	if claimable == 0 {
		return 0, ir.NewError(ir.CodeNothingToClaim, "vested %d, withdrawn %d", vested, s.TotalWithdrawn)
	}
	return claimable, nil
}

// Status derives the lifecycle state of s at now.
func Status(now int64, s ir.Schedule) ir.ScheduleStatus {
	switch {
	case s.Drained():
		return ir.StatusDrained
	case now < s.CliffTime:
		return ir.StatusCreated
	case now < s.EndTime:
		return ir.StatusVesting
	default:
		return ir.StatusFullyVested
	}
}

// View is a schedule evaluated at a point in time.
type View struct {
	Schedule  ir.Schedule       `json:"schedule"`
	At        int64             `json:"at"`
	Status    ir.ScheduleStatus `json:"status"`
	Vested    uint64            `json:"vested"`
	Claimable uint64            `json:"claimable"`
}

// Evaluate builds a View. Claimable is zero whenever a claim would fail
// with ClaimNotAvailableYet or NothingToClaim.
func Evaluate(now int64, s ir.Schedule) (View, error) {
	vested, err := Vested(now, s)
	if err != nil {
		return View{}, err
	}
	v := View{
		Schedule: s,
		At:       now,
		Status:   Status(now, s),
		Vested:   vested,
	}
	if vested > s.TotalWithdrawn {
		v.Claimable = vested - s.TotalWithdrawn
	}
	return v, nil
}
