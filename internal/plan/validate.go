package plan

import (
	"fmt"

	"github.com/roach88/vesting/internal/ir"
)

// Validation error codes.
const (
	ErrDuplicateBeneficiary = "P101" // two grants for the same beneficiary
	ErrOwnMint              = "P102" // beneficiary is the mint address
	ErrNoGrants             = "P103" // plan has no grants
)

// ValidationError is a plan problem that CUE's schema cannot express.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled plan. Returns all errors found.
func Validate(p ir.Plan) []ValidationError {
	var errs []ValidationError

	if len(p.Grants) == 0 {
		errs = append(errs, ValidationError{
			Field:   "grants",
			Message: "plan has no grants",
			Code:    ErrNoGrants,
		})
	}

	seen := make(map[ir.Address]int, len(p.Grants))
	for i, g := range p.Grants {
		field := fmt.Sprintf("grants[%d].beneficiary", i)
		if first, ok := seen[g.Beneficiary]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s already has grant %d; one schedule per beneficiary and pool", g.Beneficiary.Short(), first),
				Code:    ErrDuplicateBeneficiary,
			})
			continue
		}
		seen[g.Beneficiary] = i

		if g.Beneficiary == p.Mint {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "beneficiary is the mint address",
				Code:    ErrOwnMint,
			})
		}
	}
	return errs
}
