package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// storeError maps store sentinels onto the named errors callers see.
// Errors that already carry an ir code pass through.
func storeError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if ir.CodeOf(err) != "" {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ir.WrapError(ir.CodeAccountNotFound, err, "%s", msg)
	case errors.Is(err, store.ErrAddressTaken):
		return ir.WrapError(ir.CodeAccountAlreadyExists, err, "%s", msg)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// ledgerError wraps a ledger failure as TransferFailed.
func ledgerError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if ir.CodeOf(err) != "" {
		return err
	}
	return ir.WrapError(ir.CodeTransferFailed, err, format, args...)
}

// IsRetryable reports whether err left the operation in a state a retry can
// resolve: a ledger outcome that could not be settled, or a claim that raced
// another claim on the same schedule.
func IsRetryable(err error) bool {
	var e *ir.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == ir.CodeTransferFailed && e.Details["retryable"] == "true"
}
