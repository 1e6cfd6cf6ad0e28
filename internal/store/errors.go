package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Record errors.
var (
	// ErrNotFound is returned when a record or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAddressTaken is returned when a derived address is already indexed.
	ErrAddressTaken = errors.New("address already taken")

	// ErrConflict is returned when a write was computed from stale state,
	// e.g. a claim staged against a total_withdrawn that has since moved.
	ErrConflict = errors.New("conflicting write")
)

// Ledger errors.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAuthorityMismatch  = errors.New("authority does not control account")
	ErrMintMismatch       = errors.New("accounts hold different mints")
	ErrTransferVoided     = errors.New("transfer id was voided")
	ErrBalanceOverflow    = errors.New("balance would exceed maximum")
	ErrAccountNotEmpty    = errors.New("account balance is not zero")
	ErrTransferIDConflict = errors.New("transfer id reused with different contents")
)

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
