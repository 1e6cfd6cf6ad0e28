package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the length of an address in hex characters.
const AddressLen = 64

// Address identifies an account. Identities are hex Ed25519 public keys,
// derived record addresses are hex SHA-256 digests; both are 32 bytes.
type Address string

// ParseAddress validates s and returns it in canonical lowercase form.
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != AddressLen {
		return "", fmt.Errorf("address must be %d hex characters, got %d", AddressLen, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("address is not hex: %w", err)
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }

// Short returns the first 8 characters, for logs and text output.
func (a Address) Short() string {
	if len(a) <= 8 {
		return string(a)
	}
	return string(a[:8])
}

// Pool is the company-level vesting record.
type Pool struct {
	Address         Address `json:"address"`
	Owner           Address `json:"owner"`
	Mint            Address `json:"mint"`
	CompanyName     string  `json:"company_name"`
	TreasuryAccount Address `json:"treasury_account"`
	CreatedAt       int64   `json:"created_at"`
}

// Schedule is one beneficiary's vesting terms and withdrawal total.
// TotalAmount is fixed at creation; TotalWithdrawn only grows.
type Schedule struct {
	Address        Address `json:"address"`
	Beneficiary    Address `json:"beneficiary"`
	PoolRef        Address `json:"pool_ref"`
	StartTime      int64   `json:"start_time"`
	CliffTime      int64   `json:"cliff_time"`
	EndTime        int64   `json:"end_time"`
	TotalAmount    uint64  `json:"total_amount"`
	TotalWithdrawn uint64  `json:"total_withdrawn"`
	CreatedAt      int64   `json:"created_at"`
}

// Drained reports whether everything granted has been paid out.
func (s Schedule) Drained() bool {
	return s.TotalWithdrawn >= s.TotalAmount
}

// ScheduleStatus is derived from time and stored fields, never persisted.
type ScheduleStatus string

const (
	StatusCreated     ScheduleStatus = "created"
	StatusVesting     ScheduleStatus = "vesting"
	StatusFullyVested ScheduleStatus = "fully_vested"
	StatusDrained     ScheduleStatus = "drained"
)

// Mint is a token type on the ledger.
type Mint struct {
	Address   Address `json:"address"`
	Authority Address `json:"authority"`
	Decimals  uint8   `json:"decimals"`
	Label     string  `json:"label"`
}

// TokenAccount holds a balance of one mint. Only Authority may move funds
// out of it; for a treasury the authority is the pool address.
type TokenAccount struct {
	Address   Address `json:"address"`
	Mint      Address `json:"mint"`
	Authority Address `json:"authority"`
	Balance   uint64  `json:"balance"`
}

// TransferRequest asks the ledger to move Amount units between accounts.
// ID makes the request idempotent: a ledger applies a given ID at most once.
type TransferRequest struct {
	ID        string  `json:"id"`
	From      Address `json:"from"`
	To        Address `json:"to"`
	Mint      Address `json:"mint"`
	Amount    uint64  `json:"amount"`
	Authority Address `json:"authority"`
}

// ClaimStatus tracks a claim through the two-phase apply.
type ClaimStatus string

const (
	ClaimStaged    ClaimStatus = "staged"
	ClaimCommitted ClaimStatus = "committed"
	ClaimAborted   ClaimStatus = "aborted"
	// ClaimArchived marks history of a pool that has since been closed.
	ClaimArchived ClaimStatus = "archived"
)

// Claim is one row of the claim log. ID doubles as the ledger transfer ID.
type Claim struct {
	ID              string      `json:"id"`
	OpID            string      `json:"op_id"`
	Schedule        Address     `json:"schedule"`
	Pool            Address     `json:"pool"`
	Beneficiary     Address     `json:"beneficiary"`
	Amount          uint64      `json:"amount"`
	WithdrawnBefore uint64      `json:"withdrawn_before"`
	ClaimedAt       int64       `json:"claimed_at"`
	Status          ClaimStatus `json:"status"`
}

// Plan is a batch of grants for a single pool.
type Plan struct {
	Company string  `json:"company"`
	Mint    Address `json:"mint"`
	Grants  []Grant `json:"grants"`
}

// Grant describes one schedule to create.
type Grant struct {
	Beneficiary Address `json:"beneficiary"`
	StartTime   int64   `json:"start_time"`
	CliffTime   int64   `json:"cliff_time"`
	EndTime     int64   `json:"end_time"`
	Amount      uint64  `json:"amount"`
}
