// Package store provides SQLite-backed durable storage for vesting records.
//
// One database holds four groups of tables:
//   - pools and schedules: the vesting records themselves
//   - addresses: the derivation index, mapping every record address back to
//     the (tag, seeds) it was derived from
//   - claims: the two-phase claim log
//   - mints, token_accounts, token_transfers: the reference token ledger
//
// # Critical Patterns
//
// Derivation index
//   - Every record insert writes its addresses row in the same transaction
//   - addresses.address is the PRIMARY KEY, so an occupied address fails
//     with ErrAddressTaken before any record row is written
//
// Two-phase claims
//   - StageClaim records intent; the ledger transfer runs under the claim ID
//   - CommitClaim sets total_withdrawn = SUM(committed amounts) in the same
//     transaction that marks the claim committed
//   - A partial UNIQUE index on (schedule, withdrawn_before) for live claims
//     means two claims computed from the same base cannot both exist
//
// Idempotent ledger
//   - token_transfers.id is the PRIMARY KEY; re-applying an ID is a no-op
//   - Settle either voids an unapplied ID or reports it applied, atomically
//
// Amounts are INTEGER units no larger than math.MaxInt64. Timestamps are unix
// seconds. Seeds are stored as canonical JSON (see ir.MarshalCanonical).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
