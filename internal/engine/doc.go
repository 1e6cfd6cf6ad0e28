// Package engine implements the vesting lifecycle operations.
//
// The engine composes the pieces below it:
//   - ir: address derivation and named errors
//   - schedule: the pure vested/claimable computation
//   - auth: caller verification and the owner/beneficiary guard
//   - store: durable records and the claim log
//   - Ledger: the token-transfer collaborator
//
// ARCHITECTURE:
//
// Every operation reads the records it needs, checks authorization first,
// validates, and then applies its effects as one atomic store transaction.
// Claims are the exception: money moves on the ledger, so a claim is applied
// in two phases (see claim.go and replay.go).
//
// Time comes only from the Clock passed to New. Operations never consult the
// wall clock directly, so a FixedClock reproduces a run exactly.
//
// CRITICAL PATTERNS:
//
// Treasury capability:
// A treasury account's authority is its pool's derived address. No key
// exists for a derived address, so no signer can move treasury funds. Only
// this package builds transfer requests carrying a pool authority, through
// the unexported treasury type.
//
// Fail closed:
// Every failure is returned as an *ir.Error (or wraps one). Nothing is
// retried internally and nothing is logged-and-swallowed.
package engine
