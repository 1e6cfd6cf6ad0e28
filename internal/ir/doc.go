// Package ir holds the records, ledger types, error taxonomy and address
// derivation shared by every other package.
//
// This package imports nothing internal. Constraints that hold everywhere:
//   - amounts are uint64 units and timestamps are int64 unix seconds; no floats
//   - addresses are 64 lowercase hex characters (an Ed25519 public key for
//     identities, a SHA-256 digest for derived records)
//   - JSON tags use snake_case
package ir
