// Package schedule computes vested and claimable amounts.
//
// Everything here is pure: the same (now, schedule) always yields the same
// answer, no I/O is performed, and no floating point is used. Callers supply
// now from their clock; the engine is the only caller that mutates state.
package schedule
