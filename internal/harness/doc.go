// Package harness runs vesting scenarios against a real engine.
//
// A scenario is a YAML file naming actors, a clock origin, and a list of
// steps. Each step calls one engine operation as one actor at a clock offset,
// optionally with a ledger fault injected, and may state the expected
// outcome. Every step runs through the same engine, store and ledger the CLI
// uses, backed by an in-memory SQLite database.
//
//	name: cliff_then_drain
//	description: one employee claims at the cliff and after the end
//	actors: [issuer, owner, alice]
//	steps:
//	  - {op: create_mint, as: issuer, label: VEST}
//	  - {op: mint_to, as: issuer, label: VEST, to: owner, amount: 1000}
//	  - {op: create_vesting, as: owner, company: Acme, label: VEST}
//	  - {op: fund, as: owner, company: Acme, amount: 1000}
//	  - {op: create_employee, as: owner, company: Acme, beneficiary: alice, start: -10, cliff: 5, end: 30, amount: 1000}
//	  - {op: claim, as: alice, company: Acme, at: 5, expect: {amount: 375}}
//	assertions:
//	  - {type: withdrawn, company: Acme, beneficiary: alice, equals: 375}
//
// After every step the harness checks that no tokens were created or lost
// and that every schedule's total_withdrawn matches its committed claims.
//
// The trace of a run (step, op, actor, outcome, amounts) is serialized with
// canonical JSON and compared against golden files with goldie.
package harness
