// Package plan loads grant plans written in CUE.
//
// A plan names one company, the mint its pool vests, and a list of grants:
//
//	company: "Solana Corp"
//	mint:    "9f2c..."
//	grants: [
//		{beneficiary: "4a1b...", start: 1700000000, cliff: 1700086400, end: 1731536000, amount: 1000},
//	]
//
// The embedded schema (schema.cue) rejects malformed plans with positioned
// errors before anything reaches the engine. Validate adds the checks CUE
// cannot express, such as one grant per beneficiary.
package plan
