// Package auth verifies who is calling and guards record mutations.
//
// An identity is the hex encoding of an Ed25519 public key. Callers prove
// control of an identity by presenting a short-lived EdDSA JWT whose subject
// is that identity and whose signature verifies under it. Addresses derived
// by ir.Derive have no private key, so no token can ever name them; that is
// what keeps pool treasuries out of reach of human signers.
//
// Key generation and storage are out of scope. LoadKeyFile reads an existing
// hex seed.
package auth
