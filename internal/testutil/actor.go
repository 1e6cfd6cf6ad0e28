package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
)

// Actor is a named test identity with a deterministic key.
//
// The same name always yields the same key, so addresses derived from an
// actor are stable across runs and golden files can refer to actors by name.
type Actor struct {
	Name string
	key  ed25519.PrivateKey
}

// NewActor derives the actor's key from its name.
func NewActor(name string) Actor {
	seed := sha256.Sum256([]byte("vesting-test-actor:" + name))
	return Actor{Name: name, key: ed25519.NewKeyFromSeed(seed[:])}
}

// Identity returns the actor's public identity.
func (a Actor) Identity() ir.Address {
	return auth.IdentityOf(a.key.Public().(ed25519.PublicKey))
}

// Key returns the actor's private key.
func (a Actor) Key() ed25519.PrivateKey {
	return a.key
}

// SeedHex returns the key seed as a key file would hold it.
func (a Actor) SeedHex() string {
	return hex.EncodeToString(a.key.Seed())
}

// Caller signs a token as the actor and verifies it, returning the caller
// an operation would see.
func (a Actor) Caller() (auth.Caller, error) {
	signer, err := auth.NewSigner(a.key, auth.Config{})
	if err != nil {
		return auth.Caller{}, fmt.Errorf("actor %s: %w", a.Name, err)
	}
	token, err := signer.Sign()
	if err != nil {
		return auth.Caller{}, fmt.Errorf("actor %s: %w", a.Name, err)
	}
	return auth.NewVerifier(auth.Config{}).Verify(token)
}

// MustCaller is like Caller but panics on error.
func (a Actor) MustCaller() auth.Caller {
	c, err := a.Caller()
	if err != nil {
		panic(err)
	}
	return c
}

// Actors is a set of actors looked up by name.
type Actors map[string]Actor

// NewActors creates actors for names.
func NewActors(names ...string) Actors {
	actors := make(Actors, len(names))
	for _, n := range names {
		actors[n] = NewActor(n)
	}
	return actors
}

// NameOf returns the actor name for an identity, or "" if unknown.
func (as Actors) NameOf(id ir.Address) string {
	for name, a := range as {
		if a.Identity() == id {
			return name
		}
	}
	return ""
}
