package auth

import (
	"time"

	"github.com/roach88/vesting/internal/ir"
)

// Caller is a verified identity. The zero value is anonymous and never
// passes Require. Only Verifier.Verify produces non-zero callers.
type Caller struct {
	identity  ir.Address
	tokenID   string
	expiresAt time.Time
}

// Identity returns the verified identity, or "" for an anonymous caller.
func (c Caller) Identity() ir.Address { return c.identity }

// TokenID returns the jti of the token the caller presented.
func (c Caller) TokenID() string { return c.tokenID }

// ExpiresAt returns when the presented token stops being accepted.
func (c Caller) ExpiresAt() time.Time { return c.expiresAt }

// Require fails with Unauthorized unless c is want. role names the record
// field being checked ("owner", "beneficiary") for the error message.
func Require(c Caller, want ir.Address, role string) error {
	if c.identity == "" {
		return ir.NewError(ir.CodeUnauthorized, "anonymous caller is not the %s", role).
			With("role", role)
	}
	if c.identity != want {
		return ir.NewError(ir.CodeUnauthorized, "caller %s is not the %s %s",
			c.identity.Short(), role, want.Short()).
			With("role", role).
			With("caller", string(c.identity))
	}
	return nil
}
