package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/vesting/internal/ir"
)

// IdentityOf returns the identity for a public key.
func IdentityOf(pub ed25519.PublicKey) ir.Address {
	return ir.Address(hex.EncodeToString(pub))
}

// PublicKey decodes an identity back into a verification key.
func PublicKey(identity ir.Address) (ed25519.PublicKey, error) {
	addr, err := ir.ParseAddress(string(identity))
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	raw, err := hex.DecodeString(string(addr))
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return ed25519.PublicKey(raw), nil
}

// ParseKey accepts a hex seed (32 bytes) or a hex private key (64 bytes).
func ParseKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.PrivateKey(raw)
		// The trailing half must match the seed's public key.
		if !key.Public().(ed25519.PublicKey).Equal(ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]).Public()) {
			return nil, fmt.Errorf("decode key: public half does not match seed")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// LoadKeyFile reads a key written as hex text.
func LoadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := ParseKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}
