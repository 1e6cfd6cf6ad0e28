package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainAddress separates derived addresses from any other SHA-256 use.
// The version suffix enables a future algorithm migration.
const DomainAddress = "vesting/address/v1"

// Derivation tags. The first three keep the seed prefixes the records have
// always been addressed by.
const (
	TagPool     = "vesting"
	TagTreasury = "vesting_treasury"
	TagSchedule = "employee_vesting"
	TagHolding  = "holding"
	TagMint     = "mint"
	TagTransfer = "transfer"
)

// Derivation is the (tag, seeds) tuple an address is computed from.
// Stored next to every record so an address can be explained later.
type Derivation struct {
	Tag   string   `json:"tag"`
	Seeds []string `json:"seeds"`
}

// Address recomputes the address for d.
func (d Derivation) Address() (Address, error) {
	return Derive(d.Tag, d.Seeds...)
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Derive computes the address for tag and seeds. It is pure and callable by
// anyone; it decides where a record lives, never who may touch it.
//
// The tuple is encoded as a canonical JSON array, so ("ab", "c") and
// ("a", "bc") cannot collide, and NFC normalization makes visually identical
// names derive the same address.
func Derive(tag string, seeds ...string) (Address, error) {
	if tag == "" {
		return "", fmt.Errorf("derive: empty tag")
	}
	parts := make([]string, 0, len(seeds)+1)
	parts = append(parts, tag)
	parts = append(parts, seeds...)

	canonical, err := MarshalCanonical(parts)
	if err != nil {
		return "", fmt.Errorf("derive %s: %w", tag, err)
	}
	return Address(hashWithDomain(DomainAddress, canonical)), nil
}

// PoolAddress is where the pool for companyName lives.
func PoolAddress(companyName string) (Address, error) {
	return Derive(TagPool, companyName)
}

// TreasuryAddress is the token account holding a pool's locked funds.
func TreasuryAddress(companyName string) (Address, error) {
	return Derive(TagTreasury, companyName)
}

// ScheduleAddress gives one schedule per (beneficiary, pool) pair.
func ScheduleAddress(beneficiary, pool Address) (Address, error) {
	return Derive(TagSchedule, string(beneficiary), string(pool))
}

// HoldingAddress is the default token account of owner for mint.
func HoldingAddress(owner, mint Address) (Address, error) {
	return Derive(TagHolding, string(owner), string(mint))
}

// MintAddress identifies a mint by its authority and a label.
func MintAddress(authority Address, label string) (Address, error) {
	return Derive(TagMint, string(authority), label)
}

// TransferID computes a content-addressed ledger transfer ID. Callers mix in
// the operation ID, so each attempt gets its own ID; the ledger applies any
// one ID at most once.
func TransferID(kind string, parts ...string) (string, error) {
	seeds := append([]string{kind}, parts...)
	addr, err := Derive(TagTransfer, seeds...)
	if err != nil {
		return "", err
	}
	return string(addr), nil
}

// MustDerive is like Derive but panics on error.
// Use only in tests or when inputs are known to be valid UTF-8.
func MustDerive(tag string, seeds ...string) Address {
	addr, err := Derive(tag, seeds...)
	if err != nil {
		panic(err)
	}
	return addr
}
