package engine

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// OpIDGenerator generates operation IDs for log correlation and claim rows.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type OpIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 operation IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs, then "<prefix>-N" once the list
// is used up, so golden traces stay stable however many operations run.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	idx    int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("op", "first")
//	gen.Generate() // "first"
//	gen.Generate() // "op-2"
func NewFixedGenerator(prefix string, ids ...string) *FixedGenerator {
	if prefix == "" {
		prefix = "op"
	}
	return &FixedGenerator{ids: ids, prefix: prefix}
}

// Generate returns the next ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return g.prefix + "-" + strconv.Itoa(g.idx)
}
