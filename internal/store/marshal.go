package store

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/vesting/internal/ir"
)

// marshalSeeds converts derivation seeds to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal tuples always store as equal text.
func marshalSeeds(seeds []string) (string, error) {
	if seeds == nil {
		seeds = []string{}
	}
	data, err := ir.MarshalCanonical(seeds)
	if err != nil {
		return "", fmt.Errorf("marshal seeds: %w", err)
	}
	return string(data), nil
}

// unmarshalSeeds parses a stored seeds column.
func unmarshalSeeds(data string) ([]string, error) {
	seeds := []string{}
	if err := json.Unmarshal([]byte(data), &seeds); err != nil {
		return nil, fmt.Errorf("unmarshal seeds: %w", err)
	}
	return seeds, nil
}

// toSQLAmount converts a unit amount to the signed INTEGER SQLite stores.
func toSQLAmount(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, ir.NewError(ir.CodeArithmeticOverflow, "amount %d exceeds %d", v, int64(math.MaxInt64))
	}
	return int64(v), nil
}

// fromSQLAmount converts a stored INTEGER back to units.
func fromSQLAmount(v int64, column string) (uint64, error) {
	if v < 0 {
		return 0, ir.NewError(ir.CodeArithmeticOverflow, "%s is negative: %d", column, v)
	}
	return uint64(v), nil
}
