package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vesting/internal/ir"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectPool = `
	SELECT address, owner, mint, company_name, treasury_account, created_at
	FROM pools`

const selectSchedule = `
	SELECT address, beneficiary, pool, start_time, cliff_time, end_time, total_amount, total_withdrawn, created_at
	FROM schedules`

// Pool retrieves a pool by address.
// Returns ErrNotFound if it does not exist.
func (s *Store) Pool(ctx context.Context, addr ir.Address) (ir.Pool, error) {
	pool, err := scanPool(s.db.QueryRowContext(ctx, selectPool+` WHERE address = ?`, string(addr)))
	if err != nil {
		return ir.Pool{}, fmt.Errorf("read pool %s: %w", addr.Short(), err)
	}
	return pool, nil
}

// Pools returns every pool ordered by company name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) Pools(ctx context.Context) ([]ir.Pool, error) {
	rows, err := s.db.QueryContext(ctx, selectPool+`
		ORDER BY company_name COLLATE BINARY ASC, address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	pools := []ir.Pool{}
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}

// Schedule retrieves a schedule by address.
// Returns ErrNotFound if it does not exist.
func (s *Store) Schedule(ctx context.Context, addr ir.Address) (ir.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRowContext(ctx, selectSchedule+` WHERE address = ?`, string(addr)))
	if err != nil {
		return ir.Schedule{}, fmt.Errorf("read schedule %s: %w", addr.Short(), err)
	}
	return sched, nil
}

// Schedules returns the schedules of pool, or of every pool when pool is
// empty, ordered by creation time then address.
func (s *Store) Schedules(ctx context.Context, pool ir.Address) ([]ir.Schedule, error) {
	query := selectSchedule
	var args []any
	if pool != "" {
		query += ` WHERE pool = ?`
		args = append(args, string(pool))
	}
	query += ` ORDER BY created_at ASC, address ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	schedules := []ir.Schedule{}
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

// ResolveAddress returns the derivation an indexed address was filed under.
// Returns ErrNotFound for addresses that hold no record.
func (s *Store) ResolveAddress(ctx context.Context, addr ir.Address) (ir.Derivation, error) {
	var tag, seedsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT tag, seeds FROM addresses WHERE address = ?
	`, string(addr)).Scan(&tag, &seedsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Derivation{}, fmt.Errorf("resolve %s: %w", addr.Short(), ErrNotFound)
	}
	if err != nil {
		return ir.Derivation{}, fmt.Errorf("resolve %s: %w", addr.Short(), err)
	}

	seeds, err := unmarshalSeeds(seedsJSON)
	if err != nil {
		return ir.Derivation{}, fmt.Errorf("resolve %s: %w", addr.Short(), err)
	}
	return ir.Derivation{Tag: tag, Seeds: seeds}, nil
}

func scanPool(row rowScanner) (ir.Pool, error) {
	var p ir.Pool
	var address, owner, mint, treasury string
	err := row.Scan(&address, &owner, &mint, &p.CompanyName, &treasury, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Pool{}, ErrNotFound
	}
	if err != nil {
		return ir.Pool{}, fmt.Errorf("scan pool: %w", err)
	}
	p.Address = ir.Address(address)
	p.Owner = ir.Address(owner)
	p.Mint = ir.Address(mint)
	p.TreasuryAccount = ir.Address(treasury)
	return p, nil
}

func scanSchedule(row rowScanner) (ir.Schedule, error) {
	var sc ir.Schedule
	var address, beneficiary, pool string
	var total, withdrawn int64
	err := row.Scan(
		&address, &beneficiary, &pool,
		&sc.StartTime, &sc.CliffTime, &sc.EndTime,
		&total, &withdrawn, &sc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Schedule{}, ErrNotFound
	}
	if err != nil {
		return ir.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}

	sc.Address = ir.Address(address)
	sc.Beneficiary = ir.Address(beneficiary)
	sc.PoolRef = ir.Address(pool)
	if sc.TotalAmount, err = fromSQLAmount(total, "total_amount"); err != nil {
		return ir.Schedule{}, err
	}
	if sc.TotalWithdrawn, err = fromSQLAmount(withdrawn, "total_withdrawn"); err != nil {
		return ir.Schedule{}, err
	}
	return sc, nil
}
