package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vesting/internal/ir"
)

// indexAddress records the derivation of addr inside tx.
// The derivation is recomputed first, so a caller cannot file a record under
// an address its seeds do not produce.
func indexAddress(ctx context.Context, tx *sql.Tx, addr ir.Address, d ir.Derivation) error {
	want, err := d.Address()
	if err != nil {
		return fmt.Errorf("index address: %w", err)
	}
	if want != addr {
		return fmt.Errorf("index address: %s does not match derivation %s%v", addr.Short(), d.Tag, d.Seeds)
	}

	seedsJSON, err := marshalSeeds(d.Seeds)
	if err != nil {
		return fmt.Errorf("index address: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO addresses (address, tag, seeds)
		VALUES (?, ?, ?)
	`, string(addr), d.Tag, seedsJSON)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s (%s)", ErrAddressTaken, addr, d.Tag)
	}
	if err != nil {
		return fmt.Errorf("index address: %w", err)
	}
	return nil
}

// CreatePool atomically writes the pool record, the pool and treasury
// address index rows, and the empty treasury token account.
//
// Returns ErrAddressTaken if either derived address is occupied; nothing is
// written in that case. The treasury's authority must be the pool address.
func (s *Store) CreatePool(ctx context.Context, pool ir.Pool, treasury ir.TokenAccount) error {
	if treasury.Address != pool.TreasuryAccount {
		return fmt.Errorf("create pool: treasury %s is not the pool's treasury %s",
			treasury.Address.Short(), pool.TreasuryAccount.Short())
	}
	if treasury.Authority != pool.Address {
		return fmt.Errorf("create pool: treasury authority must be the pool address")
	}
	if treasury.Mint != pool.Mint || treasury.Balance != 0 {
		return fmt.Errorf("create pool: treasury must be an empty account of the pool's mint")
	}

	return s.inTx(ctx, "create pool", func(tx *sql.Tx) error {
		poolDerivation := ir.Derivation{Tag: ir.TagPool, Seeds: []string{pool.CompanyName}}
		if err := indexAddress(ctx, tx, pool.Address, poolDerivation); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		treasuryDerivation := ir.Derivation{Tag: ir.TagTreasury, Seeds: []string{pool.CompanyName}}
		if err := indexAddress(ctx, tx, pool.TreasuryAccount, treasuryDerivation); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO pools
			(address, owner, mint, company_name, treasury_account, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			string(pool.Address),
			string(pool.Owner),
			string(pool.Mint),
			pool.CompanyName,
			string(pool.TreasuryAccount),
			pool.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("create pool: %w: company %q", ErrAddressTaken, pool.CompanyName)
		}
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}

		if err := insertAccount(ctx, tx, treasury); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		return nil
	})
}

// CreateSchedule writes a schedule and its address index row.
// TotalWithdrawn is always stored as zero.
//
// Returns ErrNotFound if the pool does not exist and ErrAddressTaken if the
// (beneficiary, pool) pair already has a schedule.
func (s *Store) CreateSchedule(ctx context.Context, sched ir.Schedule) error {
	total, err := toSQLAmount(sched.TotalAmount)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	return s.inTx(ctx, "create schedule", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pools WHERE address = ?`,
			string(sched.PoolRef)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("create schedule: pool %s: %w", sched.PoolRef.Short(), ErrNotFound)
		}

		d := ir.Derivation{
			Tag:   ir.TagSchedule,
			Seeds: []string{string(sched.Beneficiary), string(sched.PoolRef)},
		}
		if err := indexAddress(ctx, tx, sched.Address, d); err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO schedules
			(address, beneficiary, pool, start_time, cliff_time, end_time, total_amount, total_withdrawn, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		`,
			string(sched.Address),
			string(sched.Beneficiary),
			string(sched.PoolRef),
			sched.StartTime,
			sched.CliffTime,
			sched.EndTime,
			total,
			sched.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("create schedule: %w: %s", ErrAddressTaken, sched.Address)
		}
		if err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		return nil
	})
}

// ClosePool removes a pool: the pool row, its treasury account, its
// schedules, and their address index rows. Claim history is kept with status
// archived so the same company name can be created again.
//
// Whatever the treasury still holds is moved to refundTo under refundID in
// the same transaction, so a refused close leaves every balance untouched.
// It returns the amount refunded.
//
// Preconditions, checked inside the transaction:
//   - no staged claims for the pool (ErrConflict)
//   - every schedule drained (ir ScheduleStillActive)
//   - an empty treasury, or a refund destination (ErrAccountNotEmpty)
func (s *Store) ClosePool(ctx context.Context, poolAddr, refundTo ir.Address, refundID string) (uint64, error) {
	var refunded uint64
	err := s.inTx(ctx, "close pool", func(tx *sql.Tx) error {
		pool, err := scanPool(tx.QueryRowContext(ctx, selectPool+` WHERE address = ?`, string(poolAddr)))
		if err != nil {
			return fmt.Errorf("close pool: %w", err)
		}

		var staged int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM claims WHERE pool = ? AND status = ?
		`, string(poolAddr), string(ir.ClaimStaged)).Scan(&staged)
		if err != nil {
			return fmt.Errorf("close pool: %w", err)
		}
		if staged > 0 {
			return fmt.Errorf("close pool: %d staged claims: %w", staged, ErrConflict)
		}

		var active int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM schedules WHERE pool = ? AND total_withdrawn < total_amount
		`, string(poolAddr)).Scan(&active)
		if err != nil {
			return fmt.Errorf("close pool: %w", err)
		}
		if active > 0 {
			return ir.NewError(ir.CodeScheduleStillActive, "%d schedules of %q are not drained",
				active, pool.CompanyName).With("active", fmt.Sprint(active))
		}

		treasury, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+` WHERE address = ?`,
			string(pool.TreasuryAccount)))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("close pool: %w", err)
		}
		if treasury.Balance > 0 {
			if refundTo == "" || refundID == "" {
				return fmt.Errorf("close pool: treasury holds %d: %w", treasury.Balance, ErrAccountNotEmpty)
			}
			err := applyTransfer(ctx, tx, ir.TransferRequest{
				ID:        refundID,
				From:      pool.TreasuryAccount,
				To:        refundTo,
				Mint:      pool.Mint,
				Amount:    treasury.Balance,
				Authority: pool.Address,
			})
			if err != nil {
				return fmt.Errorf("close pool: refund: %w", err)
			}
			refunded = treasury.Balance
		}

		statements := []struct {
			query string
			args  []any
		}{
			{`UPDATE claims SET status = 'archived' WHERE pool = ? AND status IN ('committed', 'aborted')`,
				[]any{string(poolAddr)}},
			{`DELETE FROM addresses WHERE address IN (SELECT address FROM schedules WHERE pool = ?)`,
				[]any{string(poolAddr)}},
			{`DELETE FROM schedules WHERE pool = ?`, []any{string(poolAddr)}},
			{`DELETE FROM token_accounts WHERE address = ?`, []any{string(pool.TreasuryAccount)}},
			{`DELETE FROM pools WHERE address = ?`, []any{string(poolAddr)}},
			{`DELETE FROM addresses WHERE address IN (?, ?)`,
				[]any{string(poolAddr), string(pool.TreasuryAccount)}},
		}
		for _, st := range statements {
			if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
				return fmt.Errorf("close pool: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return refunded, nil
}
