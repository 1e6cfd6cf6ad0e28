package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vesting/internal/ir"
)

// ClaimFilter selects claim log rows. Empty fields match everything.
type ClaimFilter struct {
	Schedule ir.Address
	Pool     ir.Address
	Status   ir.ClaimStatus
}

const selectClaim = `
	SELECT id, op_id, schedule, pool, beneficiary, amount, withdrawn_before, claimed_at, status
	FROM claims`

// StageClaim records phase one of a claim.
//
// The claim must be computed from the schedule's current total_withdrawn
// (c.WithdrawnBefore); if that moved, or another live claim was computed from
// the same base, ErrConflict is returned and nothing is written.
func (s *Store) StageClaim(ctx context.Context, c ir.Claim) error {
	amount, err := toSQLAmount(c.Amount)
	if err != nil {
		return fmt.Errorf("stage claim: %w", err)
	}
	before, err := toSQLAmount(c.WithdrawnBefore)
	if err != nil {
		return fmt.Errorf("stage claim: %w", err)
	}
	if c.Amount == 0 {
		return fmt.Errorf("stage claim: amount must be positive")
	}

	return s.inTx(ctx, "stage claim", func(tx *sql.Tx) error {
		sched, err := scanSchedule(tx.QueryRowContext(ctx, selectSchedule+` WHERE address = ?`, string(c.Schedule)))
		if err != nil {
			return fmt.Errorf("stage claim: schedule %s: %w", c.Schedule.Short(), err)
		}
		if sched.TotalWithdrawn != c.WithdrawnBefore {
			return fmt.Errorf("stage claim: computed from withdrawn %d, schedule has %d: %w",
				c.WithdrawnBefore, sched.TotalWithdrawn, ErrConflict)
		}
		if c.Amount > sched.TotalAmount-sched.TotalWithdrawn {
			return ir.NewError(ir.CodeArithmeticOverflow, "claim of %d exceeds remaining %d",
				c.Amount, sched.TotalAmount-sched.TotalWithdrawn)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO claims
			(id, op_id, schedule, pool, beneficiary, amount, withdrawn_before, claimed_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID,
			c.OpID,
			string(c.Schedule),
			string(c.Pool),
			string(c.Beneficiary),
			amount,
			before,
			c.ClaimedAt,
			string(ir.ClaimStaged),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("stage claim: live claim exists for base %d: %w", c.WithdrawnBefore, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("stage claim: %w", err)
		}
		return nil
	})
}

// CommitClaim records phase two: the claim's transfer is known to have
// applied. In one transaction the claim is marked committed and the
// schedule's total_withdrawn is re-derived as the sum of its committed
// claims. Committing an already committed claim is a no-op.
//
// A sum above total_amount, or below the stored total, is ArithmeticOverflow
// and nothing changes.
func (s *Store) CommitClaim(ctx context.Context, id string) (ir.Schedule, error) {
	var out ir.Schedule
	err := s.inTx(ctx, "commit claim", func(tx *sql.Tx) error {
		c, err := scanClaim(tx.QueryRowContext(ctx, selectClaim+` WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}
		switch c.Status {
		case ir.ClaimStaged:
			if _, err := tx.ExecContext(ctx, `UPDATE claims SET status = ? WHERE id = ?`,
				string(ir.ClaimCommitted), id); err != nil {
				return fmt.Errorf("commit claim: %w", err)
			}
		case ir.ClaimCommitted:
		default:
			return fmt.Errorf("commit claim: claim is %s: %w", c.Status, ErrConflict)
		}

		sched, err := scanSchedule(tx.QueryRowContext(ctx, selectSchedule+` WHERE address = ?`, string(c.Schedule)))
		if err != nil {
			return fmt.Errorf("commit claim: schedule %s: %w", c.Schedule.Short(), err)
		}

		var sum int64
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM claims WHERE schedule = ? AND status = ?
		`, string(c.Schedule), string(ir.ClaimCommitted)).Scan(&sum)
		if err != nil {
			return fmt.Errorf("commit claim: sum: %w", err)
		}
		withdrawn, err := fromSQLAmount(sum, "committed sum")
		if err != nil {
			return err
		}
		if withdrawn > sched.TotalAmount {
			return ir.NewError(ir.CodeArithmeticOverflow, "committed claims sum to %d, total is %d",
				withdrawn, sched.TotalAmount)
		}
		if withdrawn < sched.TotalWithdrawn {
			return ir.NewError(ir.CodeArithmeticOverflow, "committed claims sum to %d, below recorded %d",
				withdrawn, sched.TotalWithdrawn)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE schedules SET total_withdrawn = ? WHERE address = ?`,
			sum, string(c.Schedule)); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		sched.TotalWithdrawn = withdrawn
		out = sched
		return nil
	})
	if err != nil {
		return ir.Schedule{}, err
	}
	return out, nil
}

// AbortClaim marks a staged claim aborted: its transfer is known never to
// apply. Aborting an aborted claim is a no-op; aborting a committed one is
// ErrConflict.
func (s *Store) AbortClaim(ctx context.Context, id string) error {
	return s.inTx(ctx, "abort claim", func(tx *sql.Tx) error {
		c, err := scanClaim(tx.QueryRowContext(ctx, selectClaim+` WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("abort claim: %w", err)
		}
		switch c.Status {
		case ir.ClaimAborted:
			return nil
		case ir.ClaimStaged:
		default:
			return fmt.Errorf("abort claim: claim is %s: %w", c.Status, ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE claims SET status = ? WHERE id = ?`,
			string(ir.ClaimAborted), id); err != nil {
			return fmt.Errorf("abort claim: %w", err)
		}
		return nil
	})
}

// Claim retrieves one claim log row.
func (s *Store) Claim(ctx context.Context, id string) (ir.Claim, error) {
	c, err := scanClaim(s.db.QueryRowContext(ctx, selectClaim+` WHERE id = ?`, id))
	if err != nil {
		return ir.Claim{}, fmt.Errorf("read claim: %w", err)
	}
	return c, nil
}

// Claims returns claim log rows matching f in the order they were staged.
func (s *Store) Claims(ctx context.Context, f ClaimFilter) ([]ir.Claim, error) {
	query := selectClaim + ` WHERE 1 = 1`
	var args []any
	if f.Schedule != "" {
		query += ` AND schedule = ?`
		args = append(args, string(f.Schedule))
	}
	if f.Pool != "" {
		query += ` AND pool = ?`
		args = append(args, string(f.Pool))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	claims := []ir.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}

func scanClaim(row rowScanner) (ir.Claim, error) {
	var c ir.Claim
	var schedule, pool, beneficiary, status string
	var amount, before int64
	err := row.Scan(&c.ID, &c.OpID, &schedule, &pool, &beneficiary, &amount, &before, &c.ClaimedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Claim{}, ErrNotFound
	}
	if err != nil {
		return ir.Claim{}, fmt.Errorf("scan claim: %w", err)
	}

	c.Schedule = ir.Address(schedule)
	c.Pool = ir.Address(pool)
	c.Beneficiary = ir.Address(beneficiary)
	c.Status = ir.ClaimStatus(status)
	if c.Amount, err = fromSQLAmount(amount, "amount"); err != nil {
		return ir.Claim{}, err
	}
	if c.WithdrawnBefore, err = fromSQLAmount(before, "withdrawn_before"); err != nil {
		return ir.Claim{}, err
	}
	return c, nil
}
