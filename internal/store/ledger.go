package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/vesting/internal/ir"
)

// Ledger is the reference token-transfer collaborator: mints, token accounts
// and an idempotent transfer journal. It shares the Store's database but none
// of its record tables.
//
// Every balance change is keyed by a caller-chosen ID. Applying the same ID
// twice is a no-op; Settle closes the window in which an ID might still apply.
type Ledger struct {
	db *sql.DB
}

// TransferRecord is one journal row.
type TransferRecord struct {
	Seq    int64      `json:"seq"`
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	From   ir.Address `json:"from,omitempty"`
	To     ir.Address `json:"to,omitempty"`
	Mint   ir.Address `json:"mint,omitempty"`
	Amount uint64     `json:"amount"`
	Status string     `json:"status"`
}

// Journal statuses.
const (
	TransferApplied = "applied"
	TransferVoided  = "voided"
)

// CreateMint registers a mint. Returns ErrAddressTaken if it exists.
func (l *Ledger) CreateMint(ctx context.Context, m ir.Mint) error {
	if m.Decimals > 18 {
		return fmt.Errorf("create mint: decimals %d out of range", m.Decimals)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO mints (address, authority, decimals, label)
		VALUES (?, ?, ?, ?)
	`, string(m.Address), string(m.Authority), int(m.Decimals), m.Label)
	if isUniqueViolation(err) {
		return fmt.Errorf("create mint: %w: %s", ErrAddressTaken, m.Address)
	}
	if err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	return nil
}

// Mint retrieves a mint. Returns ErrNotFound if it does not exist.
func (l *Ledger) Mint(ctx context.Context, addr ir.Address) (ir.Mint, error) {
	var m ir.Mint
	var authority string
	var decimals int
	err := l.db.QueryRowContext(ctx, `
		SELECT authority, decimals, label FROM mints WHERE address = ?
	`, string(addr)).Scan(&authority, &decimals, &m.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Mint{}, fmt.Errorf("mint %s: %w", addr.Short(), ErrNotFound)
	}
	if err != nil {
		return ir.Mint{}, fmt.Errorf("read mint: %w", err)
	}
	m.Address = addr
	m.Authority = ir.Address(authority)
	m.Decimals = uint8(decimals)
	return m, nil
}

// OpenAccount creates an empty token account, or returns the existing one
// when an account with the same mint and authority is already there.
// A different account at the address is ErrAddressTaken.
func (l *Ledger) OpenAccount(ctx context.Context, a ir.TokenAccount) (ir.TokenAccount, error) {
	var out ir.TokenAccount
	err := runTx(ctx, l.db, "open account", func(tx *sql.Tx) error {
		existing, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+` WHERE address = ?`, string(a.Address)))
		if err == nil {
			if existing.Mint != a.Mint || existing.Authority != a.Authority {
				return fmt.Errorf("open account: %w: %s", ErrAddressTaken, a.Address)
			}
			out = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("open account: %w", err)
		}

		a.Balance = 0
		if err := insertAccount(ctx, tx, a); err != nil {
			return fmt.Errorf("open account: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return ir.TokenAccount{}, err
	}
	return out, nil
}

// Account retrieves a token account. Returns ErrNotFound if missing.
func (l *Ledger) Account(ctx context.Context, addr ir.Address) (ir.TokenAccount, error) {
	a, err := scanAccount(l.db.QueryRowContext(ctx, selectAccount+` WHERE address = ?`, string(addr)))
	if err != nil {
		return ir.TokenAccount{}, fmt.Errorf("account %s: %w", addr.Short(), err)
	}
	return a, nil
}

// Accounts lists the accounts holding mint, by address.
func (l *Ledger) Accounts(ctx context.Context, mint ir.Address) ([]ir.TokenAccount, error) {
	rows, err := l.db.QueryContext(ctx, selectAccount+` WHERE mint = ? ORDER BY address`, string(mint))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ir.TokenAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Balance returns an account's balance.
func (l *Ledger) Balance(ctx context.Context, addr ir.Address) (uint64, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// MintTo issues new units into an account. Only the mint authority may
// issue. Idempotent by id.
func (l *Ledger) MintTo(ctx context.Context, id string, mint, to ir.Address, amount uint64, authority ir.Address) error {
	if id == "" {
		return fmt.Errorf("mint to: id is required")
	}
	if amount == 0 {
		return fmt.Errorf("mint to: amount must be positive")
	}
	return runTx(ctx, l.db, "mint to", func(tx *sql.Tx) error {
		rec := TransferRecord{ID: id, Kind: "mint", To: to, Mint: mint, Amount: amount}
		done, err := checkJournal(ctx, tx, rec)
		if err != nil || done {
			return err
		}

		var mintAuthority string
		err = tx.QueryRowContext(ctx, `SELECT authority FROM mints WHERE address = ?`, string(mint)).Scan(&mintAuthority)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mint to: mint %s: %w", mint.Short(), ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("mint to: %w", err)
		}
		if ir.Address(mintAuthority) != authority {
			return fmt.Errorf("mint to: %w", ErrAuthorityMismatch)
		}

		dest, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+` WHERE address = ?`, string(to)))
		if err != nil {
			return fmt.Errorf("mint to: account %s: %w", to.Short(), err)
		}
		if dest.Mint != mint {
			return fmt.Errorf("mint to: %w", ErrMintMismatch)
		}
		if err := credit(ctx, tx, dest, amount); err != nil {
			return fmt.Errorf("mint to: %w", err)
		}
		return appendJournal(ctx, tx, rec)
	})
}

// Transfer moves req.Amount from req.From to req.To.
//
// req.Authority must be the source account's authority. Both accounts must
// hold req.Mint. A request whose ID already applied with the same contents
// returns nil without moving funds again; a voided ID returns
// ErrTransferVoided.
func (l *Ledger) Transfer(ctx context.Context, req ir.TransferRequest) error {
	if req.ID == "" {
		return fmt.Errorf("transfer: id is required")
	}
	if req.Amount == 0 {
		return fmt.Errorf("transfer: amount must be positive")
	}
	if req.From == req.To {
		return fmt.Errorf("transfer: source and destination are the same account")
	}

	return runTx(ctx, l.db, "transfer", func(tx *sql.Tx) error {
		return applyTransfer(ctx, tx, req)
	})
}

// applyTransfer moves funds inside tx. Callers validate the request shape.
func applyTransfer(ctx context.Context, tx *sql.Tx, req ir.TransferRequest) error {
	rec := TransferRecord{
		ID:     req.ID,
		Kind:   "transfer",
		From:   req.From,
		To:     req.To,
		Mint:   req.Mint,
		Amount: req.Amount,
	}
	done, err := checkJournal(ctx, tx, rec)
	if err != nil || done {
		return err
	}

	src, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+` WHERE address = ?`, string(req.From)))
	if err != nil {
		return fmt.Errorf("transfer: source %s: %w", req.From.Short(), err)
	}
	dst, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+` WHERE address = ?`, string(req.To)))
	if err != nil {
		return fmt.Errorf("transfer: destination %s: %w", req.To.Short(), err)
	}

	if src.Authority != req.Authority {
		return fmt.Errorf("transfer: %w", ErrAuthorityMismatch)
	}
	if src.Mint != req.Mint || dst.Mint != req.Mint {
		return fmt.Errorf("transfer: %w", ErrMintMismatch)
	}
	if src.Balance < req.Amount {
		return fmt.Errorf("transfer: balance %d, need %d: %w", src.Balance, req.Amount, ErrInsufficientFunds)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE token_accounts SET balance = balance - ? WHERE address = ?`,
		int64(req.Amount), string(req.From)); err != nil {
		return fmt.Errorf("transfer: debit: %w", err)
	}
	if err := credit(ctx, tx, dst, req.Amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return appendJournal(ctx, tx, rec)
}

// Settle resolves an ambiguous transfer. If id applied, it returns true.
// Otherwise it writes a void tombstone so id can never apply, and returns
// false. Settling a voided id returns false again.
func (l *Ledger) Settle(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := runTx(ctx, l.db, "settle", func(tx *sql.Tx) error {
		status, err := journalStatus(ctx, tx, id)
		if err == nil {
			applied = status == TransferApplied
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("settle: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO token_transfers (id, kind, status) VALUES (?, 'void', ?)
		`, id, TransferVoided)
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Journal returns the transfers touching account (or all when empty),
// in the order they were recorded.
func (l *Ledger) Journal(ctx context.Context, account ir.Address) ([]TransferRecord, error) {
	query := `
		SELECT seq, id, kind, COALESCE(from_account, ''), COALESCE(to_account, ''),
		       COALESCE(mint, ''), amount, status
		FROM token_transfers`
	var args []any
	if account != "" {
		query += ` WHERE from_account = ? OR to_account = ?`
		args = append(args, string(account), string(account))
	}
	query += ` ORDER BY seq ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	records := []TransferRecord{}
	for rows.Next() {
		var r TransferRecord
		var from, to, mint string
		var amount int64
		if err := rows.Scan(&r.Seq, &r.ID, &r.Kind, &from, &to, &mint, &amount, &r.Status); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		r.From, r.To, r.Mint = ir.Address(from), ir.Address(to), ir.Address(mint)
		if r.Amount, err = fromSQLAmount(amount, "amount"); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return records, nil
}

const selectAccount = `
	SELECT address, mint, authority, balance
	FROM token_accounts`

func scanAccount(row rowScanner) (ir.TokenAccount, error) {
	var a ir.TokenAccount
	var address, mint, authority string
	var balance int64
	err := row.Scan(&address, &mint, &authority, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TokenAccount{}, ErrNotFound
	}
	if err != nil {
		return ir.TokenAccount{}, fmt.Errorf("scan account: %w", err)
	}
	a.Address = ir.Address(address)
	a.Mint = ir.Address(mint)
	a.Authority = ir.Address(authority)
	if a.Balance, err = fromSQLAmount(balance, "balance"); err != nil {
		return ir.TokenAccount{}, err
	}
	return a, nil
}

// insertAccount writes an empty account inside tx.
func insertAccount(ctx context.Context, tx *sql.Tx, a ir.TokenAccount) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM mints WHERE address = ?`,
		string(a.Mint)).Scan(&exists); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("insert account: mint %s: %w", a.Mint.Short(), ErrNotFound)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_accounts (address, mint, authority, balance)
		VALUES (?, ?, ?, 0)
	`, string(a.Address), string(a.Mint), string(a.Authority))
	if isUniqueViolation(err) {
		return fmt.Errorf("insert account: %w: %s", ErrAddressTaken, a.Address)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// credit adds amount to dst, refusing to exceed the INTEGER range.
func credit(ctx context.Context, tx *sql.Tx, dst ir.TokenAccount, amount uint64) error {
	if amount > math.MaxInt64 || dst.Balance > math.MaxInt64-amount {
		return fmt.Errorf("credit %s: %w", dst.Address.Short(), ErrBalanceOverflow)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE token_accounts SET balance = balance + ? WHERE address = ?`,
		int64(amount), string(dst.Address)); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

func journalStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM token_transfers WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// checkJournal reports whether rec.ID already applied. An applied row with
// different contents is ErrTransferIDConflict; a voided one is
// ErrTransferVoided.
func checkJournal(ctx context.Context, tx *sql.Tx, rec TransferRecord) (bool, error) {
	var kind, from, to, mint, status string
	var amount int64
	err := tx.QueryRowContext(ctx, `
		SELECT kind, COALESCE(from_account, ''), COALESCE(to_account, ''), COALESCE(mint, ''), amount, status
		FROM token_transfers WHERE id = ?
	`, rec.ID).Scan(&kind, &from, &to, &mint, &amount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: journal: %w", rec.Kind, err)
	}

	if status == TransferVoided {
		return false, fmt.Errorf("%s %s: %w", rec.Kind, rec.ID, ErrTransferVoided)
	}
	if kind != rec.Kind || ir.Address(from) != rec.From || ir.Address(to) != rec.To ||
		ir.Address(mint) != rec.Mint || amount != int64(rec.Amount) {
		return false, fmt.Errorf("%s %s: %w", rec.Kind, rec.ID, ErrTransferIDConflict)
	}
	return true, nil
}

func appendJournal(ctx context.Context, tx *sql.Tx, rec TransferRecord) error {
	var from any
	if rec.From != "" {
		from = string(rec.From)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transfers (id, kind, from_account, to_account, mint, amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind, from, string(rec.To), string(rec.Mint), int64(rec.Amount), TransferApplied)
	if err != nil {
		return fmt.Errorf("%s: journal: %w", rec.Kind, err)
	}
	return nil
}
