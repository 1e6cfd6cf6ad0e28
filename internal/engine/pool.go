package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// MaxCompanyNameLen bounds a company name in bytes, after normalization.
const MaxCompanyNameLen = 64

// NormalizeCompanyName trims and NFC-normalizes name, the form stored on the
// pool and used for derivation.
func NormalizeCompanyName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", ir.NewError(ir.CodeInvalidArgument, "company name is not valid UTF-8")
	}
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", ir.NewError(ir.CodeInvalidArgument, "company name is required")
	}
	if len(name) > MaxCompanyNameLen {
		return "", ir.NewError(ir.CodeInvalidArgument, "company name is %d bytes, limit %d",
			len(name), MaxCompanyNameLen)
	}
	return name, nil
}

// CreateVesting creates the pool for companyName with the caller as owner,
// together with its empty treasury account.
//
// Errors: InvalidArgument (name), Unauthorized (anonymous caller),
// AccountNotFound (mint), AccountAlreadyExists (name taken).
func (e *Engine) CreateVesting(ctx context.Context, caller auth.Caller, companyName string, mint ir.Address) (ir.Pool, error) {
	_, log := e.begin("create_vesting")

	owner := caller.Identity()
	if owner == "" {
		return ir.Pool{}, fail(log, ir.NewError(ir.CodeUnauthorized, "a verified caller is required"))
	}
	name, err := NormalizeCompanyName(companyName)
	if err != nil {
		return ir.Pool{}, fail(log, err)
	}
	if _, err := e.ledger.Mint(ctx, mint); err != nil {
		return ir.Pool{}, fail(log, storeError(err, "mint %s", mint.Short()))
	}

	poolAddr, err := ir.PoolAddress(name)
	if err != nil {
		return ir.Pool{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "derive pool"))
	}
	treasuryAddr, err := ir.TreasuryAddress(name)
	if err != nil {
		return ir.Pool{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "derive treasury"))
	}

	pool := ir.Pool{
		Address:         poolAddr,
		Owner:           owner,
		Mint:            mint,
		CompanyName:     name,
		TreasuryAccount: treasuryAddr,
		CreatedAt:       e.clock.Now(),
	}
	treasuryAcct := ir.TokenAccount{Address: treasuryAddr, Mint: mint, Authority: poolAddr}

	if err := e.store.CreatePool(ctx, pool, treasuryAcct); err != nil {
		return ir.Pool{}, fail(log, storeError(err, "pool %q", name))
	}

	log.Info("pool created",
		zap.String("pool", string(pool.Address)),
		zap.String("company", name),
		zap.String("owner", string(owner)),
		zap.String("mint", string(mint)),
	)
	return pool, nil
}

// Fund moves amount from the caller's holding account into the pool's
// treasury. Anyone may fund a pool; the ledger checks the caller controls
// the source account.
func (e *Engine) Fund(ctx context.Context, caller auth.Caller, poolAddr ir.Address, amount uint64) (ir.TokenAccount, error) {
	opID, log := e.begin("fund")

	if caller.Identity() == "" {
		return ir.TokenAccount{}, fail(log, ir.NewError(ir.CodeUnauthorized, "a verified caller is required"))
	}
	if amount == 0 {
		return ir.TokenAccount{}, fail(log, ir.NewError(ir.CodeInvalidArgument, "amount must be positive"))
	}
	pool, err := e.store.Pool(ctx, poolAddr)
	if err != nil {
		return ir.TokenAccount{}, fail(log, storeError(err, "pool %s", poolAddr.Short()))
	}

	from, err := ir.HoldingAddress(caller.Identity(), pool.Mint)
	if err != nil {
		return ir.TokenAccount{}, fail(log, ir.WrapError(ir.CodeInvalidArgument, err, "holding address"))
	}
	id, err := ir.TransferID("fund", string(pool.Address), opID)
	if err != nil {
		return ir.TokenAccount{}, fail(log, err)
	}

	req := ir.TransferRequest{
		ID:        id,
		From:      from,
		To:        pool.TreasuryAccount,
		Mint:      pool.Mint,
		Amount:    amount,
		Authority: caller.Identity(),
	}
	if err := e.transfer(ctx, req); err != nil {
		return ir.TokenAccount{}, fail(log, ledgerError(err, "fund %q with %d", pool.CompanyName, amount))
	}

	acct, err := e.ledger.Account(ctx, pool.TreasuryAccount)
	if err != nil {
		return ir.TokenAccount{}, fail(log, storeError(err, "treasury %s", pool.TreasuryAccount.Short()))
	}
	log.Info("pool funded",
		zap.String("pool", string(pool.Address)),
		zap.String("from", string(caller.Identity())),
		zap.Uint64("amount", amount),
		zap.Uint64("treasury_balance", acct.Balance),
	)
	return acct, nil
}

// CloseResult describes a closed pool.
type CloseResult struct {
	Pool     ir.Pool `json:"pool"`
	Refunded uint64  `json:"refunded"`
}

// CloseVesting closes a pool: the residual treasury balance goes back to
// the owner's holding account and the pool, treasury and drained schedules
// are removed, freeing the company name.
//
// Closing is refused with ScheduleStillActive while any schedule still has
// unpaid entitlement, whether or not it has vested yet.
func (e *Engine) CloseVesting(ctx context.Context, caller auth.Caller, poolAddr ir.Address) (CloseResult, error) {
	opID, log := e.begin("close_vesting")

	pool, err := e.store.Pool(ctx, poolAddr)
	if err != nil {
		return CloseResult{}, fail(log, storeError(err, "pool %s", poolAddr.Short()))
	}
	if err := auth.Require(caller, pool.Owner, "owner"); err != nil {
		return CloseResult{}, fail(log, err)
	}

	if _, err := e.settleClaims(ctx, log, store.ClaimFilter{Pool: pool.Address, Status: ir.ClaimStaged}); err != nil {
		return CloseResult{}, fail(log, err)
	}

	schedules, err := e.store.Schedules(ctx, pool.Address)
	if err != nil {
		return CloseResult{}, fail(log, err)
	}
	active := 0
	for _, s := range schedules {
		if !s.Drained() {
			active++
		}
	}
	if active > 0 {
		return CloseResult{}, fail(log, ir.NewError(ir.CodeScheduleStillActive,
			"%d of %d schedules in %q are not drained", active, len(schedules), pool.CompanyName).
			With("active", fmt.Sprint(active)))
	}

	// The refund and the removal commit together; the balance read here only
	// decides whether a destination account is needed.
	var refundTo ir.Address
	acct, err := e.ledger.Account(ctx, pool.TreasuryAccount)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
	default:
		return CloseResult{}, fail(log, ledgerError(err, "read treasury"))
	}
	if acct.Balance > 0 {
		holding, err := e.openHolding(ctx, pool.Owner, pool.Mint)
		if err != nil {
			return CloseResult{}, fail(log, err)
		}
		refundTo = holding.Address
	}
	refundID, err := ir.TransferID("close", string(pool.Address), opID)
	if err != nil {
		return CloseResult{}, fail(log, err)
	}

	refunded, err := e.store.ClosePool(ctx, pool.Address, refundTo, refundID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotEmpty) || errors.Is(err, store.ErrConflict) {
			return CloseResult{}, fail(log, ir.WrapError(ir.CodeTransferFailed, err,
				"pool %q changed while closing", pool.CompanyName).With("retryable", "true"))
		}
		return CloseResult{}, fail(log, storeError(err, "close pool %q", pool.CompanyName))
	}

	log.Info("pool closed",
		zap.String("pool", string(pool.Address)),
		zap.String("company", pool.CompanyName),
		zap.Uint64("refunded", refunded),
	)
	return CloseResult{Pool: pool, Refunded: refunded}, nil
}

// transfer applies req; on failure it settles the ID so the outcome is
// known. Returns nil if the transfer turned out to have applied.
func (e *Engine) transfer(ctx context.Context, req ir.TransferRequest) error {
	terr := e.ledger.Transfer(ctx, req)
	if terr == nil {
		return nil
	}
	applied, serr := e.ledger.Settle(ctx, req.ID)
	if serr != nil {
		return ir.WrapError(ir.CodeTransferFailed, errors.Join(terr, serr),
			"transfer %s outcome unknown", ir.Address(req.ID).Short()).With("retryable", "true")
	}
	if applied {
		return nil
	}
	return ledgerError(terr, "transfer of %d from %s", req.Amount, req.From.Short())
}
