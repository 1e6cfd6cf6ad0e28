package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// Ledger is the token-transfer collaborator. *store.Ledger implements it.
//
// Transfer must be idempotent by request ID. Settle must atomically either
// report that an ID applied or guarantee that it never will.
type Ledger interface {
	Mint(ctx context.Context, addr ir.Address) (ir.Mint, error)
	OpenAccount(ctx context.Context, acct ir.TokenAccount) (ir.TokenAccount, error)
	Account(ctx context.Context, addr ir.Address) (ir.TokenAccount, error)
	Transfer(ctx context.Context, req ir.TransferRequest) error
	Settle(ctx context.Context, id string) (applied bool, err error)
}

// Engine runs the vesting lifecycle operations against a store and ledger.
//
// Thread-safety: an Engine holds no mutable state of its own; concurrent
// operations are serialized by the store (single SQLite connection) and
// guarded against double payment by the claim log.
type Engine struct {
	store  *store.Store
	ledger Ledger
	clock  Clock
	opIDs  OpIDGenerator
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithOpIDGenerator sets the operation ID source. Default: UUIDv7Generator.
func WithOpIDGenerator(gen OpIDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.opIDs = gen
		}
	}
}

// New creates an Engine. The ledger is usually st.Ledger(); tests wrap it to
// inject failures.
func New(st *store.Store, ledger Ledger, clock Clock, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		ledger: ledger,
		clock:  clock,
		opIDs:  UUIDv7Generator{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock's current time.
func (e *Engine) Now() int64 {
	return e.clock.Now()
}

// begin starts an operation: allocates its ID and a logger carrying it.
func (e *Engine) begin(op string) (string, *zap.Logger) {
	opID := e.opIDs.Generate()
	return opID, e.log.With(zap.String("op", op), zap.String("op_id", opID))
}

// fail logs err at debug level and returns it unchanged.
func fail(log *zap.Logger, err error) error {
	log.Debug("operation failed",
		zap.String("code", string(ir.CodeOf(err))),
		zap.Error(err),
	)
	return err
}

// treasury is the capability to move funds out of one pool's treasury.
// It is only built from a stored pool record, inside this package.
type treasury struct {
	pool ir.Pool
}

// pay builds a transfer request signed by the pool's own authority.
func (t treasury) pay(id string, to ir.Address, amount uint64) ir.TransferRequest {
	return ir.TransferRequest{
		ID:        id,
		From:      t.pool.TreasuryAccount,
		To:        to,
		Mint:      t.pool.Mint,
		Amount:    amount,
		Authority: t.pool.Address,
	}
}

// openHolding opens (or returns) the default holding account of owner.
func (e *Engine) openHolding(ctx context.Context, owner, mint ir.Address) (ir.TokenAccount, error) {
	addr, err := ir.HoldingAddress(owner, mint)
	if err != nil {
		return ir.TokenAccount{}, ir.WrapError(ir.CodeInvalidArgument, err, "holding address")
	}
	acct, err := e.ledger.OpenAccount(ctx, ir.TokenAccount{Address: addr, Mint: mint, Authority: owner})
	if err != nil {
		return ir.TokenAccount{}, ledgerError(err, "open holding account %s", addr.Short())
	}
	return acct, nil
}
