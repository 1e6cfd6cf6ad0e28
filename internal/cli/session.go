package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/vesting/internal/auth"
	"github.com/roach88/vesting/internal/engine"
	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/store"
)

// session is an open database with an engine on top.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

func (o *RootOptions) open() (*session, error) {
	st, err := store.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open database %s", o.DB), err)
	}
	clock := o.clock
	if clock == nil {
		clock = engine.NewSystemClock()
	}
	eng := engine.New(st, st.Ledger(), clock, engine.WithLogger(o.log))
	return &session{store: st, engine: eng}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// signer loads the caller's key.
func (o *RootOptions) signer() (*auth.Signer, error) {
	if o.Key == "" {
		return nil, NewExitError(ExitCommandError, "a key file is required (--key or VESTING_KEY_FILE)")
	}
	key, err := auth.LoadKeyFile(o.Key)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load key", err)
	}
	signer, err := auth.NewSigner(key, o.cfg.Token.Auth())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load key", err)
	}
	return signer, nil
}

// caller signs a fresh token with the key and verifies it, the same way a
// remote caller's token would be checked.
func (o *RootOptions) caller() (auth.Caller, error) {
	signer, err := o.signer()
	if err != nil {
		return auth.Caller{}, err
	}
	token, err := signer.Sign()
	if err != nil {
		return auth.Caller{}, WrapExitError(ExitCommandError, "sign caller token", err)
	}
	return auth.NewVerifier(o.cfg.Token.Auth()).Verify(token)
}

// identity is the address of the caller's key.
func (o *RootOptions) identity() (ir.Address, error) {
	signer, err := o.signer()
	if err != nil {
		return "", err
	}
	return signer.Identity(), nil
}

func parseAddress(what, s string) (ir.Address, error) {
	addr, err := ir.ParseAddress(s)
	if err != nil {
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", what), err)
	}
	return addr, nil
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", s), err)
	}
	return v, nil
}

// parseTime accepts unix seconds or an RFC 3339 timestamp.
func parseTime(flag, s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid --%s %q: want unix seconds or RFC 3339", flag, s))
	}
	return t.Unix(), nil
}

func formatTime(unix int64) string {
	return fmt.Sprintf("%d (%s)", unix, time.Unix(unix, 0).UTC().Format(time.RFC3339))
}
