package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/vesting/internal/ir"
	"github.com/roach88/vesting/internal/testutil"
)

const T int64 = 1_700_000_000

// cliEnv runs commands against one database on a fixed clock.
type cliEnv struct {
	t      *testing.T
	dir    string
	db     string
	clock  *testutil.FixedClock
	actors testutil.Actors
	keys   map[string]string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	e := &cliEnv{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "vesting.db"),
		clock:  testutil.NewFixedClock(T),
		actors: testutil.NewActors("issuer", "owner", "alice", "bob"),
		keys:   make(map[string]string),
	}
	for name, a := range e.actors {
		path := filepath.Join(dir, name+".key")
		require.NoError(t, os.WriteFile(path, []byte(a.SeedHex()+"\n"), 0o600))
		e.keys[name] = path
	}
	return e
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// run executes the CLI as actor ("" for no key).
func (e *cliEnv) run(actor string, args ...string) cliResult {
	e.t.Helper()
	args = append(args, "--db", e.db)
	if actor != "" {
		args = append(args, "--key", e.keys[actor])
	}
	var stdout, stderr bytes.Buffer
	opts := &RootOptions{clock: e.clock, log: zap.NewNop()}
	code := execute(opts, args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// ok runs a command that must succeed.
func (e *cliEnv) ok(actor string, args ...string) string {
	e.t.Helper()
	res := e.run(actor, args...)
	require.Equal(e.t, ExitSuccess, res.code, "stdout: %s\nstderr: %s", res.stdout, res.stderr)
	return res.stdout
}

// okJSON runs a command with --format json and decodes the data payload.
func (e *cliEnv) okJSON(actor string, data any, args ...string) {
	e.t.Helper()
	out := e.ok(actor, append(args, "--format", "json")...)
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(e.t, "ok", resp.Status)
	require.NoError(e.t, json.Unmarshal(resp.Data, data))
}

func (e *cliEnv) id(name string) string {
	return string(e.actors[name].Identity())
}

func (e *cliEnv) mint() string {
	return string(ir.MustDerive(ir.TagMint, e.id("issuer"), "VEST"))
}

func at(offset int64) string {
	return strconv.FormatInt(T+offset, 10)
}

// setupPool creates the mint, funds the owner and opens a funded pool with
// one 1000 grant for alice: start T-10, cliff T+5, end T+30.
func (e *cliEnv) setupPool(fund string) {
	e.t.Helper()
	e.ok("issuer", "mint", "create", "VEST")
	e.ok("issuer", "mint", "issue", e.mint(), e.id("owner"), "10000", "--id", "seed")
	e.ok("owner", "create-vesting", "Solana Corp", e.mint())
	e.ok("owner", "fund", "Solana Corp", fund)
	e.ok("owner", "create-employee", "Solana Corp", e.id("alice"),
		"--start", at(-10), "--cliff", at(5), "--end", at(30), "--amount", "1000")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
