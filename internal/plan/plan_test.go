package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vesting/internal/ir"
)

var (
	addrA = strings.Repeat("a", 64)
	addrB = strings.Repeat("b", 64)
	mint  = strings.Repeat("c", 64)
)

func compileString(t *testing.T, src string) (ir.Plan, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	return Compile(v)
}

func TestCompile(t *testing.T) {
	p, err := compileString(t, `
		company: "Acme"
		mint:    "`+strings.ToUpper(mint)+`"
		grants: [{beneficiary: "`+addrA+`", start: 10, cliff: 20, end: 30, amount: 500}]
	`)
	require.NoError(t, err)

	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, ir.Address(mint), p.Mint, "addresses are lowercased")
	require.Len(t, p.Grants, 1)
	assert.Equal(t, ir.Grant{
		Beneficiary: ir.Address(addrA),
		StartTime:   10,
		CliffTime:   20,
		EndTime:     30,
		Amount:      500,
	}, p.Grants[0])
}

func TestCompile_SchemaViolations(t *testing.T) {
	grant := func(fields string) string {
		return `company: "Acme", mint: "` + mint + `", grants: [{` + fields + `}]`
	}
	tests := []struct {
		name string
		src  string
	}{
		{"cliff before start", grant(`beneficiary: "` + addrA + `", start: 20, cliff: 10, end: 30, amount: 1`)},
		{"end before cliff", grant(`beneficiary: "` + addrA + `", start: 0, cliff: 20, end: 10, amount: 1`)},
		{"zero amount", grant(`beneficiary: "` + addrA + `", start: 0, cliff: 0, end: 0, amount: 0`)},
		{"amount too large", grant(`beneficiary: "` + addrA + `", start: 0, cliff: 0, end: 0, amount: 9223372036854775808`)},
		{"float time", grant(`beneficiary: "` + addrA + `", start: 0.5, cliff: 1, end: 2, amount: 1`)},
		{"short beneficiary", grant(`beneficiary: "abc", start: 0, cliff: 0, end: 0, amount: 1`)},
		{"missing amount", grant(`beneficiary: "` + addrA + `", start: 0, cliff: 0, end: 0`)},
		{"unknown field", grant(`beneficiary: "` + addrA + `", start: 0, cliff: 0, end: 0, amount: 1, bonus: 5`)},
		{"blank company", `company: "  ", mint: "` + mint + `", grants: []`},
		{"missing mint", `company: "Acme", grants: []`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			assert.Error(t, err)
		})
	}
}

func TestCompile_EmptyGrants(t *testing.T) {
	p, err := compileString(t, `company: "Acme", mint: "`+mint+`", grants: []`)
	require.NoError(t, err)
	assert.Empty(t, p.Grants)
}

func TestLoad(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "solana.cue"))
	require.NoError(t, err)

	assert.Equal(t, "Solana Corp", p.Company)
	require.Len(t, p.Grants, 2)
	assert.Equal(t, uint64(2000), p.Grants[1].Amount)
	assert.Equal(t, int64(1700000005), p.Grants[1].CliffTime)
}

func TestLoad_PositionedError(t *testing.T) {
	path := filepath.Join("testdata", "bad_cliff.cue")
	_, err := Load(path)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "bad_cliff.cue")
}

func TestLoad_Duplicate(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "duplicate.cue"))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrDuplicateBeneficiary, ve.Code)
	assert.Equal(t, "grants[1].beneficiary", ve.Field)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}

func TestLoad_Syntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("company: \"Acme\"\ngrants: [\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	assert.Empty(t, Check(filepath.Join("testdata", "solana.cue")))
	assert.Len(t, Check(filepath.Join("testdata", "duplicate.cue")), 1)
	assert.Len(t, Check(filepath.Join("testdata", "bad_cliff.cue")), 1)
}

func TestValidate(t *testing.T) {
	p := ir.Plan{
		Company: "Acme",
		Mint:    ir.Address(mint),
		Grants: []ir.Grant{
			{Beneficiary: ir.Address(addrA), Amount: 1},
			{Beneficiary: ir.Address(mint), Amount: 1},
			{Beneficiary: ir.Address(addrA), Amount: 2},
			{Beneficiary: ir.Address(addrB), Amount: 3},
		},
	}

	errs := Validate(p)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrOwnMint, errs[0].Code)
	assert.Equal(t, ErrDuplicateBeneficiary, errs[1].Code)
	assert.Equal(t, "grants[2].beneficiary", errs[1].Field)

	errs = Validate(ir.Plan{Company: "Acme", Mint: ir.Address(mint)})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoGrants, errs[0].Code)
}
