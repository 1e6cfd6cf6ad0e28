package plan

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vesting/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// schemaFor compiles the plan schema in the context of v.
func schemaFor(v cue.Value) (cue.Value, error) {
	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("plan schema: %w", err)
	}
	return schema.LookupPath(cue.ParsePath("#Plan")), nil
}

// Compile checks v against the plan schema and converts it to an ir.Plan.
//
// v is the plan struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`company: "Acme", mint: "...", grants: []`)
//	p, err := Compile(v)
func Compile(v cue.Value) (ir.Plan, error) {
	if err := v.Err(); err != nil {
		return ir.Plan{}, formatCUEError(err)
	}
	def, err := schemaFor(v)
	if err != nil {
		return ir.Plan{}, err
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.Plan{}, formatCUEError(err)
	}

	var p ir.Plan
	if p.Company, err = stringField(v, "company"); err != nil {
		return ir.Plan{}, err
	}
	mint, err := stringField(v, "mint")
	if err != nil {
		return ir.Plan{}, err
	}
	if p.Mint, err = addressField(v, "mint", mint); err != nil {
		return ir.Plan{}, err
	}

	p.Grants, err = parseGrants(v.LookupPath(cue.ParsePath("grants")))
	if err != nil {
		return ir.Plan{}, err
	}
	return p, nil
}

func parseGrants(v cue.Value) ([]ir.Grant, error) {
	grants := []ir.Grant{}
	if !v.Exists() {
		return grants, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		g, err := parseGrant(iter.Value())
		if err != nil {
			if ce, ok := err.(*CompileError); ok {
				ce.Field = fmt.Sprintf("grants[%d].%s", i, ce.Field)
			}
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}

func parseGrant(v cue.Value) (ir.Grant, error) {
	var g ir.Grant
	raw, err := stringField(v, "beneficiary")
	if err != nil {
		return g, err
	}
	if g.Beneficiary, err = addressField(v, "beneficiary", raw); err != nil {
		return g, err
	}
	if g.StartTime, err = intField(v, "start"); err != nil {
		return g, err
	}
	if g.CliffTime, err = intField(v, "cliff"); err != nil {
		return g, err
	}
	if g.EndTime, err = intField(v, "end"); err != nil {
		return g, err
	}
	amount := v.LookupPath(cue.ParsePath("amount"))
	if g.Amount, err = amount.Uint64(); err != nil {
		return g, &CompileError{Field: "amount", Message: err.Error(), Pos: amount.Pos()}
	}
	return g, nil
}

func stringField(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: err.Error(), Pos: f.Pos()}
	}
	return s, nil
}

func intField(v cue.Value, name string) (int64, error) {
	f := v.LookupPath(cue.ParsePath(name))
	n, err := f.Int64()
	if err != nil {
		return 0, &CompileError{Field: name, Message: err.Error(), Pos: f.Pos()}
	}
	return n, nil
}

func addressField(v cue.Value, name, raw string) (ir.Address, error) {
	addr, err := ir.ParseAddress(raw)
	if err != nil {
		return "", &CompileError{Field: name, Message: err.Error(), Pos: v.LookupPath(cue.ParsePath(name)).Pos()}
	}
	return addr, nil
}

// CompileError is a plan error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error that points into the plan file rather than
	// the schema, when there is one.
	first := errs[0]
	for _, e := range errs {
		for _, pos := range errors.Positions(e) {
			if pos.Filename() != "schema.cue" {
				return &CompileError{Field: pathOf(e), Message: e.Error(), Pos: pos}
			}
		}
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: pathOf(first), Message: first.Error(), Pos: positions[0]}
	}
	return err
}

func pathOf(e errors.Error) string {
	if path := e.Path(); len(path) > 0 {
		return strings.Join(path, ".")
	}
	return "cue"
}
