package plan

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/vesting/internal/ir"
)

// Load reads a plan file, compiles it and runs Validate. The first problem
// found is returned; use Check to see all of them.
func Load(path string) (ir.Plan, error) {
	v, err := compileFile(path)
	if err != nil {
		return ir.Plan{}, err
	}
	p, err := Compile(v)
	if err != nil {
		return ir.Plan{}, err
	}
	if errs := Validate(p); len(errs) > 0 {
		return ir.Plan{}, errs[0]
	}
	return p, nil
}

// Check loads a plan file and reports every problem found, not just the
// first. A nil result means Load would succeed.
func Check(path string) []error {
	v, err := compileFile(path)
	if err != nil {
		return []error{err}
	}
	p, err := Compile(v)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, ve := range Validate(p) {
		errs = append(errs, ve)
	}
	return errs
}

func compileFile(path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("read plan: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}
