package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vesting/internal/ir"
)

// GoldenDir is where golden traces live, relative to a test package.
const GoldenDir = "testdata/golden"

// Snapshot serializes a run's trace with canonical JSON, so the same run
// always produces the same bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"at":      ev.At,
			"outcome": ev.Outcome,
		}
		if ev.As != "" {
			m["as"] = ev.As
		}
		if ev.Amount != 0 {
			m["amount"] = ev.Amount
		}
		if ev.Withdrawn != 0 {
			m["withdrawn"] = ev.Withdrawn
		}
		if ev.Committed != 0 {
			m["committed"] = ev.Committed
		}
		if ev.Aborted != 0 {
			m["aborted"] = ev.Aborted
		}
		trace[i] = m
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         trace,
	})
}

// RunWithGolden runs a scenario, fails t on any step or assertion error, and
// compares the trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// ErrGoldenMismatch is returned by CheckGolden when a trace differs.
var ErrGoldenMismatch = errors.New("trace differs from golden file")

// CheckGolden compares data against dir/{name}.golden outside of a test,
// for the CLI. With update the file is (re)written instead. A missing
// golden file is not an error: there is nothing to compare against.
func CheckGolden(dir, name string, data []byte, update bool) error {
	path := filepath.Join(dir, name+".golden")
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(data)) {
		return fmt.Errorf("%s: %w", path, ErrGoldenMismatch)
	}
	return nil
}
