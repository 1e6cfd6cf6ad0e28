package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vesting/internal/ir"
)

// DefaultOrigin is the clock value at offset 0 when a scenario sets none.
const DefaultOrigin int64 = 1_700_000_000

// Scenario defines a vesting scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Origin is the unix time at offset 0. Step times are offsets from it.
	Origin int64 `yaml:"origin,omitempty"`

	// Actors names the identities in play. Keys derive from names.
	Actors []string `yaml:"actors"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is the operation, one of the Op* constants.
	Op string `yaml:"op"`

	// At is the clock offset the step runs at. Unset keeps the previous
	// step's time. Offsets must not decrease.
	At *int64 `yaml:"at,omitempty"`

	// As is the acting actor. Empty means an unauthenticated caller.
	As string `yaml:"as,omitempty"`

	Label       string `yaml:"label,omitempty"`
	Decimals    uint8  `yaml:"decimals,omitempty"`
	Company     string `yaml:"company,omitempty"`
	To          string `yaml:"to,omitempty"`
	Beneficiary string `yaml:"beneficiary,omitempty"`
	Start       int64  `yaml:"start,omitempty"`
	Cliff       int64  `yaml:"cliff,omitempty"`
	End         int64  `yaml:"end,omitempty"`
	Amount      uint64 `yaml:"amount,omitempty"`

	// Fault injects a ledger failure for this step only.
	Fault string `yaml:"fault,omitempty"`

	// Expect states the outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Error is the expected error code, e.g. "NothingToClaim". Empty
	// expects success.
	Error ir.ErrorCode `yaml:"error,omitempty"`

	// Amount is the expected amount moved (claimed, funded, refunded).
	Amount *uint64 `yaml:"amount,omitempty"`
}

// Operations.
const (
	OpCreateMint     = "create_mint"
	OpMintTo         = "mint_to"
	OpCreateVesting  = "create_vesting"
	OpFund           = "fund"
	OpCreateEmployee = "create_employee"
	OpClaim          = "claim"
	OpCloseVesting   = "close_vesting"
	OpReconcile      = "reconcile"
)

var knownOps = []string{
	OpCreateMint, OpMintTo, OpCreateVesting, OpFund,
	OpCreateEmployee, OpClaim, OpCloseVesting, OpReconcile,
}

// Ledger faults.
const (
	// FaultReject fails the transfer without applying it.
	FaultReject = "reject"
	// FaultLostReply applies the transfer, then reports failure.
	FaultLostReply = "lost_reply"
	// FaultUnsettled fails the transfer and every settle attempt.
	FaultUnsettled = "unsettled"
)

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Company     string         `yaml:"company,omitempty"`
	Beneficiary string         `yaml:"beneficiary,omitempty"`
	Actor       string         `yaml:"actor,omitempty"`
	Label       string         `yaml:"label,omitempty"`
	Status      ir.ClaimStatus `yaml:"status,omitempty"`
	Op          string         `yaml:"op,omitempty"`
	Outcome     string         `yaml:"outcome,omitempty"`

	// Equals is the expected amount (withdrawn, balance, treasury).
	Equals uint64 `yaml:"equals,omitempty"`

	// Count is the expected number of claims or trace events.
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertWithdrawn  = "withdrawn"   // schedule total_withdrawn
	AssertBalance    = "balance"     // holding account balance
	AssertTreasury   = "treasury"    // pool treasury balance
	AssertPoolClosed = "pool_closed" // pool record is gone
	AssertClaimCount = "claim_count" // claims in a status
	AssertTraceCount = "trace_count" // steps with op and outcome
)

var knownAssertions = []string{
	AssertWithdrawn, AssertBalance, AssertTreasury,
	AssertPoolClosed, AssertClaimCount, AssertTraceCount,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected, so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the *.yaml and *.yml files in dir, sorted.
// pattern, if set, filters by base name (filepath.Match syntax).
func FindScenarios(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, e.Name())
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	actors := make(map[string]bool, len(s.Actors))
	for _, a := range s.Actors {
		if a == "" {
			return fmt.Errorf("actor names must be non-empty")
		}
		if actors[a] {
			return fmt.Errorf("duplicate actor %q", a)
		}
		actors[a] = true
	}
	actor := func(where, name string) error {
		if name != "" && !actors[name] {
			return fmt.Errorf("%s: unknown actor %q", where, name)
		}
		return nil
	}

	var at int64
	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if !slices.Contains(knownOps, step.Op) {
			return fmt.Errorf("%s: unknown op %q", where, step.Op)
		}
		if step.At != nil {
			if *step.At < at {
				return fmt.Errorf("%s: at %d is before the previous step (%d)", where, *step.At, at)
			}
			at = *step.At
		}
		for _, name := range []string{step.As, step.To, step.Beneficiary} {
			if err := actor(where, name); err != nil {
				return err
			}
		}
		switch step.Fault {
		case "", FaultReject, FaultLostReply, FaultUnsettled:
		default:
			return fmt.Errorf("%s: unknown fault %q", where, step.Fault)
		}
		if err := requireFields(where, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		where := fmt.Sprintf("assertions[%d]", i)
		if !slices.Contains(knownAssertions, a.Type) {
			return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
		}
		for _, name := range []string{a.Actor, a.Beneficiary} {
			if err := actor(where, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireFields(where string, step Step) error {
	missing := func(field string) error {
		return fmt.Errorf("%s: %s requires %s", where, step.Op, field)
	}
	switch step.Op {
	case OpCreateMint:
		if step.Label == "" {
			return missing("label")
		}
		if step.As == "" {
			return missing("as")
		}
	case OpMintTo:
		if step.As == "" {
			return missing("as")
		}
		if step.Label == "" {
			return missing("label")
		}
		if step.To == "" {
			return missing("to")
		}
	case OpCreateVesting:
		if step.Label == "" {
			return missing("label")
		}
	case OpFund, OpCloseVesting:
		if step.Company == "" {
			return missing("company")
		}
	case OpCreateEmployee:
		if step.Company == "" {
			return missing("company")
		}
		if step.Beneficiary == "" {
			return missing("beneficiary")
		}
	case OpClaim:
		if step.Company == "" {
			return missing("company")
		}
		if step.Beneficiary == "" && step.As == "" {
			return missing("beneficiary or as")
		}
	}
	return nil
}
