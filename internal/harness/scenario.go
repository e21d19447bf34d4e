package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the clock reading a scenario starts at unless it sets one.
var DefaultStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Scenario is a scripted run of the request lifecycle. Setup steps must
// succeed; flow steps may carry expectations; assertions check the final
// state.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 instant the fixed clock starts at.
	Start string `yaml:"start,omitempty"`

	// TimeZone bounds publication days. Default: UTC.
	TimeZone string `yaml:"time_zone,omitempty"`

	Setup      []Step      `yaml:"setup,omitempty"`
	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step invokes one operation.
type Step struct {
	// Op names the operation, e.g. "request.transition".
	Op string `yaml:"op"`

	// Args are the operation arguments. Allowed keys depend on Op.
	Args map[string]any `yaml:"args"`

	// Actor is attributed to the events the step writes.
	Actor string `yaml:"actor,omitempty"`

	// Advance moves the clock forward before the step runs, e.g. "2h".
	Advance string `yaml:"advance,omitempty"`

	// Expect, when set, is checked against the step outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Outcome is OK or a domain error kind.
	Outcome string `yaml:"outcome"`

	// State is the expected request (or candidate) state after the step.
	State string `yaml:"state,omitempty"`
}

// Assertion checks final state after the flow.
type Assertion struct {
	Type string `yaml:"type"`

	Request   string   `yaml:"request,omitempty"`
	Candidate string   `yaml:"candidate,omitempty"`
	State     string   `yaml:"state,omitempty"`
	Action    string   `yaml:"action,omitempty"`
	Actions   []string `yaml:"actions,omitempty"`
	Codes     []string `yaml:"codes,omitempty"`
	Labels    []string `yaml:"labels,omitempty"`
	Count     int      `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertRequestState   = "request_state"
	AssertCandidateState = "candidate_state"
	AssertEventOrder     = "event_order"
	AssertEventCount     = "event_count"
	AssertEligible       = "eligible"
	AssertHistory        = "history"
)

// Operations and the argument keys each accepts.
var opArgs = map[string][]string{
	"client.register":     {"code", "name", "phone", "email"},
	"candidate.create":    {"national_id", "full_name", "phone", "email", "skills"},
	"candidate.state":     {"candidate", "state", "note"},
	"request.create":      {"client", "position", "modality", "notes"},
	"request.transition":  {"request", "action", "plan", "deposit", "candidate", "amount", "reason", "planned_start", "at", "version"},
	"replacement.open":    {"request", "candidate", "reason", "planned_start"},
	"replacement.resolve": {"replacement", "candidate", "start", "new_opportunity"},
	"publish.run":         {},
}

// Ops returns the supported operation names in sorted order.
func Ops() []string {
	ops := make([]string, 0, len(opArgs))
	for op := range opArgs {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if s.TimeZone != "" {
		if _, err := time.LoadLocation(s.TimeZone); err != nil {
			return fmt.Errorf("time_zone: %w", err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot carry expect", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Outcome == "" {
			return fmt.Errorf("flow[%d].expect: outcome is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	allowed, ok := opArgs[step.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	for key := range step.Args {
		found := false
		for _, a := range allowed {
			if a == key {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("op %s does not accept arg %q", step.Op, key)
		}
	}
	if step.Advance != "" {
		if d, err := time.ParseDuration(step.Advance); err != nil || d < 0 {
			return fmt.Errorf("advance %q must be a non-negative duration", step.Advance)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertRequestState:
		if a.Request == "" || a.State == "" {
			return fmt.Errorf("request and state are required for %s", a.Type)
		}
	case AssertCandidateState:
		if a.Candidate == "" || a.State == "" {
			return fmt.Errorf("candidate and state are required for %s", a.Type)
		}
	case AssertEventOrder:
		if a.Request == "" || len(a.Actions) == 0 {
			return fmt.Errorf("request and actions are required for %s", a.Type)
		}
	case AssertEventCount:
		if a.Request == "" || a.Action == "" {
			return fmt.Errorf("request and action are required for %s", a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
	case AssertEligible:
	case AssertHistory:
		if a.Request == "" {
			return fmt.Errorf("request is required for %s", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
