// Package harness runs YAML-defined token scenarios against a live
// node: scripted setup and flow steps with expected outcomes, followed
// by balance, allowance and supply assertions. The first violation
// fails the run; there is no partial silent success.
package harness

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"evm-token-lab/internal/domain"
)

// Step actions.
const (
	ActionFund         = "fund"
	ActionTransfer     = "transfer"
	ActionApprove      = "approve"
	ActionTransferFrom = "transfer_from"
)

// Step outcome expectations.
const (
	ExpectConfirmed = "confirmed"
	ExpectReverted  = "reverted"
)

// Scenario is one scripted run. Accounts map scenario roles to dev key
// indexes; steps and assertions refer to roles, never raw addresses.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Accounts    map[string]int `yaml:"accounts"`
	Setup       []Step         `yaml:"setup,omitempty"`
	Flow        []Step         `yaml:"flow"`
	Assert      Assertions     `yaml:"assert"`
}

// Step is one submitted transaction. Fund moves native units for gas;
// the token actions mirror the contract surface.
type Step struct {
	Action  string `yaml:"action"`
	From    string `yaml:"from,omitempty"`    // sender; owner for transfer_from
	Spender string `yaml:"spender,omitempty"` // submitting account for transfer_from
	To      string `yaml:"to,omitempty"`
	Amount  string `yaml:"amount"`

	// Expect defaults to confirmed. Reason, when set on a reverted
	// expectation, must appear in the node-reported revert reason.
	Expect string `yaml:"expect,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

// Assertions check final state after the flow completes.
type Assertions struct {
	Balances     map[string]string    `yaml:"balances,omitempty"`
	Allowances   []AllowanceAssertion `yaml:"allowances,omitempty"`
	SupplyIntact bool                 `yaml:"supply_intact,omitempty"`
}

// AllowanceAssertion pins one (owner, spender) pair.
type AllowanceAssertion struct {
	Owner   string `yaml:"owner"`
	Spender string `yaml:"spender"`
	Amount  string `yaml:"amount"`
}

// LoadScenario reads and validates one scenario file. Unknown YAML
// fields are rejected, so a typoed key fails loudly instead of being
// silently ignored.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return ParseScenario(f)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("scenario %s: no accounts", s.Name)
	}
	for role, index := range s.Accounts {
		if index < 0 {
			return fmt.Errorf("scenario %s: account %s has negative key index", s.Name, role)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("scenario %s: empty flow", s.Name)
	}
	for i, step := range s.Setup {
		if err := s.validateStep(&step); err != nil {
			return fmt.Errorf("scenario %s: setup step %d: %w", s.Name, i+1, err)
		}
	}
	for i, step := range s.Flow {
		if err := s.validateStep(&step); err != nil {
			return fmt.Errorf("scenario %s: flow step %d: %w", s.Name, i+1, err)
		}
	}
	for role := range s.Assert.Balances {
		if err := s.knownRole(role); err != nil {
			return fmt.Errorf("scenario %s: balance assertion: %w", s.Name, err)
		}
	}
	for _, a := range s.Assert.Allowances {
		if err := s.knownRole(a.Owner); err != nil {
			return fmt.Errorf("scenario %s: allowance assertion: %w", s.Name, err)
		}
		if err := s.knownRole(a.Spender); err != nil {
			return fmt.Errorf("scenario %s: allowance assertion: %w", s.Name, err)
		}
		if _, err := domain.ParseAmount(a.Amount); err != nil {
			return fmt.Errorf("scenario %s: allowance assertion amount: %w", s.Name, err)
		}
	}
	for role, amount := range s.Assert.Balances {
		if _, err := domain.ParseAmount(amount); err != nil {
			return fmt.Errorf("scenario %s: balance assertion for %s: %w", s.Name, role, err)
		}
	}
	return nil
}

func (s *Scenario) validateStep(step *Step) error {
	if _, err := domain.ParseAmount(step.Amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	switch step.Expect {
	case "", ExpectConfirmed, ExpectReverted:
	default:
		return fmt.Errorf("unknown expectation %q", step.Expect)
	}
	if step.Reason != "" && step.Expect != ExpectReverted {
		return fmt.Errorf("reason requires expect: reverted")
	}

	switch step.Action {
	case ActionFund, ActionTransfer:
		return s.knownRoles(step.From, step.To)
	case ActionApprove:
		return s.knownRoles(step.From, step.Spender)
	case ActionTransferFrom:
		return s.knownRoles(step.Spender, step.From, step.To)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (s *Scenario) knownRoles(roles ...string) error {
	for _, role := range roles {
		if err := s.knownRole(role); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) knownRole(role string) error {
	if role == "" {
		return fmt.Errorf("missing account role")
	}
	if _, ok := s.Accounts[role]; !ok {
		return fmt.Errorf("unknown account role %q", role)
	}
	return nil
}
