package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/erc20"
	"evm-token-lab/internal/txclient"
	"evm-token-lab/internal/wallet"
)

// DefaultStepTimeout bounds one step's confirmation wait.
const DefaultStepTimeout = 30 * time.Second

// Options configures a Runner. Token and Client are required; Keys
// defaults to the deterministic dev accounts.
type Options struct {
	Token  *erc20.Token
	Client *txclient.Client

	// Keys is the account set scenario indexes resolve against.
	Keys []*wallet.Key

	// StepTimeout defaults to DefaultStepTimeout.
	StepTimeout time.Duration

	Logger *zap.Logger
}

// Runner executes scenarios.
type Runner struct {
	token   *erc20.Token
	client  *txclient.Client
	keys    []*wallet.Key
	timeout time.Duration
	log     *zap.Logger
}

// NewRunner validates opts and creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Token == nil {
		return nil, fmt.Errorf("harness: Token is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("harness: Client is required")
	}
	if len(opts.Keys) == 0 {
		opts.Keys = wallet.DevKeys()
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		token:   opts.Token,
		client:  opts.Client,
		keys:    opts.Keys,
		timeout: opts.StepTimeout,
		log:     opts.Logger,
	}, nil
}

// StepResult is the observed outcome of one executed step.
type StepResult struct {
	Phase       string // "setup" or "flow"
	Index       int    // 1-based within its phase
	Description string
	Status      txclient.Status
	Reason      string // revert reason, empty otherwise
	OK          bool   // outcome matched the expectation
}

// Check is one evaluated assertion.
type Check struct {
	Description string
	Want        string
	Got         string
	OK          bool
}

// Result is a finished run. Passed means every step matched its
// expectation and every assertion held.
type Result struct {
	RunID     string
	Scenario  string
	StartedAt time.Time
	Steps     []StepResult
	Checks    []Check
	Violation string // first violation, empty when Passed
	Passed    bool
}

// Run executes the scenario and evaluates its assertions. Execution
// stops at the first step whose outcome does not match; assertions stop
// at the first failed check.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Scenario:  scenario.Name,
		StartedAt: time.Now().UTC(),
		Passed:    true,
	}
	r.log.Info("scenario started",
		zap.String("run_id", result.RunID),
		zap.String("scenario", scenario.Name),
	)

	if err := r.runPhase(ctx, scenario, "setup", scenario.Setup, result); err != nil {
		return nil, err
	}
	if result.Passed {
		if err := r.runPhase(ctx, scenario, "flow", scenario.Flow, result); err != nil {
			return nil, err
		}
	}
	if result.Passed {
		if err := r.evaluate(ctx, scenario, result); err != nil {
			return nil, err
		}
	}

	r.log.Info("scenario finished",
		zap.String("run_id", result.RunID),
		zap.Bool("passed", result.Passed),
		zap.String("violation", result.Violation),
	)
	return result, nil
}

func (r *Runner) runPhase(ctx context.Context, scenario *Scenario, phase string, steps []Step, result *Result) error {
	for i := range steps {
		step := &steps[i]
		stepResult, err := r.runStep(ctx, scenario, step)
		if err != nil {
			return fmt.Errorf("%s step %d: %w", phase, i+1, err)
		}
		stepResult.Phase = phase
		stepResult.Index = i + 1
		result.Steps = append(result.Steps, stepResult)

		if !stepResult.OK {
			result.Passed = false
			result.Violation = fmt.Sprintf("%s step %d (%s): outcome %s, reason %q",
				phase, i+1, stepResult.Description, stepResult.Status, stepResult.Reason)
			return nil
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, scenario *Scenario, step *Step) (StepResult, error) {
	amount, err := domain.ParseAmount(step.Amount)
	if err != nil {
		return StepResult{}, err
	}

	var (
		pending     *txclient.Pending
		description string
	)
	switch step.Action {
	case ActionFund:
		key, err := r.key(scenario, step.From)
		if err != nil {
			return StepResult{}, err
		}
		to, err := r.address(scenario, step.To)
		if err != nil {
			return StepResult{}, err
		}
		description = fmt.Sprintf("fund %s -> %s %s", step.From, step.To, step.Amount)
		pending, err = r.client.Submit(ctx, key, txclient.Call{To: &to, Value: amount})
		if err != nil {
			return StepResult{}, fmt.Errorf("%s: %w", description, err)
		}

	case ActionTransfer:
		key, err := r.key(scenario, step.From)
		if err != nil {
			return StepResult{}, err
		}
		to, err := r.address(scenario, step.To)
		if err != nil {
			return StepResult{}, err
		}
		description = fmt.Sprintf("transfer %s -> %s %s", step.From, step.To, step.Amount)
		pending, err = r.token.Transfer(ctx, key, to, amount)
		if err != nil {
			return StepResult{}, fmt.Errorf("%s: %w", description, err)
		}

	case ActionApprove:
		key, err := r.key(scenario, step.From)
		if err != nil {
			return StepResult{}, err
		}
		spender, err := r.address(scenario, step.Spender)
		if err != nil {
			return StepResult{}, err
		}
		description = fmt.Sprintf("approve %s: %s for %s", step.From, step.Amount, step.Spender)
		pending, err = r.token.Approve(ctx, key, spender, amount)
		if err != nil {
			return StepResult{}, fmt.Errorf("%s: %w", description, err)
		}

	case ActionTransferFrom:
		spenderKey, err := r.key(scenario, step.Spender)
		if err != nil {
			return StepResult{}, err
		}
		owner, err := r.address(scenario, step.From)
		if err != nil {
			return StepResult{}, err
		}
		to, err := r.address(scenario, step.To)
		if err != nil {
			return StepResult{}, err
		}
		description = fmt.Sprintf("transferFrom %s: %s -> %s %s", step.Spender, step.From, step.To, step.Amount)
		pending, err = r.token.TransferFrom(ctx, spenderKey, owner, to, amount)
		if err != nil {
			return StepResult{}, fmt.Errorf("%s: %w", description, err)
		}

	default:
		return StepResult{}, fmt.Errorf("unknown action %q", step.Action)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	outcome := pending.Wait(waitCtx)
	cancel()

	return StepResult{
		Description: description,
		Status:      outcome.Status,
		Reason:      outcome.Reason,
		OK:          stepMatches(step, outcome),
	}, nil
}

func stepMatches(step *Step, outcome txclient.Outcome) bool {
	expect := step.Expect
	if expect == "" {
		expect = ExpectConfirmed
	}
	switch expect {
	case ExpectConfirmed:
		return outcome.Status == txclient.StatusConfirmed
	case ExpectReverted:
		if outcome.Status != txclient.StatusReverted {
			return false
		}
		return step.Reason == "" || strings.Contains(outcome.Reason, step.Reason)
	}
	return false
}

// evaluate runs the final-state assertions in a stable order.
func (r *Runner) evaluate(ctx context.Context, scenario *Scenario, result *Result) error {
	roles := make([]string, 0, len(scenario.Assert.Balances))
	for role := range scenario.Assert.Balances {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		want, _ := domain.ParseAmount(scenario.Assert.Balances[role])
		addr, err := r.address(scenario, role)
		if err != nil {
			return err
		}
		got, err := r.token.BalanceOf(ctx, addr)
		if err != nil {
			return fmt.Errorf("balanceOf %s: %w", role, err)
		}
		if !r.record(result, Check{
			Description: fmt.Sprintf("balanceOf(%s)", role),
			Want:        want.String(),
			Got:         got.String(),
			OK:          got.Eq(want),
		}) {
			return nil
		}
	}

	for _, a := range scenario.Assert.Allowances {
		want, _ := domain.ParseAmount(a.Amount)
		owner, err := r.address(scenario, a.Owner)
		if err != nil {
			return err
		}
		spender, err := r.address(scenario, a.Spender)
		if err != nil {
			return err
		}
		got, err := r.token.Allowance(ctx, owner, spender)
		if err != nil {
			return fmt.Errorf("allowance %s->%s: %w", a.Owner, a.Spender, err)
		}
		if !r.record(result, Check{
			Description: fmt.Sprintf("allowance(%s, %s)", a.Owner, a.Spender),
			Want:        want.String(),
			Got:         got.String(),
			OK:          got.Eq(want),
		}) {
			return nil
		}
	}

	if scenario.Assert.SupplyIntact {
		check, err := r.supplyCheck(ctx, scenario)
		if err != nil {
			return err
		}
		if !r.record(result, check) {
			return nil
		}
	}
	return nil
}

// supplyCheck sums the scenario accounts' balances against the total
// supply. Scenarios move tokens only among their own accounts, so the
// sum accounts for every unit.
func (r *Runner) supplyCheck(ctx context.Context, scenario *Scenario) (Check, error) {
	supply, err := r.token.TotalSupply(ctx)
	if err != nil {
		return Check{}, fmt.Errorf("totalSupply: %w", err)
	}

	roles := make([]string, 0, len(scenario.Accounts))
	for role := range scenario.Accounts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var sum domain.Amount
	for _, role := range roles {
		addr, err := r.address(scenario, role)
		if err != nil {
			return Check{}, err
		}
		balance, err := r.token.BalanceOf(ctx, addr)
		if err != nil {
			return Check{}, fmt.Errorf("balanceOf %s: %w", role, err)
		}
		next, ok := sum.Add(balance)
		if !ok {
			return Check{}, fmt.Errorf("balance sum overflow")
		}
		sum = next
	}

	return Check{
		Description: "sum(balances) == totalSupply",
		Want:        supply.String(),
		Got:         sum.String(),
		OK:          sum.Eq(supply),
	}, nil
}

// record appends check and reports whether the run may continue.
func (r *Runner) record(result *Result, check Check) bool {
	result.Checks = append(result.Checks, check)
	if !check.OK {
		result.Passed = false
		result.Violation = fmt.Sprintf("assertion %s: want %s, got %s", check.Description, check.Want, check.Got)
		return false
	}
	return true
}

func (r *Runner) key(scenario *Scenario, role string) (*wallet.Key, error) {
	index, ok := scenario.Accounts[role]
	if !ok {
		return nil, fmt.Errorf("unknown account role %q", role)
	}
	if index >= len(r.keys) {
		return nil, fmt.Errorf("account %s: key index %d out of range", role, index)
	}
	return r.keys[index], nil
}

func (r *Runner) address(scenario *Scenario, role string) (domain.Address, error) {
	key, err := r.key(scenario, role)
	if err != nil {
		return domain.Address{}, err
	}
	return key.Address(), nil
}
