package action

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// ErrActionDenied is returned when the policy does not allow an action
var ErrActionDenied = goerr.New("action denied by policy")

// GuardQuery is evaluated for every action. It must yield a boolean; undefined means denied.
const GuardQuery = "data.huddle.action.allow"

// Guard decides with a Rego policy whether an agent may run an action.
// The input document is {"agent": NAME, "action": {"type": KIND, "data": PAYLOAD}}.
type Guard struct {
	query *rego.PreparedEvalQuery
}

// printHook forwards Rego print() output to the debug log
type printHook struct{}

func (printHook) Print(pctx print.Context, message string) error {
	ctx := pctx.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logging.From(ctx).Debug("policy print", "message", message, "location", pctx.Location)
	return nil
}

// NewGuard compiles policy source
func NewGuard(ctx context.Context, name, policy string) (*Guard, error) {
	r := rego.New(
		rego.Query(GuardQuery),
		rego.Module(name, policy),
		rego.EnablePrintStatements(true),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare action policy", goerr.V("module", name))
	}

	return &Guard{query: &prepared}, nil
}

// LoadGuard reads and compiles a policy file
func LoadGuard(ctx context.Context, path string) (*Guard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", path))
	}
	return NewGuard(ctx, path, string(data))
}

// Check returns nil when the policy allows the action
func (g *Guard) Check(ctx context.Context, action model.Action, agentName string) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return goerr.Wrap(err, "failed to encode action for policy")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return goerr.Wrap(err, "failed to decode action for policy")
	}

	input := map[string]any{
		"agent":  agentName,
		"action": doc,
	}

	rs, err := g.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(printHook{}))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate action policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return goerr.Wrap(ErrActionDenied, "policy has no decision", goerr.V("kind", action.Kind))
	}
	if allowed, ok := rs[0].Expressions[0].Value.(bool); !ok || !allowed {
		return goerr.Wrap(ErrActionDenied, "policy did not allow action",
			goerr.V("kind", action.Kind),
			goerr.V("agent", agentName))
	}
	return nil
}
