package policy

import (
	"context"
	"slices"

	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Privileged is the fixed set of tools that always require speaker
// verification. A custom policy can add tools to it, never remove them.
var Privileged = []string{"aim-and-fire", "defend", "pay"}

// IsFixedPrivileged reports whether tool belongs to Privileged
func IsFixedPrivileged(tool string) bool {
	return slices.Contains(Privileged, tool)
}

// regoPrintHook forwards Rego print() statements to the context logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego", "message", message)
	return nil
}

// Classifier decides whether a tool name is privileged
type Classifier struct {
	query *rego.PreparedEvalQuery
}

// New prepares the privilege policy. An empty policyDir selects the built-in policy.
func New(ctx context.Context, policyDir string) (*Classifier, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}

	q, err := prepareQuery(ctx, modules)
	if err != nil {
		return nil, err
	}

	return &Classifier{query: q}, nil
}

// IsPrivileged reports whether invoking tool needs a verified speaker.
// Evaluation failures and undefined decisions are treated as privileged.
func (c *Classifier) IsPrivileged(ctx context.Context, tool string, params map[string]any) bool {
	if IsFixedPrivileged(tool) {
		return true
	}

	privileged, err := c.eval(ctx, tool, params)
	if err != nil {
		logging.From(ctx).Error("privilege evaluation failed, requiring verification",
			"tool", tool, "error", err)
		return true
	}
	return privileged
}

func (c *Classifier) eval(ctx context.Context, tool string, params map[string]any) (bool, error) {
	if params == nil {
		params = map[string]any{}
	}
	input := map[string]any{
		"tool":   tool,
		"params": params,
	}

	rs, err := c.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate privilege policy", goerr.V("tool", tool))
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, goerr.New("privilege policy is undefined", goerr.V("query", query), goerr.V("tool", tool))
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return false, goerr.New("unexpected policy result", goerr.V("value", rs[0].Expressions[0].Value))
	}

	switch v := data["privileged"].(type) {
	case bool:
		return v, nil
	case nil:
		return false, goerr.New("privileged is undefined", goerr.V("tool", tool))
	default:
		return false, goerr.New("privileged must be boolean", goerr.V("value", v))
	}
}
